package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptsConfig contains all prompt configurations loaded from YAML
type PromptsConfig struct {
	Review   ReviewPrompts   `yaml:"review"`
	Commands CommandsPrompts `yaml:"commands"`
}

// ReviewPrompts contains the risk review model prompts
type ReviewPrompts struct {
	SystemPrompt string `yaml:"system_prompt"`
	UserTemplate string `yaml:"user_template"`
}

// CommandsPrompts contains operator-facing command texts
type CommandsPrompts struct {
	Help string `yaml:"help"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/fanwatch-bridge/prompts.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	var err error

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	if data == nil {
		// Return default config if no file found
		fmt.Println("[Config] No prompts.yaml found, using defaults")
		return DefaultPromptsConfig(), nil
	}

	fmt.Printf("[Config] Loading prompts from: %s\n", loadedPath)

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return DefaultPromptsConfig(), fmt.Errorf("failed to parse prompts.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.Review.SystemPrompt == "" {
		c.Review.SystemPrompt = defaults.Review.SystemPrompt
	}
	if c.Review.UserTemplate == "" {
		c.Review.UserTemplate = defaults.Review.UserTemplate
	}
	// Empty help falls back to the built-in command list
}

// FormatReviewRequest fills the user template with the message and matched patterns
func (c *PromptsConfig) FormatReviewRequest(message string, matched []string) string {
	result := c.Review.UserTemplate
	result = strings.ReplaceAll(result, "{{matched}}", strings.Join(matched, ", "))
	result = strings.ReplaceAll(result, "{{message}}", message)
	return strings.TrimSpace(result)
}

// DefaultPromptsConfig returns the default prompts configuration
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		Review: ReviewPrompts{
			SystemPrompt: `You review chat messages sent to a creator on a subscription platform.
A rule-based filter flagged the message because it matched contact or payment patterns.
Decide whether the sender is trying to move the conversation or payment off the platform.

Reply with one short line: "HIGH", "MEDIUM" or "LOW" followed by a reason of at most ten words.`,
			UserTemplate: `Matched patterns: {{matched}}

Message:
{{message}}`,
		},
	}
}
