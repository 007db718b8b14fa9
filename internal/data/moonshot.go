package data

import (
	"context"

	"github.com/devricklin/fanwatch-bridge/internal/biz/repo"
	"github.com/devricklin/fanwatch-bridge/internal/conf"
	"github.com/devricklin/fanwatch-bridge/internal/infra/moonshot"
)

// ChatModel is a single-turn chat completion backend
type ChatModel interface {
	Chat(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// moonshotReviewer implements the risk review repository
type moonshotReviewer struct {
	model   ChatModel
	prompts *conf.PromptsConfig
}

// NewMoonshotReviewer creates a review repository. It returns nil when
// client is nil so callers can pass the result straight through.
func NewMoonshotReviewer(client *moonshot.Client, prompts *conf.PromptsConfig) repo.ReviewRepo {
	if client == nil {
		return nil
	}
	return newReviewer(client, prompts)
}

func newReviewer(model ChatModel, prompts *conf.PromptsConfig) *moonshotReviewer {
	if prompts == nil {
		prompts = conf.DefaultPromptsConfig()
	}
	return &moonshotReviewer{model: model, prompts: prompts}
}

// Review asks the model for a one-line verdict
func (r *moonshotReviewer) Review(ctx context.Context, message string, matched []string) (string, error) {
	return r.model.Chat(ctx, r.prompts.Review.SystemPrompt, r.prompts.FormatReviewRequest(message, matched))
}
