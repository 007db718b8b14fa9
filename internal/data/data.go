package data

import (
	"github.com/devricklin/fanwatch-bridge/internal/biz/repo"
	"github.com/devricklin/fanwatch-bridge/internal/conf"
	"github.com/devricklin/fanwatch-bridge/internal/infra/moonshot"
)

// Repositories contains all repositories
type Repositories struct {
	Settings repo.SettingsRepo
	Review   repo.ReviewRepo // nil when Moonshot is not configured

	settings *settingsRepo
}

// NewRepositories creates the storage and review repositories.
// The notifier needs the loaded settings and is built separately with NewFeishuNotifier.
func NewRepositories(settingsDBPath string, moonshotClient *moonshot.Client, prompts *conf.PromptsConfig) (*Repositories, error) {
	settings, err := openSettingsRepo(settingsDBPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Settings: settings,
		Review:   NewMoonshotReviewer(moonshotClient, prompts),
		settings: settings,
	}, nil
}

// Close releases the database
func (r *Repositories) Close() error {
	return r.settings.Close()
}
