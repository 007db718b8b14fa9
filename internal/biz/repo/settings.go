package repo

import (
	"context"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
)

// SettingsRepo is the settings store interface
// The whole collection is read at startup and rewritten on every mutation
type SettingsRepo interface {
	// LoadAll reads every operator with their accounts
	LoadAll(ctx context.Context) ([]*domain.Operator, error)

	// SaveAll replaces the stored collection with the given operators
	SaveAll(ctx context.Context, operators []*domain.Operator) error
}
