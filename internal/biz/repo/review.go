package repo

import "context"

// ReviewRepo gives a short risk verdict on a flagged message
type ReviewRepo interface {
	// Review returns a one-line verdict for the message and the patterns that fired
	Review(ctx context.Context, message string, matched []string) (string, error)
}
