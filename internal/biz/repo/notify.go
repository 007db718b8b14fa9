package repo

import "context"

// NotifyRepo is the notification sink interface
// Delivers plain text to the operator's chat
type NotifyRepo interface {
	// Send delivers text to the operator. accountName may be empty.
	Send(ctx context.Context, operatorID int64, accountName, text string) error
}
