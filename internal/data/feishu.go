package data

import (
	"context"
	"fmt"

	"github.com/devricklin/fanwatch-bridge/internal/biz/repo"
)

// TextSender sends plain text into a Feishu chat
type TextSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// ChatResolver maps an operator to its Feishu chat
type ChatResolver interface {
	ChatID(operatorID int64) (string, bool)
}

// feishuNotifier implements the notification sink on Feishu
type feishuNotifier struct {
	sender   TextSender
	resolver ChatResolver
}

// NewFeishuNotifier creates a new Feishu notification sink
func NewFeishuNotifier(sender TextSender, resolver ChatResolver) repo.NotifyRepo {
	return &feishuNotifier{sender: sender, resolver: resolver}
}

// Send delivers text to the operator's chat, tagged with the account name
func (n *feishuNotifier) Send(ctx context.Context, operatorID int64, accountName, text string) error {
	chatID, ok := n.resolver.ChatID(operatorID)
	if !ok {
		return fmt.Errorf("no chat bound to operator %d", operatorID)
	}
	if accountName != "" {
		text = "[" + accountName + "] " + text
	}
	return n.sender.SendText(ctx, chatID, text)
}
