package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devricklin/fanwatch-bridge/internal/biz/usecase"
	"github.com/devricklin/fanwatch-bridge/internal/infra/feishu"
	"github.com/devricklin/fanwatch-bridge/internal/service"
)

const dedupWindow = 5 * time.Minute

// FeishuClient is the part of the Feishu client the server uses
type FeishuClient interface {
	OnMessage(handler feishu.MessageHandler)
	Start(ctx context.Context) error
	Stop()
	SendText(ctx context.Context, chatID, text string) error
}

// FeishuServer routes operator chat messages into the command service
type FeishuServer struct {
	feishuClient FeishuClient
	settingsUC   *usecase.SettingsUsecase
	commands     *service.CommandService

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(feishuClient FeishuClient, settingsUC *usecase.SettingsUsecase, commands *service.CommandService) *FeishuServer {
	return &FeishuServer{
		feishuClient: feishuClient,
		settingsUC:   settingsUC,
		commands:     commands,
		seenMsgs:     make(map[string]time.Time),
	}
}

// Start listens for operator messages (blocking)
func (s *FeishuServer) Start(ctx context.Context) error {
	s.feishuClient.OnMessage(s.handleMessage)
	return s.feishuClient.Start(ctx)
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.feishuClient.Stop()
}

// handleMessage handles Feishu messages
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	// Lark redelivers events it thinks were not acknowledged
	if !s.markMessageSeen(msg.MsgID) {
		fmt.Printf("[Server] Duplicate message ignored: %s\n", msg.MsgID)
		return
	}

	text := strings.TrimSpace(msg.Content)
	// In groups only explicit commands are answered
	if msg.ChatType == "group" && !strings.HasPrefix(text, "/") {
		return
	}

	ctx := context.Background()

	operatorID, err := s.settingsUC.ResolveOperator(ctx, msg.ChatID)
	if err != nil {
		fmt.Printf("[Server] Failed to resolve operator for %s: %v\n", msg.ChatID, err)
		if err := s.feishuClient.SendText(ctx, msg.ChatID, "Settings are unavailable, please try again later"); err != nil {
			fmt.Printf("[Server] Failed to send reply: %v\n", err)
		}
		return
	}

	reply := s.commands.Handle(ctx, operatorID, text)
	if reply == "" {
		return
	}
	if err := s.feishuClient.SendText(ctx, msg.ChatID, reply); err != nil {
		fmt.Printf("[Server] Failed to send reply: %v\n", err)
	}
}

// markMessageSeen records msgID and reports whether it was new
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := time.Now()
	if ts, exists := s.seenMsgs[msgID]; exists && now.Sub(ts) < dedupWindow {
		return false
	}
	s.seenMsgs[msgID] = now

	// Clean up expired records when marking new messages
	cutoff := now.Add(-dedupWindow)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return true
}
