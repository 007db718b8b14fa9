package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/biz/usecase"
	"github.com/devricklin/fanwatch-bridge/internal/infra/feishu"
	"github.com/devricklin/fanwatch-bridge/internal/infra/upstream"
	"github.com/devricklin/fanwatch-bridge/internal/service"
)

type mockFeishuClient struct {
	mu      sync.Mutex
	handler feishu.MessageHandler
	sent    []string
	sendErr error
}

func (m *mockFeishuClient) OnMessage(handler feishu.MessageHandler) { m.handler = handler }
func (m *mockFeishuClient) Start(ctx context.Context) error          { return nil }
func (m *mockFeishuClient) Stop()                                    {}

func (m *mockFeishuClient) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, chatID+": "+text)
	return m.sendErr
}

func (m *mockFeishuClient) replies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type memSettingsRepo struct{ saveErr error }

func (m *memSettingsRepo) LoadAll(ctx context.Context) ([]*domain.Operator, error) { return nil, nil }
func (m *memSettingsRepo) SaveAll(ctx context.Context, ops []*domain.Operator) error {
	return m.saveErr
}

type refusingDialer struct{}

func (refusingDialer) Dial(ctx context.Context, endpoint string) (upstream.Stream, error) {
	return nil, errors.New("offline")
}

type nopNotifier struct{}

func (nopNotifier) Send(ctx context.Context, operatorID int64, accountName, text string) error {
	return nil
}

func newTestServer(t *testing.T, repo *memSettingsRepo) (*FeishuServer, *mockFeishuClient) {
	t.Helper()
	settingsUC := usecase.NewSettingsUsecase(repo)
	config := service.DefaultSessionConfig()
	config.Backoff = time.Hour
	registry := service.NewRegistry(settingsUC, nopNotifier{}, nil, refusingDialer{}, config, usecase.LimiterConfig{})
	t.Cleanup(registry.Shutdown)

	client := &mockFeishuClient{}
	s := NewFeishuServer(client, settingsUC, service.NewCommandService(registry, ""))
	s.Start(context.Background())
	return s, client
}

func TestFeishuServer_RepliesToCommands(t *testing.T) {
	_, client := newTestServer(t, &memSettingsRepo{})

	client.handler(&feishu.Message{ChatID: "oc_1", MsgID: "m1", ChatType: "p2p", Content: "/start"})

	replies := client.replies()
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "oc_1: Welcome") {
		t.Errorf("Unexpected replies %v", replies)
	}
}

func TestFeishuServer_DeduplicatesMessages(t *testing.T) {
	_, client := newTestServer(t, &memSettingsRepo{})

	msg := &feishu.Message{ChatID: "oc_1", MsgID: "dup", ChatType: "p2p", Content: "/help"}
	client.handler(msg)
	client.handler(msg)

	if got := len(client.replies()); got != 1 {
		t.Errorf("Expected 1 reply, got %d", got)
	}
}

func TestFeishuServer_GroupIgnoresChatter(t *testing.T) {
	_, client := newTestServer(t, &memSettingsRepo{})

	client.handler(&feishu.Message{ChatID: "oc_g", MsgID: "g1", ChatType: "group", Content: "good morning"})
	client.handler(&feishu.Message{ChatID: "oc_g", MsgID: "g2", ChatType: "group", Content: "/accounts"})

	replies := client.replies()
	if len(replies) != 1 || !strings.Contains(replies[0], "No accounts registered") {
		t.Errorf("Expected only the command answered, got %v", replies)
	}
}

func TestFeishuServer_ChatsMapToOperators(t *testing.T) {
	s, client := newTestServer(t, &memSettingsRepo{})

	client.handler(&feishu.Message{ChatID: "oc_a", MsgID: "a1", ChatType: "p2p", Content: "/token main tok"})
	client.handler(&feishu.Message{ChatID: "oc_b", MsgID: "b1", ChatType: "p2p", Content: "/accounts"})

	replies := client.replies()
	if len(replies) != 2 || !strings.Contains(replies[1], "No accounts registered") {
		t.Errorf("Expected chats isolated, got %v", replies)
	}

	idA, _ := s.settingsUC.ResolveOperator(context.Background(), "oc_a")
	if chat, _ := s.settingsUC.ChatID(idA); chat != "oc_a" {
		t.Errorf("Expected operator bound to oc_a, got %q", chat)
	}
}

func TestFeishuServer_SettingsFailure(t *testing.T) {
	_, client := newTestServer(t, &memSettingsRepo{saveErr: errors.New("disk full")})

	client.handler(&feishu.Message{ChatID: "oc_1", MsgID: "m1", ChatType: "p2p", Content: "/start"})

	replies := client.replies()
	if len(replies) != 1 || !strings.Contains(replies[0], "Settings are unavailable") {
		t.Errorf("Unexpected replies %v", replies)
	}
}

func TestFeishuServer_SendFailuresAreContained(t *testing.T) {
	s, client := newTestServer(t, &memSettingsRepo{saveErr: errors.New("disk full")})
	client.sendErr = errors.New("feishu down")

	client.handler(&feishu.Message{ChatID: "oc_1", MsgID: "m1", ChatType: "p2p", Content: "/start"})
	client.handler(&feishu.Message{ChatID: "oc_1", MsgID: "m2", ChatType: "p2p", Content: "/help"})

	if replies := client.replies(); len(replies) != 2 {
		t.Errorf("Expected both replies attempted despite send errors, got %v", replies)
	}
	if !s.markMessageSeen("m3") {
		t.Error("Expected server to keep handling messages")
	}
}
