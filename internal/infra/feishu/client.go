package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// Message represents a received Feishu message
type Message struct {
	ChatID   string
	MsgID    string
	MsgType  string // text, post
	ChatType string // p2p (private), group
	Content  string // Plain text with mention placeholders removed
	SenderID string // open_id
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	logLevel  larkcore.LogLevel
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		logLevel:  larkcore.LogLevelInfo,
	}
}

// SetDebug enables SDK debug logging
func (c *Client) SetDebug(debug bool) {
	if debug {
		c.logLevel = larkcore.LogLevelDebug
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and listens for messages (blocking)
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	// Must return quickly so the SDK can ACK, otherwise Feishu retries the event
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(c.logLevel),
	)

	fmt.Println("[Feishu] Starting WebSocket connection...")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// handleMessage processes incoming Feishu messages
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message

	// Ignore messages sent by the bot itself
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil && *event.Event.Sender.SenderType == "app" {
		return
	}
	if rawMsg.ChatId == nil || rawMsg.MessageId == nil || rawMsg.MessageType == nil || rawMsg.Content == nil {
		return
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgID:   *rawMsg.MessageId,
		MsgType: *rawMsg.MessageType,
	}
	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}
	if s := event.Event.Sender; s != nil && s.SenderId != nil && s.SenderId.OpenId != nil {
		msg.SenderID = *s.SenderId.OpenId
	}

	var mentionKeys []string
	for _, m := range rawMsg.Mentions {
		if m != nil && m.Key != nil {
			mentionKeys = append(mentionKeys, *m.Key)
		}
	}

	switch msg.MsgType {
	case "text":
		msg.Content = ParseTextContent(*rawMsg.Content, mentionKeys)
	case "post":
		msg.Content = ParsePostContent(*rawMsg.Content, mentionKeys)
	default:
		fmt.Printf("[Feishu] Unsupported message type: %s\n", msg.MsgType)
		return
	}

	fmt.Printf("[Feishu] Received %s from %s chat %s: %s\n", msg.MsgType, msg.ChatType, msg.ChatID, truncate(msg.Content, 50))

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// ParseTextContent extracts text from a text message, dropping mention placeholders
func ParseTextContent(content string, mentionKeys []string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return stripMentions(parsed.Text, mentionKeys)
}

// ParsePostContent extracts the text of a rich text message
func ParsePostContent(content string, mentionKeys []string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag  string `json:"tag"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var b strings.Builder
		for _, elem := range line {
			if elem.Tag == "text" {
				b.WriteString(elem.Text)
			}
		}
		if b.Len() > 0 {
			lines = append(lines, b.String())
		}
	}
	return stripMentions(strings.Join(lines, "\n"), mentionKeys)
}

// stripMentions removes placeholders such as @_user_1 so commands parse cleanly
func stripMentions(text string, mentionKeys []string) string {
	for _, key := range mentionKeys {
		text = strings.ReplaceAll(text, key, "")
	}
	return strings.TrimSpace(text)
}

// SendText sends a text message to a chat. A fresh UUID makes the
// request idempotent for Lark-side retries.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Uuid(uuid.NewString()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	fmt.Printf("[Feishu] Message sent to %s\n", chatID)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
