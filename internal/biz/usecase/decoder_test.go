package usecase

import (
	"reflect"
	"strings"
	"testing"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
)

func TestDecode_ChatMessageFromUser(t *testing.T) {
	raw := `{"api2_chat_message":{"responseType":"message","text":"<p>Hi &amp; welcome</p>",
		"fromUser":{"id":123,"name":"Ann","username":"ann","isVerified":true,"subscribePrice":10,"canEarn":false}}}`

	msg, ok := Decode([]byte(raw)).(domain.ChatMessage)
	if !ok {
		t.Fatalf("Expected ChatMessage, got %T", Decode([]byte(raw)))
	}
	if msg.Text != "Hi & welcome" {
		t.Errorf("Expected stripped text, got %q", msg.Text)
	}
	if msg.Outbound {
		t.Error("Expected inbound message")
	}
	want := &domain.SenderProfile{ID: 123, Name: "Ann", Username: "ann", Verified: true, SubscribePrice: 10}
	if !reflect.DeepEqual(msg.Sender, want) {
		t.Errorf("Expected sender %+v, got %+v", want, msg.Sender)
	}
}

func TestDecode_ChatMessageToUserIsOutbound(t *testing.T) {
	raw := `{"api2_chat_message":{"responseType":"message","text":"my own promo","toUser":{"id":9,"name":"Fan"}}}`

	msg, ok := Decode([]byte(raw)).(domain.ChatMessage)
	if !ok {
		t.Fatalf("Expected ChatMessage, got %T", Decode([]byte(raw)))
	}
	if !msg.Outbound {
		t.Error("Expected outbound message")
	}
	if msg.Sender != nil {
		t.Errorf("Expected no sender for toUser payload, got %+v", msg.Sender)
	}
}

func TestDecode_ChatMessageNonActionable(t *testing.T) {
	tests := []string{
		`{"api2_chat_message":{"responseType":"typing","text":"x"}}`,
		`{"api2_chat_message":{"responseType":"message","text":null}}`,
		`{"api2_chat_message":{"responseType":"message"}}`,
		`{"api2_chat_message":"garbage"}`,
	}

	for _, raw := range tests {
		if _, ok := Decode([]byte(raw)).(domain.SystemNoise); !ok {
			t.Errorf("Decode(%s) = %T, want SystemNoise", raw, Decode([]byte(raw)))
		}
	}
}

func TestDecode_MonetaryEvents(t *testing.T) {
	tip, ok := Decode([]byte(`{"new_tip":{"amount":5.5,"currency":"USD","fromUser":{"id":"77","name":"Bob"}}}`)).(domain.Tip)
	if !ok {
		t.Fatal("Expected Tip")
	}
	if tip.Amount != 5.5 || tip.Currency != "USD" || tip.Sender == nil || tip.Sender.ID != 77 {
		t.Errorf("Unexpected tip %+v sender %+v", tip, tip.Sender)
	}

	sub, ok := Decode([]byte(`{"new_subscriber":{"price":9.99,"months":3,"user":{"username":"carl"}}}`)).(domain.Subscription)
	if !ok {
		t.Fatal("Expected Subscription")
	}
	if sub.Price != 9.99 || sub.Months != 3 || sub.Sender == nil || sub.Sender.Username != "carl" {
		t.Errorf("Unexpected subscription %+v", sub)
	}

	purchase, ok := Decode([]byte(`{"post_purchased":{"amount":"12","postId":4411}}`)).(domain.Purchase)
	if !ok {
		t.Fatal("Expected Purchase")
	}
	if purchase.Amount != 12 || purchase.Item != "4411" || purchase.Sender != nil {
		t.Errorf("Unexpected purchase %+v", purchase)
	}
}

func TestDecode_Precedence(t *testing.T) {
	// Chat container wins over tip, tip over noise
	raw := `{"new_tip":{"amount":1},"api2_chat_message":{"responseType":"message","text":"hi"},"onlines":[1]}`
	if _, ok := Decode([]byte(raw)).(domain.ChatMessage); !ok {
		t.Errorf("Expected ChatMessage to take precedence, got %T", Decode([]byte(raw)))
	}

	raw = `{"onlines":[1],"new_tip":{"amount":1}}`
	if _, ok := Decode([]byte(raw)).(domain.Tip); !ok {
		t.Errorf("Expected Tip over noise, got %T", Decode([]byte(raw)))
	}
}

func TestDecode_SystemNoise(t *testing.T) {
	noise, ok := Decode([]byte(`{"onlines":[1,2,3]}`)).(domain.SystemNoise)
	if !ok {
		t.Fatal("Expected SystemNoise")
	}
	if noise.Kind != "onlines" {
		t.Errorf("Expected onlines, got %s", noise.Kind)
	}
}

func TestDecode_Unknown(t *testing.T) {
	unknown, ok := Decode([]byte(`{"zeta":1,"alpha":{"x":2}}`)).(domain.Unknown)
	if !ok {
		t.Fatal("Expected Unknown")
	}
	if unknown.EventType != "alpha,zeta" {
		t.Errorf("Expected event type alpha,zeta, got %s", unknown.EventType)
	}
	if !reflect.DeepEqual(unknown.RawKeys, []string{"alpha", "zeta"}) {
		t.Errorf("Unexpected keys %v", unknown.RawKeys)
	}
}

func TestDecode_MalformedNeverFails(t *testing.T) {
	tests := []struct {
		raw       string
		eventType string
	}{
		{`{not json`, "malformed"},
		{``, "malformed"},
		{`[1,2,3]`, "non_object"},
		{`"text"`, "non_object"},
		{`null`, "non_object"},
		{`{}`, "empty_object"},
	}

	for _, tt := range tests {
		unknown, ok := Decode([]byte(tt.raw)).(domain.Unknown)
		if !ok {
			t.Errorf("Decode(%q) = %T, want Unknown", tt.raw, Decode([]byte(tt.raw)))
			continue
		}
		if unknown.EventType != tt.eventType {
			t.Errorf("Decode(%q).EventType = %s, want %s", tt.raw, unknown.EventType, tt.eventType)
		}
	}
}

func TestDecode_TruncatesRawPayload(t *testing.T) {
	raw := `{"mystery":"` + strings.Repeat("x", 2000) + `"}`
	unknown := Decode([]byte(raw)).(domain.Unknown)
	if len([]rune(unknown.RawPayload)) != MaxRawPayload {
		t.Errorf("Expected payload capped at %d, got %d", MaxRawPayload, len(unknown.RawPayload))
	}
}

func TestDecode_NegativePriceClamped(t *testing.T) {
	raw := `{"api2_chat_message":{"responseType":"message","text":"hi","fromUser":{"subscribePrice":-5}}}`
	msg := Decode([]byte(raw)).(domain.ChatMessage)
	if msg.Sender.SubscribePrice != 0 {
		t.Errorf("Expected price clamped to 0, got %d", msg.Sender.SubscribePrice)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"  padded  ", "padded"},
		{"<b>bold</b> text", "bold text"},
		{"line1<br>line2", "line1\nline2"},
		{"Tom &amp; Jerry &lt;3", "Tom & Jerry <3"},
		{`<a href="https://x.io">link</a>`, "link"},
	}

	for _, tt := range tests {
		if got := StripHTML(tt.input); got != tt.expected {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
