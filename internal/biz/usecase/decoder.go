package usecase

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"golang.org/x/net/html"
)

// MaxRawPayload caps the raw payload kept on Unknown events
const MaxRawPayload = 800

// Top-level frame keys, checked in this order
const (
	keyChatMessage  = "api2_chat_message"
	keyTip          = "new_tip"
	keySubscription = "new_subscriber"
	keyPurchase     = "post_purchased"
)

const chatResponseMessage = "message"

// noiseKeys are frames the upstream sends routinely that carry nothing to report
var noiseKeys = []string{
	"onlines", "online", "typing", "chat_messages_read", "has_new_alerts",
	"stream_look", "post_updated", "stories", "connected",
}

// Decode parses one inbound frame. It never fails: anything it cannot
// make sense of comes back as domain.Unknown.
func Decode(raw []byte) domain.Event {
	trimmed := bytes.TrimSpace(raw)

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		eventType := "malformed"
		if json.Valid(trimmed) {
			eventType = "non_object"
		}
		return domain.Unknown{EventType: eventType, RawPayload: TruncatePayload(string(raw))}
	}
	if top == nil {
		// JSON null
		return domain.Unknown{EventType: "non_object", RawPayload: TruncatePayload(string(raw))}
	}

	if body, ok := top[keyChatMessage]; ok {
		return decodeChatMessage(body)
	}
	if body, ok := top[keyTip]; ok {
		fields := objectFields(body)
		return domain.Tip{
			Amount:   asFloat(fields["amount"]),
			Currency: asString(fields["currency"]),
			Sender:   senderFrom(fields),
		}
	}
	if body, ok := top[keySubscription]; ok {
		fields := objectFields(body)
		return domain.Subscription{
			Price:  asFloat(fields["price"]),
			Months: int(asInt(fields["months"])),
			Sender: senderFrom(fields),
		}
	}
	if body, ok := top[keyPurchase]; ok {
		fields := objectFields(body)
		item := asString(fields["item"])
		if item == "" {
			item = asString(fields["postId"])
		}
		return domain.Purchase{
			Amount:   asFloat(fields["amount"]),
			Currency: asString(fields["currency"]),
			Item:     item,
			Sender:   senderFrom(fields),
		}
	}
	for _, k := range noiseKeys {
		if _, ok := top[k]; ok {
			return domain.SystemNoise{Kind: k}
		}
	}

	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	eventType := strings.Join(keys, ",")
	if eventType == "" {
		eventType = "empty_object"
	}
	return domain.Unknown{
		EventType:  eventType,
		RawKeys:    keys,
		RawPayload: TruncatePayload(string(raw)),
	}
}

func decodeChatMessage(body json.RawMessage) domain.Event {
	fields := objectFields(body)

	if asString(fields["responseType"]) != chatResponseMessage || isNull(fields["text"]) {
		return domain.SystemNoise{Kind: "chat_non_actionable"}
	}

	msg := domain.ChatMessage{Text: StripHTML(asString(fields["text"]))}
	if !isNull(fields["fromUser"]) {
		msg.Sender = parseSender(fields["fromUser"])
		return msg
	}
	if !isNull(fields["toUser"]) {
		msg.Outbound = true
	}
	return msg
}

// senderFrom reads fromUser, falling back to user
func senderFrom(fields map[string]json.RawMessage) *domain.SenderProfile {
	if !isNull(fields["fromUser"]) {
		return parseSender(fields["fromUser"])
	}
	if !isNull(fields["user"]) {
		return parseSender(fields["user"])
	}
	return nil
}

func parseSender(raw json.RawMessage) *domain.SenderProfile {
	fields := objectFields(raw)
	if fields == nil {
		return nil
	}
	price := asInt(fields["subscribePrice"])
	if price < 0 {
		price = 0
	}
	return &domain.SenderProfile{
		ID:             asInt(fields["id"]),
		Name:           asString(fields["name"]),
		Username:       asString(fields["username"]),
		Verified:       asBool(fields["isVerified"]),
		SubscribePrice: int(price),
		CanEarn:        asBool(fields["canEarn"]),
	}
}

// StripHTML removes markup and unescapes entities. <br> and </p> become newlines.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "p" {
				b.WriteByte('\n')
			}
		}
	}
}

// TruncatePayload caps s at MaxRawPayload characters
func TruncatePayload(s string) string {
	if len(s) <= MaxRawPayload {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxRawPayload {
		return s
	}
	return string(runes[:MaxRawPayload])
}

// JSON field helpers. Every helper tolerates a missing or mistyped value.

func objectFields(raw json.RawMessage) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func asString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func asFloat(raw json.RawMessage) float64 {
	if isNull(raw) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	if parsed, err := strconv.ParseFloat(asString(raw), 64); err == nil {
		return parsed
	}
	return 0
}

func asInt(raw json.RawMessage) int64 {
	if n, err := strconv.ParseInt(strings.Trim(string(bytes.TrimSpace(raw)), `"`), 10, 64); err == nil {
		return n
	}
	f := asFloat(raw)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

func asBool(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	s := strings.ToLower(asString(raw))
	return s == "true" || s == "1"
}
