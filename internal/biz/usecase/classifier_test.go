package usecase

import (
	"reflect"
	"testing"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
)

func has(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestClassify_LinkPatterns(t *testing.T) {
	c := Classify("Check my https://t.me/x", nil)

	if !has(c.Links, "https://") {
		t.Errorf("Expected protocol marker https:// in %v", c.Links)
	}
	if !has(c.Links, "t.me/") {
		t.Errorf("Expected t.me/ in %v", c.Links)
	}
}

func TestClassify_LinkCaseInsensitive(t *testing.T) {
	c := Classify("add me on INSTAGRAM.COM/someone", nil)
	if !has(c.Links, "instagram.com") {
		t.Errorf("Expected instagram.com in %v", c.Links)
	}
}

func TestClassify_PaymentWordBoundary(t *testing.T) {
	tests := []struct {
		text     string
		expected []string
	}{
		{"send via cashapp", nil},
		{"send via cash app", []string{"cash app"}},
		{"send via Cash   App please", []string{"cash app"}},
		{"PayPal or venmo?", []string{"paypal", "venmo"}},
		{"paypalme", nil},
		{"a btc wallet", []string{"btc"}},
		{"amazon gift card works", []string{"gift card", "amazon gift card"}},
	}

	for _, tt := range tests {
		c := Classify(tt.text, nil)
		if !reflect.DeepEqual(c.Payments, tt.expected) {
			t.Errorf("Classify(%q).Payments = %v, want %v", tt.text, c.Payments, tt.expected)
		}
	}
}

func TestClassify_TriggerWordsAreAccountSpecific(t *testing.T) {
	text := "message me on kik"

	base := Classify(text, domain.DefaultTriggerWords)
	if len(base.Triggers) != 0 {
		t.Errorf("Expected no triggers with base set, got %v", base.Triggers)
	}

	ts := domain.NewTriggerSet("kik")
	custom := Classify(text, ts.Effective())
	if !reflect.DeepEqual(custom.Triggers, []string{"kik"}) {
		t.Errorf("Expected kik trigger, got %v", custom.Triggers)
	}
}

func TestClassify_TriggerSubstringAndCase(t *testing.T) {
	c := Classify("My WhatsApp is open", domain.DefaultTriggerWords)
	if !has(c.Triggers, "whatsapp") {
		t.Errorf("Expected whatsapp trigger, got %v", c.Triggers)
	}
}

func TestClassify_ReturnsAllMatchesDeduplicated(t *testing.T) {
	c := Classify("https://a.com and https://b.com", []string{"https", "HTTPS"})

	if !reflect.DeepEqual(c.Triggers, []string{"https"}) {
		t.Errorf("Expected single https trigger, got %v", c.Triggers)
	}
	count := 0
	for _, l := range c.Links {
		if l == "https://" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected https:// once, got %d in %v", count, c.Links)
	}
	if !has(c.Links, ".com") || !has(c.Links, "://") {
		t.Errorf("Expected every link pattern that fired, got %v", c.Links)
	}
}

func TestClassify_CleanMessage(t *testing.T) {
	c := Classify("hello, how are you today?", domain.DefaultTriggerWords)
	if !c.Empty() {
		t.Errorf("Expected no matches, got %+v", c)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	text := "zelle or paypal, https://wa.me/123"
	first := Classify(text, domain.DefaultTriggerWords)
	for i := 0; i < 10; i++ {
		if got := Classify(text, domain.DefaultTriggerWords); !reflect.DeepEqual(got, first) {
			t.Fatalf("Expected identical results, got %+v vs %+v", got, first)
		}
	}
}

func TestClassification_All(t *testing.T) {
	c := Classification{Links: []string{"a"}, Payments: []string{"b"}, Triggers: []string{"c"}}
	if !reflect.DeepEqual(c.All(), []string{"a", "b", "c"}) {
		t.Errorf("Unexpected All() = %v", c.All())
	}
}
