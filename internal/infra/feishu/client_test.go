package feishu

import "testing"

func TestParseTextContent(t *testing.T) {
	tests := []struct {
		content  string
		mentions []string
		want     string
	}{
		{`{"text":"/accounts"}`, nil, "/accounts"},
		{`{"text":"@_user_1 /token main abc"}`, []string{"@_user_1"}, "/token main abc"},
		{`not json`, nil, ""},
	}

	for _, tt := range tests {
		if got := ParseTextContent(tt.content, tt.mentions); got != tt.want {
			t.Errorf("ParseTextContent(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestParsePostContent(t *testing.T) {
	content := `{"title":"","content":[[{"tag":"at","user_id":"@_user_1"},{"tag":"text","text":" /triggers main kik"}],[{"tag":"img","image_key":"k"}]]}`

	if got := ParsePostContent(content, []string{"@_user_1"}); got != "/triggers main kik" {
		t.Errorf("Expected command text, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("привет мир", 6); got != "привет..." {
		t.Errorf("Expected rune-safe truncation, got %q", got)
	}
	if got := truncate("short", 50); got != "short" {
		t.Errorf("Expected unchanged, got %q", got)
	}
}
