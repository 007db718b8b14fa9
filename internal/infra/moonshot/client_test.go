package moonshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChat(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  HIGH asks for venmo \n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", "", srv.URL)
	got, err := c.Chat(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got != "HIGH asks for venmo" {
		t.Errorf("Expected trimmed verdict, got %q", got)
	}
	if gotModel != "moonshot-v1-8k" {
		t.Errorf("Expected default model, got %q", gotModel)
	}
}

func TestChat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","choices":[]}`))
	}))
	defer srv.Close()

	if _, err := NewClientWithBaseURL("key", "m", srv.URL).Chat(context.Background(), "s", "u"); err == nil {
		t.Error("Expected error for empty choices")
	}
}
