package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/biz/usecase"
	"github.com/devricklin/fanwatch-bridge/internal/infra/upstream"
	"github.com/devricklin/fanwatch-bridge/internal/service"
)

type memSettingsRepo struct{}

func (memSettingsRepo) LoadAll(ctx context.Context) ([]*domain.Operator, error) { return nil, nil }
func (memSettingsRepo) SaveAll(ctx context.Context, ops []*domain.Operator) error {
	return nil
}

type offlineDialer struct{}

func (offlineDialer) Dial(ctx context.Context, endpoint string) (upstream.Stream, error) {
	return nil, errors.New("offline")
}

type nopNotifier struct{}

func (nopNotifier) Send(ctx context.Context, operatorID int64, accountName, text string) error {
	return nil
}

func newTestAPI(t *testing.T) (http.Handler, *service.Registry) {
	t.Helper()
	settingsUC := usecase.NewSettingsUsecase(memSettingsRepo{})
	config := service.DefaultSessionConfig()
	config.Backoff = time.Hour
	registry := service.NewRegistry(settingsUC, nopNotifier{}, nil, offlineDialer{}, config, usecase.LimiterConfig{})
	t.Cleanup(registry.Shutdown)
	return NewServer(registry, 0).Router(), registry
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	h, _ := newTestAPI(t)
	rr := do(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("GET /health = %d %q", rr.Code, rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestAPI(t)
	rr := do(t, h, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d", rr.Code)
	}
}

func TestRegisterAndList(t *testing.T) {
	h, registry := newTestAPI(t)

	rr := do(t, h, http.MethodPost, "/api/operators/7/accounts", map[string]string{"name": "main", "token": "tok"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST accounts = %d: %s", rr.Code, rr.Body.String())
	}
	if registry.SessionCount() != 1 {
		t.Errorf("Expected 1 session, got %d", registry.SessionCount())
	}

	rr = do(t, h, http.MethodGet, "/api/operators/7/accounts", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET accounts = %d", rr.Code)
	}
	var resp struct {
		Accounts []service.AccountStatus `json:"accounts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Accounts) != 1 || resp.Accounts[0].Name != "main" {
		t.Errorf("Unexpected accounts: %+v", resp.Accounts)
	}

	rr = do(t, h, http.MethodGet, "/api/operators/8/accounts", nil)
	if !strings.Contains(rr.Body.String(), `"accounts":[]`) {
		t.Errorf("Expected empty list for another operator, got %s", rr.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestAPI(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"missing token", "/api/operators/1/accounts", `{"name":"main"}`, http.StatusBadRequest},
		{"bad json", "/api/operators/1/accounts", `{`, http.StatusBadRequest},
		{"non numeric operator", "/api/operators/abc/accounts", `{"name":"a","token":"b"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestNotFoundErrors(t *testing.T) {
	h, _ := newTestAPI(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/api/operators/1/accounts/ghost"},
		{http.MethodPost, "/api/operators/1/accounts/ghost/reconnect"},
		{http.MethodGet, "/api/operators/1/accounts/ghost/triggers"},
	} {
		rr := do(t, h, tc.method, tc.path, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", tc.method, tc.path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"error"`) {
			t.Errorf("%s %s body = %s, want error field", tc.method, tc.path, rr.Body.String())
		}
	}

	rr := do(t, h, http.MethodPut, "/api/operators/1/accounts/ghost/forward-all", map[string]bool{"enabled": true})
	if rr.Code != http.StatusNotFound {
		t.Errorf("PUT forward-all = %d, want 404", rr.Code)
	}
}

func TestTriggerUpdates(t *testing.T) {
	h, _ := newTestAPI(t)
	do(t, h, http.MethodPost, "/api/operators/1/accounts", map[string]string{"name": "main", "token": "tok"})

	rr := do(t, h, http.MethodPut, "/api/operators/1/accounts/main/triggers", TriggersUpdate{Add: []string{"Kik", "telegram"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT triggers = %d: %s", rr.Code, rr.Body.String())
	}
	var resp TriggersResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if strings.Join(resp.Added, ",") != "kik,telegram" {
		t.Errorf("Added = %v", resp.Added)
	}
	if len(resp.Effective) != len(domain.DefaultTriggerWords)+2 {
		t.Errorf("Effective = %v", resp.Effective)
	}

	rr = do(t, h, http.MethodPut, "/api/operators/1/accounts/main/triggers", TriggersUpdate{Clear: true, Add: []string{"onlyme"}})
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if strings.Join(resp.Added, ",") != "onlyme" {
		t.Errorf("Clear then add: Added = %v", resp.Added)
	}

	rr = do(t, h, http.MethodGet, "/api/operators/1/accounts/main/triggers", nil)
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Account != "main" || strings.Join(resp.Added, ",") != "onlyme" {
		t.Errorf("GET triggers = %+v", resp)
	}
}

func TestForwardAllAndRemove(t *testing.T) {
	h, registry := newTestAPI(t)
	do(t, h, http.MethodPost, "/api/operators/1/accounts", map[string]string{"name": "main", "token": "tok"})

	rr := do(t, h, http.MethodPut, "/api/operators/1/accounts/main/forward-all", map[string]bool{"enabled": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT forward-all = %d", rr.Code)
	}
	if list := registry.ListAccounts(1); len(list) != 1 || !list[0].ForwardAll {
		t.Errorf("Expected forward-all enabled, got %+v", list)
	}

	rr = do(t, h, http.MethodPost, "/api/operators/1/accounts/main/reconnect", nil)
	if rr.Code != http.StatusAccepted {
		t.Errorf("POST reconnect = %d", rr.Code)
	}

	rr = do(t, h, http.MethodDelete, "/api/operators/1/accounts/main", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("DELETE account = %d", rr.Code)
	}
	if registry.SessionCount() != 0 || len(registry.ListAccounts(1)) != 0 {
		t.Errorf("Expected account removed")
	}
}

func TestCloseAll(t *testing.T) {
	h, registry := newTestAPI(t)
	do(t, h, http.MethodPost, "/api/operators/1/accounts", map[string]string{"name": "a", "token": "t"})
	do(t, h, http.MethodPost, "/api/operators/1/accounts", map[string]string{"name": "b", "token": "t"})
	do(t, h, http.MethodPost, "/api/operators/2/accounts", map[string]string{"name": "c", "token": "t"})

	rr := do(t, h, http.MethodDelete, "/api/operators/1/accounts", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"closed":2`) {
		t.Errorf("DELETE accounts = %d %s", rr.Code, rr.Body.String())
	}
	if registry.SessionCount() != 1 {
		t.Errorf("Expected operator 2 session kept, got %d sessions", registry.SessionCount())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestAPI(t)
	rr := do(t, h, http.MethodPatch, "/api/operators/1/accounts", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH accounts = %d, want 405", rr.Code)
	}
}
