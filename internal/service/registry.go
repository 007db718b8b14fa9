package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/biz/repo"
	"github.com/devricklin/fanwatch-bridge/internal/biz/usecase"
	"github.com/devricklin/fanwatch-bridge/internal/infra/upstream"
	"github.com/devricklin/fanwatch-bridge/internal/telemetry"
)

// AccountStatus is a snapshot of one monitored account
type AccountStatus struct {
	Name       string   `json:"name"`
	State      string   `json:"state"`
	Attempts   int      `json:"attempts"`
	Triggers   []string `json:"triggers"` // Operator-added words only
	ForwardAll bool     `json:"forward_all"`
	LastSender string   `json:"last_sender,omitempty"`
}

// Registry owns every account session. At most one live session exists per account key.
type Registry struct {
	settingsUC *usecase.SettingsUsecase
	notifyRepo repo.NotifyRepo
	dialer     upstream.Dialer
	config     SessionConfig

	profiles *usecase.ProfileStore
	limiter  *usecase.AlertLimiter
	router   *usecase.EventRouter

	// opMu keeps a settings change and the matching slot change together
	opMu sync.Mutex

	// mu guards the session slots only; sessions are joined outside it
	mu       sync.Mutex
	sessions map[domain.AccountKey]*Session
}

// NewRegistry creates a new session registry. reviewRepo may be nil.
func NewRegistry(
	settingsUC *usecase.SettingsUsecase,
	notifyRepo repo.NotifyRepo,
	reviewRepo repo.ReviewRepo,
	dialer upstream.Dialer,
	config SessionConfig,
	limiterConfig usecase.LimiterConfig,
) *Registry {
	profiles := usecase.NewProfileStore()
	limiter := usecase.NewAlertLimiter(limiterConfig)
	return &Registry{
		settingsUC: settingsUC,
		notifyRepo: notifyRepo,
		dialer:     dialer,
		config:     config,
		profiles:   profiles,
		limiter:    limiter,
		router:     usecase.NewEventRouter(profiles, limiter, reviewRepo),
		sessions:   make(map[domain.AccountKey]*Session),
	}
}

// Register stores the account token and (re)starts its session
func (r *Registry) Register(ctx context.Context, operatorID int64, name, token string) (domain.Account, error) {
	name = strings.TrimSpace(name)
	token = strings.TrimSpace(token)
	if name == "" || token == "" {
		return domain.Account{}, fmt.Errorf("%w: account name and token are required", domain.ErrInvalidConfig)
	}

	key := domain.AccountKey{OperatorID: operatorID, AccountName: name}

	r.opMu.Lock()
	account, err := r.settingsUC.SaveAccount(ctx, key, token)
	if err != nil {
		r.opMu.Unlock()
		return domain.Account{}, err
	}
	old := r.install(key, token)
	r.opMu.Unlock()

	if old != nil {
		old.closeQuietly()
	}
	return account, nil
}

// Restore starts sessions for every persisted account and returns how many started
func (r *Registry) Restore(ctx context.Context) int {
	r.opMu.Lock()
	started := 0
	var replaced []*Session
	for _, op := range r.settingsUC.Operators() {
		for _, acc := range op.Accounts {
			if acc.Token == "" {
				fmt.Printf("[Registry] Skipping %s: no token\n", acc.Key)
				continue
			}
			if old := r.install(acc.Key, acc.Token); old != nil {
				replaced = append(replaced, old)
			}
			started++
		}
	}
	r.opMu.Unlock()

	closeSessions(replaced, false)
	fmt.Printf("[Registry] Restored %d sessions\n", started)
	return started
}

// install swaps in a new session for key and returns the one it replaced.
// The old session is stopped but not yet joined; the caller does that after unlocking.
func (r *Registry) install(key domain.AccountKey, token string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.sessions[key]
	if old != nil {
		old.stop()
	}

	s := NewSession(key, token, r.config, r.dialer, r.settingsUC, r.router, r.notifyRepo)
	r.sessions[key] = s
	s.Start()
	telemetry.SetActiveSessions(len(r.sessions))
	return old
}

// detach removes the sessions matching fn from the registry and stops them
func (r *Registry) detach(fn func(domain.AccountKey) bool) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Session
	for key, s := range r.sessions {
		if !fn(key) {
			continue
		}
		s.stop()
		delete(r.sessions, key)
		out = append(out, s)
	}
	telemetry.SetActiveSessions(len(r.sessions))
	return out
}

// CloseAll stops every session of the operator and deletes its accounts
func (r *Registry) CloseAll(ctx context.Context, operatorID int64) (int, error) {
	r.opMu.Lock()
	closed := r.detach(func(key domain.AccountKey) bool { return key.OperatorID == operatorID })
	err := r.settingsUC.RemoveAccounts(ctx, operatorID)
	r.opMu.Unlock()

	closeSessions(closed, true)
	for _, s := range closed {
		r.forget(s.Key())
	}
	if err != nil {
		return len(closed), err
	}
	fmt.Printf("[Registry] Closed %d sessions for operator %d\n", len(closed), operatorID)
	return len(closed), nil
}

// Remove stops one session and deletes the account
func (r *Registry) Remove(ctx context.Context, operatorID int64, name string) error {
	key := domain.AccountKey{OperatorID: operatorID, AccountName: name}

	r.opMu.Lock()
	closed := r.detach(func(k domain.AccountKey) bool { return k == key })
	err := r.settingsUC.RemoveAccount(ctx, key)
	r.opMu.Unlock()

	closeSessions(closed, true)
	if len(closed) > 0 {
		r.forget(key)
	}

	if errors.Is(err, domain.ErrAccountNotFound) && len(closed) > 0 {
		return nil
	}
	return err
}

// Reconnect forces the session to reconnect with a fresh attempt budget
func (r *Registry) Reconnect(operatorID int64, name string) error {
	s, ok := r.session(domain.AccountKey{OperatorID: operatorID, AccountName: name})
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Reconnect()
	return nil
}

// ListAccounts returns the operator's accounts sorted by name
func (r *Registry) ListAccounts(operatorID int64) []AccountStatus {
	accounts := r.settingsUC.Accounts(operatorID)
	out := make([]AccountStatus, 0, len(accounts))
	for _, acc := range accounts {
		status := AccountStatus{
			Name:       acc.Key.AccountName,
			State:      domain.StateIdle.String(),
			Triggers:   acc.Triggers.Added(),
			ForwardAll: acc.ForwardAll,
		}
		if s, ok := r.session(acc.Key); ok {
			status.State = s.State().String()
			status.Attempts = s.Attempts()
		}
		if p := r.profiles.Get(acc.Key); p != nil {
			status.LastSender = p.DisplayName()
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TriggerWords returns the account's trigger set
func (r *Registry) TriggerWords(operatorID int64, name string) (domain.TriggerSet, error) {
	acc, ok := r.settingsUC.Account(domain.AccountKey{OperatorID: operatorID, AccountName: name})
	if !ok {
		return domain.TriggerSet{}, domain.ErrAccountNotFound
	}
	return acc.Triggers, nil
}

// AddTriggers adds words to the account's trigger set
func (r *Registry) AddTriggers(ctx context.Context, operatorID int64, name string, words []string) (domain.TriggerSet, error) {
	return r.settingsUC.UpdateTriggers(ctx, domain.AccountKey{OperatorID: operatorID, AccountName: name}, func(ts *domain.TriggerSet) {
		ts.Add(words...)
	})
}

// RemoveTriggers removes operator-added words
func (r *Registry) RemoveTriggers(ctx context.Context, operatorID int64, name string, words []string) (domain.TriggerSet, error) {
	return r.settingsUC.UpdateTriggers(ctx, domain.AccountKey{OperatorID: operatorID, AccountName: name}, func(ts *domain.TriggerSet) {
		ts.Remove(words...)
	})
}

// ClearTriggers resets the account to the base trigger words
func (r *Registry) ClearTriggers(ctx context.Context, operatorID int64, name string) (domain.TriggerSet, error) {
	return r.settingsUC.UpdateTriggers(ctx, domain.AccountKey{OperatorID: operatorID, AccountName: name}, func(ts *domain.TriggerSet) {
		ts.Clear()
	})
}

// SetForwardAll toggles forwarding of every inbound chat message
func (r *Registry) SetForwardAll(ctx context.Context, operatorID int64, name string, enabled bool) error {
	return r.settingsUC.UpdateForwardAll(ctx, domain.AccountKey{OperatorID: operatorID, AccountName: name}, enabled)
}

// Shutdown stops every session. Stored settings are kept.
func (r *Registry) Shutdown() {
	r.opMu.Lock()
	sessions := r.detach(func(domain.AccountKey) bool { return true })
	r.opMu.Unlock()

	closeSessions(sessions, true)
	fmt.Println("[Registry] All sessions stopped")
}

// closeSessions joins already stopped sessions in parallel
func closeSessions(sessions []*Session, announce bool) {
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if announce {
				s.Close()
			} else {
				s.closeQuietly()
			}
		}(s)
	}
	wg.Wait()
}

// SessionCount returns the number of registered sessions
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) session(key domain.AccountKey) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

func (r *Registry) forget(key domain.AccountKey) {
	r.profiles.Delete(key)
	r.limiter.Forget(key)
}
