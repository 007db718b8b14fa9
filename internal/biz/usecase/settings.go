package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/biz/repo"
)

// SettingsUsecase holds operator settings in memory and rewrites the
// whole collection through the repository on every mutation
type SettingsUsecase struct {
	settingsRepo repo.SettingsRepo

	mu        sync.RWMutex
	operators map[int64]*domain.Operator
}

// NewSettingsUsecase creates a new settings usecase
func NewSettingsUsecase(settingsRepo repo.SettingsRepo) *SettingsUsecase {
	return &SettingsUsecase{
		settingsRepo: settingsRepo,
		operators:    make(map[int64]*domain.Operator),
	}
}

// Load reads the stored collection, replacing what is in memory
func (uc *SettingsUsecase) Load(ctx context.Context) error {
	ops, err := uc.settingsRepo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	loaded := make(map[int64]*domain.Operator, len(ops))
	total := 0
	for _, op := range ops {
		c := cloneOperator(op)
		loaded[c.ID] = c
		total += len(c.Accounts)
	}

	uc.mu.Lock()
	uc.operators = loaded
	uc.mu.Unlock()

	fmt.Printf("[Settings] Loaded settings for %d operators (%d accounts)\n", len(loaded), total)
	return nil
}

// Operators returns a copy of every operator, ordered by ID
func (uc *SettingsUsecase) Operators() []*domain.Operator {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	out := make([]*domain.Operator, 0, len(uc.operators))
	for _, op := range uc.operators {
		out = append(out, cloneOperator(op))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Account returns a copy of the account
func (uc *SettingsUsecase) Account(key domain.AccountKey) (domain.Account, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	op, ok := uc.operators[key.OperatorID]
	if !ok {
		return domain.Account{}, false
	}
	acc, ok := op.Accounts[key.AccountName]
	if !ok {
		return domain.Account{}, false
	}
	return cloneAccount(acc), true
}

// Accounts returns copies of the operator's accounts, ordered by name
func (uc *SettingsUsecase) Accounts(operatorID int64) []domain.Account {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	op, ok := uc.operators[operatorID]
	if !ok {
		return nil
	}
	out := make([]domain.Account, 0, len(op.Accounts))
	for _, acc := range op.Accounts {
		out = append(out, cloneAccount(acc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.AccountName < out[j].Key.AccountName })
	return out
}

// ChatID returns the Feishu chat bound to the operator
func (uc *SettingsUsecase) ChatID(operatorID int64) (string, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	op, ok := uc.operators[operatorID]
	if !ok || op.ChatID == "" {
		return "", false
	}
	return op.ChatID, true
}

// ResolveOperator returns the operator bound to chatID, creating one if needed
func (uc *SettingsUsecase) ResolveOperator(ctx context.Context, chatID string) (int64, error) {
	uc.mu.RLock()
	for _, op := range uc.operators {
		if op.ChatID == chatID {
			uc.mu.RUnlock()
			return op.ID, nil
		}
	}
	uc.mu.RUnlock()

	var id int64
	err := uc.mutate(ctx, func(ops map[int64]*domain.Operator) error {
		// Re-check under the write lock
		for _, op := range ops {
			if op.ChatID == chatID {
				id = op.ID
				return nil
			}
		}
		for existing := range ops {
			if existing > id {
				id = existing
			}
		}
		id++
		ops[id] = &domain.Operator{ID: id, ChatID: chatID, Accounts: make(map[string]*domain.Account)}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// EnsureOperator makes sure an operator record exists for the ID
func (uc *SettingsUsecase) EnsureOperator(ctx context.Context, operatorID int64, chatID string) error {
	return uc.mutate(ctx, func(ops map[int64]*domain.Operator) error {
		op := operatorFor(ops, operatorID)
		if chatID != "" {
			op.ChatID = chatID
		}
		return nil
	})
}

// SaveAccount stores the account token. An existing account keeps its
// trigger words and forward-all flag.
func (uc *SettingsUsecase) SaveAccount(ctx context.Context, key domain.AccountKey, token string) (domain.Account, error) {
	var saved domain.Account
	err := uc.mutate(ctx, func(ops map[int64]*domain.Operator) error {
		op := operatorFor(ops, key.OperatorID)
		acc, ok := op.Accounts[key.AccountName]
		if !ok {
			acc = &domain.Account{Key: key}
			op.Accounts[key.AccountName] = acc
		}
		acc.Token = token
		acc.UpdatedAt = time.Now()
		saved = cloneAccount(acc)
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	fmt.Printf("[Settings] Account '%s' for operator %d saved\n", key.AccountName, key.OperatorID)
	return saved, nil
}

// RemoveAccount deletes one account
func (uc *SettingsUsecase) RemoveAccount(ctx context.Context, key domain.AccountKey) error {
	err := uc.mutate(ctx, func(ops map[int64]*domain.Operator) error {
		op, ok := ops[key.OperatorID]
		if !ok {
			return domain.ErrAccountNotFound
		}
		if _, ok := op.Accounts[key.AccountName]; !ok {
			return domain.ErrAccountNotFound
		}
		delete(op.Accounts, key.AccountName)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("[Settings] Account '%s' for operator %d removed\n", key.AccountName, key.OperatorID)
	return nil
}

// RemoveAccounts deletes every account of the operator; the chat binding stays
func (uc *SettingsUsecase) RemoveAccounts(ctx context.Context, operatorID int64) error {
	err := uc.mutate(ctx, func(ops map[int64]*domain.Operator) error {
		if op, ok := ops[operatorID]; ok {
			op.Accounts = make(map[string]*domain.Account)
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("[Settings] All accounts for operator %d removed\n", operatorID)
	return nil
}

// UpdateTriggers applies fn to the account's trigger set and returns the result
func (uc *SettingsUsecase) UpdateTriggers(ctx context.Context, key domain.AccountKey, fn func(*domain.TriggerSet)) (domain.TriggerSet, error) {
	var result domain.TriggerSet
	err := uc.mutate(ctx, func(ops map[int64]*domain.Operator) error {
		acc, err := accountIn(ops, key)
		if err != nil {
			return err
		}
		fn(&acc.Triggers)
		acc.UpdatedAt = time.Now()
		result = domain.NewTriggerSet(acc.Triggers.Added()...)
		return nil
	})
	if err != nil {
		return domain.TriggerSet{}, err
	}
	fmt.Printf("[Settings] Trigger words for account '%s' for operator %d updated\n", key.AccountName, key.OperatorID)
	return result, nil
}

// UpdateForwardAll sets the forward-all flag
func (uc *SettingsUsecase) UpdateForwardAll(ctx context.Context, key domain.AccountKey, enabled bool) error {
	err := uc.mutate(ctx, func(ops map[int64]*domain.Operator) error {
		acc, err := accountIn(ops, key)
		if err != nil {
			return err
		}
		acc.ForwardAll = enabled
		acc.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("[Settings] Forward-all for account '%s' for operator %d set to %v\n", key.AccountName, key.OperatorID, enabled)
	return nil
}

// mutate applies fn to a copy of the collection, persists the whole copy,
// and swaps it in only when the write succeeded
func (uc *SettingsUsecase) mutate(ctx context.Context, fn func(map[int64]*domain.Operator) error) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	next := make(map[int64]*domain.Operator, len(uc.operators))
	for id, op := range uc.operators {
		next[id] = cloneOperator(op)
	}
	if err := fn(next); err != nil {
		return err
	}

	list := make([]*domain.Operator, 0, len(next))
	for _, op := range next {
		list = append(list, op)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	if err := uc.settingsRepo.SaveAll(ctx, list); err != nil {
		fmt.Printf("[Settings] Error saving settings: %v\n", err)
		return fmt.Errorf("save settings: %w", err)
	}
	uc.operators = next
	return nil
}

func operatorFor(ops map[int64]*domain.Operator, id int64) *domain.Operator {
	op, ok := ops[id]
	if !ok {
		op = &domain.Operator{ID: id, Accounts: make(map[string]*domain.Account)}
		ops[id] = op
	}
	return op
}

func accountIn(ops map[int64]*domain.Operator, key domain.AccountKey) (*domain.Account, error) {
	op, ok := ops[key.OperatorID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	acc, ok := op.Accounts[key.AccountName]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acc, nil
}

func cloneOperator(op *domain.Operator) *domain.Operator {
	c := &domain.Operator{
		ID:       op.ID,
		ChatID:   op.ChatID,
		Accounts: make(map[string]*domain.Account, len(op.Accounts)),
	}
	for name, acc := range op.Accounts {
		a := cloneAccount(acc)
		c.Accounts[name] = &a
	}
	return c
}

func cloneAccount(acc *domain.Account) domain.Account {
	c := *acc
	c.Triggers = domain.NewTriggerSet(acc.Triggers.Added()...)
	return c
}
