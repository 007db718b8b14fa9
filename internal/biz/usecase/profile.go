package usecase

import (
	"sync"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
)

// ProfileStore keeps the last-known sender profile per account
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[domain.AccountKey]domain.SenderProfile
}

// NewProfileStore creates an empty profile store
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[domain.AccountKey]domain.SenderProfile)}
}

// Get returns a snapshot of the stored profile, or nil
func (s *ProfileStore) Get(key domain.AccountKey) *domain.SenderProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[key]
	if !ok {
		return nil
	}
	return &p
}

// Set replaces the stored profile wholesale
func (s *ProfileStore) Set(key domain.AccountKey, profile *domain.SenderProfile) {
	if profile == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[key] = *profile
}

// Delete forgets the account's profile
func (s *ProfileStore) Delete(key domain.AccountKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, key)
}
