package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/socialgraph-parser/internal/parser"
)

// UserStore keeps normalized user records in insertion order. Like the
// Postgres store it ignores a repeated (url token, content hash) pair.
type UserStore struct {
	mu      sync.RWMutex
	records []parser.NormalizedUserRecord
	keys    map[string]struct{}
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{keys: make(map[string]struct{})}
}

// AddUserInfo stores record.
func (s *UserStore) AddUserInfo(_ context.Context, record parser.NormalizedUserRecord) error {
	if record.URLToken == nil || *record.URLToken == "" {
		return fmt.Errorf("record url token is required")
	}
	key := *record.URLToken + "\x00" + record.ContentHash

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return nil
	}
	s.keys[key] = struct{}{}
	s.records = append(s.records, record)
	return nil
}

// Records returns a snapshot of stored records.
func (s *UserStore) Records() []parser.NormalizedUserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]parser.NormalizedUserRecord(nil), s.records...)
}
