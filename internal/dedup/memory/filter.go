// Package memory implements an in-process dedup filter.
package memory

import (
	"context"
	"sync"
)

// Filter is a concurrency-safe set of marked tokens.
type Filter struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

// NewFilter creates an empty filter.
func NewFilter() *Filter {
	return &Filter{tokens: make(map[string]struct{})}
}

// Mark records token as discovered. Marking twice is harmless.
func (f *Filter) Mark(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = struct{}{}
	return nil
}

// Seen reports whether token has been marked.
func (f *Filter) Seen(_ context.Context, token string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.tokens[token]
	return ok, nil
}

// Len returns the number of marked tokens.
func (f *Filter) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tokens)
}
