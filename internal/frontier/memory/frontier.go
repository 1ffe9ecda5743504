// Package memory contains an in-memory frontier for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/socialgraph-parser/internal/parser"
)

// Frontier records every enqueued batch for inspection.
type Frontier struct {
	mu      sync.RWMutex
	batches [][]parser.FrontierEntry
}

// New returns an empty Frontier.
func New() *Frontier {
	return &Frontier{}
}

// EnqueueTokens records a copy of entries as one batch.
func (f *Frontier) EnqueueTokens(_ context.Context, entries []parser.FrontierEntry) error {
	batch := append([]parser.FrontierEntry(nil), entries...)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	return nil
}

// Batches returns the recorded batches.
func (f *Frontier) Batches() [][]parser.FrontierEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([][]parser.FrontierEntry, len(f.batches))
	copy(out, f.batches)
	return out
}

// Tokens flattens every recorded batch into its tokens, in enqueue order.
func (f *Frontier) Tokens() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var tokens []string
	for _, batch := range f.batches {
		for _, e := range batch {
			tokens = append(tokens, e.Token)
		}
	}
	return tokens
}
