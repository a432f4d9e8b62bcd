// Package inmem provides an in-memory implementation of checkpoint.Store.
//
// It is intended for tests and local development. Production deployments
// should use a durable implementation (features/checkpoint/mongo).
package inmem

import (
	"context"
	"sync"

	"github.com/datapilot-ai/agentcore/runtime/agent/checkpoint"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

// Store is an in-memory implementation of checkpoint.Store, safe for
// concurrent use. A per-conversation-id lock is held by the caller (the
// orchestrator) across load-run-save; Store itself only needs to guard its
// map against concurrent unrelated conversations.
type Store struct {
	mu    sync.RWMutex
	turns map[string]*workflow.State
}

// New returns an empty Store.
func New() *Store {
	return &Store{turns: make(map[string]*workflow.State)}
}

// Load implements checkpoint.Store.
func (s *Store) Load(_ context.Context, conversationID string) (*workflow.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.turns[conversationID]
	if !ok {
		return nil, checkpoint.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

// Save implements checkpoint.Store.
func (s *Store) Save(_ context.Context, conversationID string, state *workflow.State) error {
	stripped := state.ForCheckpoint()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[conversationID] = stripped
	return nil
}

// WritesLog implements checkpoint.Store as a no-op; the in-memory store is
// for tests and local development where the debug log carries no value.
func (s *Store) WritesLog(context.Context, string, checkpoint.WriteEvent) error {
	return nil
}
