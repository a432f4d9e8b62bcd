package mongo

import (
	"context"
	"errors"

	"github.com/datapilot-ai/agentcore/features/checkpoint/mongo/clients/mongo"
	"github.com/datapilot-ai/agentcore/runtime/agent/checkpoint"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

// Store implements checkpoint.Store by delegating to the Mongo client.
type Store struct {
	client mongo.Client
}

// NewStore builds a Store using the provided client.
func NewStore(client mongo.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: client}, nil
}

// Load implements checkpoint.Store.
func (s *Store) Load(ctx context.Context, conversationID string) (*workflow.State, error) {
	return s.client.Load(ctx, conversationID)
}

// Save implements checkpoint.Store.
func (s *Store) Save(ctx context.Context, conversationID string, state *workflow.State) error {
	return s.client.Save(ctx, conversationID, state)
}

// WritesLog implements checkpoint.Store.
func (s *Store) WritesLog(ctx context.Context, conversationID string, event checkpoint.WriteEvent) error {
	return s.client.WritesLog(ctx, conversationID, event)
}
