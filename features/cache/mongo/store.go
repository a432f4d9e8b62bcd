// Package mongo provides a MongoDB-backed implementation of
// runtime/agent/cache.Cache. Build the low-level client via
// features/cache/mongo/clients/mongo and pass it to NewStore.
package mongo

import (
	"context"
	"errors"

	"github.com/datapilot-ai/agentcore/features/cache/mongo/clients/mongo"
	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

// Store implements cache.Cache by delegating to the Mongo client.
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

// GetObjectList implements cache.Cache.
func (s *Store) GetObjectList(ctx context.Context, connectionID string) (cache.ObjectListEntry, bool, error) {
	return s.client.GetObjectList(ctx, connectionID)
}

// PutObjectList implements cache.Cache.
func (s *Store) PutObjectList(ctx context.Context, entry cache.ObjectListEntry) error {
	return s.client.PutObjectList(ctx, entry)
}

// GetObjectMetadata implements cache.Cache.
func (s *Store) GetObjectMetadata(ctx context.Context, connectionID, objectName string, includeChildRelationships bool) (cache.ObjectMetadataEntry, bool, error) {
	return s.client.GetObjectMetadata(ctx, connectionID, objectName, includeChildRelationships)
}

// PutObjectMetadata implements cache.Cache.
func (s *Store) PutObjectMetadata(ctx context.Context, entry cache.ObjectMetadataEntry) error {
	return s.client.PutObjectMetadata(ctx, entry)
}

// ClearConnection implements cache.Cache.
func (s *Store) ClearConnection(ctx context.Context, connectionID string) error {
	return s.client.ClearConnection(ctx, connectionID)
}

// SweepExpired implements cache.Cache.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	return s.client.SweepExpired(ctx)
}
