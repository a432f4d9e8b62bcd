// Package inmem provides an in-memory implementation of cache.Cache for
// tests and local development.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

// Store is a concurrency-safe, process-local cache.Cache.
type Store struct {
	mu       sync.RWMutex
	lists    map[string]cache.ObjectListEntry
	metadata map[string]cache.ObjectMetadataEntry
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		lists:    make(map[string]cache.ObjectListEntry),
		metadata: make(map[string]cache.ObjectMetadataEntry),
		now:      time.Now,
	}
}

// GetObjectList implements cache.Cache.
func (s *Store) GetObjectList(_ context.Context, connectionID string) (cache.ObjectListEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.lists[connectionID]
	if !ok || s.now().After(entry.ExpiresAt) {
		return cache.ObjectListEntry{}, false, nil
	}
	return entry, true, nil
}

// PutObjectList implements cache.Cache.
func (s *Store) PutObjectList(_ context.Context, entry cache.ObjectListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[entry.ConnectionID] = entry
	return nil
}

// GetObjectMetadata implements cache.Cache.
func (s *Store) GetObjectMetadata(_ context.Context, connectionID, objectName string, includeChildRelationships bool) (cache.ObjectMetadataEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.metadata[cache.Key(connectionID, objectName)]
	if !ok || s.now().After(entry.ExpiresAt) {
		return cache.ObjectMetadataEntry{}, false, nil
	}
	if !includeChildRelationships {
		entry = cache.StripChildRelationships(entry)
	}
	return entry, true, nil
}

// PutObjectMetadata implements cache.Cache.
func (s *Store) PutObjectMetadata(_ context.Context, entry cache.ObjectMetadataEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[cache.Key(entry.ConnectionID, entry.ObjectName)] = entry
	return nil
}

// ClearConnection implements cache.Cache.
func (s *Store) ClearConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, connectionID)
	for key, entry := range s.metadata {
		if entry.ConnectionID == connectionID {
			delete(s.metadata, key)
		}
	}
	return nil
}

// SweepExpired implements cache.Cache.
func (s *Store) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, entry := range s.lists {
		if now.After(entry.ExpiresAt) {
			delete(s.lists, key)
			removed++
		}
	}
	for key, entry := range s.metadata {
		if now.After(entry.ExpiresAt) {
			delete(s.metadata, key)
			removed++
		}
	}
	return removed, nil
}
