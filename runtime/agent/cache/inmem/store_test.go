package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

func TestObjectListRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	entry := cache.ObjectListEntry{
		ConnectionID: "conn-1",
		Objects:      []cache.ObjectSummary{{Name: "Account", Queryable: true}},
		CachedAt:     time.Now(),
		ExpiresAt:    time.Now().Add(cache.DefaultObjectListTTL),
	}
	require.NoError(t, s.PutObjectList(ctx, entry))

	got, ok, err := s.GetObjectList(ctx, "conn-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.Objects, got.Objects)
}

func TestObjectListExpiredIsMiss(t *testing.T) {
	s := New()
	s.now = func() time.Time { return time.Unix(1000, 0) }
	ctx := context.Background()
	require.NoError(t, s.PutObjectList(ctx, cache.ObjectListEntry{
		ConnectionID: "conn-1",
		ExpiresAt:    time.Unix(999, 0),
	}))

	_, ok, err := s.GetObjectList(ctx, "conn-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestObjectMetadataStripsChildRelationshipsWhenNotRequested(t *testing.T) {
	s := New()
	ctx := context.Background()
	entry := cache.ObjectMetadataEntry{
		ConnectionID:       "conn-1",
		ObjectName:         "Account",
		Fields:             []cache.FieldMetadata{{Name: "Name", Type: "string"}},
		ChildRelationships: []cache.RelationshipMetadata{{ChildObject: "Contact", Field: "AccountId"}},
		ExpiresAt:          time.Now().Add(cache.DefaultObjectMetadataTTL),
	}
	require.NoError(t, s.PutObjectMetadata(ctx, entry))

	withChildren, ok, err := s.GetObjectMetadata(ctx, "conn-1", "Account", true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, withChildren.ChildRelationships, 1)

	withoutChildren, ok, err := s.GetObjectMetadata(ctx, "conn-1", "Account", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, withoutChildren.ChildRelationships)
}

func TestClearConnectionRemovesBothKinds(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.PutObjectList(ctx, cache.ObjectListEntry{ConnectionID: "conn-1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.PutObjectMetadata(ctx, cache.ObjectMetadataEntry{ConnectionID: "conn-1", ObjectName: "Account", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.PutObjectMetadata(ctx, cache.ObjectMetadataEntry{ConnectionID: "conn-2", ObjectName: "Account", ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, s.ClearConnection(ctx, "conn-1"))

	_, ok, _ := s.GetObjectList(ctx, "conn-1")
	require.False(t, ok)
	_, ok, _ = s.GetObjectMetadata(ctx, "conn-1", "Account", true)
	require.False(t, ok)
	_, ok, _ = s.GetObjectMetadata(ctx, "conn-2", "Account", true)
	require.True(t, ok)
}

func TestSweepExpiredRemovesOnlyExpired(t *testing.T) {
	s := New()
	s.now = func() time.Time { return time.Unix(1000, 0) }
	ctx := context.Background()
	require.NoError(t, s.PutObjectList(ctx, cache.ObjectListEntry{ConnectionID: "expired", ExpiresAt: time.Unix(999, 0)}))
	require.NoError(t, s.PutObjectList(ctx, cache.ObjectListEntry{ConnectionID: "fresh", ExpiresAt: time.Unix(2000, 0)}))

	removed, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, ok, _ := s.GetObjectList(ctx, "fresh")
	require.True(t, ok)
}
