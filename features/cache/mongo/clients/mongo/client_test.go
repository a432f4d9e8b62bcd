package mongo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

func TestObjectListPutThenGet(t *testing.T) {
	cl := mustNewTestClient()
	ctx := context.Background()
	entry := cache.ObjectListEntry{
		ConnectionID: "conn-1",
		Objects:      []cache.ObjectSummary{{Name: "Account", Queryable: true}},
		CachedAt:     time.Now().UTC(),
		ExpiresAt:    time.Now().UTC().Add(cache.DefaultObjectListTTL),
	}
	require.NoError(t, cl.PutObjectList(ctx, entry))

	got, ok, err := cl.GetObjectList(ctx, "conn-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Account", got.Objects[0].Name)
}

func TestObjectListExpiredIsMiss(t *testing.T) {
	cl := mustNewTestClient()
	ctx := context.Background()
	require.NoError(t, cl.PutObjectList(ctx, cache.ObjectListEntry{
		ConnectionID: "conn-1",
		ExpiresAt:    time.Now().UTC().Add(-time.Hour),
	}))

	_, ok, err := cl.GetObjectList(ctx, "conn-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestObjectMetadataStripsRelationshipsWhenNotRequested(t *testing.T) {
	cl := mustNewTestClient()
	ctx := context.Background()
	entry := cache.ObjectMetadataEntry{
		ConnectionID:       "conn-1",
		ObjectName:         "Account",
		ChildRelationships: []cache.RelationshipMetadata{{ChildObject: "Contact"}},
		ExpiresAt:          time.Now().UTC().Add(cache.DefaultObjectMetadataTTL),
	}
	require.NoError(t, cl.PutObjectMetadata(ctx, entry))

	withRels, ok, err := cl.GetObjectMetadata(ctx, "conn-1", "Account", true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, withRels.ChildRelationships, 1)

	withoutRels, ok, err := cl.GetObjectMetadata(ctx, "conn-1", "Account", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, withoutRels.ChildRelationships)
}

func TestClearConnectionRemovesFromBothCollections(t *testing.T) {
	cl := mustNewTestClient()
	ctx := context.Background()
	require.NoError(t, cl.PutObjectList(ctx, cache.ObjectListEntry{ConnectionID: "conn-1", ExpiresAt: time.Now().UTC().Add(time.Hour)}))
	require.NoError(t, cl.PutObjectMetadata(ctx, cache.ObjectMetadataEntry{ConnectionID: "conn-1", ObjectName: "Account", ExpiresAt: time.Now().UTC().Add(time.Hour)}))

	require.NoError(t, cl.ClearConnection(ctx, "conn-1"))

	_, ok, _ := cl.GetObjectList(ctx, "conn-1")
	require.False(t, ok)
	_, ok, _ = cl.GetObjectMetadata(ctx, "conn-1", "Account", true)
	require.False(t, ok)
}

func TestSweepExpiredCountsBothCollections(t *testing.T) {
	cl := mustNewTestClient()
	ctx := context.Background()
	require.NoError(t, cl.PutObjectList(ctx, cache.ObjectListEntry{ConnectionID: "conn-1", ExpiresAt: time.Now().UTC().Add(-time.Hour)}))
	require.NoError(t, cl.PutObjectMetadata(ctx, cache.ObjectMetadataEntry{ConnectionID: "conn-1", ObjectName: "Account", ExpiresAt: time.Now().UTC().Add(-time.Hour)}))

	removed, err := cl.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
}

func mustNewTestClient() *client {
	cl, err := newClientWithCollections(newFakeCollection(), newFakeCollection(), time.Second)
	if err != nil {
		panic(err)
	}
	return cl
}

type fakeCollection struct {
	mu           sync.Mutex
	indexCreated int
	docs         map[string]bson.M
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: make(map[string]bson.M)}
}

func filterKey(filter bson.M) (field, value string) {
	for _, f := range []string{"connection_id", "cache_key"} {
		if v, ok := filter[f].(string); ok {
			return f, v
		}
	}
	return "", ""
}

func (c *fakeCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := filter.(bson.M)
	field, value := filterKey(f)
	doc, ok := c.docs[field+":"+value]
	if !ok {
		return fakeSingleResult{err: mongodriver.ErrNoDocuments}
	}
	if expFilter, ok := f["expires_at"].(bson.M); ok {
		expiresAt, _ := doc["expires_at"].(time.Time)
		if gt, ok := expFilter["$gt"].(time.Time); ok && !expiresAt.After(gt) {
			return fakeSingleResult{err: mongodriver.ErrNoDocuments}
		}
	}
	return fakeSingleResult{doc: doc}
}

func (c *fakeCollection) UpdateOne(ctx context.Context, filter any, update any,
	opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := filter.(bson.M)
	field, value := filterKey(f)
	up := update.(bson.M)
	set, ok := up["$set"].(bson.M)
	if !ok {
		return nil, errors.New("unsupported $set payload")
	}
	c.docs[field+":"+value] = set
	return &mongodriver.UpdateResult{MatchedCount: 1}, nil
}

func (c *fakeCollection) DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongodriver.DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := filter.(bson.M)
	deleted := int64(0)
	if connID, ok := f["connection_id"].(string); ok {
		for key, doc := range c.docs {
			if doc["connection_id"] == connID {
				delete(c.docs, key)
				deleted++
			}
		}
		return &mongodriver.DeleteResult{DeletedCount: deleted}, nil
	}
	if expFilter, ok := f["expires_at"].(bson.M); ok {
		lt, _ := expFilter["$lt"].(time.Time)
		for key, doc := range c.docs {
			expiresAt, _ := doc["expires_at"].(time.Time)
			if expiresAt.Before(lt) {
				delete(c.docs, key)
				deleted++
			}
		}
	}
	return &mongodriver.DeleteResult{DeletedCount: deleted}, nil
}

func (c *fakeCollection) Indexes() indexView {
	return fakeIndexView{parent: &c.indexCreated}
}

type fakeIndexView struct {
	parent *int
}

func (v fakeIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	*v.parent++
	return "idx", nil
}

type fakeSingleResult struct {
	doc bson.M
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	raw, err := bson.Marshal(r.doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, val)
}
