// Package mongo hosts the MongoDB client backing the CRM metadata cache,
// mirroring the two-collection shape of the original SObject list and
// SObject metadata caches: one collection per kind, each with a unique key
// (connection_id for lists, cache_key for metadata) and documents that carry
// their own expires_at.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

const (
	defaultListCollection     = "sobject_list_cache"
	defaultMetadataCollection = "sobject_metadata_cache"
	defaultOpTimeout          = 5 * time.Second
)

// Client exposes Mongo-backed operations for the metadata cache.
type Client interface {
	GetObjectList(ctx context.Context, connectionID string) (cache.ObjectListEntry, bool, error)
	PutObjectList(ctx context.Context, entry cache.ObjectListEntry) error

	GetObjectMetadata(ctx context.Context, connectionID, objectName string, includeChildRelationships bool) (cache.ObjectMetadataEntry, bool, error)
	PutObjectMetadata(ctx context.Context, entry cache.ObjectMetadataEntry) error

	ClearConnection(ctx context.Context, connectionID string) error
	SweepExpired(ctx context.Context) (int, error)
}

// Options configures the Mongo cache client.
type Options struct {
	Client               *mongodriver.Client
	Database             string
	ListCollection       string
	MetadataCollection   string
	Timeout              time.Duration
}

type client struct {
	lists    collection
	metadata collection
	timeout  time.Duration
}

// New returns a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	listColl := opts.ListCollection
	if listColl == "" {
		listColl = defaultListCollection
	}
	metaColl := opts.MetadataCollection
	if metaColl == "" {
		metaColl = defaultMetadataCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	db := opts.Client.Database(opts.Database)
	return newClientWithCollections(
		mongoCollection{coll: db.Collection(listColl)},
		mongoCollection{coll: db.Collection(metaColl)},
		timeout,
	)
}

func newClientWithCollections(lists, metadata collection, timeout time.Duration) (*client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, lists, metadata); err != nil {
		return nil, err
	}
	return &client{lists: lists, metadata: metadata, timeout: timeout}, nil
}

func ensureIndexes(ctx context.Context, lists, metadata collection) error {
	if _, err := lists.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "connection_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := metadata.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "cache_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	for _, coll := range []collection{lists, metadata} {
		if _, err := coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		}); err != nil {
			return err
		}
	}
	return nil
}

// GetObjectList implements Client.
func (c *client) GetObjectList(ctx context.Context, connectionID string) (cache.ObjectListEntry, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"connection_id": connectionID, "expires_at": bson.M{"$gt": time.Now().UTC()}}
	var doc objectListDocument
	if err := c.lists.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return cache.ObjectListEntry{}, false, nil
		}
		return cache.ObjectListEntry{}, false, err
	}
	return doc.toEntry(), true, nil
}

// PutObjectList implements Client.
func (c *client) PutObjectList(ctx context.Context, entry cache.ObjectListEntry) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	doc := fromListEntry(entry)
	filter := bson.M{"connection_id": entry.ConnectionID}
	update := bson.M{"$set": doc.asSetFields()}
	_, err := c.lists.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// GetObjectMetadata implements Client.
func (c *client) GetObjectMetadata(ctx context.Context, connectionID, objectName string, includeChildRelationships bool) (cache.ObjectMetadataEntry, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"cache_key": cache.Key(connectionID, objectName), "expires_at": bson.M{"$gt": time.Now().UTC()}}
	var doc objectMetadataDocument
	if err := c.metadata.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return cache.ObjectMetadataEntry{}, false, nil
		}
		return cache.ObjectMetadataEntry{}, false, err
	}
	entry := doc.toEntry()
	if !includeChildRelationships {
		entry = cache.StripChildRelationships(entry)
	}
	return entry, true, nil
}

// PutObjectMetadata implements Client.
func (c *client) PutObjectMetadata(ctx context.Context, entry cache.ObjectMetadataEntry) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	doc := fromMetadataEntry(entry)
	filter := bson.M{"cache_key": doc.CacheKey}
	update := bson.M{"$set": doc.asSetFields()}
	_, err := c.metadata.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// ClearConnection implements Client by deleting from both collections.
func (c *client) ClearConnection(ctx context.Context, connectionID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if _, err := c.lists.DeleteMany(ctx, bson.M{"connection_id": connectionID}); err != nil {
		return err
	}
	_, err := c.metadata.DeleteMany(ctx, bson.M{"connection_id": connectionID})
	return err
}

// SweepExpired implements Client by deleting expired documents from both
// collections and summing the removed count.
func (c *client) SweepExpired(ctx context.Context) (int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}}
	listRes, err := c.lists.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	metaRes, err := c.metadata.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(listRes.DeletedCount + metaRes.DeletedCount), nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type objectListDocument struct {
	ConnectionID string                 `bson:"connection_id"`
	Objects      []objectSummaryDoc     `bson:"objects"`
	CachedAt     time.Time              `bson:"cached_at"`
	ExpiresAt    time.Time              `bson:"expires_at"`
}

type objectSummaryDoc struct {
	Name       string `bson:"name"`
	Label      string `bson:"label"`
	Queryable  bool   `bson:"queryable"`
	Createable bool   `bson:"createable"`
	Custom     bool   `bson:"custom"`
	KeyPrefix  string `bson:"key_prefix"`
}

func fromListEntry(e cache.ObjectListEntry) objectListDocument {
	objs := make([]objectSummaryDoc, len(e.Objects))
	for i, o := range e.Objects {
		objs[i] = objectSummaryDoc{
			Name: o.Name, Label: o.Label, Queryable: o.Queryable,
			Createable: o.Createable, Custom: o.Custom, KeyPrefix: o.KeyPrefix,
		}
	}
	return objectListDocument{
		ConnectionID: e.ConnectionID,
		Objects:      objs,
		CachedAt:     e.CachedAt,
		ExpiresAt:    e.ExpiresAt,
	}
}

func (d objectListDocument) toEntry() cache.ObjectListEntry {
	objs := make([]cache.ObjectSummary, len(d.Objects))
	for i, o := range d.Objects {
		objs[i] = cache.ObjectSummary{
			Name: o.Name, Label: o.Label, Queryable: o.Queryable,
			Createable: o.Createable, Custom: o.Custom, KeyPrefix: o.KeyPrefix,
		}
	}
	return cache.ObjectListEntry{
		ConnectionID: d.ConnectionID,
		Objects:      objs,
		CachedAt:     d.CachedAt,
		ExpiresAt:    d.ExpiresAt,
	}
}

func (d objectListDocument) asSetFields() bson.M {
	return bson.M{
		"connection_id": d.ConnectionID,
		"objects":       d.Objects,
		"cached_at":     d.CachedAt,
		"expires_at":    d.ExpiresAt,
	}
}

type objectMetadataDocument struct {
	CacheKey           string                    `bson:"cache_key"`
	ConnectionID       string                    `bson:"connection_id"`
	ObjectName         string                    `bson:"object_name"`
	Label              string                    `bson:"label"`
	Fields             []fieldMetadataDoc        `bson:"fields"`
	ChildRelationships []relationshipMetadataDoc `bson:"child_relationships"`
	CachedAt           time.Time                 `bson:"cached_at"`
	ExpiresAt          time.Time                 `bson:"expires_at"`
}

type fieldMetadataDoc struct {
	Name         string             `bson:"name"`
	Label        string             `bson:"label"`
	Type         string             `bson:"type"`
	Length       int                `bson:"length"`
	Precision    int                `bson:"precision"`
	Scale        int                `bson:"scale"`
	Nillable     bool               `bson:"nillable"`
	Unique       bool               `bson:"unique"`
	Createable   bool               `bson:"createable"`
	Updateable   bool               `bson:"updateable"`
	Calculated   bool               `bson:"calculated"`
	Formula      string             `bson:"formula,omitempty"`
	Picklist     []picklistValueDoc `bson:"picklist,omitempty"`
	ReferenceTo  []string           `bson:"reference_to,omitempty"`
	RelationName string             `bson:"relation_name,omitempty"`
}

type picklistValueDoc struct {
	Value    string `bson:"value"`
	Label    string `bson:"label"`
	ValidFor string `bson:"valid_for,omitempty"`
}

type relationshipMetadataDoc struct {
	ChildObject      string `bson:"child_object"`
	Field            string `bson:"field"`
	RelationshipName string `bson:"relationship_name"`
	CascadeDelete    bool   `bson:"cascade_delete"`
}

func toPicklistDocs(src []cache.PicklistValue) []picklistValueDoc {
	if len(src) == 0 {
		return nil
	}
	out := make([]picklistValueDoc, len(src))
	for i, v := range src {
		out[i] = picklistValueDoc{Value: v.Value, Label: v.Label, ValidFor: v.ValidFor}
	}
	return out
}

func fromPicklistDocs(src []picklistValueDoc) []cache.PicklistValue {
	if len(src) == 0 {
		return nil
	}
	out := make([]cache.PicklistValue, len(src))
	for i, v := range src {
		out[i] = cache.PicklistValue{Value: v.Value, Label: v.Label, ValidFor: v.ValidFor}
	}
	return out
}

func fromMetadataEntry(e cache.ObjectMetadataEntry) objectMetadataDocument {
	fields := make([]fieldMetadataDoc, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = fieldMetadataDoc{
			Name: f.Name, Label: f.Label, Type: f.Type, Length: f.Length,
			Precision: f.Precision, Scale: f.Scale, Nillable: f.Nillable,
			Unique: f.Unique, Createable: f.Createable, Updateable: f.Updateable,
			Calculated: f.Calculated, Formula: f.Formula, Picklist: toPicklistDocs(f.Picklist),
			ReferenceTo: f.ReferenceTo, RelationName: f.RelationName,
		}
	}
	rels := make([]relationshipMetadataDoc, len(e.ChildRelationships))
	for i, r := range e.ChildRelationships {
		rels[i] = relationshipMetadataDoc{
			ChildObject: r.ChildObject, Field: r.Field,
			RelationshipName: r.RelationshipName, CascadeDelete: r.CascadeDelete,
		}
	}
	return objectMetadataDocument{
		CacheKey:           cache.Key(e.ConnectionID, e.ObjectName),
		ConnectionID:       e.ConnectionID,
		ObjectName:         e.ObjectName,
		Label:              e.Label,
		Fields:             fields,
		ChildRelationships: rels,
		CachedAt:           e.CachedAt,
		ExpiresAt:          e.ExpiresAt,
	}
}

func (d objectMetadataDocument) toEntry() cache.ObjectMetadataEntry {
	fields := make([]cache.FieldMetadata, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = cache.FieldMetadata{
			Name: f.Name, Label: f.Label, Type: f.Type, Length: f.Length,
			Precision: f.Precision, Scale: f.Scale, Nillable: f.Nillable,
			Unique: f.Unique, Createable: f.Createable, Updateable: f.Updateable,
			Calculated: f.Calculated, Formula: f.Formula, Picklist: fromPicklistDocs(f.Picklist),
			ReferenceTo: f.ReferenceTo, RelationName: f.RelationName,
		}
	}
	rels := make([]cache.RelationshipMetadata, len(d.ChildRelationships))
	for i, r := range d.ChildRelationships {
		rels[i] = cache.RelationshipMetadata{
			ChildObject: r.ChildObject, Field: r.Field,
			RelationshipName: r.RelationshipName, CascadeDelete: r.CascadeDelete,
		}
	}
	return cache.ObjectMetadataEntry{
		ConnectionID:       d.ConnectionID,
		ObjectName:         d.ObjectName,
		Label:              d.Label,
		Fields:             fields,
		ChildRelationships: rels,
		CachedAt:           d.CachedAt,
		ExpiresAt:          d.ExpiresAt,
	}
}

func (d objectMetadataDocument) asSetFields() bson.M {
	return bson.M{
		"cache_key":           d.CacheKey,
		"connection_id":       d.ConnectionID,
		"object_name":         d.ObjectName,
		"label":               d.Label,
		"fields":              d.Fields,
		"child_relationships": d.ChildRelationships,
		"cached_at":           d.CachedAt,
		"expires_at":          d.ExpiresAt,
	}
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	UpdateOne(ctx context.Context, filter any, update any,
		opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel,
		opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any,
	opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteMany(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
