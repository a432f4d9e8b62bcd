// Package mongo hosts the MongoDB client backing the conversation checkpoint
// store, following the same collection/singleResult/cursor wrapper shape the
// rest of this module's Mongo-backed adapters use so the client remains unit
// testable without a live server.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/datapilot-ai/agentcore/runtime/agent/checkpoint"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

const (
	defaultCheckpointCollection = "agent_checkpoints"
	defaultWritesLogCollection  = "agent_checkpoint_writes"
	defaultOpTimeout            = 5 * time.Second
)

// Client exposes Mongo-backed operations for conversation checkpoints.
type Client interface {
	Ping(ctx context.Context) error

	Load(ctx context.Context, conversationID string) (*workflow.State, error)
	Save(ctx context.Context, conversationID string, state *workflow.State) error
	WritesLog(ctx context.Context, conversationID string, event checkpoint.WriteEvent) error
}

// Options configures the Mongo checkpoint client.
type Options struct {
	Client               *mongodriver.Client
	Database             string
	CheckpointCollection string
	WritesLogCollection  string
	Timeout              time.Duration
}

type client struct {
	mongo      *mongodriver.Client
	checkpoints collection
	writes     collection
	timeout    time.Duration
}

// New returns a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	checkpointColl := opts.CheckpointCollection
	if checkpointColl == "" {
		checkpointColl = defaultCheckpointCollection
	}
	writesColl := opts.WritesLogCollection
	if writesColl == "" {
		writesColl = defaultWritesLogCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	cpColl := opts.Client.Database(opts.Database).Collection(checkpointColl)
	wColl := opts.Client.Database(opts.Database).Collection(writesColl)
	return newClientWithCollections(opts.Client, mongoCollection{coll: cpColl}, mongoCollection{coll: wColl}, timeout)
}

// newClientWithCollections builds a client from already-resolved collection
// handles, bypassing Database/Collection lookups so tests can substitute
// in-memory fakes satisfying the collection interface.
func newClientWithCollections(m *mongodriver.Client, checkpoints, writes collection, timeout time.Duration) (*client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, checkpoints); err != nil {
		return nil, err
	}
	return &client{
		mongo:       m,
		checkpoints: checkpoints,
		writes:      writes,
		timeout:     timeout,
	}, nil
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

// Load implements Client. It returns checkpoint.ErrNotFound when no document
// exists for the conversation id, matching the Store contract.
func (c *client) Load(ctx context.Context, conversationID string) (*workflow.State, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"conversation_id": conversationID}
	var doc checkpointDocument
	if err := c.checkpoints.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, checkpoint.ErrNotFound
		}
		return nil, err
	}
	return doc.toState(), nil
}

// Save implements Client. The upsert always clears Messages on the document
// before writing, so the invariant "history lives only in the summary" holds
// at the storage layer even if a caller forgets to strip them first.
func (c *client) Save(ctx context.Context, conversationID string, state *workflow.State) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}
	doc := fromState(conversationID, state)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"conversation_id": conversationID}
	update := bson.M{
		"$set": bson.M{
			"conversation_id":     doc.ConversationID,
			"workflow_id":         doc.WorkflowID,
			"version":             doc.Version,
			"status":              doc.Status,
			"locale":              doc.Locale,
			"connection_id":       doc.ConnectionID,
			"confidence_threshold": doc.ConfidenceThreshold,
			"meta_metadata":       doc.MetaMetadata,
			"remaining_steps":     doc.RemainingSteps,
			"conversation":        doc.Conversation,
			"response":            doc.Response,
			"structured_response": doc.StructuredResponse,
			"updated_at":          time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"started_at": doc.StartedAt,
		},
	}
	_, err := c.checkpoints.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// WritesLog implements Client as a best-effort append; failures are returned
// to the caller but are never required for correctness.
func (c *client) WritesLog(ctx context.Context, conversationID string, event checkpoint.WriteEvent) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.writes.InsertOne(ctx, bson.M{
		"conversation_id": conversationID,
		"node":            event.Node,
		"status":          event.Status,
		"detail":          event.Detail,
		"at":              time.Now().UTC(),
	})
	return err
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

func ensureIndexes(ctx context.Context, checkpoints collection) error {
	idx := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := checkpoints.Indexes().CreateOne(ctx, idx)
	return err
}

// checkpointDocument is the BSON-persisted shape of a workflow.State. It
// intentionally omits Messages and ClientResults: the former never survives
// across turns, and the latter is per-turn client-facing scratch that is
// cleared before the next turn starts.
type checkpointDocument struct {
	ConversationID      string             `bson:"conversation_id"`
	WorkflowID          string             `bson:"workflow_id"`
	Version             string             `bson:"version"`
	Status              workflow.Status    `bson:"status"`
	Locale              string             `bson:"locale"`
	ConnectionID        string             `bson:"connection_id"`
	ConfidenceThreshold float64            `bson:"confidence_threshold"`
	MetaMetadata        map[string]string  `bson:"meta_metadata,omitempty"`
	RemainingSteps      int                `bson:"remaining_steps"`
	Conversation        bson.M             `bson:"conversation,omitempty"`
	Response            bson.M             `bson:"response,omitempty"`
	StructuredResponse  bson.M             `bson:"structured_response,omitempty"`
	StartedAt           time.Time          `bson:"started_at"`
}

func fromState(conversationID string, s *workflow.State) checkpointDocument {
	doc := checkpointDocument{
		ConversationID:      conversationID,
		WorkflowID:          s.Meta.WorkflowID,
		Version:             s.Meta.Version,
		Status:              s.Meta.Status,
		Locale:              s.Meta.Locale,
		ConnectionID:        s.Meta.ConnectionID,
		ConfidenceThreshold: s.Meta.ConfidenceThreshold,
		MetaMetadata:        cloneStrMap(s.Meta.Metadata),
		RemainingSteps:      s.RemainingSteps,
		StartedAt:           s.Meta.StartedAt,
	}
	if s.Conversation.Summary != nil {
		doc.Conversation = bson.M{"summary": s.Conversation.Summary}
	}
	doc.Response = bson.M{
		"type":    s.Response.Type,
		"content": s.Response.Content,
		"error":   s.Response.Error,
	}
	if s.StructuredResponse != nil {
		doc.StructuredResponse = bson.M{"value": s.StructuredResponse}
	}
	return doc
}

func (doc checkpointDocument) toState() *workflow.State {
	st := &workflow.State{
		Meta: workflow.Meta{
			WorkflowID:          doc.WorkflowID,
			Version:             doc.Version,
			ConversationID:      doc.ConversationID,
			StartedAt:           doc.StartedAt,
			Status:              doc.Status,
			Locale:              doc.Locale,
			ConnectionID:        doc.ConnectionID,
			ConfidenceThreshold: doc.ConfidenceThreshold,
			Metadata:            cloneStrMap(doc.MetaMetadata),
		},
		RemainingSteps: doc.RemainingSteps,
		Messages:       []workflow.Message{},
		ClientResults:  []workflow.ToolResult{},
	}
	if v, ok := doc.Conversation["summary"]; ok && v != nil {
		if summary, ok := decodeSummary(v); ok {
			st.Conversation.Summary = summary
		}
	}
	return st
}

func decodeSummary(v any) (*workflow.Summary, bool) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, false
	}
	var s workflow.Summary
	if err := bson.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

func cloneStrMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	UpdateOne(ctx context.Context, filter any, update any,
		opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	InsertOne(ctx context.Context, doc any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error)
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

func (c mongoCollection) InsertOne(ctx context.Context, doc any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc, opts...)
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
