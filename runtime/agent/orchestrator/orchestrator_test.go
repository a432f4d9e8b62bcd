package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot-ai/agentcore/runtime/agent/checkpoint"
	"github.com/datapilot-ai/agentcore/runtime/agent/executor"
	"github.com/datapilot-ai/agentcore/runtime/agent/model"
	"github.com/datapilot-ai/agentcore/runtime/agent/orchestrator"
	"github.com/datapilot-ai/agentcore/runtime/agent/stream"
	"github.com/datapilot-ai/agentcore/runtime/agent/tools"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

type fakeStore struct {
	states map[string]*workflow.State
	saved  int
}

func newFakeStore() *fakeStore { return &fakeStore{states: map[string]*workflow.State{}} }

func (s *fakeStore) Load(_ context.Context, conversationID string) (*workflow.State, error) {
	st, ok := s.states[conversationID]
	if !ok {
		return nil, checkpoint.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *fakeStore) Save(_ context.Context, conversationID string, state *workflow.State) error {
	s.saved++
	cp := *state
	s.states[conversationID] = &cp
	return nil
}

func (s *fakeStore) WritesLog(context.Context, string, checkpoint.WriteEvent) error { return nil }

type fakeModelClient struct{}

func (fakeModelClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return &model.Response{Content: []model.Message{{Parts: []model.Part{model.TextPart{
		Text: `{"response_type":"metadata_query","intent_understood":"x","data_summary":{}}`,
	}}}}}, nil
}

func (fakeModelClient) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

type fakeDispatcher struct{}

func (fakeDispatcher) Specs() []tools.ToolSpec { return nil }
func (fakeDispatcher) Dispatch(context.Context, workflow.ToolCall) workflow.ToolResult {
	return workflow.ToolResult{OK: true}
}

type fakeSink struct{ events []stream.Event }

func (s *fakeSink) Send(_ context.Context, e stream.Event) error { s.events = append(s.events, e); return nil }
func (s *fakeSink) Close(context.Context) error                  { return nil }

func newOrchestrator(store checkpoint.Store) *orchestrator.Orchestrator {
	ex := executor.New(fakeModelClient{}, fakeDispatcher{}, executor.Caps{}, time.Minute, nil)
	return orchestrator.New(store, ex, 5, 0.7, nil)
}

func TestInvokeAllocatesConversationIDWhenMissing(t *testing.T) {
	store := newFakeStore()
	o := newOrchestrator(store)

	result, err := o.Invoke(context.Background(), "hello", "conn-1", "", false)
	require.NoError(t, err)
	require.NotNil(t, result.State)
	assert.Regexp(t, `^conv_[0-9a-f-]{36}$`, result.State.Meta.ConversationID)
	assert.Equal(t, 1, store.saved)
}

func TestInvokeResumesExistingConversation(t *testing.T) {
	store := newFakeStore()
	existing := workflow.New("conv_abc", "conv_abc", "conn-1", "en-US", 0.7, 5)
	existing.Conversation.Summary = &workflow.Summary{ObjectResolution: workflow.ObjectResolution{APINames: []string{"Account"}}}
	store.states["conv_abc"] = existing

	o := newOrchestrator(store)
	result, err := o.Invoke(context.Background(), "more please", "conn-1", "conv_abc", false)
	require.NoError(t, err)
	assert.Equal(t, "conv_abc", result.State.Meta.ConversationID)
	require.NotNil(t, result.State.Conversation.Summary)
	assert.Contains(t, result.State.Conversation.Summary.ObjectResolution.APINames, "Account")
}

func TestInvokeNewThreadAllocatesFreshID(t *testing.T) {
	store := newFakeStore()
	store.states["conv_abc"] = workflow.New("conv_abc", "conv_abc", "conn-1", "en-US", 0.7, 5)

	o := newOrchestrator(store)
	result, err := o.Invoke(context.Background(), "start over", "conn-1", "conv_abc", true)
	require.NoError(t, err)
	assert.NotEqual(t, "conv_abc", result.State.Meta.ConversationID)
}

func TestInvokeStreamEmitsEventsAndPersists(t *testing.T) {
	store := newFakeStore()
	o := newOrchestrator(store)
	sink := &fakeSink{}

	state, err := o.InvokeStream(context.Background(), "hello", "conn-1", "", false, sink)
	require.NoError(t, err)
	assert.NotEmpty(t, sink.events)
	assert.Equal(t, 1, store.saved)
	assert.Equal(t, workflow.StatusCompleted, state.Meta.Status)
}

func TestInvokeDoesNotPersistWhenCancelled(t *testing.T) {
	store := newFakeStore()
	o := newOrchestrator(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Invoke(ctx, "hello", "conn-1", "", false)
	require.NoError(t, err)
	assert.Zero(t, store.saved)
}
