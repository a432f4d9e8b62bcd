package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot-ai/agentcore/runtime/agent/executor"
	"github.com/datapilot-ai/agentcore/runtime/agent/model"
	"github.com/datapilot-ai/agentcore/runtime/agent/stream"
	"github.com/datapilot-ai/agentcore/runtime/agent/tools"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

// fakeModelClient drives a scripted sequence of Complete responses, one per call.
type fakeModelClient struct {
	responses []*model.Response
	errs      []error
	calls     int
}

func (f *fakeModelClient) Complete(_ context.Context, _ *model.Request) (*model.Response, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i >= len(f.responses) {
		return &model.Response{Content: []model.Message{{Parts: []model.Part{model.TextPart{Text: "done"}}}}}, nil
	}
	return f.responses[i], nil
}

func (f *fakeModelClient) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func textResponse(text string) *model.Response {
	return &model.Response{Content: []model.Message{{Parts: []model.Part{model.TextPart{Text: text}}}}}
}

func toolCallResponse(name, id string, args map[string]any) *model.Response {
	raw, _ := json.Marshal(args)
	return &model.Response{ToolCalls: []model.ToolCall{{Name: tools.ID(name), ID: id, Payload: raw}}}
}

// fakeDispatcher returns one fixed result for every dispatched call.
type fakeDispatcher struct {
	specs  []tools.ToolSpec
	result workflow.ToolResult
	calls  []workflow.ToolCall
}

func (f *fakeDispatcher) Specs() []tools.ToolSpec { return f.specs }

func (f *fakeDispatcher) Dispatch(_ context.Context, call workflow.ToolCall) workflow.ToolResult {
	f.calls = append(f.calls, call)
	return f.result
}

// fakeSink records every event sent to it, in order.
type fakeSink struct {
	events []stream.Event
}

func (s *fakeSink) Send(_ context.Context, event stream.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *fakeSink) Close(context.Context) error { return nil }

func newState() *workflow.State {
	return workflow.New("wf-1", "conv-1", "conn-1", "en-US", 0.7, 5)
}

func TestRunFinalTextResponse(t *testing.T) {
	client := &fakeModelClient{responses: []*model.Response{textResponse("just a plain answer, no json")}}
	dispatcher := &fakeDispatcher{}
	ex := executor.New(client, dispatcher, executor.Caps{ObjectLimit: 5, FieldLimit: 50, QueryLimit: 5, QueryMax: 10}, time.Minute, nil)

	state := newState()
	state.Request.UserInput = "hello"
	sink := &fakeSink{}

	err := ex.Run(context.Background(), state, sink)
	require.NoError(t, err)
	assert.Equal(t, workflow.ResponseSuccess, state.Response.Type)
	assert.Equal(t, workflow.StatusCompleted, state.Meta.Status)
	assert.Nil(t, state.StructuredResponse)

	require.NotEmpty(t, sink.events)
	last := sink.events[len(sink.events)-1]
	assert.Equal(t, stream.EventStreamComplete, last.Type())
}

func TestRunDispatchesToolCallThenFinalStructuredResponse(t *testing.T) {
	args := map[string]any{"search_terms": []string{"account"}, "connection_uuid": "conn-1"}
	client := &fakeModelClient{responses: []*model.Response{
		toolCallResponse("search_for_sobjects", "call-1", args),
		textResponse(`{"response_type":"metadata_query","intent_understood":"describe account","data_summary":{}}`),
	}}
	dispatcher := &fakeDispatcher{result: workflow.ToolResult{OK: true, Value: map[string]any{"Account": map[string]any{}}}}
	ex := executor.New(client, dispatcher, executor.Caps{ObjectLimit: 5, FieldLimit: 50, QueryLimit: 5, QueryMax: 10}, time.Minute, nil)

	state := newState()
	state.Request.UserInput = "tell me about accounts"
	sink := &fakeSink{}

	err := ex.Run(context.Background(), state, sink)
	require.NoError(t, err)
	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, "search_for_sobjects", dispatcher.calls[0].Name)

	require.NotNil(t, state.StructuredResponse)
	assert.Equal(t, workflow.KindMetadataQuery, state.StructuredResponse.ResponseType)

	var sawThinking, sawStructured, sawComplete bool
	for _, e := range sink.events {
		switch e.Type() {
		case stream.EventStreamUpdate:
			if _, ok := e.Payload().(stream.ThinkingPayload); ok {
				sawThinking = true
			}
			if _, ok := e.Payload().(*workflow.StructuredResponse); ok {
				sawStructured = true
			}
		case stream.EventStreamComplete:
			sawComplete = true
		}
	}
	assert.True(t, sawThinking, "expected a thinking event for the tool call")
	assert.True(t, sawStructured, "expected a structured event for the final answer")
	assert.True(t, sawComplete, "expected stream_complete as the terminal event")
}

func TestRunStepBudgetExhausted(t *testing.T) {
	args := map[string]any{"search_terms": []string{"x"}, "connection_uuid": "conn-1"}
	client := &fakeModelClient{}
	// Every response requests another tool call, so the loop never reaches a
	// final answer and must stop once the step budget is spent.
	for i := 0; i < 10; i++ {
		client.responses = append(client.responses, toolCallResponse("search_for_sobjects", "call", args))
	}
	dispatcher := &fakeDispatcher{result: workflow.ToolResult{OK: true, Value: map[string]any{}}}
	ex := executor.New(client, dispatcher, executor.Caps{}, time.Minute, nil)

	state := newState()
	state.RemainingSteps = 2
	sink := &fakeSink{}

	err := ex.Run(context.Background(), state, sink)
	require.NoError(t, err)
	assert.Equal(t, workflow.ResponseError_, state.Response.Type)
	assert.Equal(t, workflow.StatusFailed, state.Meta.Status)
	assert.Equal(t, "step_budget_exhausted", state.Response.Error.Reason)
}

func TestRunLLMErrorClassification(t *testing.T) {
	providerErr := model.NewProviderError("anthropic", "complete", 401, model.ProviderErrorKindAuth, "authentication_error", "bad key", "", false, nil)
	client := &fakeModelClient{errs: []error{providerErr}}
	dispatcher := &fakeDispatcher{}
	ex := executor.New(client, dispatcher, executor.Caps{}, time.Minute, nil)

	state := newState()
	sink := &fakeSink{}

	err := ex.Run(context.Background(), state, sink)
	require.Error(t, err)
	assert.Equal(t, workflow.ResponseError_, state.Response.Type)
	assert.Equal(t, "api_key_invalid", state.Response.Error.Reason)

	var sawError bool
	for _, e := range sink.events {
		if e.Type() == stream.EventError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestRunLLMQuotaErrorClassification(t *testing.T) {
	providerErr := model.NewProviderError("openai", "complete", 429, model.ProviderErrorKindRateLimited, "insufficient_quota", "no credits left", "", false, nil)
	client := &fakeModelClient{errs: []error{providerErr}}
	dispatcher := &fakeDispatcher{}
	ex := executor.New(client, dispatcher, executor.Caps{}, time.Minute, nil)

	state := newState()
	sink := &fakeSink{}

	err := ex.Run(context.Background(), state, sink)
	require.Error(t, err)
	assert.Equal(t, "quota", state.Response.Error.Reason)
}

func TestRunToolRedactionStripsRecordsFromLLMButKeepsClientResult(t *testing.T) {
	queryArgs := map[string]any{"query": "SELECT Id FROM Account LIMIT 5", "connection_uuid": "conn-1"}
	client := &fakeModelClient{responses: []*model.Response{
		toolCallResponse("execute_soql_query", "call-1", queryArgs),
		textResponse(`{"response_type":"data_query","intent_understood":"list accounts","data_summary":{}}`),
	}}
	fullResult := map[string]any{"total_size": 2, "done": true, "records_count": 2, "records": []any{map[string]any{"Id": "1"}, map[string]any{"Id": "2"}}}
	dispatcher := &fakeDispatcher{result: workflow.ToolResult{OK: true, Value: fullResult}}
	ex := executor.New(client, dispatcher, executor.Caps{}, time.Minute, nil)

	state := newState()
	sink := &fakeSink{}
	err := ex.Run(context.Background(), state, sink)
	require.NoError(t, err)

	require.Len(t, state.ClientResults, 1)
	clientValue, ok := state.ClientResults[0].Value.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, clientValue, "records")

	var toolMessage *workflow.Message
	for i := range state.Messages {
		if state.Messages[i].Role == workflow.RoleTool {
			toolMessage = &state.Messages[i]
		}
	}
	require.NotNil(t, toolMessage)
	assert.NotContains(t, toolMessage.ToolResultJSON, `"records":`)

	require.NotNil(t, state.StructuredResponse)
	assert.Contains(t, state.StructuredResponse.DataSummary, "records")
}

func TestRunCancellation(t *testing.T) {
	client := &fakeModelClient{errs: []error{errors.New("should not be called")}}
	dispatcher := &fakeDispatcher{}
	ex := executor.New(client, dispatcher, executor.Caps{}, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := newState()
	sink := &fakeSink{}
	err := ex.Run(ctx, state, sink)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled, state.Meta.Status)
	assert.Equal(t, "cancelled", state.Response.Error.Reason)
	assert.Zero(t, client.calls)
}

// cancelingDispatcher cancels ctx's own cancel func partway through a batch
// of tool calls, simulating cancellation arriving between two dispatches in
// the same reply.
type cancelingDispatcher struct {
	cancel context.CancelFunc
	calls  []workflow.ToolCall
}

func (d *cancelingDispatcher) Specs() []tools.ToolSpec { return nil }

func (d *cancelingDispatcher) Dispatch(_ context.Context, call workflow.ToolCall) workflow.ToolResult {
	d.calls = append(d.calls, call)
	if len(d.calls) == 1 {
		d.cancel()
	}
	return workflow.ToolResult{OK: true, Value: map[string]any{}}
}

func TestRunStopsDispatchingToolCallsOnceCancelledMidBatch(t *testing.T) {
	args1 := map[string]any{"search_terms": []string{"a"}, "connection_uuid": "conn-1"}
	args2 := map[string]any{"search_terms": []string{"b"}, "connection_uuid": "conn-1"}
	raw1, _ := json.Marshal(args1)
	raw2, _ := json.Marshal(args2)
	client := &fakeModelClient{responses: []*model.Response{{
		ToolCalls: []model.ToolCall{
			{Name: tools.ID("search_for_sobjects"), ID: "call-1", Payload: raw1},
			{Name: tools.ID("search_for_sobjects"), ID: "call-2", Payload: raw2},
		},
	}}}

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &cancelingDispatcher{cancel: cancel}
	ex := executor.New(client, dispatcher, executor.Caps{}, time.Minute, nil)

	state := newState()
	sink := &fakeSink{}
	err := ex.Run(ctx, state, sink)
	require.NoError(t, err)
	assert.Len(t, dispatcher.calls, 1, "second tool call must not be dispatched once ctx is cancelled")
	assert.Equal(t, workflow.StatusCancelled, state.Meta.Status)
}

func TestRunDeduplicatesRepeatedToolCallID(t *testing.T) {
	args := map[string]any{"search_terms": []string{"account"}, "connection_uuid": "conn-1"}
	raw, _ := json.Marshal(args)
	client := &fakeModelClient{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{
			{Name: tools.ID("search_for_sobjects"), ID: "call-1", Payload: raw},
			{Name: tools.ID("search_for_sobjects"), ID: "call-1", Payload: raw},
		}},
		textResponse(`{"response_type":"metadata_query","intent_understood":"describe account","data_summary":{}}`),
	}}
	dispatcher := &fakeDispatcher{result: workflow.ToolResult{OK: true, Value: map[string]any{}}}
	ex := executor.New(client, dispatcher, executor.Caps{}, time.Minute, nil)

	state := newState()
	sink := &fakeSink{}
	err := ex.Run(context.Background(), state, sink)
	require.NoError(t, err)
	assert.Len(t, dispatcher.calls, 1, "repeated tool_call_id within a turn must be dispatched once")
}
