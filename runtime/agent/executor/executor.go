// Package executor implements the ReAct think-act-observe loop: it calls the
// model, dispatches any requested tool calls, and repeats until the model
// produces a final structured answer or the step/time budget is exhausted.
// The loop is a plain sequential Go function; a turn has no durable-replay
// requirement, so there is no workflow engine underneath it.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/datapilot-ai/agentcore/runtime/agent/model"
	"github.com/datapilot-ai/agentcore/runtime/agent/parser"
	"github.com/datapilot-ai/agentcore/runtime/agent/stream"
	"github.com/datapilot-ai/agentcore/runtime/agent/telemetry"
	"github.com/datapilot-ai/agentcore/runtime/agent/tools"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

// ToolDispatcher is the narrow contract the executor needs from a tool
// registry: list the advertised tool specs and run a single requested call,
// always returning a reified result rather than an error.
type ToolDispatcher interface {
	Specs() []tools.ToolSpec
	Dispatch(ctx context.Context, call workflow.ToolCall) workflow.ToolResult
}

// Executor runs one turn of the ReAct loop for a single workflow.State.
type Executor struct {
	Model  model.Client
	Tools  ToolDispatcher
	Caps   Caps
	Logger telemetry.Logger

	// ModelName, Temperature, and MaxTokens are seeded into every Request this
	// executor issues, sourced from LLM_MODEL_NAME / LLM_TEMPERATURE / LLM_MAX_TOKENS.
	ModelName   string
	Temperature float32
	MaxTokens   int

	// WallClock bounds how long a turn may run, independent of RemainingSteps.
	WallClock time.Duration
}

// New constructs an Executor. logger may be nil, in which case telemetry is
// discarded.
func New(client model.Client, dispatcher ToolDispatcher, caps Caps, wallClock time.Duration, logger telemetry.Logger) *Executor {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Executor{Model: client, Tools: dispatcher, Caps: caps, WallClock: wallClock, Logger: logger}
}

// emitter wraps a stream.Sink and numbers the events it sends; a nil sink is
// valid and means the turn runs without a live event stream (the Invoke,
// non-streaming path).
type emitter struct {
	sink      stream.Sink
	runID     string
	sessionID string
	turnID    string
	seq       int
}

func (e *emitter) send(ctx context.Context, kind stream.EventType, build func(base stream.Base) stream.Event) {
	if e == nil || e.sink == nil {
		return
	}
	e.seq++
	base := stream.NewBase(kind, e.runID, e.sessionID, e.turnID, e.seq, time.Now().UTC())
	_ = e.sink.Send(ctx, build(base))
}

// Run executes the ReAct loop against state until a final answer is produced
// or the step/time budget is exhausted, mutating state in place. sink may be
// nil for the non-streaming Invoke path.
func (x *Executor) Run(ctx context.Context, state *workflow.State, sink stream.Sink) error {
	em := &emitter{sink: sink, runID: state.Meta.WorkflowID, sessionID: state.Meta.ConversationID, turnID: state.Meta.WorkflowID}
	budget := NewBudget(state.RemainingSteps, x.WallClock, time.Now())
	if state.Meta.Metadata == nil {
		state.Meta.Metadata = map[string]string{}
	}
	state.Meta.Metadata["prompt_preset"] = "optimized"

	var actionsTaken []string
	var lastText string
	dedup := newCallDedup()

	for !budget.Exhausted() && !budget.PastDeadline(time.Now()) && ctx.Err() == nil {
		req := x.buildRequest(state)
		resp, err := x.Model.Complete(ctx, req)
		if err != nil {
			return x.handleLLMError(ctx, em, state, err)
		}

		reply := responseToMessage(resp)
		state.Messages = append(state.Messages, reply)

		if len(reply.ToolCalls) > 0 {
			for _, call := range reply.ToolCalls {
				if ctx.Err() != nil {
					break
				}

				if dedup.seen(call) {
					continue
				}

				em.send(ctx, stream.EventStreamUpdate, func(base stream.Base) stream.Event {
					return stream.ThinkingEvent{Base: base, Data: thinkingPayload(call, actionsTaken)}
				})

				result := x.Tools.Dispatch(ctx, workflow.ToolCall{ID: call.ID, Name: call.Name, Args: call.Args})
				state.Messages = append(state.Messages, toolResultMessage(call, result))
				state.ClientResults = append(state.ClientResults, result)
				actionsTaken = append(actionsTaken, fmt.Sprintf("Called %s", call.Name))

				em.send(ctx, stream.EventContent, func(base stream.Base) stream.Event {
					return stream.ContentEvent{Base: base, Data: fmt.Sprintf("tool %s completed: ok=%t", call.Name, result.OK)}
				})
			}
			budget.Spend()
			state.RemainingSteps = budget.Remaining()
			continue
		}

		lastText = messageText(reply)
		parsed, ok := parser.Parse(lastText)
		if ok {
			foldClientResults(parsed, state.ClientResults)
			state.StructuredResponse = parsed
			em.send(ctx, stream.EventStreamUpdate, func(base stream.Base) stream.Event {
				return stream.StructuredEvent{Base: base, Data: parsed}
			})
		} else {
			em.send(ctx, stream.EventStreamUpdate, func(base stream.Base) stream.Event {
				return stream.TextEvent{Base: base, Text: lastText}
			})
		}
		state.Response = workflow.Response{Type: workflow.ResponseSuccess, Content: lastText}
		state.Meta.Status = workflow.StatusCompleted
		updateSummary(state)
		x.completeStream(ctx, em, state)
		return nil
	}

	return x.handleBudgetExhausted(ctx, em, state, budget, lastText)
}

func (x *Executor) handleBudgetExhausted(ctx context.Context, em *emitter, state *workflow.State, budget *Budget, lastText string) error {
	reason := "step_budget_exhausted"
	switch {
	case ctx.Err() != nil:
		reason = "cancelled"
	case budget.PastDeadline(time.Now()):
		reason = "timeout"
	}

	respType := workflow.ResponsePartial
	if lastText == "" {
		respType = workflow.ResponseError_
	}
	state.Response = workflow.Response{
		Type:    respType,
		Content: lastText,
		Error:   &workflow.ResponseError{Reason: reason},
	}
	state.Meta.Status = workflow.StatusFailed
	if reason == "cancelled" {
		state.Meta.Status = workflow.StatusCancelled
	}

	em.send(ctx, stream.EventErrorMessage, func(base stream.Base) stream.Event {
		return stream.ErrorMessageEvent{Base: base, Message: budgetMessage(reason), ErrorType: reason}
	})
	updateSummary(state)
	x.completeStream(ctx, em, state)
	return nil
}

func budgetMessage(reason string) string {
	switch reason {
	case "timeout":
		return "The assistant ran out of time answering this request. Try asking something more specific."
	case "cancelled":
		return "The request was cancelled before the assistant could finish."
	default:
		return "The assistant used its full step budget without reaching a final answer. Try asking something more specific."
	}
}

func (x *Executor) handleLLMError(ctx context.Context, em *emitter, state *workflow.State, err error) error {
	class := classifyLLMError(err)
	em.send(ctx, stream.EventError, func(base stream.Base) stream.Event {
		return stream.ErrorEvent{Base: base, Data: stream.ErrorPayload{Content: err.Error(), Metadata: stream.ErrorPayloadMeta{ErrorType: string(class)}}}
	})
	em.send(ctx, stream.EventErrorMessage, func(base stream.Base) stream.Event {
		return stream.ErrorMessageEvent{Base: base, Message: errorMessage(class), ErrorType: string(class)}
	})
	state.Response = workflow.Response{
		Type:  workflow.ResponseError_,
		Error: &workflow.ResponseError{Reason: string(class), Detail: err.Error()},
	}
	state.Meta.Status = workflow.StatusFailed
	return fmt.Errorf("executor: llm call failed: %w", err)
}

// completeStream emits stream_complete, always last absent a top-level error.
func (x *Executor) completeStream(ctx context.Context, em *emitter, state *workflow.State) {
	em.send(ctx, stream.EventStreamComplete, func(base stream.Base) stream.Event {
		return stream.StreamCompleteEvent{Base: base, Data: stream.StreamCompletePayload{
			ThreadID:        state.Meta.ConversationID,
			ConversationID:  state.Meta.ConversationID,
			ChunksProcessed: em.seq,
		}}
	})
}

// buildRequest renders the system prompt and full message transcript into a
// model.Request, including the fixed tool definitions.
func (x *Executor) buildRequest(state *workflow.State) *model.Request {
	prompt := SystemPrompt(state.Meta.ConfidenceThreshold, state.Meta.ConnectionID, x.Caps, state.Conversation.Summary)

	messages := make([]*model.Message, 0, len(state.Messages)+2)
	messages = append(messages, &model.Message{
		Role:  model.ConversationRoleSystem,
		Parts: []model.Part{model.TextPart{Text: prompt}},
	})
	messages = append(messages, &model.Message{
		Role:  model.ConversationRoleUser,
		Parts: []model.Part{model.TextPart{Text: state.Request.UserInput}},
	})
	for _, m := range state.Messages {
		messages = append(messages, toModelMessage(m))
	}

	return &model.Request{
		RunID:       state.Meta.WorkflowID,
		Model:       x.ModelName,
		Messages:    messages,
		Temperature: x.Temperature,
		Tools:       toolDefinitions(x.Tools.Specs()),
		MaxTokens:   x.MaxTokens,
	}
}

func toolDefinitions(specs []tools.ToolSpec) []*model.ToolDefinition {
	defs := make([]*model.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		var schema any
		if len(s.Payload.Schema) > 0 {
			_ = json.Unmarshal(s.Payload.Schema, &schema)
		}
		defs = append(defs, &model.ToolDefinition{Name: s.Name, Description: s.Description, InputSchema: schema})
	}
	return defs
}

func toModelMessage(m workflow.Message) *model.Message {
	switch m.Role {
	case workflow.RoleAI:
		parts := []model.Part{}
		if m.Content != "" {
			parts = append(parts, model.TextPart{Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			parts = append(parts, model.ToolUsePart{ID: tc.ID, Name: tc.Name, Input: tc.Args})
		}
		return &model.Message{Role: model.ConversationRoleAssistant, Parts: parts}
	case workflow.RoleTool:
		return &model.Message{Role: model.ConversationRoleUser, Parts: []model.Part{
			model.ToolResultPart{ToolUseID: m.ToolCallID, Content: m.ToolResultJSON},
		}}
	default:
		return &model.Message{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: m.Content}}}
	}
}

func responseToMessage(resp *model.Response) workflow.Message {
	msg := workflow.Message{Role: workflow.RoleAI}
	for _, c := range resp.Content {
		for _, p := range c.Parts {
			if tp, ok := p.(model.TextPart); ok {
				msg.Content += tp.Text
			}
		}
	}
	for _, tc := range resp.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal(tc.Payload, &args)
		msg.ToolCalls = append(msg.ToolCalls, workflow.ToolCall{ID: tc.ID, Name: string(tc.Name), Args: args})
	}
	return msg
}

func messageText(m workflow.Message) string { return m.Content }

// toolResultMessage builds the "lite" tool message fed back to the LLM. For
// execute_soql_query this omits the records array per the tool redaction
// rule; every other tool's full result is reflected back unredacted.
func toolResultMessage(call workflow.ToolCall, result workflow.ToolResult) workflow.Message {
	lite := result
	if call.Name == "execute_soql_query" && result.OK {
		lite.Value = redactQueryResult(result.Value)
	}
	raw, err := json.Marshal(liteView{OK: lite.OK, Value: lite.Value, Error: lite.Error})
	if err != nil {
		raw = []byte(`{"ok":false,"error":"failed to encode tool result"}`)
	}
	return workflow.Message{
		Role:           workflow.RoleTool,
		ToolCallID:     call.ID,
		ToolName:       call.Name,
		ToolResultJSON: string(raw),
	}
}

type liteView struct {
	OK    bool   `json:"ok"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// redactQueryResult strips the records array from a query tool's result
// before it is fed back to the LLM, keeping only the summary envelope. The
// full value (with records) remains in state.ClientResults untouched.
func redactQueryResult(value any) any {
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	lite := map[string]any{}
	for _, k := range []string{"total_size", "done", "records_count", "nextRecordsUrl"} {
		if v, ok := m[k]; ok {
			lite[k] = v
		}
	}
	return lite
}

// callDedup tracks tool calls already dispatched within a turn so a reply
// that repeats a tool_call_id (or, absent an id, the same name+args) is only
// dispatched once.
type callDedup struct {
	seenKeys map[string]bool
}

func newCallDedup() *callDedup {
	return &callDedup{seenKeys: map[string]bool{}}
}

func (d *callDedup) seen(call workflow.ToolCall) bool {
	key := call.ID
	if key == "" {
		args, _ := json.Marshal(call.Args)
		key = call.Name + ":" + string(args)
	}
	if d.seenKeys[key] {
		return true
	}
	d.seenKeys[key] = true
	return false
}

func thinkingPayload(call workflow.ToolCall, actionsTaken []string) stream.ThinkingPayload {
	taken := make([]string, len(actionsTaken))
	copy(taken, actionsTaken)
	return stream.ThinkingPayload{
		ResponseType:     "thinking",
		Confidence:       0.9,
		ConfidenceLabel:  "high",
		IntentUnderstood: fmt.Sprintf("Calling %s", call.Name),
		ActionsTaken:     taken,
		DataSummary:      map[string]any{},
		Suggestions:      []string{},
		Metadata:         stream.ThinkingMeta{ToolName: call.Name, ToolArgs: call.Args},
	}
}

// foldClientResults folds client_results back into a data_query's
// data_summary, replacing records_count with the full records array, per the
// client-side fold rule.
func foldClientResults(parsed *workflow.StructuredResponse, results []workflow.ToolResult) {
	if parsed.ResponseType != workflow.KindDataQuery || len(results) == 0 {
		return
	}
	for i := len(results) - 1; i >= 0; i-- {
		m, ok := results[i].Value.(map[string]any)
		if !ok {
			continue
		}
		records, ok := m["records"]
		if !ok {
			continue
		}
		if parsed.DataSummary == nil {
			parsed.DataSummary = map[string]any{}
		}
		delete(parsed.DataSummary, "records_count")
		parsed.DataSummary["records"] = records
		return
	}
}

// updateSummary folds the turn's structured response back into
// conversation.summary so the next turn inherits the resolved objects
// (candidate_objects) and, for a data_query, the executed query. Label
// mappings, relationships and field discoveries in the summary are left
// unchanged.
func updateSummary(state *workflow.State) {
	if state.StructuredResponse == nil {
		return
	}
	if state.Conversation.Summary == nil {
		state.Conversation.Summary = &workflow.Summary{}
	}
	summary := state.Conversation.Summary
	for _, obj := range state.StructuredResponse.CandidateObjects {
		if !containsString(summary.ObjectResolution.APINames, obj) {
			summary.ObjectResolution.APINames = append(summary.ObjectResolution.APINames, obj)
		}
	}
	if state.StructuredResponse.ResponseType == workflow.KindDataQuery {
		if q, ok := state.StructuredResponse.DataSummary["query_executed"].(string); ok && q != "" {
			summary.TechnicalContext.SuccessfulQueries = append(summary.TechnicalContext.SuccessfulQueries, q)
		}
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
