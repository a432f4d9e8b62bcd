// Package stream defines the runtime event vocabulary emitted by the ReAct
// executor and consumed by streaming transports (see features/stream/pulse).
// Events are small, JSON-friendly structs carried behind a single Event
// interface so sinks can switch on Type without type-asserting every kind.
package stream

import (
	"context"
	"time"
)

// EventType identifies one of the fixed event kinds the executor emits.
type EventType string

const (
	// EventStreamUpdate carries a thinking, structured, or text update. Its
	// UpdateType field disambiguates the three.
	EventStreamUpdate EventType = "stream_update"
	// EventContent carries a raw chunk that doesn't fit the structured kinds.
	EventContent EventType = "content"
	// EventError reports an executor error surfaced mid-stream.
	EventError EventType = "error"
	// EventErrorMessage reports a classified external error (LLM provider,
	// budget) with a human-friendly template, typically emitted before or
	// after the loop rather than mid-turn.
	EventErrorMessage EventType = "error_message"
	// EventStreamComplete is always the last event emitted for a turn,
	// absent an EventError.
	EventStreamComplete EventType = "stream_complete"
)

// UpdateType disambiguates the three EventStreamUpdate payloads.
type UpdateType string

const (
	UpdateThinking   UpdateType = "thinking"
	UpdateStructured UpdateType = "structured"
	UpdateText       UpdateType = "text"
)

// Event is the interface every emitted value satisfies. Sinks type-switch on
// the concrete type when they need the full payload; Base alone is enough
// for routing and logging.
type Event interface {
	Type() EventType
	RunID() string
	SessionID() string
	Payload() any
}

// Base is the common envelope embedded by every concrete event. It carries
// enough identity to route, order, and log an event without inspecting its
// payload.
type Base struct {
	Kind      EventType `json:"kind"`
	Run       string    `json:"run_id"`
	Session   string    `json:"session_id"`
	Turn      string    `json:"turn_id,omitempty"`
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBase stamps a Base envelope for the given kind. Seq is assigned by the
// caller (the executor keeps a per-turn counter) so ordering survives
// transport hops.
func NewBase(kind EventType, runID, sessionID, turnID string, seq int, ts time.Time) Base {
	return Base{Kind: kind, Run: runID, Session: sessionID, Turn: turnID, Seq: seq, Timestamp: ts}
}

func (b Base) Type() EventType   { return b.Kind }
func (b Base) RunID() string     { return b.Run }
func (b Base) SessionID() string { return b.Session }

// ThinkingPayload backs a stream_update/thinking event: one per tool call the
// model proposes, before the tool has been dispatched.
type ThinkingPayload struct {
	ResponseType     string         `json:"response_type"`
	Confidence       float64        `json:"confidence"`
	ConfidenceLabel  string         `json:"confidence_label"`
	IntentUnderstood string         `json:"intent_understood"`
	ActionsTaken     []string       `json:"actions_taken"`
	DataSummary      map[string]any `json:"data_summary"`
	Suggestions      []string       `json:"suggestions"`
	Metadata         ThinkingMeta   `json:"metadata"`
}

// ThinkingMeta names the tool the model decided to call and the arguments it
// proposed.
type ThinkingMeta struct {
	ToolName string         `json:"tool_name"`
	ToolArgs map[string]any `json:"tool_args"`
}

// ThinkingEvent is emitted once per proposed tool call.
type ThinkingEvent struct {
	Base
	Data ThinkingPayload `json:"payload"`
}

func (e ThinkingEvent) Payload() any { return e.Data }

// StructuredEvent carries a mid-loop or final AI reply whose body parsed as a
// Structured Response. Data is the already-decoded response object (see
// runtime/agent/parser), so sinks never re-parse it.
type StructuredEvent struct {
	Base
	Data any `json:"payload"`
}

func (e StructuredEvent) Payload() any { return e.Data }

// TextEvent carries an AI reply that is plain text, not a Structured Response
// and not bare tool-result chatter.
type TextEvent struct {
	Base
	Text string `json:"text"`
}

func (e TextEvent) Payload() any { return e.Text }

// ContentEvent carries a raw chunk that doesn't fit any of the three
// stream_update shapes.
type ContentEvent struct {
	Base
	Data string `json:"content"`
}

func (e ContentEvent) Payload() any { return e.Data }

// ErrorPayload backs an `error` event: an executor error surfaced mid-turn.
type ErrorPayload struct {
	Content  string           `json:"content"`
	Metadata ErrorPayloadMeta `json:"metadata"`
}

// ErrorPayloadMeta classifies the error for client-side handling.
type ErrorPayloadMeta struct {
	ErrorType string `json:"error_type"`
}

// ErrorEvent is emitted when the executor itself fails mid-stream. No
// StreamCompleteEvent follows it.
type ErrorEvent struct {
	Base
	Data ErrorPayload `json:"payload"`
}

func (e ErrorEvent) Payload() any { return e.Data }

// ErrorMessageEvent reports a classified external error (invalid API key,
// rate limit, quota, budget exhaustion) with a human-friendly message,
// typically before or after the ReAct loop runs rather than mid-turn.
type ErrorMessageEvent struct {
	Base
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
}

func (e ErrorMessageEvent) Payload() any { return e.Message }

// StreamCompletePayload closes out a turn's event stream.
type StreamCompletePayload struct {
	ThreadID        string `json:"thread_id"`
	ConversationID  string `json:"conversation_id"`
	ChunksProcessed int    `json:"chunks_processed"`
}

// StreamCompleteEvent is always the last event of a turn absent an
// ErrorEvent.
type StreamCompleteEvent struct {
	Base
	Data StreamCompletePayload `json:"payload"`
}

func (e StreamCompleteEvent) Payload() any { return e.Data }

// Sink receives events emitted by the executor, in order, for a single turn.
// Implementations must apply back-pressure rather than silently drop events
// (see features/stream/pulse for the Redis-backed production sink).
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close(ctx context.Context) error
}
