package stream_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot-ai/agentcore/runtime/agent/stream"
)

func TestBaseImplementsEventIdentity(t *testing.T) {
	base := stream.NewBase(stream.EventContent, "run-1", "sess-1", "turn-1", 3, time.Unix(0, 0))
	ev := stream.ContentEvent{Base: base, Data: "hello"}

	assert.Equal(t, stream.EventContent, ev.Type())
	assert.Equal(t, "run-1", ev.RunID())
	assert.Equal(t, "sess-1", ev.SessionID())
	assert.Equal(t, "hello", ev.Payload())
}

func TestThinkingEventPayloadRoundTrips(t *testing.T) {
	base := stream.NewBase(stream.EventStreamUpdate, "run-1", "sess-1", "turn-1", 1, time.Now())
	ev := stream.ThinkingEvent{
		Base: base,
		Data: stream.ThinkingPayload{
			ResponseType:     "thinking",
			Confidence:       0.9,
			ConfidenceLabel:  "high",
			IntentUnderstood: "find account",
			Metadata: stream.ThinkingMeta{
				ToolName: "search_for_sobjects",
				ToolArgs: map[string]any{"search_terms": []any{"Account"}},
			},
		},
	}

	payload, ok := ev.Payload().(stream.ThinkingPayload)
	require.True(t, ok)
	assert.Equal(t, "search_for_sobjects", payload.Metadata.ToolName)
	assert.Equal(t, stream.EventStreamUpdate, ev.Type())
}

func TestStreamCompleteIsTerminalShape(t *testing.T) {
	base := stream.NewBase(stream.EventStreamComplete, "run-1", "sess-1", "", 9, time.Now())
	ev := stream.StreamCompleteEvent{
		Base: base,
		Data: stream.StreamCompletePayload{ThreadID: "thread-1", ConversationID: "conv_abc", ChunksProcessed: 9},
	}

	payload, ok := ev.Payload().(stream.StreamCompletePayload)
	require.True(t, ok)
	assert.Equal(t, 9, payload.ChunksProcessed)
	assert.Equal(t, "conv_abc", payload.ConversationID)
}

func TestErrorEventCarriesClassification(t *testing.T) {
	base := stream.NewBase(stream.EventError, "run-1", "sess-1", "turn-1", 5, time.Now())
	ev := stream.ErrorEvent{
		Base: base,
		Data: stream.ErrorPayload{Content: "tool failed", Metadata: stream.ErrorPayloadMeta{ErrorType: "tool_unavailable"}},
	}

	payload, ok := ev.Payload().(stream.ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "tool_unavailable", payload.Metadata.ErrorType)
}
