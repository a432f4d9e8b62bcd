// Package checkpoint defines the durable per-conversation state store.
//
// A conversation is the first-class durable container: its checkpoint is
// loaded at the start of a turn and saved at the end, with the conversation
// id as the sole key. Unlike a general session/run store, there is no
// separate run lifecycle here — a turn either completes and is saved, or it
// fails and the previous checkpoint remains authoritative.
package checkpoint

import (
	"context"
	"errors"

	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

type (
	// Store persists the latest workflow.State for each conversation id.
	//
	// Contract:
	//   - Save is atomic with respect to conversation id: a concurrent Load
	//     observes either the pre- or post-state, never a mix.
	//   - Save always strips Messages before persisting (history lives only
	//     in State.Conversation.Summary).
	//   - A turn that fails before Save leaves the previous checkpoint,
	//     if any, as the authoritative state.
	Store interface {
		// Load returns the latest checkpoint for a conversation, or
		// ErrNotFound if none exists yet.
		Load(ctx context.Context, conversationID string) (*workflow.State, error)
		// Save durably upserts the checkpoint for a conversation.
		Save(ctx context.Context, conversationID string, state *workflow.State) error
		// WritesLog appends a best-effort diagnostic event. Not required for
		// correctness: implementations may no-op, and callers must not rely
		// on it for recovery.
		WritesLog(ctx context.Context, conversationID string, event WriteEvent) error
	}

	// WriteEvent is one append-only diagnostic entry describing a checkpoint
	// write attempt, useful for debugging turn-by-turn history.
	WriteEvent struct {
		Node   string
		Status string
		Detail string
	}
)

// ErrNotFound indicates no checkpoint exists yet for a conversation id.
var ErrNotFound = errors.New("checkpoint: conversation not found")
