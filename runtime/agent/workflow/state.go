// Package workflow defines the canonical per-turn state container for the
// CRM agent and the message/response shapes that flow through it.
package workflow

import "time"

type (
	// State is the canonical turn container. It is serialized whole by the
	// checkpointer and carries everything the ReAct executor needs for one
	// turn plus the compact cross-turn memory in Conversation.
	State struct {
		Meta         Meta
		Request      Request
		Messages     []Message
		RemainingSteps int
		Conversation Conversation
		Response     Response
		// ClientResults holds untruncated tool results retained for the
		// client this turn. Never sent back to the LLM. Append-only.
		ClientResults []ToolResult
		// StructuredResponse is populated only at the end of a turn once the
		// final AI message has been parsed successfully.
		StructuredResponse *StructuredResponse
	}

	// Meta carries identity, status, and per-turn configuration caps.
	Meta struct {
		WorkflowID           string
		Version              string
		ConversationID       string
		StartedAt            time.Time
		CurrentNode          string
		Status               Status
		Locale               string
		ConnectionID         string
		ConfidenceThreshold  float64
		// Metadata carries free-form operational fields, including
		// "prompt_preset" recording which system-prompt template built this turn.
		Metadata map[string]string
	}

	// Request is the user's input for the turn.
	Request struct {
		UserInput string
	}

	// Conversation is the only carrier of inter-turn memory. It is rebuilt
	// from the prior turn's StructuredResponse and never holds raw messages.
	Conversation struct {
		Summary *Summary
	}

	// Response is the final, user-facing outcome of the turn.
	Response struct {
		Type    ResponseType
		Content string
		Error   *ResponseError
	}

	// ResponseError captures a failure surfaced on Response.
	ResponseError struct {
		Reason  string
		Detail  string
	}

	// Status is the lifecycle state of a turn.
	Status string

	// ResponseType classifies the final Response.
	ResponseType string
)

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"

	ResponseSuccess       ResponseType = "success"
	ResponseError_        ResponseType = "error"
	ResponseClarification ResponseType = "clarification"
	ResponsePartial       ResponseType = "partial"
)

// New creates a fresh turn state for a conversation that has no prior
// checkpoint. workflowID is caller-generated (typically a UUID-derived id).
func New(workflowID, conversationID, connectionID, locale string, confidenceThreshold float64, maxSteps int) *State {
	return &State{
		Meta: Meta{
			WorkflowID:          workflowID,
			Version:             "1.0.0",
			ConversationID:      conversationID,
			StartedAt:           time.Now().UTC(),
			CurrentNode:         "start",
			Status:              StatusRunning,
			Locale:              locale,
			ConnectionID:        connectionID,
			ConfidenceThreshold: confidenceThreshold,
			Metadata:            map[string]string{},
		},
		Request:       Request{},
		Messages:      []Message{},
		RemainingSteps: maxSteps,
		Conversation:  Conversation{},
		Response:      Response{},
		ClientResults: []ToolResult{},
	}
}

// ResetForTurn reuses a checkpointed state for a new turn: the conversation
// summary survives, everything turn-scoped is cleared or reseeded. This is
// the sole place turn-scoped fields are reinitialized, keeping the "messages
// starts empty every turn" invariant in one spot.
func (s *State) ResetForTurn(userInput string, maxSteps int) {
	s.Request = Request{UserInput: userInput}
	s.Messages = []Message{}
	s.ClientResults = []ToolResult{}
	s.RemainingSteps = maxSteps
	s.Response = Response{}
	s.StructuredResponse = nil
	s.Meta.Status = StatusRunning
	s.Meta.CurrentNode = "start"
}

// ForCheckpoint returns a shallow copy with Messages cleared, per the
// checkpointer invariant that history lives only in Conversation.Summary.
func (s *State) ForCheckpoint() *State {
	cp := *s
	cp.Messages = nil
	return &cp
}
