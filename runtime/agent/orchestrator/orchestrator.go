// Package orchestrator exposes the two public entry points of the agent
// server: Invoke for a single final reply, InvokeStream for an incremental
// event stream. Both load prior state, run the ReAct executor for one turn,
// and persist the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/datapilot-ai/agentcore/runtime/agent/checkpoint"
	"github.com/datapilot-ai/agentcore/runtime/agent/executor"
	"github.com/datapilot-ai/agentcore/runtime/agent/stream"
	"github.com/datapilot-ai/agentcore/runtime/agent/telemetry"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

// Orchestrator wires the checkpointer and executor together behind Invoke and
// InvokeStream. It holds its dependencies as explicit fields; there is no
// package-level singleton state.
type Orchestrator struct {
	Checkpoints checkpoint.Store
	Executor    *executor.Executor
	Logger      telemetry.Logger

	// MaxSteps and ConfidenceThreshold seed a fresh turn when no checkpoint
	// exists yet for a conversation.
	MaxSteps            int
	ConfidenceThreshold float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs an Orchestrator. logger may be nil.
func New(checkpoints checkpoint.Store, exec *executor.Executor, maxSteps int, confidenceThreshold float64, logger telemetry.Logger) *Orchestrator {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Orchestrator{
		Checkpoints:         checkpoints,
		Executor:            exec,
		Logger:              logger,
		MaxSteps:            maxSteps,
		ConfidenceThreshold: confidenceThreshold,
		locks:               map[string]*sync.Mutex{},
	}
}

// lockFor returns the per-conversation mutex used to serialize durable writes
// for conversationID, creating it on first use.
func (o *Orchestrator) lockFor(conversationID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[conversationID] = l
	}
	return l
}

// Result is the outcome of one Invoke call.
type Result struct {
	FinalText          string
	StructuredResponse *workflow.StructuredResponse
	State              *workflow.State
}

// Invoke runs one turn to completion and returns the final reply.
// conversationID may be empty or newThread may be true to start a fresh
// conversation, in which case a new id of the form "conv_<uuid>" is allocated.
func (o *Orchestrator) Invoke(ctx context.Context, userInput, connectionID, conversationID string, newThread bool) (*Result, error) {
	state, conversationID, err := o.loadOrSeed(ctx, userInput, connectionID, conversationID, newThread)
	if err != nil {
		return nil, err
	}

	lock := o.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	runErr := o.Executor.Run(ctx, state, nil)
	o.persist(ctx, state, runErr)

	return &Result{
		FinalText:          state.Response.Content,
		StructuredResponse: state.StructuredResponse,
		State:              state,
	}, runErr
}

// InvokeStream runs one turn to completion, emitting executor events to sink
// as they occur, and returns the final state once the turn ends.
func (o *Orchestrator) InvokeStream(ctx context.Context, userInput, connectionID, conversationID string, newThread bool, sink stream.Sink) (*workflow.State, error) {
	state, conversationID, err := o.loadOrSeed(ctx, userInput, connectionID, conversationID, newThread)
	if err != nil {
		return nil, err
	}

	lock := o.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	runErr := o.Executor.Run(ctx, state, sink)
	o.persist(ctx, state, runErr)

	return state, runErr
}

// loadOrSeed resolves the conversation id, loads its checkpoint if one
// exists, and resets or seeds turn-scoped fields for the new user input.
func (o *Orchestrator) loadOrSeed(ctx context.Context, userInput, connectionID, conversationID string, newThread bool) (*workflow.State, string, error) {
	if conversationID == "" || newThread {
		conversationID = fmt.Sprintf("conv_%s", uuid.NewString())
	}

	state, err := o.Checkpoints.Load(ctx, conversationID)
	switch {
	case err == nil:
		state.ResetForTurn(userInput, o.MaxSteps)
		state.Meta.ConnectionID = connectionID
	case errors.Is(err, checkpoint.ErrNotFound):
		state = workflow.New(conversationID, conversationID, connectionID, "en-US", o.ConfidenceThreshold, o.MaxSteps)
		state.Request.UserInput = userInput
	default:
		return nil, conversationID, fmt.Errorf("orchestrator: load checkpoint: %w", err)
	}
	return state, conversationID, nil
}

// persist saves the turn's final state unless the turn was cancelled, per
// the rule that a cancelled turn must not write a checkpoint that could
// confuse the next turn.
func (o *Orchestrator) persist(ctx context.Context, state *workflow.State, runErr error) {
	if state.Meta.Status == workflow.StatusCancelled {
		return
	}
	if err := o.Checkpoints.Save(ctx, state.Meta.ConversationID, state.ForCheckpoint()); err != nil {
		o.Logger.Error(ctx, "failed to save checkpoint", "conversation_id", state.Meta.ConversationID, "error", err.Error())
	}
	detail := ""
	if runErr != nil {
		detail = runErr.Error()
	}
	_ = o.Checkpoints.WritesLog(ctx, state.Meta.ConversationID, checkpoint.WriteEvent{
		Node:   state.Meta.CurrentNode,
		Status: string(state.Meta.Status),
		Detail: detail,
	})
}
