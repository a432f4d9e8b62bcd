package tools

// runtime_internal.go defines canonical tool identifiers reserved for the
// executor itself.
//
// Contract:
// - These identifiers are stable and may appear in transcripts sent back to
//   the checkpoint store.
// - They are always safe to advertise to models because their semantics are
//   runtime-owned (no external side effects).

// ToolUnavailable represents a model tool call whose requested tool name is
// not one of the five registered CRM tools. The CRM registry's Dispatch
// reports such a call with an error result prefixed by this identifier, and
// the Anthropic adapter re-encodes a tool_use naming an unknown tool under
// this identifier when the request's tool configuration includes it.
const ToolUnavailable = "tool_unavailable"
