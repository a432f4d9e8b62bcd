// Package tools defines the descriptor types the CRM tool registry
// (runtime/agent/tools/crm) uses to advertise its five tools: a ToolSpec
// carries a name, a description and TypeSpecs for the payload and result,
// with a JSON schema set for payloads only. It also holds FieldIssue and the
// reserved ToolUnavailable identifier.
package tools

// JSONCodec serializes and deserializes strongly typed values to and from JSON.
type JSONCodec[T any] struct {
	// ToJSON encodes the value into canonical JSON.
	ToJSON func(T) ([]byte, error)
	// FromJSON decodes the JSON payload into the typed value.
	FromJSON func([]byte) (T, error)
}

// TypeSpec describes the payload or result schema for a tool.
type TypeSpec struct {
	// Name is the Go identifier associated with the type.
	Name string
	// Schema contains the JSON schema definition the payload or result must validate against.
	Schema []byte
	// Codec serializes and deserializes values matching the type.
	Codec JSONCodec[any]
}

// ToolSpec enumerates the metadata and JSON codecs for one of the five
// registered CRM tools.
type ToolSpec struct {
	// Name is the tool identifier as it appears in a model tool call
	// (e.g. "search_for_sobjects").
	Name string
	// Description provides human-readable context surfaced to the model.
	Description string
	// Tags carries optional metadata labels, e.g. read-only classification.
	Tags []string
	// Payload describes the request schema for the tool.
	Payload TypeSpec
	// Result describes the response schema for the tool.
	Result TypeSpec
}

// ID is the strong type for fully qualified tool identifiers
// (e.g., "service.toolset.tool"). Use this type when referencing
// tools in maps or APIs to avoid accidental mixing with free-form strings.
type ID string
