package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/datapilot-ai/agentcore/runtime/agent/tools"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

// structuredResponseSchema is the JSON Schema a candidate Structured Response
// must validate against. response_type is restricted to the five literals
// the executor understands; confidence is nullable; data_summary must be an
// object (its per-kind shape is the model's responsibility, not ours).
var structuredResponseSchema = []byte(`{
	"type": "object",
	"required": ["response_type", "intent_understood", "data_summary"],
	"properties": {
		"response_type": {
			"type": "string",
			"enum": ["metadata_query", "data_query", "relationship_query", "field_details_query", "clarification_needed"]
		},
		"confidence": {"type": ["number", "null"]},
		"confidence_label": {"type": "string"},
		"intent_understood": {"type": "string"},
		"actions_taken": {"type": ["array", "null"], "items": {"type": "string"}},
		"data_summary": {"type": "object"},
		"suggestions": {"type": ["array", "null"], "items": {"type": "string"}}
	}
}`)

var (
	compileOnce   sync.Once
	compiledSpec  *jsonschema.Schema
	compileErr    error
)

// compiled lazily compiles structuredResponseSchema exactly once, mirroring
// the teacher's registry validation helper but amortized across calls
// instead of recompiling per candidate.
func compiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var doc any
		if err := json.Unmarshal(structuredResponseSchema, &doc); err != nil {
			compileErr = fmt.Errorf("parser: unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("structured_response.json", doc); err != nil {
			compileErr = fmt.Errorf("parser: add schema resource: %w", err)
			return
		}
		schema, err := c.Compile("structured_response.json")
		if err != nil {
			compileErr = fmt.Errorf("parser: compile schema: %w", err)
			return
		}
		compiledSpec = schema
	})
	return compiledSpec, compileErr
}

// Validate checks resp against the Structured Response schema, returning one
// tools.FieldIssue per validation failure translated from the underlying
// *jsonschema.ValidationError. An empty slice means resp is valid.
func Validate(resp *workflow.StructuredResponse) []tools.FieldIssue {
	schema, err := compiled()
	if err != nil {
		return []tools.FieldIssue{{Field: "", Constraint: "schema_compile_error"}}
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return []tools.FieldIssue{{Field: "", Constraint: "invalid_field_type"}}
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return []tools.FieldIssue{{Field: "", Constraint: "invalid_field_type"}}
	}

	if err := schema.Validate(doc); err != nil {
		return translateValidationError(err)
	}
	return nil
}

// translateValidationError flattens a *jsonschema.ValidationError tree into
// FieldIssue entries, one per leaf cause.
func translateValidationError(err error) []tools.FieldIssue {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []tools.FieldIssue{{Field: "", Constraint: "invalid_field_type"}}
	}
	var issues []tools.FieldIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			field := ""
			if len(v.InstanceLocation) > 0 {
				field = v.InstanceLocation[len(v.InstanceLocation)-1]
			}
			issues = append(issues, tools.FieldIssue{Field: field, Constraint: "invalid_field_type"})
			return
		}
		for _, cause := range v.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return issues
}
