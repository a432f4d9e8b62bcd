package crm

import (
	"context"
	"encoding/json"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
	"github.com/datapilot-ai/agentcore/runtime/agent/toolerrors"
	"github.com/datapilot-ai/agentcore/runtime/agent/tools"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

// Names of the five registered CRM tools, exactly as advertised to the model.
const (
	ToolSearchForSObjects   = "search_for_sobjects"
	ToolGetSObjectMetadata  = "get_sobject_metadata"
	ToolGetSObjectRelations = "get_sobject_relationships"
	ToolGetFieldDetails     = "get_field_details"
	ToolExecuteSOQLQuery    = "execute_soql_query"
)

// Registry is the fixed, non-extensible set of CRM tools available to the
// executor. It owns no state beyond its Client and Cache dependencies; every
// call is independently cacheable and independently retryable.
type Registry struct {
	client Client
	cache  cache.Cache
}

// New builds a Registry. cacheStore may be nil, in which case every call
// bypasses the metadata cache and always reaches the CRM client.
func New(client Client, cacheStore cache.Cache) *Registry {
	return &Registry{client: client, cache: cacheStore}
}

// Specs returns the ToolSpec for all five tools, in the fixed advertised order.
func (r *Registry) Specs() []tools.ToolSpec {
	return []tools.ToolSpec{
		{
			Name:        ToolSearchForSObjects,
			Description: "Search CRM objects by name/label. Use one call for all object terms (including variants/typos). Returns a dict keyed by API name and _search_metadata.",
			Tags:        []string{"read-only"},
			Payload:     tools.TypeSpec{Name: "SearchPayload", Schema: searchPayloadSchema},
			Result:      tools.TypeSpec{Name: "SearchResult"},
		},
		{
			Name:        ToolGetSObjectMetadata,
			Description: "Describe fields for one or more objects with pagination and optional filters. Use default pagination unless the user explicitly asks for more fields.",
			Tags:        []string{"read-only"},
			Payload:     tools.TypeSpec{Name: "MetadataPayload", Schema: metadataPayloadSchema},
			Result:      tools.TypeSpec{Name: "MetadataResult"},
		},
		{
			Name:        ToolGetSObjectRelations,
			Description: "Return lookup and child relationships for one or more objects.",
			Tags:        []string{"read-only"},
			Payload:     tools.TypeSpec{Name: "RelationshipsPayload", Schema: relationshipsPayloadSchema},
			Result:      tools.TypeSpec{Name: "RelationshipsResult"},
		},
		{
			Name:        ToolGetFieldDetails,
			Description: "Return details for a specific field on an object, including type, constraints, properties, and picklist values.",
			Tags:        []string{"read-only"},
			Payload:     tools.TypeSpec{Name: "FieldDetailsPayload", Schema: fieldDetailsPayloadSchema},
			Result:      tools.TypeSpec{Name: "FieldDetailsResult"},
		},
		{
			Name:        ToolExecuteSOQLQuery,
			Description: "Execute a query. Use only after resolving objects/fields/relationships. Include a LIMIT clause.",
			Tags:        []string{"read-only"},
			Payload:     tools.TypeSpec{Name: "QueryPayload", Schema: queryPayloadSchema},
			Result:      tools.TypeSpec{Name: "QueryToolResult"},
		},
	}
}

// Dispatch decodes args for the named tool, invokes its implementation, and
// always returns a workflow.ToolResult — failures are reified, never panics
// or naked errors, so the executor's loop never needs a recover().
func (r *Registry) Dispatch(ctx context.Context, call workflow.ToolCall) workflow.ToolResult {
	raw, err := json.Marshal(call.Args)
	if err != nil {
		return errResult(toolerrors.NewWithCause("failed to encode tool arguments", err))
	}

	switch call.Name {
	case ToolSearchForSObjects:
		var payload SearchPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errResult(toolerrors.NewWithCause("invalid search_for_sobjects arguments", err))
		}
		result, err := Search(ctx, r.client, r.cache, payload)
		if err != nil {
			return errResult(toolerrors.NewWithCause("search_for_sobjects failed", err))
		}
		return okResult(result)

	case ToolGetSObjectMetadata:
		var payload MetadataPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errResult(toolerrors.NewWithCause("invalid get_sobject_metadata arguments", err))
		}
		result, err := Metadata(ctx, r.client, r.cache, payload)
		if err != nil {
			return errResult(toolerrors.NewWithCause("get_sobject_metadata failed", err))
		}
		return okResult(result)

	case ToolGetSObjectRelations:
		var payload RelationshipsPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errResult(toolerrors.NewWithCause("invalid get_sobject_relationships arguments", err))
		}
		result, err := Relationships(ctx, r.client, r.cache, payload)
		if err != nil {
			return errResult(toolerrors.NewWithCause("get_sobject_relationships failed", err))
		}
		return okResult(result)

	case ToolGetFieldDetails:
		var payload FieldDetailsPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errResult(toolerrors.NewWithCause("invalid get_field_details arguments", err))
		}
		result, err := FieldDetails(ctx, r.client, r.cache, payload)
		if err != nil {
			return errResult(toolerrors.NewWithCause("get_field_details failed", err))
		}
		if result.Error != "" {
			return errResult(toolerrors.New(result.Error))
		}
		return okResult(result)

	case ToolExecuteSOQLQuery:
		var payload QueryPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errResult(toolerrors.NewWithCause("invalid execute_soql_query arguments", err))
		}
		result, err := Query(ctx, r.client, payload)
		if err != nil {
			return errResult(toolerrors.NewWithCause("execute_soql_query failed", err))
		}
		if result.Error != "" {
			return errResult(toolerrors.New(result.Error))
		}
		value, err := toMapResult(result)
		if err != nil {
			return errResult(toolerrors.NewWithCause("failed to encode execute_soql_query result", err))
		}
		return okResult(value)

	default:
		return errResult(toolerrors.Errorf("%s: unknown tool %q", tools.ToolUnavailable, call.Name))
	}
}

func okResult(value any) workflow.ToolResult {
	return workflow.ToolResult{OK: true, Value: value}
}

// toMapResult round-trips a concrete tool result struct through JSON into a
// map[string]any, so the executor's redaction and fold steps (which key off
// plain map fields like "records" and "total_size") see the same shape
// regardless of which concrete Go type produced the result.
func toMapResult(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func errResult(err *toolerrors.ToolError) workflow.ToolResult {
	return workflow.ToolResult{OK: false, Error: err.Error()}
}

var (
	searchPayloadSchema = []byte(`{
		"type": "object",
		"required": ["search_terms", "connection_uuid"],
		"properties": {
			"search_terms": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"connection_uuid": {"type": "string", "minLength": 1}
		}
	}`)

	metadataPayloadSchema = []byte(`{
		"type": "object",
		"required": ["object_names", "connection_uuid"],
		"properties": {
			"object_names": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"connection_uuid": {"type": "string", "minLength": 1},
			"include_picklist_values": {"type": "boolean"},
			"include_calculated_fields": {"type": "boolean"},
			"include_field_properties": {"type": "boolean"},
			"field_offset": {"type": "integer", "minimum": 0},
			"field_limit": {"type": "integer", "minimum": 1, "maximum": 100},
			"filter_unique": {"type": "boolean"},
			"filter_nillable": {"type": "boolean"},
			"filter_updateable": {"type": "boolean"},
			"filter_required": {"type": "boolean"}
		}
	}`)

	relationshipsPayloadSchema = []byte(`{
		"type": "object",
		"required": ["object_names", "connection_uuid"],
		"properties": {
			"object_names": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"connection_uuid": {"type": "string", "minLength": 1},
			"filter_relationships": {"type": "boolean"}
		}
	}`)

	fieldDetailsPayloadSchema = []byte(`{
		"type": "object",
		"required": ["object_name", "field_name", "connection_uuid"],
		"properties": {
			"object_name": {"type": "string", "minLength": 1},
			"field_name": {"type": "string", "minLength": 1},
			"connection_uuid": {"type": "string", "minLength": 1}
		}
	}`)

	queryPayloadSchema = []byte(`{
		"type": "object",
		"required": ["query", "connection_uuid"],
		"properties": {
			"query": {"type": "string", "minLength": 1},
			"connection_uuid": {"type": "string", "minLength": 1}
		}
	}`)
)
