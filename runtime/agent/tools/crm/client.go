// Package crm implements the fixed five-tool CRM registry: search, describe,
// relationships, field details, and SOQL query, each backed by the metadata
// cache and a CRM client boundary that the HTTP adapter satisfies.
package crm

import (
	"context"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

// Client is the boundary the registry calls to reach the underlying CRM.
// Tools never talk to the CRM directly; every object-describe and query call
// passes through this interface so the registry can cache and the orchestrator
// can swap vendors without touching tool logic.
type Client interface {
	// ListObjects returns every SObject the connection can see (a
	// describeGlobal-equivalent call).
	ListObjects(ctx context.Context, connectionID string) ([]cache.ObjectSummary, error)
	// DescribeObject returns one object's field and relationship metadata.
	DescribeObject(ctx context.Context, connectionID, objectName string) (DescribeResult, error)
	// Query executes a SOQL statement and returns the raw record set.
	Query(ctx context.Context, connectionID, soql string) (QueryResult, error)
}

// DescribeResult is the raw shape a CRM describe call returns, before the
// cache or tool-layer trims fields down for a particular response.
type DescribeResult struct {
	Label              string
	Fields             []cache.FieldMetadata
	ChildRelationships []cache.RelationshipMetadata
}

// QueryResult is the raw shape a SOQL execution returns.
type QueryResult struct {
	Records      []map[string]any
	TotalSize    int
	Done         bool
	NextRecordsURL string
}
