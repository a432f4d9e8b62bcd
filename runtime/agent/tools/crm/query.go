package crm

import "context"

type (
	// QueryPayload is the execute_soql_query tool payload.
	QueryPayload struct {
		Query        string `json:"query"`
		ConnectionID string `json:"connection_uuid"`
	}

	// QueryToolResult is the execute_soql_query tool result. Records is the
	// full record set as returned by the CRM; the executor is responsible
	// for deciding how much of Records to keep in the model-facing transcript
	// versus the full client-facing result (see workflow.State.ClientResults).
	// Field names match the tool's documented lite envelope
	// ({total_size, done, records_count, nextRecordsUrl}) so the executor's
	// redaction and fold steps can key off them directly.
	QueryToolResult struct {
		Records        []map[string]any `json:"records"`
		TotalSize      int              `json:"total_size"`
		Done           bool             `json:"done"`
		RecordsCount   int              `json:"records_count"`
		NextRecordsURL string           `json:"nextRecordsUrl,omitempty"`
		Error          string           `json:"error,omitempty"`
	}
)

// Query implements execute_soql_query: a direct pass-through to the CRM
// client with no caching, since query results are not metadata and have no
// stable TTL.
func Query(ctx context.Context, client Client, payload QueryPayload) (QueryToolResult, error) {
	result, err := client.Query(ctx, payload.ConnectionID, payload.Query)
	if err != nil {
		return QueryToolResult{Error: err.Error()}, nil
	}
	return QueryToolResult{
		Records:        result.Records,
		TotalSize:      result.TotalSize,
		Done:           result.Done,
		RecordsCount:   len(result.Records),
		NextRecordsURL: result.NextRecordsURL,
	}, nil
}
