package crm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
	"github.com/datapilot-ai/agentcore/runtime/agent/cache/inmem"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

// fakeClient is a hand-rolled Client stub driven entirely by fixtures, no
// network calls.
type fakeClient struct {
	objects   []cache.ObjectSummary
	describes map[string]DescribeResult
	queryErr  error
	queryRes  QueryResult
	listCalls int
}

func (f *fakeClient) ListObjects(context.Context, string) ([]cache.ObjectSummary, error) {
	f.listCalls++
	return f.objects, nil
}

func (f *fakeClient) DescribeObject(_ context.Context, _, objectName string) (DescribeResult, error) {
	d, ok := f.describes[objectName]
	if !ok {
		return DescribeResult{}, assert.AnError
	}
	return d, nil
}

func (f *fakeClient) Query(context.Context, string, string) (QueryResult, error) {
	if f.queryErr != nil {
		return QueryResult{}, f.queryErr
	}
	return f.queryRes, nil
}

func contactDescribe() DescribeResult {
	return DescribeResult{
		Label: "Contact",
		Fields: []cache.FieldMetadata{
			{Name: "Email", Label: "Email", Type: "email", Nillable: true},
			{Name: "AccountId", Label: "Account ID", Type: "reference", ReferenceTo: []string{"Account"}, Nillable: true},
			{Name: "LastName", Label: "Last Name", Type: "string", Nillable: false, Unique: false},
		},
		ChildRelationships: []cache.RelationshipMetadata{
			{ChildObject: "Case", Field: "ContactId", RelationshipName: "Cases"},
		},
	}
}

func accountDescribe() DescribeResult {
	return DescribeResult{
		Label: "Account",
		Fields: []cache.FieldMetadata{
			{Name: "Name", Label: "Account Name", Type: "string", Nillable: false},
		},
		ChildRelationships: []cache.RelationshipMetadata{
			{ChildObject: "Contact", Field: "AccountId", RelationshipName: "Contacts"},
			{ChildObject: "Opportunity", Field: "AccountId", RelationshipName: "Opportunities"},
		},
	}
}

func TestSearchMergesCaseInsensitiveMatches(t *testing.T) {
	client := &fakeClient{objects: []cache.ObjectSummary{
		{Name: "Contact", Label: "Contact"},
		{Name: "ContactRequest", Label: "Contact Request"},
		{Name: "Account", Label: "Account"},
	}}
	store := inmem.New()

	result, err := Search(context.Background(), client, store, SearchPayload{
		SearchTerms:  []string{"contact"},
		ConnectionID: "conn-1",
	})
	require.NoError(t, err)
	assert.Len(t, result.Objects, 2)
	assert.Equal(t, 2, result.Metadata.TotalObjectsFound)

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "_search_metadata")
	assert.Contains(t, decoded, "Contact")
	assert.Contains(t, decoded, "ContactRequest")
}

func TestSearchUsesCacheOnSecondCall(t *testing.T) {
	client := &fakeClient{objects: []cache.ObjectSummary{{Name: "Account", Label: "Account"}}}
	store := inmem.New()

	_, err := Search(context.Background(), client, store, SearchPayload{SearchTerms: []string{"acc"}, ConnectionID: "conn-1"})
	require.NoError(t, err)
	_, err = Search(context.Background(), client, store, SearchPayload{SearchTerms: []string{"acc"}, ConnectionID: "conn-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.listCalls)
}

func TestMetadataAppliesFieldPaginationAndFilters(t *testing.T) {
	client := &fakeClient{describes: map[string]DescribeResult{"Contact": contactDescribe()}}
	store := inmem.New()

	result, err := Metadata(context.Background(), client, store, MetadataPayload{
		ObjectNames:  []string{"Contact"},
		ConnectionID: "conn-1",
		FieldLimit:   2,
	})
	require.NoError(t, err)
	entry := result["Contact"]
	assert.Equal(t, 3, entry.TotalFields)
	assert.Len(t, entry.Fields, 2)
	assert.True(t, entry.FieldPagination.HasMoreFields)
	require.NotNil(t, entry.FieldPagination.NextFieldOffset)
	assert.Equal(t, 2, *entry.FieldPagination.NextFieldOffset)
	// sorted case-insensitively: AccountId, Email, LastName
	assert.Equal(t, "AccountId", entry.Fields[0].Name)
	assert.Equal(t, "Email", entry.Fields[1].Name)

	filtered, err := Metadata(context.Background(), client, store, MetadataPayload{
		ObjectNames:    []string{"Contact"},
		ConnectionID:   "conn-1",
		FilterRequired: true,
		FieldLimit:     10,
	})
	require.NoError(t, err)
	assert.Len(t, filtered["Contact"].Fields, 1)
	assert.Equal(t, "LastName", filtered["Contact"].Fields[0].Name)
}

func TestMetadataCapturesPerObjectErrorsWithoutFailingCall(t *testing.T) {
	client := &fakeClient{describes: map[string]DescribeResult{"Contact": contactDescribe()}}
	store := inmem.New()

	result, err := Metadata(context.Background(), client, store, MetadataPayload{
		ObjectNames:  []string{"Contact", "Bogus"},
		ConnectionID: "conn-1",
	})
	require.NoError(t, err)
	assert.Empty(t, result["Contact"].Error)
	assert.NotEmpty(t, result["Bogus"].Error)
}

func TestRelationshipsFiltersToConnectingObjectsWhenRequested(t *testing.T) {
	client := &fakeClient{describes: map[string]DescribeResult{
		"Account": accountDescribe(),
		"Contact": contactDescribe(),
	}}
	store := inmem.New()

	result, err := Relationships(context.Background(), client, store, RelationshipsPayload{
		ObjectNames:         []string{"Account", "Contact"},
		ConnectionID:        "conn-1",
		FilterRelationships: true,
	})
	require.NoError(t, err)

	account := result["Account"]
	// Opportunities does not connect to Contact, should be filtered out.
	assert.Len(t, account.ChildRelationships, 1)
	assert.Equal(t, "Contact", account.ChildRelationships[0].ChildObjectName)

	contact := result["Contact"]
	assert.Len(t, contact.LookupRelationships, 1)
	assert.Equal(t, "AccountId", contact.LookupRelationships[0].FieldName)
}

func TestFieldDetailsReturnsNotFoundForMissingField(t *testing.T) {
	client := &fakeClient{describes: map[string]DescribeResult{"Contact": contactDescribe()}}
	store := inmem.New()

	result, err := FieldDetails(context.Background(), client, store, FieldDetailsPayload{
		ObjectName:   "Contact",
		FieldName:    "NoSuchField",
		ConnectionID: "conn-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Error)
}

func TestFieldDetailsIncludesPicklistAndPropertiesAlways(t *testing.T) {
	client := &fakeClient{describes: map[string]DescribeResult{"Contact": contactDescribe()}}
	store := inmem.New()

	result, err := FieldDetails(context.Background(), client, store, FieldDetailsPayload{
		ObjectName:   "Contact",
		FieldName:    "LastName",
		ConnectionID: "conn-1",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Error)
	assert.True(t, result.Required)
}

func TestQueryPassesThroughErrorsAsInlineField(t *testing.T) {
	client := &fakeClient{queryErr: assert.AnError}
	result, err := Query(context.Background(), client, QueryPayload{Query: "SELECT Id FROM Contact", ConnectionID: "conn-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Error)
}

func TestRegistryDispatchRoutesToSearch(t *testing.T) {
	client := &fakeClient{objects: []cache.ObjectSummary{{Name: "Account", Label: "Account"}}}
	reg := New(client, inmem.New())

	call := workflow.ToolCall{
		ID:   "call-1",
		Name: ToolSearchForSObjects,
		Args: map[string]any{"search_terms": []any{"acc"}, "connection_uuid": "conn-1"},
	}
	res := reg.Dispatch(context.Background(), call)
	assert.True(t, res.OK)
	assert.Empty(t, res.Error)
}

func TestRegistryDispatchExecuteSOQLQueryReturnsMapShapedResult(t *testing.T) {
	client := &fakeClient{queryRes: QueryResult{
		Records:        []map[string]any{{"Id": "1"}, {"Id": "2"}},
		TotalSize:      2,
		Done:           true,
		NextRecordsURL: "",
	}}
	reg := New(client, inmem.New())

	call := workflow.ToolCall{
		ID:   "call-3",
		Name: ToolExecuteSOQLQuery,
		Args: map[string]any{"query": "SELECT Id FROM Contact LIMIT 5", "connection_uuid": "conn-1"},
	}
	res := reg.Dispatch(context.Background(), call)
	require.True(t, res.OK)

	value, ok := res.Value.(map[string]any)
	require.True(t, ok, "expected Dispatch's execute_soql_query result to be a map[string]any, got %T", res.Value)
	assert.Equal(t, float64(2), value["total_size"])
	assert.Equal(t, true, value["done"])
	assert.Equal(t, float64(2), value["records_count"])
	assert.Contains(t, value, "records")
}

func TestRegistryDispatchGetFieldDetailsReturnsErrorResultForMissingField(t *testing.T) {
	client := &fakeClient{describes: map[string]DescribeResult{"Contact": contactDescribe()}}
	reg := New(client, inmem.New())

	call := workflow.ToolCall{
		ID:   "call-4",
		Name: ToolGetFieldDetails,
		Args: map[string]any{"object_name": "Contact", "field_name": "NoSuchField", "connection_uuid": "conn-1"},
	}
	res := reg.Dispatch(context.Background(), call)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "not found")
}

func TestRegistryDispatchReturnsErrorForUnknownToolName(t *testing.T) {
	reg := New(&fakeClient{}, inmem.New())
	res := reg.Dispatch(context.Background(), workflow.ToolCall{ID: "call-2", Name: "not_a_real_tool"})
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}

func TestRegistrySpecsAdvertisesAllFiveTools(t *testing.T) {
	reg := New(&fakeClient{}, inmem.New())
	specs := reg.Specs()
	require.Len(t, specs, 5)
	names := make(map[string]bool, len(specs))
	for _, s := range specs {
		names[s.Name] = true
	}
	for _, want := range []string{
		ToolSearchForSObjects, ToolGetSObjectMetadata, ToolGetSObjectRelations,
		ToolGetFieldDetails, ToolExecuteSOQLQuery,
	} {
		assert.True(t, names[want], "missing tool spec for %s", want)
	}
}
