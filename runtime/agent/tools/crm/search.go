package crm

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

// searchPageSize is the hard cap on objects returned per search_for_sobjects
// call, independent of how many terms were searched.
const searchPageSize = 200

type (
	// SearchPayload is the search_for_sobjects tool payload.
	SearchPayload struct {
		SearchTerms  []string `json:"search_terms"`
		ConnectionID string   `json:"connection_uuid"`
	}

	// ObjectBrief is the compact object shape search_for_sobjects returns,
	// deliberately stripped down to name and label to keep the result small.
	ObjectBrief struct {
		Name  string `json:"name"`
		Label string `json:"label"`
	}

	// SearchPagination describes how a merged, deduplicated result set was
	// truncated to searchPageSize.
	SearchPagination struct {
		TotalCount int  `json:"total_count"`
		Offset     int  `json:"offset"`
		Limit      int  `json:"limit"`
		HasMore    bool `json:"has_more"`
		NextOffset *int `json:"next_offset"`
	}

	// SearchMetadata accompanies a SearchResult under the "_search_metadata" key.
	SearchMetadata struct {
		SearchTermsUsed   []string         `json:"search_terms_used"`
		TotalObjectsFound int              `json:"total_objects_found"`
		ObjectsReturned   int              `json:"objects_returned"`
		Pagination        SearchPagination `json:"pagination"`
	}

	// SearchResult is the search_for_sobjects tool result: a flat JSON object
	// keyed by API name, plus a reserved "_search_metadata" key. This mirrors
	// the wire shape the model already expects from earlier turns, so it is
	// preserved here rather than reshaped into a nested Go-idiomatic envelope.
	SearchResult struct {
		Objects  map[string]ObjectBrief
		Metadata SearchMetadata
	}
)

// MarshalJSON flattens Objects and Metadata into one JSON object.
func (r SearchResult) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Objects)+1)
	for name, obj := range r.Objects {
		m[name] = obj
	}
	m["_search_metadata"] = r.Metadata
	return json.Marshal(m)
}

// Search implements search_for_sobjects: one lookup across every search term,
// merged by API name, sorted exact-match-first then alphabetically, and
// capped at searchPageSize.
func Search(ctx context.Context, client Client, store cache.Cache, payload SearchPayload) (SearchResult, error) {
	objects, err := listObjects(ctx, client, store, payload.ConnectionID)
	if err != nil {
		return SearchResult{}, err
	}

	matched := make(map[string]cache.ObjectSummary)
	for _, term := range payload.SearchTerms {
		termLower := strings.ToLower(term)
		for _, obj := range objects {
			if strings.Contains(strings.ToLower(obj.Name), termLower) ||
				strings.Contains(strings.ToLower(obj.Label), termLower) {
				matched[obj.Name] = obj
			}
		}
	}

	names := make([]string, 0, len(matched))
	for name := range matched {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		iExact, jExact := isExactMatch(names[i], payload.SearchTerms), isExactMatch(names[j], payload.SearchTerms)
		if iExact != jExact {
			return iExact
		}
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	total := len(names)
	end := total
	if end > searchPageSize {
		end = searchPageSize
	}
	page := names[:end]

	result := SearchResult{Objects: make(map[string]ObjectBrief, len(page))}
	for _, name := range page {
		obj := matched[name]
		result.Objects[name] = ObjectBrief{Name: obj.Name, Label: obj.Label}
	}

	pagination := SearchPagination{
		TotalCount: total,
		Offset:     0,
		Limit:      searchPageSize,
		HasMore:    end < total,
	}
	if pagination.HasMore {
		next := end
		pagination.NextOffset = &next
	}
	result.Metadata = SearchMetadata{
		SearchTermsUsed:   payload.SearchTerms,
		TotalObjectsFound: total,
		ObjectsReturned:   len(page),
		Pagination:        pagination,
	}
	return result, nil
}

func isExactMatch(name string, terms []string) bool {
	nameLower := strings.ToLower(name)
	for _, term := range terms {
		if nameLower == strings.ToLower(term) {
			return true
		}
	}
	return false
}

// listObjects returns the connection's object list, serving from cache when
// fresh and refreshing from the CRM client on a miss.
func listObjects(ctx context.Context, client Client, store cache.Cache, connectionID string) ([]cache.ObjectSummary, error) {
	if store != nil {
		if entry, ok, err := store.GetObjectList(ctx, connectionID); err == nil && ok {
			return entry.Objects, nil
		} else if err != nil {
			return nil, err
		}
	}
	objects, err := client.ListObjects(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if store != nil {
		now := time.Now().UTC()
		_ = store.PutObjectList(ctx, cache.ObjectListEntry{
			ConnectionID: connectionID,
			Objects:      objects,
			CachedAt:     now,
			ExpiresAt:    now.Add(cache.DefaultObjectListTTL),
		})
	}
	return objects, nil
}
