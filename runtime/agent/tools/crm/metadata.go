package crm

import (
	"context"
	"sort"
	"strings"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

const (
	defaultFieldOffset = 0
	defaultFieldLimit  = 20
	maxFieldLimit      = 100
)

type (
	// MetadataPayload is the get_sobject_metadata tool payload.
	MetadataPayload struct {
		ObjectNames             []string `json:"object_names"`
		ConnectionID            string   `json:"connection_uuid"`
		IncludePicklistValues   bool     `json:"include_picklist_values"`
		IncludeCalculatedFields bool     `json:"include_calculated_fields"`
		IncludeFieldProperties  bool     `json:"include_field_properties"`
		FieldOffset             int      `json:"field_offset"`
		FieldLimit              int      `json:"field_limit"`
		FilterUnique            bool     `json:"filter_unique"`
		FilterNillable          bool     `json:"filter_nillable"`
		FilterUpdateable        bool     `json:"filter_updateable"`
		FilterRequired          bool     `json:"filter_required"`
	}

	// FieldPagination describes how a single object's field list was windowed.
	FieldPagination struct {
		TotalFieldCount int  `json:"total_field_count"`
		FieldOffset     int  `json:"field_offset"`
		FieldLimit      int  `json:"field_limit"`
		HasMoreFields   bool `json:"has_more_fields"`
		NextFieldOffset *int `json:"next_field_offset"`
	}

	// FieldSummary is the presentation shape of one field in a metadata
	// response; optional keys are only populated when requested.
	FieldSummary struct {
		Name         string                `json:"name"`
		Label        string                `json:"label"`
		Type         string                `json:"type"`
		Required     bool                  `json:"required"`
		Picklist     []cache.PicklistValue `json:"picklistValues,omitempty"`
		Calculated   *bool                 `json:"calculated,omitempty"`
		Formula      string                `json:"formula,omitempty"`
		Createable   *bool                 `json:"createable,omitempty"`
		Updateable   *bool                 `json:"updateable,omitempty"`
		Nillable     *bool                 `json:"nillable,omitempty"`
		Unique       *bool                 `json:"unique,omitempty"`
	}

	// ObjectMetadataSummary is one object's entry in a MetadataResult.
	ObjectMetadataSummary struct {
		ObjectName      string          `json:"object_name"`
		Label           string          `json:"label"`
		TotalFields     int             `json:"total_fields"`
		Fields          []FieldSummary  `json:"fields"`
		FieldPagination FieldPagination `json:"field_pagination"`
		Error           string          `json:"error,omitempty"`
	}

	// MetadataResult is the get_sobject_metadata tool result, keyed by object name.
	MetadataResult map[string]ObjectMetadataSummary
)

// Metadata implements get_sobject_metadata: per-object describe, sorted and
// filtered fields, then a field window applied independently for each object.
func Metadata(ctx context.Context, client Client, store cache.Cache, payload MetadataPayload) (MetadataResult, error) {
	offset := payload.FieldOffset
	if offset < 0 {
		offset = defaultFieldOffset
	}
	limit := payload.FieldLimit
	if limit <= 0 {
		limit = defaultFieldLimit
	}
	if limit > maxFieldLimit {
		limit = maxFieldLimit
	}

	result := make(MetadataResult, len(payload.ObjectNames))
	for _, objectName := range payload.ObjectNames {
		entry, err := describeObject(ctx, client, store, payload.ConnectionID, objectName, false)
		if err != nil {
			result[objectName] = ObjectMetadataSummary{Error: "failed to retrieve metadata: " + err.Error()}
			continue
		}

		fields := make([]cache.FieldMetadata, len(entry.Fields))
		copy(fields, entry.Fields)
		sort.Slice(fields, func(i, j int) bool {
			return strings.ToLower(fields[i].Name) < strings.ToLower(fields[j].Name)
		})

		if payload.FilterUnique || payload.FilterNillable || payload.FilterUpdateable || payload.FilterRequired {
			fields = filterFields(fields, payload)
		}

		total := len(fields)
		end := offset + limit
		if end > total {
			end = total
		}
		start := offset
		if start > total {
			start = total
		}
		windowed := fields[start:end]

		summaries := make([]FieldSummary, len(windowed))
		for i, f := range windowed {
			summaries[i] = buildFieldSummary(f, payload)
		}

		pagination := FieldPagination{
			TotalFieldCount: total,
			FieldOffset:     offset,
			FieldLimit:      limit,
			HasMoreFields:   end < total,
		}
		if pagination.HasMoreFields {
			next := end
			pagination.NextFieldOffset = &next
		}

		label := entry.Label
		if label == "" {
			label = objectName
		}
		result[objectName] = ObjectMetadataSummary{
			ObjectName:      objectName,
			Label:           label,
			TotalFields:     total,
			Fields:          summaries,
			FieldPagination: pagination,
		}
	}
	return result, nil
}

func filterFields(fields []cache.FieldMetadata, payload MetadataPayload) []cache.FieldMetadata {
	out := make([]cache.FieldMetadata, 0, len(fields))
	for _, f := range fields {
		if payload.FilterUnique && !f.Unique {
			continue
		}
		if payload.FilterNillable && !f.Nillable {
			continue
		}
		if payload.FilterUpdateable && !f.Updateable {
			continue
		}
		if payload.FilterRequired && f.Nillable {
			continue
		}
		out = append(out, f)
	}
	return out
}

func buildFieldSummary(f cache.FieldMetadata, payload MetadataPayload) FieldSummary {
	summary := FieldSummary{
		Name:     f.Name,
		Label:    f.Label,
		Type:     f.Type,
		Required: f.IsRequired(),
	}
	if payload.IncludePicklistValues && len(f.Picklist) > 0 {
		summary.Picklist = f.Picklist
	}
	if payload.IncludeCalculatedFields {
		calculated := f.Calculated
		summary.Calculated = &calculated
		if f.Formula != "" {
			summary.Formula = f.Formula
		}
	}
	if payload.IncludeFieldProperties {
		createable, updateable, nillable, unique := f.Createable, f.Updateable, f.Nillable, f.Unique
		summary.Createable = &createable
		summary.Updateable = &updateable
		summary.Nillable = &nillable
		summary.Unique = &unique
	}
	return summary
}
