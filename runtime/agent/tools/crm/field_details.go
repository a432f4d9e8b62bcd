package crm

import (
	"context"
	"fmt"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

type (
	// FieldDetailsPayload is the get_field_details tool payload.
	FieldDetailsPayload struct {
		ObjectName   string `json:"object_name"`
		FieldName    string `json:"field_name"`
		ConnectionID string `json:"connection_uuid"`
	}

	// FieldDetailsResult is the get_field_details tool result. get_field_details
	// always requests picklist values and field properties, unlike
	// get_sobject_metadata where both are opt-in.
	FieldDetailsResult struct {
		ObjectName       string                `json:"object_name"`
		FieldName        string                `json:"field_name"`
		Label            string                `json:"label,omitempty"`
		Type             string                `json:"type,omitempty"`
		Required         bool                  `json:"required,omitempty"`
		Unique           bool                  `json:"unique,omitempty"`
		Calculated       bool                  `json:"calculated,omitempty"`
		Length           int                   `json:"length,omitempty"`
		Precision        int                   `json:"precision,omitempty"`
		Scale            int                   `json:"scale,omitempty"`
		ReferenceTo      []string              `json:"reference_to,omitempty"`
		RelationshipName string                `json:"relationship_name,omitempty"`
		Formula          string                `json:"formula,omitempty"`
		Createable       bool                  `json:"createable,omitempty"`
		Updateable       bool                  `json:"updateable,omitempty"`
		Nillable         bool                  `json:"nillable,omitempty"`
		PicklistValues   []cache.PicklistValue `json:"picklist_values,omitempty"`
		Error            string                `json:"error,omitempty"`
	}
)

// FieldDetails implements get_field_details: describe the object, locate the
// named field, and return its full properties plus picklist values.
func FieldDetails(ctx context.Context, client Client, store cache.Cache, payload FieldDetailsPayload) (FieldDetailsResult, error) {
	entry, err := describeObject(ctx, client, store, payload.ConnectionID, payload.ObjectName, false)
	if err != nil {
		return FieldDetailsResult{
			ObjectName: payload.ObjectName,
			FieldName:  payload.FieldName,
			Error:      err.Error(),
		}, nil
	}

	var found *cache.FieldMetadata
	for i := range entry.Fields {
		if entry.Fields[i].Name == payload.FieldName {
			found = &entry.Fields[i]
			break
		}
	}
	if found == nil {
		return FieldDetailsResult{
			ObjectName: payload.ObjectName,
			FieldName:  payload.FieldName,
			Error:      fmt.Sprintf("field %q not found in object %q", payload.FieldName, payload.ObjectName),
		}, nil
	}

	return FieldDetailsResult{
		ObjectName:       payload.ObjectName,
		FieldName:        found.Name,
		Label:            found.Label,
		Type:             found.Type,
		Required:         found.IsRequired(),
		Unique:           found.Unique,
		Calculated:       found.Calculated,
		Length:           found.Length,
		Precision:        found.Precision,
		Scale:            found.Scale,
		ReferenceTo:      found.ReferenceTo,
		RelationshipName: found.RelationName,
		Formula:          found.Formula,
		Createable:       found.Createable,
		Updateable:       found.Updateable,
		Nillable:         found.Nillable,
		PicklistValues:   found.Picklist,
	}, nil
}
