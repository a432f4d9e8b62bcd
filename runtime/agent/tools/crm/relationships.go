package crm

import (
	"context"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

type (
	// RelationshipsPayload is the get_sobject_relationships tool payload.
	RelationshipsPayload struct {
		ObjectNames         []string `json:"object_names"`
		ConnectionID        string   `json:"connection_uuid"`
		FilterRelationships bool     `json:"filter_relationships"`
	}

	// LookupRelationship is one reference-field relationship on an object.
	LookupRelationship struct {
		FieldName             string   `json:"field_name"`
		ReferenceToObjectName []string `json:"reference_to_object_name"`
	}

	// ChildRelationship is one child-object relationship on an object.
	ChildRelationship struct {
		RelationshipQueryName string `json:"relationship_query_name"`
		ChildObjectName       string `json:"child_object_name"`
	}

	// ObjectRelationships is one object's entry in a RelationshipsResult.
	ObjectRelationships struct {
		ObjectName          string               `json:"object_name,omitempty"`
		ChildRelationships  []ChildRelationship  `json:"child_relationships"`
		LookupRelationships []LookupRelationship `json:"lookup_relationships"`
		Error               string               `json:"error,omitempty"`
	}

	// RelationshipsResult is the get_sobject_relationships tool result, keyed
	// by object name.
	RelationshipsResult map[string]ObjectRelationships
)

// Relationships implements get_sobject_relationships: per-object describe
// with relationships, then (when FilterRelationships is set and more than one
// object was requested) narrows each object's relationships down to only
// those connecting to another requested object.
func Relationships(ctx context.Context, client Client, store cache.Cache, payload RelationshipsPayload) (RelationshipsResult, error) {
	all := make(RelationshipsResult, len(payload.ObjectNames))
	for _, objectName := range payload.ObjectNames {
		entry, err := describeObject(ctx, client, store, payload.ConnectionID, objectName, true)
		if err != nil {
			all[objectName] = ObjectRelationships{Error: "failed to retrieve relationships: " + err.Error()}
			continue
		}

		rel := ObjectRelationships{ObjectName: objectName}
		for _, f := range entry.Fields {
			if len(f.ReferenceTo) > 0 {
				rel.LookupRelationships = append(rel.LookupRelationships, LookupRelationship{
					FieldName:             f.Name,
					ReferenceToObjectName: f.ReferenceTo,
				})
			}
		}
		for _, r := range entry.ChildRelationships {
			rel.ChildRelationships = append(rel.ChildRelationships, ChildRelationship{
				RelationshipQueryName: r.RelationshipName,
				ChildObjectName:       r.ChildObject,
			})
		}
		all[objectName] = rel
	}

	if payload.FilterRelationships && len(payload.ObjectNames) > 1 {
		return filterToConnectingRelationships(all, payload.ObjectNames), nil
	}
	return all, nil
}

func filterToConnectingRelationships(all RelationshipsResult, objectNames []string) RelationshipsResult {
	targets := make(map[string]struct{}, len(objectNames))
	for _, name := range objectNames {
		targets[name] = struct{}{}
	}

	filtered := make(RelationshipsResult, len(all))
	for objectName, rel := range all {
		if rel.Error != "" {
			filtered[objectName] = rel
			continue
		}
		out := ObjectRelationships{ObjectName: objectName}
		for _, child := range rel.ChildRelationships {
			if _, ok := targets[child.ChildObjectName]; ok {
				out.ChildRelationships = append(out.ChildRelationships, child)
			}
		}
		for _, lookup := range rel.LookupRelationships {
			for _, ref := range lookup.ReferenceToObjectName {
				if _, ok := targets[ref]; ok {
					out.LookupRelationships = append(out.LookupRelationships, lookup)
					break
				}
			}
		}
		filtered[objectName] = out
	}
	return filtered
}
