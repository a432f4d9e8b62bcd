// Package cache defines the metadata cache contract shared by the CRM tools.
// Object lists and object metadata are cached per connection with independent
// TTLs; entries past their expiry must never be returned to a caller.
package cache

import (
	"context"
	"time"
)

const (
	// DefaultObjectListTTL bounds how long a describeGlobal-style object list
	// stays valid for a connection before it must be refetched.
	DefaultObjectListTTL = 24 * time.Hour
	// DefaultObjectMetadataTTL bounds how long a single object's describe
	// metadata (fields, relationships) stays valid.
	DefaultObjectMetadataTTL = 12 * time.Hour
)

type (
	// Cache is the metadata cache used by the CRM tool registry. Every read
	// method filters on expiry; a Get that finds only an expired entry
	// behaves exactly like a miss.
	Cache interface {
		GetObjectList(ctx context.Context, connectionID string) (ObjectListEntry, bool, error)
		PutObjectList(ctx context.Context, entry ObjectListEntry) error

		GetObjectMetadata(ctx context.Context, connectionID, objectName string, includeChildRelationships bool) (ObjectMetadataEntry, bool, error)
		PutObjectMetadata(ctx context.Context, entry ObjectMetadataEntry) error

		// ClearConnection deletes every cached entry (both list and
		// metadata) for a connection, used when a connection's credentials
		// or org identity changes.
		ClearConnection(ctx context.Context, connectionID string) error
		// SweepExpired deletes every entry whose ExpiresAt has passed,
		// across all connections. Implementations may run this on a timer;
		// it is never required for read correctness since reads already
		// filter on expiry.
		SweepExpired(ctx context.Context) (int, error)
	}

	// ObjectListEntry is one connection's cached SObject list.
	ObjectListEntry struct {
		ConnectionID string
		Objects      []ObjectSummary
		CachedAt     time.Time
		ExpiresAt    time.Time
	}

	// ObjectSummary is the compact per-object shape kept in an object list.
	ObjectSummary struct {
		Name          string
		Label         string
		Queryable     bool
		Createable    bool
		Custom        bool
		KeyPrefix     string
	}

	// ObjectMetadataEntry is one connection+object's cached describe result.
	// ChildRelationships is populated unconditionally at write time; callers
	// that did not request them get a copy with the field stripped so the
	// same entry serves both kinds of read.
	ObjectMetadataEntry struct {
		ConnectionID       string
		ObjectName         string
		Label              string
		Fields             []FieldMetadata
		ChildRelationships []RelationshipMetadata
		CachedAt           time.Time
		ExpiresAt          time.Time
	}

	// FieldMetadata is one field's describe metadata, carrying every raw
	// property the CRM describe call returns so tools can apply their own
	// presentation filtering without a second round-trip to the CRM.
	FieldMetadata struct {
		Name         string
		Label        string
		Type         string
		Length       int
		Precision    int
		Scale        int
		Nillable     bool
		Unique       bool
		Createable   bool
		Updateable   bool
		Calculated   bool
		Formula      string
		Picklist     []PicklistValue
		ReferenceTo  []string
		RelationName string
	}

	// PicklistValue is one entry of a picklist field's allowed values.
	PicklistValue struct {
		Value   string
		Label   string
		ValidFor string
	}

	// RelationshipMetadata is one child relationship entry.
	RelationshipMetadata struct {
		ChildObject     string
		Field           string
		RelationshipName string
		CascadeDelete   bool
	}
)

// IsRequired reports whether a field is required, i.e. not nillable.
func (f FieldMetadata) IsRequired() bool {
	return !f.Nillable
}

// cacheKey mirrors the connection_uuid + "_" + sobject_name convention used
// by the underlying CRM cache store; Key exports it so store implementations
// that key on a flat string (rather than a compound document filter) stay
// consistent with each other.
func cacheKey(connectionID, objectName string) string {
	if objectName == "" {
		return connectionID
	}
	return connectionID + "_" + objectName
}

// Key returns the cache key for a connection+object pair, or just the
// connection id when objectName is empty (the object-list key shape).
func Key(connectionID, objectName string) string {
	return cacheKey(connectionID, objectName)
}

// StripChildRelationships returns a copy of entry with ChildRelationships
// cleared, used when a caller asked for metadata without relationships.
func StripChildRelationships(entry ObjectMetadataEntry) ObjectMetadataEntry {
	entry.ChildRelationships = nil
	return entry
}
