package crm

import (
	"context"
	"time"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
)

// describeObject returns the cached describe entry for a connection+object,
// refreshing from the CRM client on a miss. includeChildRelationships only
// affects what the caller sees back; the cache entry itself always carries
// relationships so a later call with the flag set does not force a refetch.
func describeObject(ctx context.Context, client Client, store cache.Cache, connectionID, objectName string, includeChildRelationships bool) (cache.ObjectMetadataEntry, error) {
	if store != nil {
		if entry, ok, err := store.GetObjectMetadata(ctx, connectionID, objectName, includeChildRelationships); err == nil && ok {
			return entry, nil
		} else if err != nil {
			return cache.ObjectMetadataEntry{}, err
		}
	}
	described, err := client.DescribeObject(ctx, connectionID, objectName)
	if err != nil {
		return cache.ObjectMetadataEntry{}, err
	}
	now := time.Now().UTC()
	entry := cache.ObjectMetadataEntry{
		ConnectionID:       connectionID,
		ObjectName:         objectName,
		Label:              described.Label,
		Fields:             described.Fields,
		ChildRelationships: described.ChildRelationships,
		CachedAt:           now,
		ExpiresAt:          now.Add(cache.DefaultObjectMetadataTTL),
	}
	if store != nil {
		_ = store.PutObjectMetadata(ctx, entry)
	}
	if !includeChildRelationships {
		entry = cache.StripChildRelationships(entry)
	}
	return entry, nil
}
