// Package mongo provides a MongoDB-backed implementation of
// runtime/agent/checkpoint.Store. Build the low-level client via
// features/checkpoint/mongo/clients/mongo and pass it to NewStore so the
// orchestrator can persist conversation checkpoints durably.
package mongo
