package storage

import (
	"context"

	"github.com/593496637/onchain-data-system/internal/model"
)

// EntityStore is the keyed store backing the query layer. Upsert is the only
// ordinary write primitive; Retract exists solely for reorg handling.
// Implementations linearize concurrent upsert and retract on the same id.
type EntityStore interface {
	Upsert(ctx context.Context, e model.Entity) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, entityType model.EntityType, id string) (model.Entity, error)
	// Scan returns entities matching the filter in occurredAt order.
	// Identical filter, order and pagination yield identical results until
	// the store is mutated.
	Scan(ctx context.Context, entityType model.EntityType, filter Filter, opts ScanOptions) ([]model.Entity, error)
	// Retract removes an entity. Removing an absent id is a no-op.
	Retract(ctx context.Context, entityType model.EntityType, id string) error
}

// LogSink is a sink for raw log records.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}

// FailureSink records logs that could not be decoded.
type FailureSink interface {
	PutDecodeFailures(failures []model.DecodeFailure) error
}
