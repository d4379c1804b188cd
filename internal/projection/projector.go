package projection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/593496637/onchain-data-system/internal/entity"
	"github.com/593496637/onchain-data-system/internal/model"
	"github.com/593496637/onchain-data-system/internal/query"
	"github.com/593496637/onchain-data-system/internal/storage"
)

// ProjectionError reports a failed store write. It is retryable: the
// ingestion driver re-delivers the event and the id-keyed upsert makes the
// replay idempotent. The projector itself never retries internally.
type ProjectionError struct {
	EntityType model.EntityType
	ID         string
	Err        error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("project %s %s: %v", e.EntityType, e.ID, e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// IsProjectionError reports whether err is (or wraps) a ProjectionError.
func IsProjectionError(err error) bool {
	var pe *ProjectionError
	return errors.As(err, &pe)
}

// Identity returns the entity type and id a given event kind projects to.
// Swap records are keyed by transaction hash alone; everything else by
// (txHash, logIndex).
func Identity(kind model.EventKind, txHash string, logIndex uint64) (model.EntityType, string) {
	switch kind {
	case model.KindMemoizedSwap:
		return model.TypeSwapRecord, entity.TxID(txHash)
	case model.KindTransferExecuted:
		return model.TypeTransferRecord, entity.LogID(txHash, logIndex)
	default:
		return model.TypeDataRecord, entity.LogID(txHash, logIndex)
	}
}

// Projector turns decoded events into stored entity records. One handler
// per event kind; every handler upserts by entity id and then publishes the
// committed entity to subscribers.
type Projector struct {
	store  storage.EntityStore
	hub    *query.Hub
	logger *zap.Logger
}

func NewProjector(store storage.EntityStore, hub *query.Hub, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{store: store, hub: hub, logger: logger}
}

// Apply projects one typed event into its entity record. Replaying the same
// event overwrites the same id with identical fields, never duplicates.
func (p *Projector) Apply(ctx context.Context, event *model.TypedEvent) error {
	var record model.Entity
	switch payload := event.Payload.(type) {
	case model.DataWrittenEvent:
		record = buildDataRecord(event, payload)
	case model.TransferExecutedEvent:
		record = buildTransferRecord(event, payload)
	case model.MemoizedSwapEvent:
		record = buildSwapRecord(event, payload)
	default:
		return fmt.Errorf("unhandled event payload %T", event.Payload)
	}

	if err := p.store.Upsert(ctx, record); err != nil {
		return &ProjectionError{EntityType: record.Type(), ID: record.EntityID(), Err: err}
	}

	p.logger.Debug("entity committed",
		zap.String("entity_type", string(record.Type())),
		zap.String("id", record.EntityID()),
		zap.Uint64("block_number", event.BlockNumber),
	)

	if p.hub != nil {
		p.hub.Publish(record)
	}
	return nil
}

// Retract removes the entity projected from an orphaned log, recomputing
// its id from the log position. Used when a reorg drops the transaction
// from the canonical chain. Retracting an absent entity is a no-op.
func (p *Projector) Retract(ctx context.Context, kind model.EventKind, txHash string, logIndex uint64) error {
	entityType, id := Identity(kind, txHash, logIndex)
	if err := p.store.Retract(ctx, entityType, id); err != nil {
		return &ProjectionError{EntityType: entityType, ID: id, Err: err}
	}

	p.logger.Info("entity retracted",
		zap.String("entity_type", string(entityType)),
		zap.String("id", id),
	)
	return nil
}

// occurredAt is always the block timestamp. The payload's timestamp
// parameter is client-supplied and can be stale; it is kept on the payload
// but never used for ordering.
func buildDataRecord(event *model.TypedEvent, payload model.DataWrittenEvent) model.DataRecord {
	return model.DataRecord{
		ID:             entity.LogID(event.TxHash, event.LogIndex),
		SequenceNumber: payload.EventID,
		Sender:         payload.From,
		Message:        payload.Message,
		OccurredAt:     event.BlockTime,
		BlockNumber:    event.BlockNumber,
		TxHash:         event.TxHash,
		LogIndex:       event.LogIndex,
	}
}

func buildTransferRecord(event *model.TypedEvent, payload model.TransferExecutedEvent) model.TransferRecord {
	return model.TransferRecord{
		ID:          entity.LogID(event.TxHash, event.LogIndex),
		TransferID:  payload.TransferID,
		Sender:      payload.From,
		Recipient:   payload.To,
		Amount:      payload.Amount,
		Message:     payload.Message,
		OccurredAt:  event.BlockTime,
		BlockNumber: event.BlockNumber,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
	}
}

func buildSwapRecord(event *model.TypedEvent, payload model.MemoizedSwapEvent) model.SwapRecord {
	return model.SwapRecord{
		ID:          entity.TxID(event.TxHash),
		Sender:      payload.From,
		Recipient:   payload.Recipient,
		Message:     payload.Message,
		AmountIn:    payload.AmountIn,
		AmountOut:   payload.AmountOut,
		OccurredAt:  event.BlockTime,
		BlockNumber: event.BlockNumber,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
	}
}
