package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/593496637/onchain-data-system/internal/model"
	"github.com/593496637/onchain-data-system/internal/storage"
)

// Service exposes read-only access to the entity store plus live
// subscriptions to newly committed entities.
type Service struct {
	store  storage.EntityStore
	hub    *Hub
	logger *zap.Logger
}

func NewService(store storage.EntityStore, hub *Hub, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, hub: hub, logger: logger}
}

// Get looks up a single entity by id.
func (s *Service) Get(ctx context.Context, entityType model.EntityType, id string) (model.Entity, error) {
	return s.store.Get(ctx, entityType, id)
}

// Scan answers a filtered, ordered, paginated read. Filters referencing
// fields the entity type lacks fail with InvalidQueryError before touching
// the store. An empty result is not an error.
func (s *Service) Scan(ctx context.Context, entityType model.EntityType, filter storage.Filter, opts storage.ScanOptions) ([]model.Entity, error) {
	if err := filter.Validate(entityType); err != nil {
		return nil, err
	}

	entities, err := s.store.Scan(ctx, entityType, filter, opts)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("scan",
		zap.String("entity_type", string(entityType)),
		zap.Int("results", len(entities)),
	)
	return entities, nil
}

// Subscribe opens a live feed of newly committed entities of the given
// types. Cancel via the returned subscription.
func (s *Service) Subscribe(types ...model.EntityType) *Subscription {
	return s.hub.Subscribe(types...)
}
