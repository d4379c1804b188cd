package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/593496637/onchain-data-system/internal/model"
	"github.com/593496637/onchain-data-system/internal/storage"
)

// Store is an in-memory implementation of storage.EntityStore. A single
// mutex guards all tables, so upsert and retract on the same id are
// linearized and a reader never observes a half-applied write.
type Store struct {
	mu     sync.RWMutex
	tables map[model.EntityType]map[string]model.Entity
}

func New() *Store {
	return &Store{
		tables: map[model.EntityType]map[string]model.Entity{
			model.TypeDataRecord:     {},
			model.TypeTransferRecord: {},
			model.TypeSwapRecord:     {},
		},
	}
}

// Upsert writes by id, overwriting any existing record with the same id.
func (s *Store) Upsert(_ context.Context, e model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.tables[e.Type()]
	if !ok {
		table = make(map[string]model.Entity)
		s.tables[e.Type()] = table
	}
	table[e.EntityID()] = e
	return nil
}

// Get returns storage.ErrNotFound for unknown ids.
func (s *Store) Get(_ context.Context, entityType model.EntityType, id string) (model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tables[entityType][id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

// Scan filters, orders and paginates one entity table.
func (s *Store) Scan(_ context.Context, entityType model.EntityType, filter storage.Filter, opts storage.ScanOptions) ([]model.Entity, error) {
	if err := filter.Validate(entityType); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]model.Entity, 0)
	for _, e := range s.tables[entityType] {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	dir := opts.Normalize()
	sort.Slice(matched, func(i, j int) bool {
		return storage.Less(matched[i], matched[j], dir)
	})

	return storage.Page(matched, opts), nil
}

// Retract removes an entity. Removing an absent id is a no-op.
func (s *Store) Retract(_ context.Context, entityType model.EntityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tables[entityType], id)
	return nil
}

// Verify interface compliance at compile time.
var _ storage.EntityStore = (*Store)(nil)
