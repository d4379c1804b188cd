package storage

import (
	"strings"

	"github.com/593496637/onchain-data-system/internal/model"
)

// Filter is a conjunction of entity predicates. Zero values mean "no
// constraint". Address comparisons are case-insensitive; MessageContains is
// a case-insensitive substring match.
type Filter struct {
	SenderEquals    string
	RecipientEquals string
	OccurredAfter   *uint64
	OccurredBefore  *uint64
	MessageContains string
}

// Direction orders scan results by occurredAt.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ScanOptions controls ordering and pagination. An empty Direction means
// Desc. Limit 0 means no limit. Offset past the end yields an empty result;
// a negative offset is treated as 0.
type ScanOptions struct {
	Direction Direction
	Limit     int
	Offset    int
}

// Normalize returns the effective direction, applying the Desc default.
func (o ScanOptions) Normalize() Direction {
	if o.Direction == "" {
		return Desc
	}
	return o.Direction
}

// Validate rejects filters that reference fields the entity type lacks.
func (f Filter) Validate(entityType model.EntityType) error {
	if f.RecipientEquals != "" && entityType == model.TypeDataRecord {
		return &InvalidQueryError{EntityType: entityType, Field: "recipient"}
	}
	return nil
}

// Matches reports whether the entity satisfies every supplied predicate.
func (f Filter) Matches(e model.Entity) bool {
	if f.SenderEquals != "" && !strings.EqualFold(e.SenderAddress(), f.SenderEquals) {
		return false
	}
	if f.RecipientEquals != "" {
		recipient, ok := e.RecipientAddress()
		if !ok || !strings.EqualFold(recipient, f.RecipientEquals) {
			return false
		}
	}
	if f.OccurredAfter != nil && e.OccurredAtUnix() < *f.OccurredAfter {
		return false
	}
	if f.OccurredBefore != nil && e.OccurredAtUnix() > *f.OccurredBefore {
		return false
	}
	if f.MessageContains != "" {
		if !strings.Contains(strings.ToLower(e.MessageText()), strings.ToLower(f.MessageContains)) {
			return false
		}
	}
	return true
}

// Less orders entities by occurredAt in the given direction, breaking ties
// by (blockNumber, logIndex, id) so scans are deterministic.
func Less(a, b model.Entity, dir Direction) bool {
	at, bt := a.OccurredAtUnix(), b.OccurredAtUnix()
	if at != bt {
		if dir == Asc {
			return at < bt
		}
		return at > bt
	}

	aBlock, _, aIndex := a.Provenance()
	bBlock, _, bIndex := b.Provenance()
	if aBlock != bBlock {
		return aBlock < bBlock
	}
	if aIndex != bIndex {
		return aIndex < bIndex
	}
	return a.EntityID() < b.EntityID()
}

// Page applies offset and limit to an already ordered slice.
func Page(entities []model.Entity, opts ScanOptions) []model.Entity {
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entities) {
		return nil
	}
	entities = entities[offset:]
	if opts.Limit > 0 && opts.Limit < len(entities) {
		entities = entities[:opts.Limit]
	}
	return entities
}
