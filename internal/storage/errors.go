package storage

import (
	"errors"
	"fmt"

	"github.com/593496637/onchain-data-system/internal/model"
)

// ErrNotFound is returned by Get when no entity exists for the id. Scans
// report absence as an empty result, not as this error.
var ErrNotFound = errors.New("entity not found")

// InvalidQueryError reports a filter that references a field the entity type
// does not have. It is surfaced immediately, never silently ignored.
type InvalidQueryError struct {
	EntityType model.EntityType
	Field      string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s has no field %s", e.EntityType, e.Field)
}

// IsInvalidQuery reports whether err is (or wraps) an InvalidQueryError.
func IsInvalidQuery(err error) bool {
	var iq *InvalidQueryError
	return errors.As(err, &iq)
}
