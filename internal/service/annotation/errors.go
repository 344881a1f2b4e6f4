package annotation

import (
	"errors"

	"marginalia/internal/domain"
)

// persistenceError tags store failures so callers can tell them apart from
// domain outcomes like not-found or conflicts.
func persistenceError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
