// Package service holds the business rules of the API: site collection,
// favorites, the inventory and the trade exchange. Services depend on the
// repository interfaces only.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"culturehub-api/internal/model"
)

// Clock returns the current time. Tests inject a fixed clock to simulate
// expiry.
type Clock func() time.Time

// maxAttempts bounds retries of optimistic read-modify-write cycles.
const maxAttempts = 3

// retryOnConflict runs fn until it returns something other than
// model.ErrVersionConflict. fn must re-read everything it writes.
func retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); !errors.Is(err, model.ErrVersionConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("%w: too many concurrent updates: %w", model.ErrConflict, err)
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, fmt.Sprintf(format, args...))
}
