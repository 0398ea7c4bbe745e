package activities

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/helixir/author-matching-service/internal/domain"
)

// Application error types reported to workflows.
const (
	ErrTypeInvalidInput = "invalid_input"
	ErrTypeNotFound     = "not_found"
)

// classify turns errors that no retry can fix into non-retryable application
// errors. Everything else is returned unchanged and retried by the
// activity's retry policy: database and registry outages are transient.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	case errors.Is(err, domain.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNotFound, err)
	default:
		return err
	}
}
