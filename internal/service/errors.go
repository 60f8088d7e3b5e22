package service

import (
	"errors"
	"fmt"

	"sitegen/internal/repository"
)

// The error taxonomy surfaced to callers. Handlers match these with
// errors.Is and answer with the sentinel's message, never the wrapped cause.
var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInsufficientCredit = errors.New("insufficient credits")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccountNotFound    = errors.New("user not found")
	ErrWebsiteNotFound    = errors.New("website not found")
	ErrBackendUnavailable = errors.New("failed to generate website")
	ErrGenerationFailed   = errors.New("failed to generate website content")
	ErrPersistenceFailed  = errors.New("failed to save website")
	ErrUnavailable        = errors.New("storage unavailable")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// storeError translates repository errors into the taxonomy.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repository.ErrInsufficientCredit):
		return ErrInsufficientCredit
	case errors.Is(err, repository.ErrWebsiteNotFound):
		return ErrWebsiteNotFound
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
