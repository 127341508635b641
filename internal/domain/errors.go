package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the core wraps exactly one of these.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRoomUnavailable  = errors.New("room unavailable")
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("concurrent update conflict")
	ErrStoreFailure     = errors.New("store failure")
)

var (
	ErrHotelNotFound       = fmt.Errorf("hotel %w", ErrNotFound)
	ErrRoomNotFound        = fmt.Errorf("room %w", ErrNotFound)
	ErrCategoryNotFound    = fmt.Errorf("category %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)

	ErrInvalidDateRange  = fmt.Errorf("%w: check-out must be after check-in", ErrInvalidInput)
	ErrInvalidGuestCount = fmt.Errorf("%w: guest count must be at least 1", ErrInvalidInput)
)

var kinds = []error{
	ErrNotFound,
	ErrInvalidInput,
	ErrRoomUnavailable,
	ErrAlreadyCancelled,
	ErrUnauthorized,
	ErrConflict,
	ErrStoreFailure,
}

// Kind returns the sentinel kind wrapped by err, ErrStoreFailure for unclassified errors and nil for nil.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrStoreFailure
}

// KindLabel is a short metric/log label for err.
func KindLabel(err error) string {
	switch Kind(err) {
	case nil:
		return "none"
	case ErrNotFound:
		return "not_found"
	case ErrInvalidInput:
		return "invalid_input"
	case ErrRoomUnavailable:
		return "room_unavailable"
	case ErrAlreadyCancelled:
		return "already_cancelled"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrConflict:
		return "conflict"
	default:
		return "store_failure"
	}
}
