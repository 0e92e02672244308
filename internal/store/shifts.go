package store

import (
	"context"
	"time"

	"slotline/internal/domain"
)

// ShiftRepository is the availability index: a read-only projection over
// shift data owned by shift management. Returned shifts are ordered by start
// time but carry no further guarantees; callers must not assume they are
// non-overlapping.
type ShiftRepository interface {
	// WindowsFor returns the provider's shifts overlapping
	// [horizonStart, horizonEnd).
	WindowsFor(ctx context.Context, providerID string, horizonStart, horizonEnd time.Time) ([]domain.Shift, error)
}
