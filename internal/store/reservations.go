package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotline/internal/domain"
)

// ReservationRepository is the reservation ledger plus the commit path.
//
// Commit must guarantee that at most one of any pair of overlapping intervals
// for the same provider is accepted, no matter how many commits race. Commits
// for distinct providers never contend. A failed Commit leaves no state
// behind.
type ReservationRepository interface {
	// Commit re-validates the reservation against the provider's shifts and
	// active reservations inside the provider's critical section, then
	// inserts it with status pending. Returns ErrConflict when the interval
	// is no longer free (booked over, or outside working hours by the time
	// the commit runs).
	Commit(ctx context.Context, res domain.Reservation) (domain.Reservation, error)

	// ListActive returns pending and confirmed reservations overlapping
	// [windowStart, windowEnd), ordered by start time.
	ListActive(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Reservation, error)

	// UpdateStatus applies a staff transition: ErrNotFound for an unknown id,
	// ErrConflict for a transition the state machine forbids.
	UpdateStatus(ctx context.Context, providerID string, reservationID uuid.UUID, next domain.ReservationStatus) (domain.Reservation, error)
}
