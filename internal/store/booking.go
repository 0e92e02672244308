package store

import (
	"context"
	"time"

	"slotline/internal/domain"
)

// BookingTx is the view of the store available inside one provider's commit
// critical section. The re-validation spanning ListShifts/ListActive through
// InsertReservation runs without interleaving from other commits on the same
// provider.
type BookingTx interface {
	ListShifts(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Shift, error)
	ListActiveReservations(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Reservation, error)
	InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error)
}
