package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Active reports whether the reservation blocks other bookings. Cancelled
// reservations are inert for every conflict check.
func (s ReservationStatus) Active() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

// CanTransitionTo encodes the staff workflow: pending can be confirmed or
// cancelled, confirmed can only be cancelled, cancelled is terminal.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	switch s {
	case ReservationStatusPending:
		return next == ReservationStatusConfirmed || next == ReservationStatusCancelled
	case ReservationStatusConfirmed:
		return next == ReservationStatusCancelled
	default:
		return false
	}
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID            uuid.UUID         `bun:"id,pk,type:uuid"`
	ProviderID    string            `bun:"provider_id,notnull"`
	ServiceID     string            `bun:"service_id,notnull"`
	ServiceName   string            `bun:"service_name"`
	PriceYen      int               `bun:"price_yen"`
	CustomerPhone string            `bun:"customer_phone"`
	Memo          string            `bun:"memo"`
	StartTime     time.Time         `bun:"start_time,notnull"`
	EndTime       time.Time         `bun:"end_time,notnull"`
	Status        ReservationStatus `bun:"status,notnull"`
	CreatedAt     time.Time         `bun:"created_at,notnull"`
	UpdatedAt     time.Time         `bun:"updated_at,notnull"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.Status == "" {
			r.Status = ReservationStatusPending
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

func (r Reservation) Interval() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}
