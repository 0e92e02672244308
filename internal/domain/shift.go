package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Shift is one contiguous working period of a provider. Shift rows are owned
// by shift management; the booking engine only reads them.
type Shift struct {
	bun.BaseModel `bun:"table:shifts"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID string    `bun:"provider_id,notnull"`
	StartTime  time.Time `bun:"start_time,notnull"`
	EndTime    time.Time `bun:"end_time,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

func (s *Shift) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s Shift) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}
