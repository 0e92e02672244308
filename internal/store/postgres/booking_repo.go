package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"slotline/internal/domain"
	"slotline/internal/store"
)

const overlapConstraint = "reservations_no_overlap"

// BookingRepo implements store.ReservationRepository on Postgres.
//
// Commits take pg_advisory_xact_lock(hashtext(provider_id)), so all writes for
// one provider serialize while distinct providers proceed in parallel. The
// reservations table additionally carries an exclusion constraint over
// (provider_id, tstzrange(start_time, end_time)) for active rows; even if the
// in-transaction re-check were bypassed, Postgres itself rejects the second of
// two overlapping inserts.
type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *BookingRepo) Commit(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	var out domain.Reservation
	err := r.inProviderTransaction(ctx, res.ProviderID, func(ctx context.Context, tx store.BookingTx) error {
		if err := ensureSlotBookable(ctx, tx, res); err != nil {
			return err
		}
		created, err := tx.InsertReservation(ctx, res)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return out, nil
}

func (r *BookingRepo) ListActive(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Reservation, error) {
	return listActiveReservations(ctx, r.db, providerID, windowStart, windowEnd)
}

// UpdateStatus runs under the same provider lock as Commit so that a cancel
// and a racing commit never interleave; the moment the transaction commits,
// the cancelled row is invisible to conflict checks.
func (r *BookingRepo) UpdateStatus(ctx context.Context, providerID string, reservationID uuid.UUID, next domain.ReservationStatus) (domain.Reservation, error) {
	var out domain.Reservation
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderDiary(ctx, tx, providerID); err != nil {
			return err
		}

		var cur domain.Reservation
		err := tx.NewSelect().
			Model(&cur).
			Where("id = ?", reservationID).
			Where("provider_id = ?", providerID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}

		if !cur.Status.CanTransitionTo(next) {
			return store.ErrConflict
		}

		cur.Status = next
		if _, err := tx.NewUpdate().
			Model(&cur).
			Column("status", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}

		out = cur
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return out, nil
}

func (r *BookingRepo) inProviderTransaction(ctx context.Context, providerID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderDiary(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func lockProviderDiary(ctx context.Context, tx bun.Tx, providerID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID).Exec(ctx)
	return err
}

// ensureSlotBookable is the commit-time re-validation: the requested interval
// must still classify as free against the shifts and active reservations seen
// inside the critical section.
func ensureSlotBookable(ctx context.Context, tx store.BookingTx, res domain.Reservation) error {
	shifts, err := tx.ListShifts(ctx, res.ProviderID, res.StartTime, res.EndTime)
	if err != nil {
		return err
	}
	reservations, err := tx.ListActiveReservations(ctx, res.ProviderID, res.StartTime, res.EndTime)
	if err != nil {
		return err
	}
	if domain.Classify(res.Interval(), shifts, reservations) != domain.SlotStatusFree {
		return store.ErrConflict
	}
	return nil
}

func (t bookingTx) ListShifts(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Shift, error) {
	return listShifts(ctx, t.tx, providerID, windowStart, windowEnd)
}

func (t bookingTx) ListActiveReservations(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Reservation, error) {
	return listActiveReservations(ctx, t.tx, providerID, windowStart, windowEnd)
}

func (t bookingTx) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	m := domain.Reservation{
		ID:            res.ID,
		ProviderID:    res.ProviderID,
		ServiceID:     res.ServiceID,
		ServiceName:   res.ServiceName,
		PriceYen:      res.PriceYen,
		CustomerPhone: res.CustomerPhone,
		Memo:          res.Memo,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		Status:        domain.ReservationStatusPending,
	}

	// A constraint violation aborts the enclosing transaction, so the insert
	// runs under a savepoint; rolling back to it keeps the transaction usable
	// for the idempotency lookup and for the caller.
	if _, err := t.tx.NewRaw("SAVEPOINT reservation_insert").Exec(ctx); err != nil {
		return domain.Reservation{}, err
	}

	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		if _, rbErr := t.tx.NewRaw("ROLLBACK TO SAVEPOINT reservation_insert").Exec(ctx); rbErr != nil {
			return domain.Reservation{}, rbErr
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23P01" && pgErr.ConstraintName == overlapConstraint {
				return domain.Reservation{}, store.ErrConflict
			}
			if pgErr.Code == "23505" {
				return t.resolveIdempotentInsert(ctx, m, err)
			}
		}
		return domain.Reservation{}, err
	}

	if _, err := t.tx.NewRaw("RELEASE SAVEPOINT reservation_insert").Exec(ctx); err != nil {
		return domain.Reservation{}, err
	}
	return m, nil
}

// resolveIdempotentInsert handles a duplicate primary key: the id is derived
// from the caller's idempotency key, so an identical row means the same
// request was already committed and the stored row is returned as-is.
func (t bookingTx) resolveIdempotentInsert(ctx context.Context, m domain.Reservation, insertErr error) (domain.Reservation, error) {
	var existing domain.Reservation
	err := t.tx.NewSelect().
		Model(&existing).
		Where("id = ?", m.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Reservation{}, insertErr
	}

	if existing.ProviderID != m.ProviderID ||
		existing.ServiceID != m.ServiceID ||
		!existing.StartTime.Equal(m.StartTime) ||
		!existing.EndTime.Equal(m.EndTime) {
		return domain.Reservation{}, store.ErrIdempotencyConflict
	}

	return existing, nil
}

func listActiveReservations(ctx context.Context, db bun.IDB, providerID string, windowStart, windowEnd time.Time) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("status IN (?)", bun.In([]domain.ReservationStatus{
			domain.ReservationStatusPending,
			domain.ReservationStatusConfirmed,
		})).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
