// Package memory holds an in-process booking store. It backs local
// development runs and the concurrency tests; durable deployments use the
// postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"slotline/internal/domain"
	"slotline/internal/store"
)

// Store keeps shifts and reservations per provider. Commit attempts for one
// provider serialize on that provider's mutex (the classify-then-insert
// sequence runs without interleaving); distinct providers use distinct
// mutexes and never contend.
type Store struct {
	mu        sync.RWMutex
	providers map[string]*providerDiary
}

type providerDiary struct {
	mu           sync.Mutex
	shifts       []domain.Shift
	reservations map[uuid.UUID]domain.Reservation
}

func NewStore() *Store {
	return &Store{providers: make(map[string]*providerDiary)}
}

func (s *Store) diary(providerID string) *providerDiary {
	s.mu.RLock()
	d, ok := s.providers[providerID]
	s.mu.RUnlock()
	if ok {
		return d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.providers[providerID]; ok {
		return d
	}
	d = &providerDiary{reservations: make(map[uuid.UUID]domain.Reservation)}
	s.providers[providerID] = d
	return d
}

// SeedShifts replaces the provider's shifts. Shift data is owned by shift
// management; this is its entry point into the in-process store.
func (s *Store) SeedShifts(providerID string, shifts []domain.Shift) {
	d := s.diary(providerID)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shifts = append([]domain.Shift(nil), shifts...)
}

func (s *Store) WindowsFor(ctx context.Context, providerID string, horizonStart, horizonEnd time.Time) ([]domain.Shift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	horizon := domain.NewInterval(horizonStart, horizonEnd)
	d := s.diary(providerID)
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []domain.Shift
	for _, sh := range d.shifts {
		if sh.Interval().Overlaps(horizon) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Store) Commit(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}

	d := s.diary(res.ProviderID)
	d.mu.Lock()
	defer d.mu.Unlock()

	if res.ID != uuid.Nil {
		if existing, ok := d.reservations[res.ID]; ok {
			if existing.ServiceID != res.ServiceID ||
				!existing.StartTime.Equal(res.StartTime) ||
				!existing.EndTime.Equal(res.EndTime) {
				return domain.Reservation{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
	}

	active := d.activeLocked(res.Interval())
	if domain.Classify(res.Interval(), d.shifts, active) != domain.SlotStatusFree {
		return domain.Reservation{}, store.ErrConflict
	}

	if res.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Reservation{}, err
		}
		res.ID = id
	}
	now := time.Now().UTC()
	res.Status = domain.ReservationStatusPending
	res.CreatedAt = now
	res.UpdatedAt = now

	d.reservations[res.ID] = res
	return res, nil
}

func (s *Store) ListActive(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := s.diary(providerID)
	d.mu.Lock()
	defer d.mu.Unlock()

	out := d.activeLocked(domain.NewInterval(windowStart, windowEnd))
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, providerID string, reservationID uuid.UUID, next domain.ReservationStatus) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}

	d := s.diary(providerID)
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.reservations[reservationID]
	if !ok || cur.ProviderID != providerID {
		return domain.Reservation{}, store.ErrNotFound
	}
	if !cur.Status.CanTransitionTo(next) {
		return domain.Reservation{}, store.ErrConflict
	}

	cur.Status = next
	cur.UpdatedAt = time.Now().UTC()
	d.reservations[reservationID] = cur
	return cur, nil
}

func (d *providerDiary) activeLocked(window domain.Interval) []domain.Reservation {
	var out []domain.Reservation
	for _, r := range d.reservations {
		if !r.Status.Active() {
			continue
		}
		if r.Interval().Overlaps(window) {
			out = append(out, r)
		}
	}
	return out
}
