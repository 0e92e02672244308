package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"slotline/internal/domain"
	"slotline/internal/store"
)

const (
	maxServiceDuration = 24 * time.Hour
	maxHorizon         = 62 * 24 * time.Hour
	minGranularity     = time.Minute
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// StorageError wraps a transient store failure that survived the retry
// budget. The commit transaction rolled back, so retrying the whole request
// is safe.
type StorageError struct {
	err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %v", e.err)
}

func (e *StorageError) Unwrap() error {
	return e.err
}

// RetryPolicy bounds the internal retries of transient storage failures.
// Conflicts and validation failures are never retried.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts < 1 {
		p.Attempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 100 * time.Millisecond
	}
	return p
}

type Service struct {
	shifts       store.ShiftRepository
	reservations store.ReservationRepository
	retry        RetryPolicy
}

func NewService(shifts store.ShiftRepository, reservations store.ReservationRepository, retry RetryPolicy) *Service {
	return &Service{
		shifts:       shifts,
		reservations: reservations,
		retry:        retry.withDefaults(),
	}
}

type AvailabilityInput struct {
	ProviderID      string
	HorizonStart    time.Time
	HorizonEnd      time.Time
	ServiceDuration time.Duration
	Granularity     time.Duration
}

// Availability enumerates every granularity-aligned candidate in the horizon
// and labels it closed, free or booked. Repeated calls with no intervening
// commits return identical results.
func (s *Service) Availability(ctx context.Context, in AvailabilityInput) ([]domain.Slot, error) {
	if in.ProviderID == "" {
		return nil, validationError("provider_id is required")
	}
	if in.ServiceDuration <= 0 {
		return nil, validationError("service_duration must be positive")
	}
	if in.ServiceDuration > maxServiceDuration {
		return nil, validationError("service_duration too long")
	}
	if in.Granularity < minGranularity {
		return nil, validationError("granularity must be at least one minute")
	}

	horizonStart := in.HorizonStart.UTC()
	horizonEnd := in.HorizonEnd.UTC()
	if !horizonEnd.After(horizonStart) {
		return nil, validationError("horizon_end must be after horizon_start")
	}
	if horizonEnd.Sub(horizonStart) > maxHorizon {
		return nil, validationError("horizon too long")
	}

	// Slots starting near horizon_end stick out past it, so windows and
	// reservations are fetched one service duration beyond the horizon.
	fetchEnd := horizonEnd.Add(in.ServiceDuration)

	windows, err := s.shifts.WindowsFor(ctx, in.ProviderID, horizonStart, fetchEnd)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, store.ErrNotFound
	}

	reservations, err := s.reservations.ListActive(ctx, in.ProviderID, horizonStart, fetchEnd)
	if err != nil {
		return nil, err
	}

	var out []domain.Slot
	for candidate := range domain.SlotCandidates(horizonStart, horizonEnd, in.Granularity, in.ServiceDuration) {
		out = append(out, domain.Slot{
			ProviderID: in.ProviderID,
			Interval:   candidate,
			Status:     domain.Classify(candidate, windows, reservations),
		})
	}
	return out, nil
}

type ReserveInput struct {
	ProviderID     string
	ServiceID      string
	ServiceName    string
	PriceYen       int
	CustomerPhone  string
	Memo           string
	StartTime      time.Time
	EndTime        time.Time
	IdempotencyKey string
}

// Reserve is the write path: the store re-validates the interval inside the
// provider's critical section and inserts the reservation with status
// pending. A lost race surfaces as store.ErrConflict; callers should re-query
// availability rather than retry the same interval.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	if in.ProviderID == "" {
		return domain.Reservation{}, validationError("provider_id is required")
	}
	if in.ServiceID == "" {
		return domain.Reservation{}, validationError("service_id is required")
	}
	if in.PriceYen < 0 {
		return domain.Reservation{}, validationError("price must not be negative")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if end.Equal(start) || end.Before(start) {
		return domain.Reservation{}, validationError("end_time must be after start_time")
	}
	if end.Sub(start) > maxServiceDuration {
		return domain.Reservation{}, validationError("duration too long")
	}

	res := domain.Reservation{
		ProviderID:    in.ProviderID,
		ServiceID:     in.ServiceID,
		ServiceName:   strings.TrimSpace(in.ServiceName),
		PriceYen:      in.PriceYen,
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Memo:          strings.TrimSpace(in.Memo),
		StartTime:     start,
		EndTime:       end,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Reservation{}, validationError("idempotency_key too long")
		}
		res.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("slotline:reserve:"+in.ProviderID+":"+key))
	}

	return s.commitWithRetry(ctx, res)
}

func (s *Service) commitWithRetry(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		out, err := s.reservations.Commit(ctx, res)
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return domain.Reservation{}, err
		}
		lastErr = err
		if attempt == s.retry.Attempts {
			break
		}

		timer := time.NewTimer(s.retry.Backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Reservation{}, &StorageError{err: lastErr}
		case <-timer.C:
		}
	}
	return domain.Reservation{}, &StorageError{err: lastErr}
}

func retryable(err error) bool {
	if errors.Is(err, store.ErrConflict) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrIdempotencyConflict) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func (s *Service) ListReservations(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Reservation, error) {
	if providerID == "" {
		return nil, validationError("provider_id is required")
	}

	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}

	return s.reservations.ListActive(ctx, providerID, start, end)
}

// UpdateStatus applies the staff confirm/cancel workflow. Once a cancellation
// is visible the reservation no longer blocks any slot.
func (s *Service) UpdateStatus(ctx context.Context, providerID string, reservationID uuid.UUID, next domain.ReservationStatus) (domain.Reservation, error) {
	if providerID == "" {
		return domain.Reservation{}, validationError("provider_id is required")
	}
	if reservationID == uuid.Nil {
		return domain.Reservation{}, validationError("reservation_id is required")
	}
	if next != domain.ReservationStatusConfirmed && next != domain.ReservationStatusCancelled {
		return domain.Reservation{}, validationError("status must be confirmed or cancelled")
	}

	return s.reservations.UpdateStatus(ctx, providerID, reservationID, next)
}
