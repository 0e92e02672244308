package domain

import (
	"iter"
	"time"
)

type SlotStatus string

const (
	// SlotStatusClosed marks a candidate outside the provider's working hours.
	SlotStatusClosed SlotStatus = "closed"
	// SlotStatusFree marks a bookable candidate.
	SlotStatusFree SlotStatus = "free"
	// SlotStatusBooked marks a candidate that overlaps an active reservation.
	SlotStatusBooked SlotStatus = "booked"
)

// Slot is a derived candidate reservation interval. Slots are recomputed on
// every query and never persisted.
type Slot struct {
	ProviderID string
	Interval
	Status SlotStatus
}

// SlotCandidates yields every candidate interval whose start lies on a
// granularity-aligned wall-clock instant in [horizonStart, horizonEnd), in
// start order, with end = start + duration. The grid is anchored to the clock
// (a 30-minute granularity yields :00 and :30 starts), not to horizonStart;
// an unaligned horizonStart rounds up to the first instant on the grid.
// Candidates that run past a window end are yielded too; Classify marks them
// closed, keeping one source of truth for validity.
//
// The sequence is restartable: ranging over it again yields the same
// candidates.
func SlotCandidates(horizonStart, horizonEnd time.Time, granularity, duration time.Duration) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		if granularity <= 0 || duration <= 0 {
			return
		}
		first := horizonStart.UTC().Truncate(granularity)
		if first.Before(horizonStart.UTC()) {
			first = first.Add(granularity)
		}
		for start := first; start.Before(horizonEnd); start = start.Add(granularity) {
			if !yield(Interval{Start: start, End: start.Add(duration)}) {
				return
			}
		}
	}
}

// Classify labels one candidate against a provider's shifts and reservations.
//
// A candidate is closed unless it fits entirely inside a single shift;
// straddling two adjacent shifts does not count (shift management is expected
// to merge contiguous shifts). Otherwise it is booked when any active
// reservation overlaps it, else free. Shifts and reservations may arrive in
// any order.
func Classify(candidate Interval, shifts []Shift, reservations []Reservation) SlotStatus {
	inside := false
	for _, s := range shifts {
		if s.Interval().Contains(candidate) {
			inside = true
			break
		}
	}
	if !inside {
		return SlotStatusClosed
	}

	for _, r := range reservations {
		if !r.Status.Active() {
			continue
		}
		if r.Interval().Overlaps(candidate) {
			return SlotStatusBooked
		}
	}
	return SlotStatusFree
}
