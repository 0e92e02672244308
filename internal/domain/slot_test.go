package domain

import (
	"testing"
	"time"
)

func collectCandidates(horizonStart, horizonEnd time.Time, granularity, duration time.Duration) []Interval {
	var out []Interval
	for c := range SlotCandidates(horizonStart, horizonEnd, granularity, duration) {
		out = append(out, c)
	}
	return out
}

func TestSlotCandidates_StepAndDuration(t *testing.T) {
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	got := collectCandidates(start, end, 30*time.Minute, 100*time.Minute)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	for i, c := range got {
		wantStart := start.Add(time.Duration(i) * 30 * time.Minute)
		if !c.Start.Equal(wantStart) {
			t.Fatalf("candidate %d start = %v, want %v", i, c.Start, wantStart)
		}
		if !c.End.Equal(wantStart.Add(100 * time.Minute)) {
			t.Fatalf("candidate %d end = %v, want start+100m", i, c.End)
		}
	}

	// The last candidate ends past the horizon; generation does not filter it.
	if last := got[len(got)-1]; !last.End.After(end) {
		t.Fatalf("expected tail candidate to stick out past the horizon, got end %v", last.End)
	}
}

func TestSlotCandidates_AlignedToClockGrid(t *testing.T) {
	// A horizon opening mid-grid must not shift the whole grid with it.
	start := time.Date(2026, 1, 5, 10, 7, 13, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	got := collectCandidates(start, end, 30*time.Minute, time.Hour)
	if len(got) == 0 {
		t.Fatalf("no candidates")
	}

	wantFirst := time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC)
	if !got[0].Start.Equal(wantFirst) {
		t.Fatalf("first candidate start = %v, want %v", got[0].Start, wantFirst)
	}
	for i, c := range got {
		if !c.Start.Truncate(30 * time.Minute).Equal(c.Start) {
			t.Fatalf("candidate %d start %v is not on the 30m grid", i, c.Start)
		}
		if c.Start.Before(start) {
			t.Fatalf("candidate %d start %v precedes the horizon", i, c.Start)
		}
	}

	// An already aligned horizon start is its own first candidate.
	aligned := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	got = collectCandidates(aligned, aligned.Add(time.Hour), 30*time.Minute, time.Hour)
	if len(got) != 2 || !got[0].Start.Equal(aligned) {
		t.Fatalf("aligned horizon: got %d candidates starting %v", len(got), got[0].Start)
	}
}

func TestSlotCandidates_Restartable(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	seq := SlotCandidates(start, start.Add(3*time.Hour), time.Hour, time.Hour)

	first := collectCandidates(start, start.Add(3*time.Hour), time.Hour, time.Hour)
	var second []Interval
	for c := range seq {
		second = append(second, c)
	}
	var third []Interval
	for c := range seq {
		third = append(third, c)
	}

	if len(first) != 3 || len(second) != 3 || len(third) != 3 {
		t.Fatalf("lens = %d/%d/%d, want 3 each", len(first), len(second), len(third))
	}
	for i := range second {
		if !second[i].Start.Equal(third[i].Start) {
			t.Fatalf("restarted sequence diverged at %d", i)
		}
	}
}

func TestSlotCandidates_EarlyStop(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	n := 0
	for range SlotCandidates(start, start.Add(24*time.Hour), 30*time.Minute, time.Hour) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

func TestSlotCandidates_DegenerateInputs(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := collectCandidates(start, start, 30*time.Minute, time.Hour); got != nil {
		t.Fatalf("empty horizon: got %d candidates, want none", len(got))
	}
	if got := collectCandidates(start, start.Add(time.Hour), 0, time.Hour); got != nil {
		t.Fatalf("zero granularity: got %d candidates, want none", len(got))
	}
	if got := collectCandidates(start, start.Add(time.Hour), 30*time.Minute, 0); got != nil {
		t.Fatalf("zero duration: got %d candidates, want none", len(got))
	}
}

func TestClassify(t *testing.T) {
	shift := func(startHour, endHour int) Shift {
		return Shift{
			ProviderID: "p1",
			StartTime:  at(t, startHour, 0),
			EndTime:    at(t, endHour, 0),
		}
	}
	reservation := func(status ReservationStatus, startHour, startMin, endHour, endMin int) Reservation {
		return Reservation{
			ProviderID: "p1",
			Status:     status,
			StartTime:  at(t, startHour, startMin),
			EndTime:    at(t, endHour, endMin),
		}
	}

	tests := []struct {
		name         string
		candidate    Interval
		shifts       []Shift
		reservations []Reservation
		want         SlotStatus
	}{
		{
			name:      "free inside window",
			candidate: span(t, 10, 0, 11, 0),
			shifts:    []Shift{shift(10, 18)},
			want:      SlotStatusFree,
		},
		{
			name:      "closed when no shifts",
			candidate: span(t, 10, 0, 11, 0),
			want:      SlotStatusClosed,
		},
		{
			name:      "closed when end exceeds window",
			candidate: span(t, 17, 30, 18, 30),
			shifts:    []Shift{shift(10, 18)},
			want:      SlotStatusClosed,
		},
		{
			name:      "closed when straddling two adjacent windows",
			candidate: span(t, 13, 30, 14, 30),
			shifts:    []Shift{shift(10, 14), shift(14, 18)},
			want:      SlotStatusClosed,
		},
		{
			name:      "free when contained in one of two overlapping windows",
			candidate: span(t, 13, 30, 14, 30),
			shifts:    []Shift{shift(10, 14), shift(13, 18)},
			want:      SlotStatusFree,
		},
		{
			name:         "booked on pending overlap",
			candidate:    span(t, 12, 30, 13, 30),
			shifts:       []Shift{shift(10, 18)},
			reservations: []Reservation{reservation(ReservationStatusPending, 13, 0, 14, 0)},
			want:         SlotStatusBooked,
		},
		{
			name:         "booked on confirmed overlap",
			candidate:    span(t, 12, 30, 13, 30),
			shifts:       []Shift{shift(10, 18)},
			reservations: []Reservation{reservation(ReservationStatusConfirmed, 13, 0, 14, 0)},
			want:         SlotStatusBooked,
		},
		{
			name:         "free right after a reservation ends",
			candidate:    span(t, 14, 0, 15, 0),
			shifts:       []Shift{shift(10, 18)},
			reservations: []Reservation{reservation(ReservationStatusPending, 13, 0, 14, 0)},
			want:         SlotStatusFree,
		},
		{
			name:         "cancelled reservation is inert",
			candidate:    span(t, 12, 30, 13, 30),
			shifts:       []Shift{shift(10, 18)},
			reservations: []Reservation{reservation(ReservationStatusCancelled, 13, 0, 14, 0)},
			want:         SlotStatusFree,
		},
		{
			name:      "closed wins over booked",
			candidate: span(t, 9, 0, 10, 0),
			shifts:    []Shift{shift(10, 18)},
			reservations: []Reservation{
				reservation(ReservationStatusPending, 9, 30, 10, 30),
			},
			want: SlotStatusClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.candidate, tt.shifts, tt.reservations); got != tt.want {
				t.Fatalf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReservationStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ReservationStatus
		want     bool
	}{
		{ReservationStatusPending, ReservationStatusConfirmed, true},
		{ReservationStatusPending, ReservationStatusCancelled, true},
		{ReservationStatusConfirmed, ReservationStatusCancelled, true},
		{ReservationStatusConfirmed, ReservationStatusPending, false},
		{ReservationStatusCancelled, ReservationStatusPending, false},
		{ReservationStatusCancelled, ReservationStatusConfirmed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
