package booking

import (
	"errors"
	"testing"
	"time"

	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	dr, err := daterange.Parse("2024-01-01", "2024-01-04")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBooking(CreateParams{
		ID:        "b-1",
		UnitID:    "u-1",
		Range:     dr,
		Adults:    2,
		Total:     money.Must(90000, "USD"),
		CreatedAt: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("new booking: %v", err)
	}
	return b
}

func TestNewBookingDefaultsToConfirmed(t *testing.T) {
	b := newTestBooking(t)
	if b.Status != StatusConfirmed || !b.Active() {
		t.Fatalf("status = %s", b.Status)
	}
	if got := b.PendingEvents(); len(got) != 1 || got[0].EventName() != "booking.created" {
		t.Fatalf("events = %v", got)
	}
}

func TestNewBookingRejectsNoAdults(t *testing.T) {
	dr, _ := daterange.Parse("2024-01-01", "2024-01-04")
	_, err := NewBooking(CreateParams{ID: "b", UnitID: "u", Range: dr, Adults: 0, Total: money.Must(1, "USD")})
	if !errors.Is(err, ErrInvalidGuests) {
		t.Fatalf("expected ErrInvalidGuests, got %v", err)
	}
}

func TestCancelIsTerminal(t *testing.T) {
	b := newTestBooking(t)
	now := time.Date(2023, 12, 2, 0, 0, 0, 0, time.UTC)
	if err := b.Cancel(now); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if b.Active() || !b.CancelledAt.Equal(now) {
		t.Fatalf("booking still active after cancel")
	}
	if err := b.Cancel(now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second cancel = %v", err)
	}
	dr, _ := daterange.Parse("2024-02-01", "2024-02-03")
	if err := b.Reschedule(dr, money.Must(1, "USD"), now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("reschedule cancelled = %v", err)
	}
}

func TestRescheduleRecordsPreviousRange(t *testing.T) {
	b := newTestBooking(t)
	b.ClearEvents()
	dr, _ := daterange.Parse("2024-01-02", "2024-01-06")
	if err := b.Reschedule(dr, money.Must(120000, "USD"), time.Now()); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	evts := b.PendingEvents()
	if len(evts) != 1 {
		t.Fatalf("events = %d", len(evts))
	}
	moved := evts[0].(BookingRescheduled)
	if moved.From.String() != "2024-01-01..2024-01-04" || moved.To.String() != "2024-01-02..2024-01-06" {
		t.Fatalf("unexpected ranges %s -> %s", moved.From, moved.To)
	}
	if b.Total.Amount != 120000 {
		t.Fatalf("total = %d", b.Total.Amount)
	}
}

func TestValidateDateRange(t *testing.T) {
	dr, _ := daterange.Parse("2024-01-01", "2024-01-04")
	if err := ValidateDateRange(dr, time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("same-day check-in rejected: %v", err)
	}
	if err := ValidateDateRange(dr, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrCheckInInPast) {
		t.Fatalf("expected ErrCheckInInPast, got %v", err)
	}
}
