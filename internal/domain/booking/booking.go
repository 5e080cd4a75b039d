package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/events"
	"rentdesk/internal/domain/shared/money"
	"rentdesk/internal/domain/units"
)

var (
	ErrInvalidGuests   = errors.New("booking: at least one adult is required")
	ErrInvalidState    = errors.New("booking: invalid state transition")
	ErrBookingNotFound = errors.New("booking: not found")
	ErrNegativeTotal   = errors.New("booking: total must not be negative")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

type GuestInfo struct {
	Name  string
	Email string
	Phone string
}

type Booking struct {
	ID          BookingID
	UnitID      units.UnitID
	Range       daterange.DateRange
	Status      Status
	Guest       GuestInfo
	Adults      int
	Children    int
	Total       money.Money
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt time.Time
	Version     int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	// ListByUnit returns the active bookings of the unit overlapping window,
	// ordered by check-in.
	ListByUnit(ctx context.Context, unitID units.UnitID, window daterange.DateRange) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	UnitID    units.UnitID
	Range     daterange.DateRange
	Status    Status
	Guest     GuestInfo
	Adults    int
	Children  int
	Total     money.Money
	CreatedBy string
	CreatedAt time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("booking: id required")
	}
	if params.UnitID == "" {
		return nil, errors.New("booking: unit id required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if params.Adults < 1 || params.Children < 0 {
		return nil, ErrInvalidGuests
	}
	if params.Total.Amount < 0 {
		return nil, ErrNegativeTotal
	}
	status := params.Status
	if status == "" {
		status = StatusConfirmed
	}
	if status == StatusCancelled || !status.Valid() {
		return nil, ErrInvalidState
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:        params.ID,
		UnitID:    params.UnitID,
		Range:     params.Range,
		Status:    status,
		Guest:     params.Guest,
		Adults:    params.Adults,
		Children:  params.Children,
		Total:     params.Total,
		CreatedBy: params.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.Record(BookingCreated{BookingID: b.ID, UnitID: b.UnitID, Range: b.Range, Status: b.Status, Total: b.Total, At: now})
	return b, nil
}

// Active bookings hold their dates on the unit calendar.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

func (b *Booking) Confirm(now time.Time) error {
	if b.Status != StatusPending {
		return ErrInvalidState
	}
	b.Status = StatusConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{BookingID: b.ID, UnitID: b.UnitID, Range: b.Range, Total: b.Total, At: b.UpdatedAt})
	return nil
}

// Reschedule moves an active booking to new dates with a re-quoted total.
func (b *Booking) Reschedule(r daterange.DateRange, total money.Money, now time.Time) error {
	if !b.Active() {
		return ErrInvalidState
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if total.Amount < 0 {
		return ErrNegativeTotal
	}
	previous := b.Range
	b.Range = r
	b.Total = total
	b.UpdatedAt = now.UTC()
	b.Record(BookingRescheduled{BookingID: b.ID, UnitID: b.UnitID, From: previous, To: r, Total: total, At: b.UpdatedAt})
	return nil
}

// Cancel is terminal; the booking keeps its row but frees its dates.
func (b *Booking) Cancel(now time.Time) error {
	if !b.Active() {
		return ErrInvalidState
	}
	b.Status = StatusCancelled
	b.UpdatedAt = now.UTC()
	b.CancelledAt = b.UpdatedAt
	b.Record(BookingCancelled{BookingID: b.ID, UnitID: b.UnitID, Range: b.Range, At: b.UpdatedAt})
	return nil
}
