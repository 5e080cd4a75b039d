package calendar

import (
	"context"
	"errors"
	"time"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/middleware"
	calendarsvc "rentdesk/internal/app/services/calendar"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/units"
)

const (
	createBookingKey     = "calendar.booking.create"
	rescheduleBookingKey = "calendar.booking.reschedule"
	confirmBookingKey    = "calendar.booking.confirm"
	cancelBookingKey     = "calendar.booking.cancel"
)

var ErrServiceRequired = errors.New("calendar: service required")

// Calendar writes claim a per-unit lock and commit inside it, so they bypass
// the bus transaction.
type lockedWrite struct{}

func (lockedWrite) ManagesTransaction() bool { return true }

type CreateBookingCommand struct {
	lockedWrite
	ActorID         string `validate:"required"`
	BookingID       string
	UnitID          string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Guest           dto.GuestDTO
	Adults          int `validate:"min=1"`
	Children        int `validate:"min=0"`
	Pending         bool
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) Actor() string { return c.ActorID }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

type CreateBookingHandler struct {
	Service *calendarsvc.Service
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (dto.Booking, error) {
	if h.Service == nil {
		return dto.Booking{}, ErrServiceRequired
	}
	b, err := h.Service.CreateBooking(ctx, calendarsvc.CreateBookingParams{
		BookingID: cmd.BookingID,
		UnitID:    units.UnitID(cmd.UnitID),
		CheckIn:   cmd.CheckIn,
		CheckOut:  cmd.CheckOut,
		Guest: domainbooking.GuestInfo{
			Name:  cmd.Guest.Name,
			Email: cmd.Guest.Email,
			Phone: cmd.Guest.Phone,
		},
		Adults:   cmd.Adults,
		Children: cmd.Children,
		Pending:  cmd.Pending,
		ActorID:  cmd.ActorID,
	})
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

type RescheduleBookingCommand struct {
	lockedWrite
	ActorID   string    `validate:"required"`
	BookingID string    `validate:"required"`
	CheckIn   time.Time `validate:"required"`
	CheckOut  time.Time `validate:"required"`
}

func (c RescheduleBookingCommand) Key() string { return rescheduleBookingKey }

func (c RescheduleBookingCommand) Actor() string { return c.ActorID }

type RescheduleBookingHandler struct {
	Service *calendarsvc.Service
}

func (h *RescheduleBookingHandler) Handle(ctx context.Context, cmd RescheduleBookingCommand) (dto.Booking, error) {
	if h.Service == nil {
		return dto.Booking{}, ErrServiceRequired
	}
	b, err := h.Service.RescheduleBooking(ctx, calendarsvc.RescheduleBookingParams{
		BookingID: domainbooking.BookingID(cmd.BookingID),
		CheckIn:   cmd.CheckIn,
		CheckOut:  cmd.CheckOut,
		ActorID:   cmd.ActorID,
	})
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

type ConfirmBookingCommand struct {
	lockedWrite
	ActorID   string `validate:"required"`
	BookingID string `validate:"required"`
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

func (c ConfirmBookingCommand) Actor() string { return c.ActorID }

type ConfirmBookingHandler struct {
	Service *calendarsvc.Service
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (dto.Booking, error) {
	if h.Service == nil {
		return dto.Booking{}, ErrServiceRequired
	}
	b, err := h.Service.ConfirmBooking(ctx, domainbooking.BookingID(cmd.BookingID), cmd.ActorID)
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

type CancelBookingCommand struct {
	lockedWrite
	ActorID   string `validate:"required"`
	BookingID string `validate:"required"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) Actor() string { return c.ActorID }

type CancelBookingHandler struct {
	Service *calendarsvc.Service
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (dto.Booking, error) {
	if h.Service == nil {
		return dto.Booking{}, ErrServiceRequired
	}
	b, err := h.Service.CancelBooking(ctx, domainbooking.BookingID(cmd.BookingID), cmd.ActorID)
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

var (
	_ commands.Handler[CreateBookingCommand, dto.Booking]     = (*CreateBookingHandler)(nil)
	_ commands.Handler[RescheduleBookingCommand, dto.Booking] = (*RescheduleBookingHandler)(nil)
	_ commands.Handler[ConfirmBookingCommand, dto.Booking]    = (*ConfirmBookingHandler)(nil)
	_ commands.Handler[CancelBookingCommand, dto.Booking]     = (*CancelBookingHandler)(nil)
	_ middleware.IdempotentCommand                            = CreateBookingCommand{}
	_ middleware.SelfManagedCommand                           = CreateBookingCommand{}
	_ middleware.ActorCommand                                 = CancelBookingCommand{}
)
