package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/app/audit"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/guard"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/units"
)

const (
	entityBooking = "booking"
	entityBlock   = "block"
)

// Quoter prices a stay with the unit base price.
type Quoter interface {
	QuoteForUnit(ctx context.Context, unitID units.UnitID, dr daterange.DateRange, exclude booking.BookingID) (pricing.Quote, error)
}

// Service runs every calendar mutation: validate, quote, claim the slot
// through the guard, persist, then notify and audit. Notification and audit
// failures are logged and never fail the call.
type Service struct {
	Factory    uow.UoWFactory
	Guard      *guard.Guard
	Quotes     Quoter
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Dispatcher policies.Dispatcher
	Audit      audit.Logger
	Clock      func() time.Time
	IDs        func() string
	Logger     *slog.Logger
}

type CreateBookingParams struct {
	BookingID string
	UnitID    units.UnitID
	CheckIn   time.Time
	CheckOut  time.Time
	Guest     booking.GuestInfo
	Adults    int
	Children  int
	// Pending creates the booking unconfirmed; it still holds its dates.
	Pending bool
	ActorID string
}

type RescheduleBookingParams struct {
	BookingID booking.BookingID
	CheckIn   time.Time
	CheckOut  time.Time
	ActorID   string
}

type CreateBlockParams struct {
	BlockID string
	UnitID  units.UnitID
	Start   time.Time
	End     time.Time
	Reason  string
	ActorID string
}

type RescheduleBlockParams struct {
	BlockID availability.BlockID
	Start   time.Time
	End     time.Time
	ActorID string
}

func (s *Service) CreateBooking(ctx context.Context, p CreateBookingParams) (*booking.Booking, error) {
	if p.Adults < 1 {
		return nil, availability.Invalid("at least one adult is required")
	}
	if p.Children < 0 {
		return nil, availability.Invalid("children must not be negative")
	}
	dr, err := stayRange(p.CheckIn, p.CheckOut)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := booking.ValidateDateRange(dr, now); err != nil {
		return nil, availability.Invalid("check-in date is in the past")
	}
	unit, err := s.loadUnit(ctx, p.UnitID)
	if err != nil {
		return nil, err
	}
	if guests := p.Adults + p.Children; guests > unit.Capacity {
		return nil, availability.Invalid("party of %d exceeds unit capacity of %d", guests, unit.Capacity)
	}
	quote, err := s.Quotes.QuoteForUnit(ctx, unit.ID, dr, "")
	if err != nil {
		return nil, err
	}
	if quote.BelowMinStay() {
		return nil, availability.Invalid("%s", quote.MinStayReason())
	}

	id := strings.TrimSpace(p.BookingID)
	if id == "" {
		id = s.newID()
	}
	status := booking.StatusConfirmed
	if p.Pending {
		status = booking.StatusPending
	}

	var created *booking.Booking
	req := guard.SlotRequest{UnitID: unit.ID, From: dr.CheckIn, To: dr.CheckOut, ActorID: p.ActorID}
	err = s.Guard.ReserveSlot(ctx, req, func(ctx context.Context, tx uow.UnitOfWork) error {
		if _, err := tx.Bookings().ByID(ctx, booking.BookingID(id)); err == nil {
			return availability.Invalid("booking %s already exists", id)
		} else if !errors.Is(err, booking.ErrBookingNotFound) {
			return err
		}
		b, err := booking.NewBooking(booking.CreateParams{
			ID:        booking.BookingID(id),
			UnitID:    unit.ID,
			Range:     dr,
			Status:    status,
			Guest:     p.Guest,
			Adults:    p.Adults,
			Children:  p.Children,
			Total:     quote.Total,
			CreatedBy: p.ActorID,
			CreatedAt: now,
		})
		if err != nil {
			return translate(err)
		}
		if err := tx.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, s.Outbox, s.Encoder, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	after := dto.MapBooking(created)
	s.dispatch(ctx, policies.UpdateBookingCreate, created.UnitID, after)
	s.audit(ctx, p.ActorID, entityBooking, string(created.ID), "create", nil, after)
	return created, nil
}

func (s *Service) RescheduleBooking(ctx context.Context, p RescheduleBookingParams) (*booking.Booking, error) {
	current, err := s.loadBooking(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	dr, err := stayRange(p.CheckIn, p.CheckOut)
	if err != nil {
		return nil, err
	}
	// a stay already under way may keep its check-in while the checkout moves
	if !dr.CheckIn.Equal(current.Range.CheckIn) {
		if err := booking.ValidateDateRange(dr, s.now()); err != nil {
			return nil, availability.Invalid("check-in date is in the past")
		}
	}
	quote, err := s.Quotes.QuoteForUnit(ctx, current.UnitID, dr, current.ID)
	if err != nil {
		return nil, err
	}
	if quote.BelowMinStay() {
		return nil, availability.Invalid("%s", quote.MinStayReason())
	}

	var before dto.Booking
	var moved *booking.Booking
	req := guard.SlotRequest{UnitID: current.UnitID, From: dr.CheckIn, To: dr.CheckOut, BookingID: current.ID, ActorID: p.ActorID}
	err = s.Guard.ReserveSlot(ctx, req, func(ctx context.Context, tx uow.UnitOfWork) error {
		b, err := tx.Bookings().ByID(ctx, current.ID)
		if err != nil {
			return notFoundBooking(current.ID, err)
		}
		if !b.Active() {
			return availability.NotFound(entityBooking, string(b.ID))
		}
		before = dto.MapBooking(b)
		if err := b.Reschedule(dr, quote.Total, s.now()); err != nil {
			return translate(err)
		}
		if err := tx.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, s.Outbox, s.Encoder, b); err != nil {
			return err
		}
		moved = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	after := dto.MapBooking(moved)
	s.dispatch(ctx, policies.UpdateBookingReschedule, moved.UnitID, after)
	s.audit(ctx, p.ActorID, entityBooking, string(moved.ID), "reschedule", before, after)
	return moved, nil
}

// ConfirmBooking moves a PENDING booking to CONFIRMED. Its dates were held
// since creation, so only the status changes.
func (s *Service) ConfirmBooking(ctx context.Context, id booking.BookingID, actorID string) (*booking.Booking, error) {
	current, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	var before dto.Booking
	var confirmed *booking.Booking
	err = s.Guard.Exclusive(ctx, current.UnitID, func(ctx context.Context, tx uow.UnitOfWork) error {
		b, err := tx.Bookings().ByID(ctx, id)
		if err != nil {
			return notFoundBooking(id, err)
		}
		if b.Status != booking.StatusPending {
			return availability.Invalid("booking %s is %s, only PENDING bookings can be confirmed", id, b.Status)
		}
		before = dto.MapBooking(b)
		if err := b.Confirm(s.now()); err != nil {
			return translate(err)
		}
		if err := tx.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, s.Outbox, s.Encoder, b); err != nil {
			return err
		}
		confirmed = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	after := dto.MapBooking(confirmed)
	s.dispatch(ctx, policies.UpdateBookingConfirm, confirmed.UnitID, after)
	s.audit(ctx, actorID, entityBooking, string(confirmed.ID), "confirm", before, after)
	return confirmed, nil
}

// CancelBooking marks the booking CANCELLED and frees its dates. The row is kept.
func (s *Service) CancelBooking(ctx context.Context, id booking.BookingID, actorID string) (*booking.Booking, error) {
	current, err := s.loadAnyBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	var before dto.Booking
	var cancelled *booking.Booking
	err = s.Guard.Exclusive(ctx, current.UnitID, func(ctx context.Context, tx uow.UnitOfWork) error {
		b, err := tx.Bookings().ByID(ctx, id)
		if err != nil {
			return notFoundBooking(id, err)
		}
		if b.Status == booking.StatusCancelled {
			return availability.Invalid("booking %s is already cancelled", id)
		}
		before = dto.MapBooking(b)
		if err := b.Cancel(s.now()); err != nil {
			return translate(err)
		}
		if err := tx.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, s.Outbox, s.Encoder, b); err != nil {
			return err
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	after := dto.MapBooking(cancelled)
	s.dispatch(ctx, policies.UpdateBookingCancel, cancelled.UnitID, after)
	s.audit(ctx, actorID, entityBooking, string(cancelled.ID), "cancel", before, after)
	return cancelled, nil
}

func (s *Service) CreateBlock(ctx context.Context, p CreateBlockParams) (*availability.Block, error) {
	dr, err := stayRange(p.Start, p.End)
	if err != nil {
		return nil, err
	}
	unit, err := s.loadUnit(ctx, p.UnitID)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(p.BlockID)
	if id == "" {
		id = s.newID()
	}

	var created *availability.Block
	req := guard.SlotRequest{UnitID: unit.ID, From: dr.CheckIn, To: dr.CheckOut, ActorID: p.ActorID}
	err = s.Guard.ReserveSlot(ctx, req, func(ctx context.Context, tx uow.UnitOfWork) error {
		b, err := availability.NewBlock(availability.BlockParams{
			ID:        availability.BlockID(id),
			UnitID:    unit.ID,
			Range:     dr,
			Reason:    p.Reason,
			CreatedBy: p.ActorID,
			Now:       s.now(),
		})
		if err != nil {
			return translate(err)
		}
		if err := tx.Blocks().Save(ctx, b); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, s.Outbox, s.Encoder, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	after := dto.MapBlock(created)
	s.dispatch(ctx, policies.UpdateBlockCreate, created.UnitID, after)
	s.audit(ctx, p.ActorID, entityBlock, string(created.ID), "create", nil, after)
	return created, nil
}

func (s *Service) RescheduleBlock(ctx context.Context, p RescheduleBlockParams) (*availability.Block, error) {
	current, err := s.loadBlock(ctx, p.BlockID)
	if err != nil {
		return nil, err
	}
	dr, err := stayRange(p.Start, p.End)
	if err != nil {
		return nil, err
	}

	var before dto.Block
	var moved *availability.Block
	req := guard.SlotRequest{UnitID: current.UnitID, From: dr.CheckIn, To: dr.CheckOut, BlockID: current.ID, ActorID: p.ActorID}
	err = s.Guard.ReserveSlot(ctx, req, func(ctx context.Context, tx uow.UnitOfWork) error {
		b, err := tx.Blocks().ByID(ctx, current.ID)
		if err != nil {
			return notFoundBlock(current.ID, err)
		}
		before = dto.MapBlock(b)
		if err := b.Move(dr, s.now()); err != nil {
			return translate(err)
		}
		if err := tx.Blocks().Save(ctx, b); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, s.Outbox, s.Encoder, b); err != nil {
			return err
		}
		moved = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	after := dto.MapBlock(moved)
	s.dispatch(ctx, policies.UpdateBlockReschedule, moved.UnitID, after)
	s.audit(ctx, p.ActorID, entityBlock, string(moved.ID), "reschedule", before, after)
	return moved, nil
}

func (s *Service) DeleteBlock(ctx context.Context, id availability.BlockID, actorID string) error {
	current, err := s.loadBlock(ctx, id)
	if err != nil {
		return err
	}

	var before dto.Block
	err = s.Guard.Exclusive(ctx, current.UnitID, func(ctx context.Context, tx uow.UnitOfWork) error {
		b, err := tx.Blocks().ByID(ctx, id)
		if err != nil {
			return notFoundBlock(id, err)
		}
		before = dto.MapBlock(b)
		b.Release(s.now())
		if err := tx.Blocks().Delete(ctx, id); err != nil {
			return notFoundBlock(id, err)
		}
		return outbox.Drain(ctx, s.Outbox, s.Encoder, b)
	})
	if err != nil {
		return err
	}

	s.dispatch(ctx, policies.UpdateBlockDelete, current.UnitID, before)
	s.audit(ctx, actorID, entityBlock, string(id), "delete", before, nil)
	return nil
}

// Quote previews the price of a stay without claiming anything.
func (s *Service) Quote(ctx context.Context, unitID units.UnitID, checkin, checkout time.Time) (pricing.Quote, error) {
	dr, err := stayRange(checkin, checkout)
	if err != nil {
		return pricing.Quote{}, err
	}
	return s.Quotes.QuoteForUnit(ctx, unitID, dr, "")
}

// Calendar returns the active bookings and blocks of a unit overlapping [from, to).
func (s *Service) Calendar(ctx context.Context, unitID units.UnitID, from, to time.Time) (*availability.Calendar, daterange.DateRange, error) {
	window, err := daterange.New(from, to)
	if err != nil {
		return nil, daterange.DateRange{}, availability.Invalid("to must be after from")
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, s.Factory)
	if err != nil {
		return nil, window, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if _, err := unit.Units().ByID(execCtx, unitID); err != nil {
		return nil, window, notFoundUnit(unitID, err)
	}
	bookings, err := unit.Bookings().ListByUnit(execCtx, unitID, window)
	if err != nil {
		return nil, window, fmt.Errorf("calendar: load bookings: %w", err)
	}
	blocks, err := unit.Blocks().ListByUnit(execCtx, unitID, window)
	if err != nil {
		return nil, window, fmt.Errorf("calendar: load blocks: %w", err)
	}
	return availability.NewCalendar(unitID, bookings, blocks), window, nil
}

func (s *Service) loadUnit(ctx context.Context, id units.UnitID) (*units.Unit, error) {
	var out *units.Unit
	err := s.read(ctx, func(ctx context.Context, tx uow.UnitOfWork) error {
		u, err := tx.Units().ByID(ctx, id)
		if err != nil {
			return notFoundUnit(id, err)
		}
		out = u
		return nil
	})
	return out, err
}

// loadBooking returns an active booking; a cancelled one is reported missing.
func (s *Service) loadBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	b, err := s.loadAnyBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Active() {
		return nil, availability.NotFound(entityBooking, string(id))
	}
	return b, nil
}

func (s *Service) loadAnyBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	var out *booking.Booking
	err := s.read(ctx, func(ctx context.Context, tx uow.UnitOfWork) error {
		b, err := tx.Bookings().ByID(ctx, id)
		if err != nil {
			return notFoundBooking(id, err)
		}
		out = b
		return nil
	})
	return out, err
}

func (s *Service) loadBlock(ctx context.Context, id availability.BlockID) (*availability.Block, error) {
	var out *availability.Block
	err := s.read(ctx, func(ctx context.Context, tx uow.UnitOfWork) error {
		b, err := tx.Blocks().ByID(ctx, id)
		if err != nil {
			return notFoundBlock(id, err)
		}
		out = b
		return nil
	})
	return out, err
}

func (s *Service) read(ctx context.Context, fn func(ctx context.Context, tx uow.UnitOfWork) error) error {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, s.Factory)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return fn(execCtx, unit)
}

func (s *Service) dispatch(ctx context.Context, kind string, unitID units.UnitID, payload any) {
	if s.Dispatcher == nil {
		return
	}
	update := policies.Update{UnitID: string(unitID), Type: kind, Payload: payload, At: s.now().UTC()}
	if err := s.Dispatcher.PushUpdate(ctx, update); err != nil && s.Logger != nil {
		s.Logger.Warn("channel update failed", "unit_id", unitID, "type", kind, "error", err)
	}
}

func (s *Service) audit(ctx context.Context, actorID, entityType, entityID, action string, before, after any) {
	if s.Audit == nil {
		return
	}
	s.Audit.LogChange(ctx, actorID, entityType, entityID, action, before, after)
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.IDs != nil {
		return s.IDs()
	}
	return uuid.NewString()
}

func stayRange(from, to time.Time) (daterange.DateRange, error) {
	if from.IsZero() || to.IsZero() {
		return daterange.DateRange{}, availability.Invalid("both dates are required")
	}
	dr, err := daterange.New(from, to)
	if err != nil {
		return daterange.DateRange{}, availability.Invalid("checkout must be after checkin")
	}
	return dr, nil
}

func notFoundUnit(id units.UnitID, err error) error {
	if errors.Is(err, units.ErrUnitNotFound) {
		return availability.NotFound("unit", string(id))
	}
	return err
}

func notFoundBooking(id booking.BookingID, err error) error {
	if errors.Is(err, booking.ErrBookingNotFound) {
		return availability.NotFound(entityBooking, string(id))
	}
	return err
}

func notFoundBlock(id availability.BlockID, err error) error {
	if errors.Is(err, availability.ErrBlockNotFound) {
		return availability.NotFound(entityBlock, string(id))
	}
	return err
}

// translate turns domain rule violations into validation errors.
func translate(err error) error {
	switch {
	case errors.Is(err, booking.ErrInvalidGuests):
		return availability.Invalid("at least one adult is required")
	case errors.Is(err, booking.ErrNegativeTotal):
		return availability.Invalid("total must not be negative")
	case errors.Is(err, booking.ErrInvalidState):
		return availability.Invalid("booking is not active")
	case errors.Is(err, daterange.ErrInvalidRange):
		return availability.Invalid("checkout must be after checkin")
	default:
		return err
	}
}
