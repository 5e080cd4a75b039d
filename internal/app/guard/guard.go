package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/units"
)

// ErrLockTimeout means the unit stayed locked past the deadline. Nothing was written.
var ErrLockTimeout = errors.New("guard: timed out waiting for unit lock")

// Locker serializes work per key. Lock blocks until the key is free or ctx
// ends; the returned release must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// TxLocker takes the per-unit lock inside the unit of work that does the
// write; commit or rollback releases it. ctx carries the bound unit.
type TxLocker interface {
	LockInTx(ctx context.Context, key string) error
}

// SlotRequest claims [From, To) on a unit. BookingID or BlockID name the entry
// being moved so it does not conflict with itself.
type SlotRequest struct {
	UnitID    units.UnitID
	From      time.Time
	To        time.Time
	BookingID booking.BookingID
	BlockID   availability.BlockID
	ActorID   string
}

// ApplyFunc persists the change inside the claimed slot. ctx carries unit.
type ApplyFunc func(ctx context.Context, unit uow.UnitOfWork) error

// Guard is the only writer of unit calendars. For one unit it runs lock, begin,
// conflict check, apply, commit, unlock; different units never wait on each other.
type Guard struct {
	Locker Locker
	// TxLocker is used instead of Locker when set.
	TxLocker TxLocker
	Factory  uow.UoWFactory
	// Timeout bounds lock wait plus the work inside; zero leaves it to ctx.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// ReserveSlot checks the requested range against active bookings and blocks
// and runs apply in the same unit of work. apply may be nil.
func (g *Guard) ReserveSlot(ctx context.Context, req SlotRequest, apply ApplyFunc) error {
	dr, err := daterange.New(req.From, req.To)
	if err != nil {
		return availability.Invalid("checkout must be after checkin")
	}
	return g.withUnitLock(ctx, req.UnitID, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := g.checkSlot(ctx, unit, req, dr); err != nil {
			return err
		}
		if apply == nil {
			return nil
		}
		return apply(ctx, unit)
	})
}

// Exclusive runs fn under the unit lock without conflict checks.
func (g *Guard) Exclusive(ctx context.Context, unitID units.UnitID, fn ApplyFunc) error {
	return g.withUnitLock(ctx, unitID, fn)
}

func (g *Guard) checkSlot(ctx context.Context, unit uow.UnitOfWork, req SlotRequest, dr daterange.DateRange) error {
	bookings, err := unit.Bookings().ListByUnit(ctx, req.UnitID, dr)
	if err != nil {
		return fmt.Errorf("guard: load bookings: %w", err)
	}
	blocks, err := unit.Blocks().ListByUnit(ctx, req.UnitID, dr)
	if err != nil {
		return fmt.Errorf("guard: load blocks: %w", err)
	}
	cal := availability.NewCalendar(req.UnitID, bookings, blocks)
	err = cal.CanReserve(dr, availability.Exclusion{BookingID: req.BookingID, BlockID: req.BlockID}, g.now())
	if err != nil && g.Logger != nil {
		g.Logger.Warn("overbooking prevented",
			"unit_id", req.UnitID,
			"range", dr.String(),
			"actor_id", req.ActorID,
		)
	}
	return err
}

func (g *Guard) withUnitLock(ctx context.Context, unitID units.UnitID, fn ApplyFunc) error {
	if (g.Locker == nil && g.TxLocker == nil) || g.Factory == nil {
		return errors.New("guard: locker and uow factory required")
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	key := LockKey(unitID)
	if g.TxLocker == nil {
		release, err := g.Locker.Lock(ctx, key)
		if err != nil {
			return lockError(ctx, unitID, err)
		}
		defer release()
	}

	unit, err := g.Factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		if ctx.Err() != nil {
			return lockError(ctx, unitID, err)
		}
		return err
	}
	execCtx := uow.Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	if g.TxLocker != nil {
		if err := g.TxLocker.LockInTx(execCtx, key); err != nil {
			return lockError(ctx, unitID, err)
		}
	}
	if err := fn(execCtx, unit); err != nil {
		return err
	}
	// a lease-based lock may have expired with the deadline; do not commit past it
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: unit %s: %v", ErrLockTimeout, unitID, ctxErr)
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

func lockError(ctx context.Context, unitID units.UnitID, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: unit %s: %v", ErrLockTimeout, unitID, ctxErr)
	}
	return fmt.Errorf("guard: lock unit %s: %w", unitID, err)
}

func (g *Guard) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// LockKey is the per-unit lock name shared by every locker backend.
func LockKey(unitID units.UnitID) string {
	return "unit:" + string(unitID)
}
