package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/app/audit"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/guard"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	domainrates "rentdesk/internal/domain/rates"
	"rentdesk/internal/domain/shared/daterange"
	domainunits "rentdesk/internal/domain/units"
)

const (
	createBandKey = "rates.band.create"
	updateBandKey = "rates.band.update"
	deleteBandKey = "rates.band.delete"
	listBandsKey  = "rates.band.list"
)

type BandPayload struct {
	StartDate         time.Time `validate:"required"`
	EndDate           time.Time `validate:"required"`
	WeekdayPriceCents *int64    `validate:"omitempty,min=0"`
	WeekendPriceCents *int64    `validate:"omitempty,min=0"`
	MinStay           int       `validate:"min=0"`
}

// Band writes run under the unit lock so two overlapping bands cannot both pass
// the overlap check.
type bandWrite struct{}

func (bandWrite) ManagesTransaction() bool { return true }

type CreateBandCommand struct {
	bandWrite
	ActorID string `validate:"required"`
	UnitID  string `validate:"required"`
	BandID  string
	Payload BandPayload
}

func (c CreateBandCommand) Key() string { return createBandKey }

func (c CreateBandCommand) Actor() string { return c.ActorID }

type UpdateBandCommand struct {
	bandWrite
	ActorID string `validate:"required"`
	BandID  string `validate:"required"`
	Payload BandPayload
}

func (c UpdateBandCommand) Key() string { return updateBandKey }

func (c UpdateBandCommand) Actor() string { return c.ActorID }

type DeleteBandCommand struct {
	bandWrite
	ActorID string `validate:"required"`
	BandID  string `validate:"required"`
}

func (c DeleteBandCommand) Key() string { return deleteBandKey }

func (c DeleteBandCommand) Actor() string { return c.ActorID }

type BandHandlers struct {
	UoWFactory uow.UoWFactory
	Guard      *guard.Guard
	Audit      audit.Logger
	Clock      func() time.Time
	IDs        func() string
}

func (h *BandHandlers) Create(ctx context.Context, cmd CreateBandCommand) (dto.Band, error) {
	unitID := domainunits.UnitID(cmd.UnitID)
	id := cmd.BandID
	if id == "" {
		id = h.newID()
	}
	var created domainrates.Band
	err := h.Guard.Exclusive(ctx, unitID, func(ctx context.Context, tx uow.UnitOfWork) error {
		if _, err := tx.Units().ByID(ctx, unitID); err != nil {
			if errors.Is(err, domainunits.ErrUnitNotFound) {
				return availability.NotFound("unit", cmd.UnitID)
			}
			return err
		}
		if _, err := tx.RateBands().ByID(ctx, domainrates.BandID(id)); err == nil {
			return availability.Invalid("band %s already exists", id)
		}
		band := cmd.Payload.band(domainrates.BandID(id), unitID)
		band.CreatedAt = now(h.Clock)
		band.UpdatedAt = band.CreatedAt
		if err := h.save(ctx, tx, band); err != nil {
			return err
		}
		created = band
		return nil
	})
	if err != nil {
		return dto.Band{}, err
	}
	after := dto.MapBand(&created)
	h.log(ctx, cmd.ActorID, id, "create", nil, after)
	return after, nil
}

func (h *BandHandlers) Update(ctx context.Context, cmd UpdateBandCommand) (dto.Band, error) {
	id := domainrates.BandID(cmd.BandID)
	current, err := h.load(ctx, id)
	if err != nil {
		return dto.Band{}, err
	}
	var before dto.Band
	var updated domainrates.Band
	err = h.Guard.Exclusive(ctx, current.UnitID, func(ctx context.Context, tx uow.UnitOfWork) error {
		stored, err := tx.RateBands().ByID(ctx, id)
		if err != nil {
			return bandNotFound(id, err)
		}
		before = dto.MapBand(stored)
		band := cmd.Payload.band(id, stored.UnitID)
		band.CreatedAt = stored.CreatedAt
		band.UpdatedAt = now(h.Clock)
		if err := h.save(ctx, tx, band); err != nil {
			return err
		}
		updated = band
		return nil
	})
	if err != nil {
		return dto.Band{}, err
	}
	after := dto.MapBand(&updated)
	h.log(ctx, cmd.ActorID, cmd.BandID, "update", before, after)
	return after, nil
}

func (h *BandHandlers) Delete(ctx context.Context, cmd DeleteBandCommand) (DeleteResult, error) {
	id := domainrates.BandID(cmd.BandID)
	current, err := h.load(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	err = h.Guard.Exclusive(ctx, current.UnitID, func(ctx context.Context, tx uow.UnitOfWork) error {
		return bandNotFound(id, tx.RateBands().Delete(ctx, id))
	})
	if err != nil {
		return DeleteResult{}, err
	}
	h.log(ctx, cmd.ActorID, cmd.BandID, "delete", dto.MapBand(current), nil)
	return DeleteResult{ID: cmd.BandID, Deleted: true}, nil
}

func (h *BandHandlers) save(ctx context.Context, tx uow.UnitOfWork, band domainrates.Band) error {
	if err := band.Validate(); err != nil {
		return err
	}
	existing, err := tx.RateBands().ListByUnit(ctx, band.UnitID)
	if err != nil {
		return fmt.Errorf("rates: load bands: %w", err)
	}
	if err := domainrates.CheckNoOverlap(existing, band); err != nil {
		return err
	}
	return tx.RateBands().Save(ctx, &band)
}

func (h *BandHandlers) load(ctx context.Context, id domainrates.BandID) (*domainrates.Band, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.RateBands().ByID(execCtx, id)
	if err != nil {
		return nil, bandNotFound(id, err)
	}
	return b, nil
}

func (h *BandHandlers) log(ctx context.Context, actorID, id, action string, before, after any) {
	if h.Audit != nil {
		h.Audit.LogChange(ctx, actorID, "rate_band", id, action, before, after)
	}
}

func (h *BandHandlers) newID() string {
	if h.IDs != nil {
		return h.IDs()
	}
	return uuid.NewString()
}

func (p BandPayload) band(id domainrates.BandID, unitID domainunits.UnitID) domainrates.Band {
	return domainrates.Band{
		ID:     id,
		UnitID: unitID,
		Range: daterange.DateRange{
			CheckIn:  daterange.Day(p.StartDate),
			CheckOut: daterange.Day(p.EndDate),
		},
		WeekdayPrice: p.WeekdayPriceCents,
		WeekendPrice: p.WeekendPriceCents,
		MinStay:      p.MinStay,
	}
}

type ListBandsQuery struct {
	UnitID string `validate:"required"`
}

func (ListBandsQuery) Key() string { return listBandsKey }

type ListBandsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBandsHandler) Handle(ctx context.Context, q ListBandsQuery) (dto.BandCollection, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BandCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	unitID := domainunits.UnitID(q.UnitID)
	if _, err := unit.Units().ByID(execCtx, unitID); err != nil {
		if errors.Is(err, domainunits.ErrUnitNotFound) {
			return dto.BandCollection{}, availability.NotFound("unit", q.UnitID)
		}
		return dto.BandCollection{}, err
	}
	list, err := unit.RateBands().ListByUnit(execCtx, unitID)
	if err != nil {
		return dto.BandCollection{}, err
	}
	out := dto.BandCollection{Items: make([]dto.Band, 0, len(list))}
	for i := range list {
		out.Items = append(out.Items, dto.MapBand(&list[i]))
	}
	return out, nil
}

func bandNotFound(id domainrates.BandID, err error) error {
	if errors.Is(err, domainrates.ErrBandNotFound) {
		return availability.NotFound("rate band", string(id))
	}
	return err
}

var _ queries.Handler[ListBandsQuery, dto.BandCollection] = (*ListBandsHandler)(nil)
