package rates

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentdesk/internal/app/audit"
	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/shared/money"
	domainunits "rentdesk/internal/domain/units"
)

const (
	upsertUnitKey = "rates.unit.upsert"
	listUnitsKey  = "rates.unit.list"
)

type UpsertUnitCommand struct {
	ActorID          string `validate:"required"`
	UnitID           string `validate:"required"`
	PropertyID       string
	Name             string `validate:"required"`
	Capacity         int    `validate:"min=1"`
	BaseNightlyCents int64  `validate:"min=0"`
	Currency         string `validate:"required,len=3"`
}

func (c UpsertUnitCommand) Key() string { return upsertUnitKey }

func (c UpsertUnitCommand) Actor() string { return c.ActorID }

// UpsertUnitHandler runs inside the bus transaction.
type UpsertUnitHandler struct {
	Audit audit.Logger
	Clock func() time.Time
}

func (h *UpsertUnitHandler) Handle(ctx context.Context, cmd UpsertUnitCommand) (dto.Unit, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return dto.Unit{}, uow.ErrUnitOfWorkMissing
	}
	params := domainunits.Params{
		ID:          domainunits.UnitID(strings.TrimSpace(cmd.UnitID)),
		PropertyID:  domainunits.PropertyID(cmd.PropertyID),
		Name:        cmd.Name,
		Capacity:    cmd.Capacity,
		BaseNightly: money.Money{Amount: cmd.BaseNightlyCents, Currency: strings.ToUpper(cmd.Currency)},
		Now:         now(h.Clock),
	}

	var before any
	u, err := unit.Units().ByID(ctx, params.ID)
	switch {
	case err == nil:
		before = dto.MapUnit(u)
		if err := u.Update(params); err != nil {
			return dto.Unit{}, unitInvalid(err)
		}
	case errors.Is(err, domainunits.ErrUnitNotFound):
		u, err = domainunits.NewUnit(params)
		if err != nil {
			return dto.Unit{}, unitInvalid(err)
		}
	default:
		return dto.Unit{}, err
	}
	if err := unit.Units().Save(ctx, u); err != nil {
		return dto.Unit{}, err
	}
	after := dto.MapUnit(u)
	if h.Audit != nil {
		h.Audit.LogChange(ctx, cmd.ActorID, "unit", string(u.ID), "upsert", before, after)
	}
	return after, nil
}

type ListUnitsQuery struct{}

func (ListUnitsQuery) Key() string { return listUnitsKey }

type UnitCollection struct {
	Items []dto.Unit `json:"items"`
}

type ListUnitsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListUnitsHandler) Handle(ctx context.Context, _ ListUnitsQuery) (UnitCollection, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return UnitCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	list, err := unit.Units().List(execCtx)
	if err != nil {
		return UnitCollection{}, err
	}
	out := UnitCollection{Items: make([]dto.Unit, 0, len(list))}
	for _, u := range list {
		out.Items = append(out.Items, dto.MapUnit(u))
	}
	return out, nil
}

func unitInvalid(err error) error {
	switch {
	case errors.Is(err, domainunits.ErrIDRequired),
		errors.Is(err, domainunits.ErrNameRequired),
		errors.Is(err, domainunits.ErrCapacity),
		errors.Is(err, domainunits.ErrNightlyRate),
		errors.Is(err, money.ErrInvalidCurrency):
		return availability.Invalid("%s", strings.TrimPrefix(err.Error(), "units: "))
	}
	return err
}

func now(clock func() time.Time) time.Time {
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

var (
	_ commands.Handler[UpsertUnitCommand, dto.Unit]   = (*UpsertUnitHandler)(nil)
	_ queries.Handler[ListUnitsQuery, UnitCollection] = (*ListUnitsHandler)(nil)
)
