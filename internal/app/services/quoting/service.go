package quoting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/rates"
	"rentdesk/internal/domain/rules"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
	"rentdesk/internal/domain/units"
)

// Service prices stays from the stored rate bands and rules. It reports the
// minimum stay but never rejects a short one.
type Service struct {
	Factory uow.UoWFactory
	Clock   func() time.Time
	Logger  *slog.Logger
}

// RateQuote prices [checkin, checkout) of unitID with baseCents as the nightly
// fallback. The unit is loaded for its property and currency.
func (s *Service) RateQuote(ctx context.Context, unitID units.UnitID, checkin, checkout time.Time, baseCents int64) (pricing.Quote, error) {
	dr, err := daterange.New(checkin, checkout)
	if err != nil {
		return pricing.Quote{}, availability.Invalid("checkout must be after checkin")
	}
	return s.Quote(ctx, pricing.QuoteInput{UnitID: unitID, Range: dr, BaseCents: &baseCents})
}

// QuoteForUnit prices a stay with the unit base price. exclude keeps a booking
// being moved out of the occupancy figures.
func (s *Service) QuoteForUnit(ctx context.Context, unitID units.UnitID, dr daterange.DateRange, exclude booking.BookingID) (pricing.Quote, error) {
	return s.Quote(ctx, pricing.QuoteInput{UnitID: unitID, Range: dr, Exclude: exclude})
}

// Quote implements pricing.Calculator.
func (s *Service) Quote(ctx context.Context, input pricing.QuoteInput) (pricing.Quote, error) {
	if err := input.Range.Validate(); err != nil {
		return pricing.Quote{}, availability.Invalid("checkout must be after checkin")
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, s.Factory)
	if err != nil {
		return pricing.Quote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	u, err := unit.Units().ByID(execCtx, input.UnitID)
	if err != nil {
		if errors.Is(err, units.ErrUnitNotFound) {
			return pricing.Quote{}, availability.NotFound("unit", string(input.UnitID))
		}
		return pricing.Quote{}, err
	}
	base := u.BaseNightly
	if input.BaseCents != nil {
		base = money.Money{Amount: *input.BaseCents, Currency: u.BaseNightly.Currency}
	}

	bands, err := unit.RateBands().ListByUnit(execCtx, u.ID)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("quoting: load bands: %w", err)
	}
	snapshot, err := unit.RateRules().ListActive(execCtx)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("quoting: load rules: %w", err)
	}

	stay := rules.Stay{UnitID: u.ID, PropertyID: u.PropertyID, Range: input.Range}
	env := rules.Env{
		Today:     s.now(),
		Occupancy: s.occupancy(execCtx, unit, u.ID, input.Exclude),
	}
	adj, err := rules.Evaluate(snapshot, stay, env)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("quoting: evaluate rules: %w", err)
	}

	q, err := pricing.Compute(pricing.Input{
		UnitID:     u.ID,
		Range:      input.Range,
		Base:       base,
		Table:      rates.NewTable(bands),
		Adjustment: adj,
	})
	if err != nil {
		return pricing.Quote{}, err
	}
	if s.Logger != nil {
		s.Logger.Debug("quote computed",
			"unit_id", u.ID,
			"range", input.Range.String(),
			"total", q.Total.Amount,
			"rules", q.AppliedRules,
		)
	}
	return q, nil
}

func (s *Service) occupancy(ctx context.Context, unit uow.UnitOfWork, unitID units.UnitID, exclude booking.BookingID) rules.OccupancyFunc {
	return func(window daterange.DateRange) (float64, error) {
		bookings, err := unit.Bookings().ListByUnit(ctx, unitID, window)
		if err != nil {
			return 0, fmt.Errorf("quoting: load bookings: %w", err)
		}
		blocks, err := unit.Blocks().ListByUnit(ctx, unitID, window)
		if err != nil {
			return 0, fmt.Errorf("quoting: load blocks: %w", err)
		}
		return availability.NewCalendar(unitID, bookings, blocks).Occupancy(window, exclude), nil
	}
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

var _ pricing.Calculator = (*Service)(nil)
