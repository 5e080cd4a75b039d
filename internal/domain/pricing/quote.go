package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/rates"
	"rentdesk/internal/domain/rules"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
	"rentdesk/internal/domain/units"
)

var ErrCurrencyUnset = errors.New("pricing: currency must be defined")

// NightLine is the pre-rule price of a single night.
type NightLine struct {
	Date    time.Time
	BandID  rates.BandID
	Amount  int64
	Weekend bool
}

// Quote is the priced stay. Total is the amount to charge; Subtotal is the sum
// of nightly prices before rules.
type Quote struct {
	UnitID        units.UnitID
	Range         daterange.DateRange
	Nights        int
	MinStayReq    int
	Subtotal      money.Money
	Total         money.Money
	Multiplier    float64
	MinPriceCents *int64
	MaxPriceCents *int64
	Clamped       bool
	AppliedRules  []string
	Lines         []NightLine
}

// BelowMinStay reports a stay the caller must reject.
func (q Quote) BelowMinStay() bool {
	return q.Nights < q.MinStayReq
}

func (q Quote) MinStayReason() string {
	return fmt.Sprintf("minimum stay: %d nights", q.MinStayReq)
}

type Input struct {
	UnitID     units.UnitID
	Range      daterange.DateRange
	Base       money.Money
	Table      rates.Table
	Adjustment rules.Adjustment
}

// Compute prices every night from the rate table, applies the rule multiplier
// to the stay total with half-away-from-zero rounding and clamps the result
// once against the rule bounds.
func Compute(in Input) (Quote, error) {
	if in.Base.Currency == "" {
		return Quote{}, ErrCurrencyUnset
	}
	nights := in.Range.Dates()
	q := Quote{
		UnitID:        in.UnitID,
		Range:         in.Range,
		Nights:        len(nights),
		MinStayReq:    1,
		Multiplier:    in.Adjustment.Multiplier,
		MinPriceCents: in.Adjustment.MinPriceCents,
		MaxPriceCents: in.Adjustment.MaxPriceCents,
		AppliedRules:  append([]string(nil), in.Adjustment.Applied...),
		Lines:         make([]NightLine, 0, len(nights)),
	}
	if q.Multiplier == 0 && len(q.AppliedRules) == 0 {
		q.Multiplier = 1
	}

	var subtotal int64
	for _, night := range nights {
		var band *rates.Band
		if found, ok := in.Table.FindBand(night); ok {
			band = &found
		}
		price := rates.ResolveNightlyPrice(band, night, in.Base.Amount)
		if minStay := rates.ResolveMinStay(band); minStay > q.MinStayReq {
			q.MinStayReq = minStay
		}
		line := NightLine{Date: night, Amount: price, Weekend: daterange.IsWeekend(night)}
		if band != nil {
			line.BandID = band.ID
		}
		q.Lines = append(q.Lines, line)
		subtotal += price
	}

	q.Subtotal = money.Money{Amount: subtotal, Currency: in.Base.Currency}
	q.Total, q.Clamped = q.Subtotal.Scale(q.Multiplier).Clamp(q.MinPriceCents, q.MaxPriceCents)
	return q, nil
}

type QuoteInput struct {
	UnitID units.UnitID
	Range  daterange.DateRange
	// BaseCents overrides the unit base nightly price when set.
	BaseCents *int64
	// Exclude leaves a booking being moved out of occupancy figures.
	Exclude booking.BookingID
}

type Calculator interface {
	Quote(ctx context.Context, input QuoteInput) (Quote, error)
}
