package rates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/units"
)

var (
	ErrBandNotFound = errors.New("rates: band not found")
	ErrBandOverlap  = errors.New("rates: band overlaps an existing band")
	ErrInvalidBand  = errors.New("rates: invalid band")
)

type BandID string

// Band overrides nightly prices and minimum stay for a date range of a unit.
// Nil prices fall back to the other price, then to the unit base price.
type Band struct {
	ID           BandID
	UnitID       units.UnitID
	Range        daterange.DateRange
	WeekdayPrice *int64
	WeekendPrice *int64
	MinStay      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	ByID(ctx context.Context, id BandID) (*Band, error)
	Save(ctx context.Context, band *Band) error
	Delete(ctx context.Context, id BandID) error
	ListByUnit(ctx context.Context, unitID units.UnitID) ([]Band, error)
}

func (b Band) Validate() error {
	if strings.TrimSpace(string(b.ID)) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidBand)
	}
	if b.UnitID == "" {
		return fmt.Errorf("%w: unit is required", ErrInvalidBand)
	}
	if err := b.Range.Validate(); err != nil {
		return fmt.Errorf("%w: end must be after start", ErrInvalidBand)
	}
	if b.WeekdayPrice != nil && *b.WeekdayPrice < 0 {
		return fmt.Errorf("%w: weekday price must be non-negative", ErrInvalidBand)
	}
	if b.WeekendPrice != nil && *b.WeekendPrice < 0 {
		return fmt.Errorf("%w: weekend price must be non-negative", ErrInvalidBand)
	}
	if b.MinStay < 0 {
		return fmt.Errorf("%w: minimum stay must be non-negative", ErrInvalidBand)
	}
	return nil
}

// CheckNoOverlap rejects a candidate overlapping another band of the same unit.
// A band being updated is skipped by id.
func CheckNoOverlap(existing []Band, candidate Band) error {
	for _, b := range existing {
		if b.ID == candidate.ID || b.UnitID != candidate.UnitID {
			continue
		}
		if b.Range.Overlaps(candidate.Range) {
			return fmt.Errorf("%w: %s (%s)", ErrBandOverlap, b.ID, b.Range)
		}
	}
	return nil
}

// Table is an immutable lookup over the bands of one unit.
type Table struct {
	bands []Band
}

// NewTable orders bands so that the first match for a date is the winner:
// narrowest range first, then latest start, then smallest id.
func NewTable(bands []Band) Table {
	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if an, bn := a.Range.Nights(), b.Range.Nights(); an != bn {
			return an < bn
		}
		if !a.Range.CheckIn.Equal(b.Range.CheckIn) {
			return a.Range.CheckIn.After(b.Range.CheckIn)
		}
		return a.ID < b.ID
	})
	return Table{bands: sorted}
}

// FindBand returns the band containing date.
func (t Table) FindBand(date time.Time) (Band, bool) {
	for _, b := range t.bands {
		if b.Range.ContainsDate(date) {
			return b, true
		}
	}
	return Band{}, false
}

func (t Table) Len() int { return len(t.bands) }

// ResolveNightlyPrice picks the weekend or weekday price of band for date,
// falling back to the other field, then to baseCents.
func ResolveNightlyPrice(band *Band, date time.Time, baseCents int64) int64 {
	if band == nil {
		return baseCents
	}
	first, second := band.WeekdayPrice, band.WeekendPrice
	if daterange.IsWeekend(date) {
		first, second = second, first
	}
	if first != nil {
		return *first
	}
	if second != nil {
		return *second
	}
	return baseCents
}

// ResolveMinStay is the band minimum stay, 1 when unset.
func ResolveMinStay(band *Band) int {
	if band == nil || band.MinStay <= 0 {
		return 1
	}
	return band.MinStay
}
