package rules

import (
	"sort"
	"time"

	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/units"
)

// Stay is the candidate booking a rule set is evaluated against.
type Stay struct {
	UnitID     units.UnitID
	PropertyID units.PropertyID
	Range      daterange.DateRange
}

// OccupancyFunc returns the unit occupancy percentage (0..100) over window.
type OccupancyFunc func(window daterange.DateRange) (float64, error)

type Env struct {
	Today     time.Time
	Occupancy OccupancyFunc
}

// Adjustment is the composed effect of every applicable rule.
type Adjustment struct {
	Multiplier    float64
	MinPriceCents *int64
	MaxPriceCents *int64
	Applied       []string
}

// Neutral leaves prices unchanged.
func Neutral() Adjustment {
	return Adjustment{Multiplier: 1}
}

// Evaluate composes the rules of snapshot that apply to stay. Rules are taken
// in ascending priority (ties by id); multipliers multiply and price bounds
// intersect to the tightest pair.
func Evaluate(snapshot []Rule, stay Stay, env Env) (Adjustment, error) {
	candidates := make([]Rule, 0, len(snapshot))
	for _, r := range snapshot {
		if !r.Active || !r.Type.Valid() || !r.InScope(stay.UnitID, stay.PropertyID) {
			continue
		}
		candidates = append(candidates, r)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})

	adj := Neutral()
	occupancy := memoizeOccupancy(env.Occupancy)
	for _, r := range candidates {
		ok, err := r.applies(stay, env.Today, occupancy)
		if err != nil {
			return Adjustment{}, err
		}
		if !ok {
			continue
		}
		adj.Multiplier *= 1 + r.AdjustmentPercent/100
		adj.MinPriceCents = tighterMin(adj.MinPriceCents, r.MinPriceCents)
		adj.MaxPriceCents = tighterMax(adj.MaxPriceCents, r.MaxPriceCents)
		adj.Applied = append(adj.Applied, string(r.ID))
	}
	return adj, nil
}

func (r Rule) applies(stay Stay, today time.Time, occupancy OccupancyFunc) (bool, error) {
	switch r.Type {
	case TypeOccupancy:
		return r.occupancyApplies(stay, occupancy)
	case TypeLeadTime:
		return r.leadTimeApplies(stay, today), nil
	case TypeWeekday:
		return r.weekdayApplies(stay), nil
	case TypeEvent:
		return r.eventApplies(stay), nil
	}
	return false, nil
}

func (r Rule) occupancyApplies(stay Stay, occupancy OccupancyFunc) (bool, error) {
	window := stay.Range
	cfg := OccupancyConfig{}
	if r.Occupancy != nil {
		cfg = *r.Occupancy
	}
	if cfg.WindowDays > 0 {
		window = daterange.DateRange{CheckIn: stay.Range.CheckIn, CheckOut: stay.Range.CheckIn.AddDate(0, 0, cfg.WindowDays)}
	}
	if occupancy == nil {
		return false, nil
	}
	rate, err := occupancy(window)
	if err != nil {
		return false, err
	}
	if cfg.MinOccupancy != nil && rate < *cfg.MinOccupancy {
		return false, nil
	}
	if cfg.MaxOccupancy != nil && rate > *cfg.MaxOccupancy {
		return false, nil
	}
	return true, nil
}

func (r Rule) leadTimeApplies(stay Stay, today time.Time) bool {
	lead := daterange.DaysBetween(today, stay.Range.CheckIn)
	if r.LeadTime == nil {
		return true
	}
	if r.LeadTime.MinDays != nil && lead < *r.LeadTime.MinDays {
		return false
	}
	if r.LeadTime.MaxDays != nil && lead > *r.LeadTime.MaxDays {
		return false
	}
	return true
}

func (r Rule) weekdayApplies(stay Stay) bool {
	if r.Weekday == nil {
		return false
	}
	for _, night := range stay.Range.Dates() {
		wd := int(night.Weekday())
		for _, d := range r.Weekday.Days {
			if d == wd {
				return true
			}
		}
	}
	return false
}

func (r Rule) eventApplies(stay Stay) bool {
	if r.Event == nil {
		return false
	}
	// inclusive end: the event covers [Start, End+1)
	start := daterange.Day(r.Event.Start)
	end := daterange.Day(r.Event.End).AddDate(0, 0, 1)
	return daterange.IntervalsOverlap(stay.Range.CheckIn, stay.Range.CheckOut, start, end)
}

func memoizeOccupancy(fn OccupancyFunc) OccupancyFunc {
	if fn == nil {
		return nil
	}
	cache := map[string]float64{}
	return func(window daterange.DateRange) (float64, error) {
		key := window.String()
		if v, ok := cache[key]; ok {
			return v, nil
		}
		v, err := fn(window)
		if err != nil {
			return 0, err
		}
		cache[key] = v
		return v, nil
	}
}

func tighterMin(current, candidate *int64) *int64 {
	if candidate == nil {
		return current
	}
	if current == nil || *candidate > *current {
		v := *candidate
		return &v
	}
	return current
}

func tighterMax(current, candidate *int64) *int64 {
	if candidate == nil {
		return current
	}
	if current == nil || *candidate < *current {
		v := *candidate
		return &v
	}
	return current
}
