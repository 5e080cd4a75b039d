package rules

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/units"
)

var (
	ErrRuleNotFound = errors.New("rules: not found")
	ErrInvalidRule  = errors.New("rules: invalid rule")
)

type RuleID string

type Type string

const (
	TypeOccupancy Type = "occupancy"
	TypeLeadTime  Type = "lead_time"
	TypeWeekday   Type = "weekday"
	TypeEvent     Type = "event"
)

func (t Type) Valid() bool {
	switch t {
	case TypeOccupancy, TypeLeadTime, TypeWeekday, TypeEvent:
		return true
	default:
		return false
	}
}

// Scope narrows a rule to a unit or a property. Both empty means global.
type Scope struct {
	UnitID     units.UnitID
	PropertyID units.PropertyID
}

// OccupancyConfig bounds are percentages, inclusive. WindowDays of zero means
// the stay's own nights.
type OccupancyConfig struct {
	MinOccupancy *float64
	MaxOccupancy *float64
	WindowDays   int
}

// LeadTimeConfig bounds are days between today and check-in, inclusive.
type LeadTimeConfig struct {
	MinDays *int
	MaxDays *int
}

// WeekdayConfig days use 0=Sunday..6=Saturday.
type WeekdayConfig struct {
	Days []int
}

// EventConfig dates are inclusive on both ends.
type EventConfig struct {
	Start time.Time
	End   time.Time
}

type Rule struct {
	ID                RuleID
	Name              string
	Type              Type
	AdjustmentPercent float64
	Priority          int
	MinPriceCents     *int64
	MaxPriceCents     *int64
	Scope             Scope
	Occupancy         *OccupancyConfig
	LeadTime          *LeadTimeConfig
	Weekday           *WeekdayConfig
	Event             *EventConfig
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Repository interface {
	ByID(ctx context.Context, id RuleID) (*Rule, error)
	Save(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id RuleID) error
	List(ctx context.Context) ([]Rule, error)
	// ListActive returns a snapshot of active rules; callers may keep it.
	ListActive(ctx context.Context) ([]Rule, error)
}

// ValidationError explains why a rule cannot be saved.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "rules: " + e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRule }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (r Rule) Validate() error {
	if strings.TrimSpace(string(r.ID)) == "" {
		return invalid("id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name is required")
	}
	if !r.Type.Valid() {
		return invalid("unknown rule type %q", r.Type)
	}
	if math.IsNaN(r.AdjustmentPercent) || math.IsInf(r.AdjustmentPercent, 0) {
		return invalid("adjustment percent must be a finite number")
	}
	if r.AdjustmentPercent < -100 {
		return invalid("adjustment percent must not be below -100")
	}
	if r.MinPriceCents != nil && *r.MinPriceCents < 0 {
		return invalid("min price must be non-negative")
	}
	if r.MaxPriceCents != nil && *r.MaxPriceCents < 0 {
		return invalid("max price must be non-negative")
	}
	if r.MinPriceCents != nil && r.MaxPriceCents != nil && *r.MinPriceCents > *r.MaxPriceCents {
		return invalid("min price must not exceed max price")
	}
	switch r.Type {
	case TypeOccupancy:
		return r.validateOccupancy()
	case TypeLeadTime:
		return r.validateLeadTime()
	case TypeWeekday:
		return r.validateWeekday()
	case TypeEvent:
		return r.validateEvent()
	}
	return nil
}

func (r Rule) validateOccupancy() error {
	cfg := r.Occupancy
	if cfg == nil {
		return nil
	}
	for _, bound := range []*float64{cfg.MinOccupancy, cfg.MaxOccupancy} {
		if bound != nil && (math.IsNaN(*bound) || *bound < 0 || *bound > 100) {
			return invalid("occupancy bounds must be between 0 and 100")
		}
	}
	if cfg.MinOccupancy != nil && cfg.MaxOccupancy != nil && *cfg.MinOccupancy > *cfg.MaxOccupancy {
		return invalid("min occupancy must not exceed max occupancy")
	}
	if cfg.WindowDays < 0 {
		return invalid("occupancy window must be non-negative")
	}
	return nil
}

func (r Rule) validateLeadTime() error {
	cfg := r.LeadTime
	if cfg == nil {
		return nil
	}
	if (cfg.MinDays != nil && *cfg.MinDays < 0) || (cfg.MaxDays != nil && *cfg.MaxDays < 0) {
		return invalid("lead time bounds must be non-negative")
	}
	if cfg.MinDays != nil && cfg.MaxDays != nil && *cfg.MinDays > *cfg.MaxDays {
		return invalid("min lead time must not exceed max lead time")
	}
	return nil
}

func (r Rule) validateWeekday() error {
	if r.Weekday == nil || len(r.Weekday.Days) == 0 {
		return invalid("weekday rule needs at least one day")
	}
	for _, d := range r.Weekday.Days {
		if d < 0 || d > 6 {
			return invalid("weekday %d out of range 0..6", d)
		}
	}
	return nil
}

func (r Rule) validateEvent() error {
	if r.Event == nil || r.Event.Start.IsZero() || r.Event.End.IsZero() {
		return invalid("event rule needs start and end dates")
	}
	if daterange.Day(r.Event.Start).After(daterange.Day(r.Event.End)) {
		return invalid("event start must not be after end")
	}
	return nil
}

// InScope reports whether the rule targets the unit: same unit, or no unit
// and the same property, or global.
func (r Rule) InScope(unitID units.UnitID, propertyID units.PropertyID) bool {
	if r.Scope.UnitID != "" {
		return r.Scope.UnitID == unitID
	}
	if r.Scope.PropertyID != "" {
		return r.Scope.PropertyID == propertyID
	}
	return true
}

// Clone returns a deep copy so snapshots do not share config pointers.
func (r Rule) Clone() Rule {
	out := r
	out.MinPriceCents = cloneInt64(r.MinPriceCents)
	out.MaxPriceCents = cloneInt64(r.MaxPriceCents)
	if r.Occupancy != nil {
		cfg := *r.Occupancy
		cfg.MinOccupancy = cloneFloat(r.Occupancy.MinOccupancy)
		cfg.MaxOccupancy = cloneFloat(r.Occupancy.MaxOccupancy)
		out.Occupancy = &cfg
	}
	if r.LeadTime != nil {
		cfg := *r.LeadTime
		cfg.MinDays = cloneInt(r.LeadTime.MinDays)
		cfg.MaxDays = cloneInt(r.LeadTime.MaxDays)
		out.LeadTime = &cfg
	}
	if r.Weekday != nil {
		out.Weekday = &WeekdayConfig{Days: append([]int(nil), r.Weekday.Days...)}
	}
	if r.Event != nil {
		cfg := *r.Event
		out.Event = &cfg
	}
	return out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
