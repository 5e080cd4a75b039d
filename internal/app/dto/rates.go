package dto

import (
	"time"

	"rentdesk/internal/domain/rates"
	"rentdesk/internal/domain/rules"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/units"
)

type Unit struct {
	ID               string    `json:"id"`
	PropertyID       string    `json:"property_id,omitempty"`
	Name             string    `json:"name"`
	Capacity         int       `json:"capacity"`
	BaseNightlyCents int64     `json:"base_nightly_cents"`
	Currency         string    `json:"currency"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func MapUnit(u *units.Unit) Unit {
	if u == nil {
		return Unit{}
	}
	return Unit{
		ID:               string(u.ID),
		PropertyID:       string(u.PropertyID),
		Name:             u.Name,
		Capacity:         u.Capacity,
		BaseNightlyCents: u.BaseNightly.Amount,
		Currency:         u.BaseNightly.Currency,
		UpdatedAt:        u.UpdatedAt,
	}
}

type Band struct {
	ID                string    `json:"id"`
	UnitID            string    `json:"unit_id"`
	StartDate         string    `json:"start_date"`
	EndDate           string    `json:"end_date"`
	WeekdayPriceCents *int64    `json:"weekday_price_cents,omitempty"`
	WeekendPriceCents *int64    `json:"weekend_price_cents,omitempty"`
	MinStay           int       `json:"min_stay"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type BandCollection struct {
	Items []Band `json:"items"`
}

func MapBand(b *rates.Band) Band {
	if b == nil {
		return Band{}
	}
	return Band{
		ID:                string(b.ID),
		UnitID:            string(b.UnitID),
		StartDate:         daterange.FormatDay(b.Range.CheckIn),
		EndDate:           daterange.FormatDay(b.Range.CheckOut),
		WeekdayPriceCents: b.WeekdayPrice,
		WeekendPriceCents: b.WeekendPrice,
		MinStay:           b.MinStay,
		UpdatedAt:         b.UpdatedAt,
	}
}

type OccupancyConfig struct {
	MinOccupancy *float64 `json:"min_occupancy,omitempty"`
	MaxOccupancy *float64 `json:"max_occupancy,omitempty"`
	WindowDays   int      `json:"window_days,omitempty"`
}

type LeadTimeConfig struct {
	MinDays *int `json:"min_days,omitempty"`
	MaxDays *int `json:"max_days,omitempty"`
}

type WeekdayConfig struct {
	Days []int `json:"days"`
}

type EventConfig struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type Rule struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Type              string           `json:"type"`
	AdjustmentPercent float64          `json:"adjustment_percent"`
	Priority          int              `json:"priority"`
	MinPriceCents     *int64           `json:"min_price_cents,omitempty"`
	MaxPriceCents     *int64           `json:"max_price_cents,omitempty"`
	UnitID            string           `json:"unit_id,omitempty"`
	PropertyID        string           `json:"property_id,omitempty"`
	Occupancy         *OccupancyConfig `json:"occupancy,omitempty"`
	LeadTime          *LeadTimeConfig  `json:"lead_time,omitempty"`
	Weekday           *WeekdayConfig   `json:"weekday,omitempty"`
	Event             *EventConfig     `json:"event,omitempty"`
	Active            bool             `json:"active"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type RuleCollection struct {
	Items []Rule `json:"items"`
}

func MapRule(r *rules.Rule) Rule {
	if r == nil {
		return Rule{}
	}
	out := Rule{
		ID:                string(r.ID),
		Name:              r.Name,
		Type:              string(r.Type),
		AdjustmentPercent: r.AdjustmentPercent,
		Priority:          r.Priority,
		MinPriceCents:     r.MinPriceCents,
		MaxPriceCents:     r.MaxPriceCents,
		UnitID:            string(r.Scope.UnitID),
		PropertyID:        string(r.Scope.PropertyID),
		Active:            r.Active,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.Occupancy != nil {
		out.Occupancy = &OccupancyConfig{MinOccupancy: r.Occupancy.MinOccupancy, MaxOccupancy: r.Occupancy.MaxOccupancy, WindowDays: r.Occupancy.WindowDays}
	}
	if r.LeadTime != nil {
		out.LeadTime = &LeadTimeConfig{MinDays: r.LeadTime.MinDays, MaxDays: r.LeadTime.MaxDays}
	}
	if r.Weekday != nil {
		out.Weekday = &WeekdayConfig{Days: append([]int(nil), r.Weekday.Days...)}
	}
	if r.Event != nil {
		out.Event = &EventConfig{StartDate: daterange.FormatDay(r.Event.Start), EndDate: daterange.FormatDay(r.Event.End)}
	}
	return out
}

// ToRule converts the payload into a domain rule; dates are parsed as calendar days.
func (r Rule) ToRule() (rules.Rule, error) {
	out := rules.Rule{
		ID:                rules.RuleID(r.ID),
		Name:              r.Name,
		Type:              rules.Type(r.Type),
		AdjustmentPercent: r.AdjustmentPercent,
		Priority:          r.Priority,
		MinPriceCents:     r.MinPriceCents,
		MaxPriceCents:     r.MaxPriceCents,
		Scope:             rules.Scope{UnitID: units.UnitID(r.UnitID), PropertyID: units.PropertyID(r.PropertyID)},
		Active:            r.Active,
	}
	if r.Occupancy != nil {
		out.Occupancy = &rules.OccupancyConfig{MinOccupancy: r.Occupancy.MinOccupancy, MaxOccupancy: r.Occupancy.MaxOccupancy, WindowDays: r.Occupancy.WindowDays}
	}
	if r.LeadTime != nil {
		out.LeadTime = &rules.LeadTimeConfig{MinDays: r.LeadTime.MinDays, MaxDays: r.LeadTime.MaxDays}
	}
	if r.Weekday != nil {
		out.Weekday = &rules.WeekdayConfig{Days: append([]int(nil), r.Weekday.Days...)}
	}
	if r.Event != nil {
		start, err := daterange.ParseDay(r.Event.StartDate)
		if err != nil {
			return rules.Rule{}, &rules.ValidationError{Reason: "event start_date must be YYYY-MM-DD"}
		}
		end, err := daterange.ParseDay(r.Event.EndDate)
		if err != nil {
			return rules.Rule{}, &rules.ValidationError{Reason: "event end_date must be YYYY-MM-DD"}
		}
		out.Event = &rules.EventConfig{Start: start, End: end}
	}
	return out, nil
}
