package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainrates "rentdesk/internal/domain/rates"
	domainrules "rentdesk/internal/domain/rules"
	"rentdesk/internal/domain/shared/daterange"
	domainunits "rentdesk/internal/domain/units"
)

type BandRepository struct {
	pool *pgxpool.Pool
}

const bandColumns = `id, unit_id, start_date, end_date, weekday_price, weekend_price, min_stay, created_at, updated_at`

func (r *BandRepository) ByID(ctx context.Context, id domainrates.BandID) (*domainrates.Band, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+bandColumns+` FROM rate_bands WHERE id = $1`, string(id))
	b, err := scanBand(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainrates.ErrBandNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BandRepository) Save(ctx context.Context, b *domainrates.Band) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `INSERT INTO rate_bands (`+bandColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
			weekday_price = EXCLUDED.weekday_price, weekend_price = EXCLUDED.weekend_price,
			min_stay = EXCLUDED.min_stay, updated_at = EXCLUDED.updated_at`,
		string(b.ID), string(b.UnitID), b.Range.CheckIn, b.Range.CheckOut, b.WeekdayPrice, b.WeekendPrice,
		b.MinStay, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	return err
}

func (r *BandRepository) Delete(ctx context.Context, id domainrates.BandID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM rate_bands WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainrates.ErrBandNotFound
	}
	return nil
}

func (r *BandRepository) ListByUnit(ctx context.Context, unitID domainunits.UnitID) ([]domainrates.Band, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+bandColumns+` FROM rate_bands
		WHERE unit_id = $1 ORDER BY start_date, id`, string(unitID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domainrates.Band
	for rows.Next() {
		b, err := scanBand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBand(row pgx.Row) (domainrates.Band, error) {
	var (
		b          domainrates.Band
		id, unitID string
	)
	err := row.Scan(&id, &unitID, &b.Range.CheckIn, &b.Range.CheckOut, &b.WeekdayPrice, &b.WeekendPrice,
		&b.MinStay, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return domainrates.Band{}, err
	}
	b.ID = domainrates.BandID(id)
	b.UnitID = domainunits.UnitID(unitID)
	b.Range = daterange.DateRange{CheckIn: daterange.Day(b.Range.CheckIn), CheckOut: daterange.Day(b.Range.CheckOut)}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

// RuleRepository stores the rule body as jsonb; priority and active are
// columns so listing sorts and filters in SQL.
type RuleRepository struct {
	pool *pgxpool.Pool
}

type ruleBody struct {
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	AdjustmentPercent float64  `json:"adjustment_percent"`
	MinPriceCents     *int64   `json:"min_price_cents,omitempty"`
	MaxPriceCents     *int64   `json:"max_price_cents,omitempty"`
	UnitID            string   `json:"unit_id,omitempty"`
	PropertyID        string   `json:"property_id,omitempty"`
	MinOccupancy      *float64 `json:"min_occupancy,omitempty"`
	MaxOccupancy      *float64 `json:"max_occupancy,omitempty"`
	WindowDays        int      `json:"window_days,omitempty"`
	HasOccupancy      bool     `json:"has_occupancy,omitempty"`
	MinDays           *int     `json:"min_days,omitempty"`
	MaxDays           *int     `json:"max_days,omitempty"`
	HasLeadTime       bool     `json:"has_lead_time,omitempty"`
	Weekdays          []int    `json:"weekdays,omitempty"`
	EventStart        string   `json:"event_start,omitempty"`
	EventEnd          string   `json:"event_end,omitempty"`
}

func encodeRule(r *domainrules.Rule) ruleBody {
	body := ruleBody{
		Name:              r.Name,
		Type:              string(r.Type),
		AdjustmentPercent: r.AdjustmentPercent,
		MinPriceCents:     r.MinPriceCents,
		MaxPriceCents:     r.MaxPriceCents,
		UnitID:            string(r.Scope.UnitID),
		PropertyID:        string(r.Scope.PropertyID),
	}
	if r.Occupancy != nil {
		body.HasOccupancy = true
		body.MinOccupancy = r.Occupancy.MinOccupancy
		body.MaxOccupancy = r.Occupancy.MaxOccupancy
		body.WindowDays = r.Occupancy.WindowDays
	}
	if r.LeadTime != nil {
		body.HasLeadTime = true
		body.MinDays = r.LeadTime.MinDays
		body.MaxDays = r.LeadTime.MaxDays
	}
	if r.Weekday != nil {
		body.Weekdays = append([]int(nil), r.Weekday.Days...)
	}
	if r.Event != nil {
		body.EventStart = daterange.FormatDay(r.Event.Start)
		body.EventEnd = daterange.FormatDay(r.Event.End)
	}
	return body
}

func (b ruleBody) decode(id string, priority int, active bool, createdAt, updatedAt time.Time) (domainrules.Rule, error) {
	rule := domainrules.Rule{
		ID:                domainrules.RuleID(id),
		Name:              b.Name,
		Type:              domainrules.Type(b.Type),
		AdjustmentPercent: b.AdjustmentPercent,
		Priority:          priority,
		MinPriceCents:     b.MinPriceCents,
		MaxPriceCents:     b.MaxPriceCents,
		Scope:             domainrules.Scope{UnitID: domainunits.UnitID(b.UnitID), PropertyID: domainunits.PropertyID(b.PropertyID)},
		Active:            active,
		CreatedAt:         createdAt.UTC(),
		UpdatedAt:         updatedAt.UTC(),
	}
	if b.HasOccupancy {
		rule.Occupancy = &domainrules.OccupancyConfig{MinOccupancy: b.MinOccupancy, MaxOccupancy: b.MaxOccupancy, WindowDays: b.WindowDays}
	}
	if b.HasLeadTime {
		rule.LeadTime = &domainrules.LeadTimeConfig{MinDays: b.MinDays, MaxDays: b.MaxDays}
	}
	if b.Weekdays != nil {
		rule.Weekday = &domainrules.WeekdayConfig{Days: b.Weekdays}
	}
	if b.EventStart != "" {
		start, err := daterange.ParseDay(b.EventStart)
		if err != nil {
			return domainrules.Rule{}, err
		}
		end, err := daterange.ParseDay(b.EventEnd)
		if err != nil {
			return domainrules.Rule{}, err
		}
		rule.Event = &domainrules.EventConfig{Start: start, End: end}
	}
	return rule, nil
}

func (r *RuleRepository) ByID(ctx context.Context, id domainrules.RuleID) (*domainrules.Rule, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, priority, active, body, created_at, updated_at
		FROM rate_rules WHERE id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	rules, err := collectRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, domainrules.ErrRuleNotFound
	}
	return &rules[0], nil
}

func (r *RuleRepository) Save(ctx context.Context, rule *domainrules.Rule) error {
	body, err := json.Marshal(encodeRule(rule))
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `INSERT INTO rate_rules (id, priority, active, body, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET priority = EXCLUDED.priority, active = EXCLUDED.active,
			body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		string(rule.ID), rule.Priority, rule.Active, body, rule.CreatedAt.UTC(), rule.UpdatedAt.UTC())
	return err
}

func (r *RuleRepository) Delete(ctx context.Context, id domainrules.RuleID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM rate_rules WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainrules.ErrRuleNotFound
	}
	return nil
}

func (r *RuleRepository) List(ctx context.Context) ([]domainrules.Rule, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, priority, active, body, created_at, updated_at
		FROM rate_rules ORDER BY priority, id`)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *RuleRepository) ListActive(ctx context.Context) ([]domainrules.Rule, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, priority, active, body, created_at, updated_at
		FROM rate_rules WHERE active ORDER BY priority, id`)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]domainrules.Rule, error) {
	defer rows.Close()
	out := []domainrules.Rule{}
	for rows.Next() {
		var (
			id                   string
			priority             int
			active               bool
			raw                  []byte
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&id, &priority, &active, &raw, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		var body ruleBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, err
		}
		rule, err := body.decode(id, priority, active, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

var (
	_ domainrates.Repository = (*BandRepository)(nil)
	_ domainrules.Repository = (*RuleRepository)(nil)
)
