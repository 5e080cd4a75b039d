package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainrules "rentdesk/internal/domain/rules"
	domainunits "rentdesk/internal/domain/units"
)

type RuleRepository struct {
	col *mongo.Collection
}

func NewRuleRepository(db *mongo.Database) *RuleRepository {
	return &RuleRepository{col: db.Collection(collRules)}
}

func (r *RuleRepository) ByID(ctx context.Context, id domainrules.RuleID) (*domainrules.Rule, error) {
	var doc ruleDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainrules.ErrRuleNotFound
		}
		return nil, err
	}
	rule := doc.toRule()
	return &rule, nil
}

func (r *RuleRepository) Save(ctx context.Context, rule *domainrules.Rule) error {
	doc := newRuleDocument(rule)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *RuleRepository) Delete(ctx context.Context, id domainrules.RuleID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainrules.ErrRuleNotFound
	}
	return nil
}

func (r *RuleRepository) List(ctx context.Context) ([]domainrules.Rule, error) {
	return r.find(ctx, bson.M{})
}

func (r *RuleRepository) ListActive(ctx context.Context) ([]domainrules.Rule, error) {
	return r.find(ctx, bson.M{"active": true})
}

func (r *RuleRepository) find(ctx context.Context, filter bson.M) ([]domainrules.Rule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []domainrules.Rule{}
	for cur.Next(ctx) {
		var doc ruleDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toRule())
	}
	return out, cur.Err()
}

type occupancyDocument struct {
	Min        *float64 `bson:"min,omitempty"`
	Max        *float64 `bson:"max,omitempty"`
	WindowDays int      `bson:"window_days"`
}

type leadTimeDocument struct {
	MinDays *int `bson:"min_days,omitempty"`
	MaxDays *int `bson:"max_days,omitempty"`
}

type eventDocument struct {
	Start int64 `bson:"start"`
	End   int64 `bson:"end"`
}

type ruleDocument struct {
	ID                string             `bson:"_id"`
	Name              string             `bson:"name"`
	Type              string             `bson:"type"`
	AdjustmentPercent float64            `bson:"adjustment_percent"`
	Priority          int                `bson:"priority"`
	MinPriceCents     *int64             `bson:"min_price_cents,omitempty"`
	MaxPriceCents     *int64             `bson:"max_price_cents,omitempty"`
	UnitID            string             `bson:"unit_id,omitempty"`
	PropertyID        string             `bson:"property_id,omitempty"`
	Occupancy         *occupancyDocument `bson:"occupancy,omitempty"`
	LeadTime          *leadTimeDocument  `bson:"lead_time,omitempty"`
	Weekdays          []int              `bson:"weekdays,omitempty"`
	Event             *eventDocument     `bson:"event,omitempty"`
	Active            bool               `bson:"active"`
	CreatedAt         time.Time          `bson:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

func newRuleDocument(r *domainrules.Rule) ruleDocument {
	doc := ruleDocument{
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
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
	if r.Occupancy != nil {
		doc.Occupancy = &occupancyDocument{Min: r.Occupancy.MinOccupancy, Max: r.Occupancy.MaxOccupancy, WindowDays: r.Occupancy.WindowDays}
	}
	if r.LeadTime != nil {
		doc.LeadTime = &leadTimeDocument{MinDays: r.LeadTime.MinDays, MaxDays: r.LeadTime.MaxDays}
	}
	if r.Weekday != nil {
		doc.Weekdays = append([]int(nil), r.Weekday.Days...)
	}
	if r.Event != nil {
		doc.Event = &eventDocument{Start: r.Event.Start.UnixMilli(), End: r.Event.End.UnixMilli()}
	}
	return doc
}

func (d ruleDocument) toRule() domainrules.Rule {
	rule := domainrules.Rule{
		ID:                domainrules.RuleID(d.ID),
		Name:              d.Name,
		Type:              domainrules.Type(d.Type),
		AdjustmentPercent: d.AdjustmentPercent,
		Priority:          d.Priority,
		MinPriceCents:     d.MinPriceCents,
		MaxPriceCents:     d.MaxPriceCents,
		Scope:             domainrules.Scope{UnitID: domainunits.UnitID(d.UnitID), PropertyID: domainunits.PropertyID(d.PropertyID)},
		Active:            d.Active,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
	if d.Occupancy != nil {
		rule.Occupancy = &domainrules.OccupancyConfig{MinOccupancy: d.Occupancy.Min, MaxOccupancy: d.Occupancy.Max, WindowDays: d.Occupancy.WindowDays}
	}
	if d.LeadTime != nil {
		rule.LeadTime = &domainrules.LeadTimeConfig{MinDays: d.LeadTime.MinDays, MaxDays: d.LeadTime.MaxDays}
	}
	if d.Weekdays != nil {
		rule.Weekday = &domainrules.WeekdayConfig{Days: d.Weekdays}
	}
	if d.Event != nil {
		rule.Event = &domainrules.EventConfig{Start: timestampToTime(d.Event.Start), End: timestampToTime(d.Event.End)}
	}
	return rule
}

var _ domainrules.Repository = (*RuleRepository)(nil)
