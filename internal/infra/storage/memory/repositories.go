package memory

import (
	"context"
	"fmt"
	"sort"

	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	domainrates "rentdesk/internal/domain/rates"
	domainrules "rentdesk/internal/domain/rules"
	"rentdesk/internal/domain/shared/daterange"
	domainunits "rentdesk/internal/domain/units"
)

// ErrConcurrentUpdate is returned when the stored version moved since load.
var ErrConcurrentUpdate = fmt.Errorf("memory: %w", uow.ErrConcurrentUpdate)

// UnitRepository is an in-memory implementation for local runs and tests.
type UnitRepository struct {
	items *table[domainunits.UnitID, domainunits.Unit]
}

func NewUnitRepository() *UnitRepository {
	return &UnitRepository{items: newTable[domainunits.UnitID](func(u domainunits.Unit) int64 { return u.Version })}
}

func (r *UnitRepository) ByID(ctx context.Context, id domainunits.UnitID) (*domainunits.Unit, error) {
	u, ok := r.items.get(ctx, id)
	if !ok {
		return nil, domainunits.ErrUnitNotFound
	}
	return &u, nil
}

func (r *UnitRepository) Save(ctx context.Context, unit *domainunits.Unit) error {
	if prev, existed := r.items.get(ctx, unit.ID); existed && prev.Version != unit.Version {
		return ErrConcurrentUpdate
	}
	unit.Version++
	stored := *unit
	stored.ClearEvents()
	r.items.put(ctx, unit.ID, stored)
	return nil
}

func (r *UnitRepository) List(ctx context.Context) ([]*domainunits.Unit, error) {
	list := r.items.list(ctx, nil)
	out := make([]*domainunits.Unit, 0, len(list))
	for i := range list {
		out = append(out, &list[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BookingRepository keeps every booking, cancelled ones included.
type BookingRepository struct {
	items *table[domainbooking.BookingID, domainbooking.Booking]
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: newTable[domainbooking.BookingID](func(b domainbooking.Booking) int64 { return b.Version })}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	b, ok := r.items.get(ctx, id)
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return &b, nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	if prev, existed := r.items.get(ctx, b.ID); existed && prev.Version != b.Version {
		return ErrConcurrentUpdate
	}
	b.Version++
	stored := *b
	stored.ClearEvents()
	r.items.put(ctx, b.ID, stored)
	return nil
}

func (r *BookingRepository) ListByUnit(ctx context.Context, unitID domainunits.UnitID, window daterange.DateRange) ([]*domainbooking.Booking, error) {
	list := r.items.list(ctx, func(b domainbooking.Booking) bool {
		return b.UnitID == unitID && b.Active() && b.Range.Overlaps(window)
	})
	out := make([]*domainbooking.Booking, 0, len(list))
	for i := range list {
		out = append(out, &list[i])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
	})
	return out, nil
}

type BlockRepository struct {
	items *table[domainavailability.BlockID, domainavailability.Block]
}

func NewBlockRepository() *BlockRepository {
	return &BlockRepository{items: newTable[domainavailability.BlockID](func(b domainavailability.Block) int64 { return b.Version })}
}

func (r *BlockRepository) ByID(ctx context.Context, id domainavailability.BlockID) (*domainavailability.Block, error) {
	b, ok := r.items.get(ctx, id)
	if !ok {
		return nil, domainavailability.ErrBlockNotFound
	}
	return &b, nil
}

func (r *BlockRepository) Save(ctx context.Context, b *domainavailability.Block) error {
	if prev, existed := r.items.get(ctx, b.ID); existed && prev.Version != b.Version {
		return ErrConcurrentUpdate
	}
	b.Version++
	stored := *b
	stored.ClearEvents()
	r.items.put(ctx, b.ID, stored)
	return nil
}

func (r *BlockRepository) Delete(ctx context.Context, id domainavailability.BlockID) error {
	if _, ok := r.items.get(ctx, id); !ok {
		return domainavailability.ErrBlockNotFound
	}
	r.items.remove(ctx, id)
	return nil
}

func (r *BlockRepository) ListByUnit(ctx context.Context, unitID domainunits.UnitID, window daterange.DateRange) ([]*domainavailability.Block, error) {
	list := r.items.list(ctx, func(b domainavailability.Block) bool {
		return b.UnitID == unitID && b.Range.Overlaps(window)
	})
	out := make([]*domainavailability.Block, 0, len(list))
	for i := range list {
		out = append(out, &list[i])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
	})
	return out, nil
}

type BandRepository struct {
	items *table[domainrates.BandID, domainrates.Band]
}

func NewBandRepository() *BandRepository {
	return &BandRepository{items: newTable[domainrates.BandID, domainrates.Band](nil)}
}

func (r *BandRepository) ByID(ctx context.Context, id domainrates.BandID) (*domainrates.Band, error) {
	b, ok := r.items.get(ctx, id)
	if !ok {
		return nil, domainrates.ErrBandNotFound
	}
	return &b, nil
}

func (r *BandRepository) Save(ctx context.Context, b *domainrates.Band) error {
	r.items.put(ctx, b.ID, *b)
	return nil
}

func (r *BandRepository) Delete(ctx context.Context, id domainrates.BandID) error {
	if _, ok := r.items.get(ctx, id); !ok {
		return domainrates.ErrBandNotFound
	}
	r.items.remove(ctx, id)
	return nil
}

func (r *BandRepository) ListByUnit(ctx context.Context, unitID domainunits.UnitID) ([]domainrates.Band, error) {
	out := r.items.list(ctx, func(b domainrates.Band) bool { return b.UnitID == unitID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
	})
	return out, nil
}

// RuleRepository hands out deep copies so a quote never sees a rule change mid-way.
type RuleRepository struct {
	items *table[domainrules.RuleID, domainrules.Rule]
}

func NewRuleRepository() *RuleRepository {
	return &RuleRepository{items: newTable[domainrules.RuleID, domainrules.Rule](nil)}
}

func (r *RuleRepository) ByID(ctx context.Context, id domainrules.RuleID) (*domainrules.Rule, error) {
	rule, ok := r.items.get(ctx, id)
	if !ok {
		return nil, domainrules.ErrRuleNotFound
	}
	c := rule.Clone()
	return &c, nil
}

func (r *RuleRepository) Save(ctx context.Context, rule *domainrules.Rule) error {
	r.items.put(ctx, rule.ID, rule.Clone())
	return nil
}

func (r *RuleRepository) Delete(ctx context.Context, id domainrules.RuleID) error {
	if _, ok := r.items.get(ctx, id); !ok {
		return domainrules.ErrRuleNotFound
	}
	r.items.remove(ctx, id)
	return nil
}

func (r *RuleRepository) List(ctx context.Context) ([]domainrules.Rule, error) {
	return r.list(ctx, false), nil
}

func (r *RuleRepository) ListActive(ctx context.Context) ([]domainrules.Rule, error) {
	return r.list(ctx, true), nil
}

func (r *RuleRepository) list(ctx context.Context, onlyActive bool) []domainrules.Rule {
	stored := r.items.list(ctx, func(rule domainrules.Rule) bool { return !onlyActive || rule.Active })
	out := make([]domainrules.Rule, 0, len(stored))
	for _, rule := range stored {
		out = append(out, rule.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}
