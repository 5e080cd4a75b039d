package memory

import (
	"context"
	"errors"
	"sync"

	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	domainrates "rentdesk/internal/domain/rates"
	domainrules "rentdesk/internal/domain/rules"
	domainunits "rentdesk/internal/domain/units"
)

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	UnitsRepo    *UnitRepository
	BookingsRepo *BookingRepository
	BlocksRepo   *BlockRepository
	BandsRepo    *BandRepository
	RulesRepo    *RuleRepository
	// commitMu makes each commit apply as one step.
	commitMu *sync.Mutex
}

// NewFactory builds a factory over fresh empty repositories.
func NewFactory() Factory {
	return Factory{
		UnitsRepo:    NewUnitRepository(),
		BookingsRepo: NewBookingRepository(),
		BlocksRepo:   NewBlockRepository(),
		BandsRepo:    NewBandRepository(),
		RulesRepo:    NewRuleRepository(),
		commitMu:     &sync.Mutex{},
	}
}

// Begin starts a unit whose writes stay private until Commit. Versioned
// entities changed by another commit in the meantime fail the commit.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.UnitsRepo == nil || f.BookingsRepo == nil || f.BlocksRepo == nil || f.BandsRepo == nil || f.RulesRepo == nil || f.commitMu == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{factory: f, journal: &journal{}}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	factory Factory
	journal *journal
}

// InjectContext binds the journal so repository writes are buffered.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return withJournal(ctx, u.journal)
}

func (u *Unit) Units() domainunits.Repository {
	return u.factory.UnitsRepo
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.factory.BookingsRepo
}

func (u *Unit) Blocks() domainavailability.BlockRepository {
	return u.factory.BlocksRepo
}

func (u *Unit) RateBands() domainrates.Repository {
	return u.factory.BandsRepo
}

func (u *Unit) RateRules() domainrules.Repository {
	return u.factory.RulesRepo
}

func (u *Unit) Commit(ctx context.Context) error {
	return u.journal.commit(u.factory.commitMu)
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.journal.reset()
	return nil
}
