package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	domainrates "rentdesk/internal/domain/rates"
	domainrules "rentdesk/internal/domain/rules"
	domainunits "rentdesk/internal/domain/units"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Transactions need a replica set.
type Factory struct {
	DB *mongo.Database

	UnitsRepo    domainunits.Repository
	BookingsRepo domainbooking.Repository
	BlocksRepo   domainavailability.BlockRepository
	BandsRepo    domainrates.Repository
	RulesRepo    domainrules.Repository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// NewFactory builds a factory with the default repositories over db.
func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:           db,
		UnitsRepo:    NewUnitRepository(db),
		BookingsRepo: NewBookingRepository(db),
		BlocksRepo:   NewBlockRepository(db),
		BandsRepo:    NewBandRepository(db),
		RulesRepo:    NewRuleRepository(db),
	}
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadPreference(f.DB.ReadPreference())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{session: session, factory: f}, nil
}

type Unit struct {
	session mongo.Session
	factory Factory
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
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
