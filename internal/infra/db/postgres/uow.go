package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	domainrates "rentdesk/internal/domain/rates"
	domainrules "rentdesk/internal/domain/rules"
	domainunits "rentdesk/internal/domain/units"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing pool")

// Factory runs each unit of work in one READ COMMITTED transaction.
// Repositories find the transaction through the context.
type Factory struct {
	Pool *pgxpool.Pool

	UnitsRepo    *UnitRepository
	BookingsRepo *BookingRepository
	BlocksRepo   *BlockRepository
	BandsRepo    *BandRepository
	RulesRepo    *RuleRepository
}

func NewFactory(pool *pgxpool.Pool) Factory {
	return Factory{
		Pool:         pool,
		UnitsRepo:    &UnitRepository{pool: pool},
		BookingsRepo: &BookingRepository{pool: pool},
		BlocksRepo:   &BlockRepository{pool: pool},
		BandsRepo:    &BandRepository{pool: pool},
		RulesRepo:    &RuleRepository{pool: pool},
	}
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Pool == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := f.Pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, err
	}
	return &Unit{tx: tx, factory: f}, nil
}

type Unit struct {
	tx      pgx.Tx
	factory Factory
}

func (u *Unit) Units() domainunits.Repository              { return u.factory.UnitsRepo }
func (u *Unit) Bookings() domainbooking.Repository         { return u.factory.BookingsRepo }
func (u *Unit) Blocks() domainavailability.BlockRepository { return u.factory.BlocksRepo }
func (u *Unit) RateBands() domainrates.Repository          { return u.factory.BandsRepo }
func (u *Unit) RateRules() domainrules.Repository          { return u.factory.RulesRepo }

func (u *Unit) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// InjectContext binds the transaction for downstream repositories.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return withTx(ctx, u.tx)
}
