package uow

import (
	"context"

	domainavailability "rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	domainrates "rentdesk/internal/domain/rates"
	domainrules "rentdesk/internal/domain/rules"
	domainunits "rentdesk/internal/domain/units"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Units() domainunits.Repository
	Bookings() domainbooking.Repository
	Blocks() domainavailability.BlockRepository
	RateBands() domainrates.Repository
	RateRules() domainrules.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry a driver session in context.
type ContextInjector interface {
	InjectContext(context.Context) context.Context
}

// Bind returns ctx carrying unit, plus whatever session the unit injects.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}
