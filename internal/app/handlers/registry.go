package handlers

import (
	"log/slog"
	"time"

	"rentdesk/internal/app/audit"
	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/guard"
	calendarapp "rentdesk/internal/app/handlers/calendar"
	ratesapp "rentdesk/internal/app/handlers/rates"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/queries"
	calendarsvc "rentdesk/internal/app/services/calendar"
	"rentdesk/internal/app/uow"
)

// Deps are the components the buses dispatch to.
type Deps struct {
	Factory     uow.UoWFactory
	Calendar    *calendarsvc.Service
	Guard       *guard.Guard
	Audit       audit.Logger
	Idempotency middleware.IdempotencyStore
	Outbox      outbox.Outbox
	Clock       func() time.Time
	IDs         func() string
	Logger      *slog.Logger
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// Build registers every calendar and rate handler and wraps the buses with
// actor, validation, idempotency, outbox and transaction middleware.
func Build(d Deps) Buses {
	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, "", &calendarapp.CreateBookingHandler{Service: d.Calendar})
	commands.RegisterHandler(commandBus, "", &calendarapp.RescheduleBookingHandler{Service: d.Calendar})
	commands.RegisterHandler(commandBus, "", &calendarapp.ConfirmBookingHandler{Service: d.Calendar})
	commands.RegisterHandler(commandBus, "", &calendarapp.CancelBookingHandler{Service: d.Calendar})
	commands.RegisterHandler(commandBus, "", &calendarapp.CreateBlockHandler{Service: d.Calendar})
	commands.RegisterHandler(commandBus, "", &calendarapp.RescheduleBlockHandler{Service: d.Calendar})
	commands.RegisterHandler(commandBus, "", &calendarapp.DeleteBlockHandler{Service: d.Calendar})

	commands.RegisterHandler(commandBus, "", &ratesapp.UpsertUnitHandler{Audit: d.Audit, Clock: d.Clock})
	ruleHandlers := &ratesapp.RuleHandlers{Audit: d.Audit, Clock: d.Clock, IDs: d.IDs}
	commands.RegisterHandler(commandBus, "", commands.HandlerFunc[ratesapp.CreateRuleCommand, dto.Rule](ruleHandlers.Create))
	commands.RegisterHandler(commandBus, "", commands.HandlerFunc[ratesapp.UpdateRuleCommand, dto.Rule](ruleHandlers.Update))
	commands.RegisterHandler(commandBus, "", commands.HandlerFunc[ratesapp.DeleteRuleCommand, ratesapp.DeleteResult](ruleHandlers.Delete))
	bandHandlers := &ratesapp.BandHandlers{UoWFactory: d.Factory, Guard: d.Guard, Audit: d.Audit, Clock: d.Clock, IDs: d.IDs}
	commands.RegisterHandler(commandBus, "", commands.HandlerFunc[ratesapp.CreateBandCommand, dto.Band](bandHandlers.Create))
	commands.RegisterHandler(commandBus, "", commands.HandlerFunc[ratesapp.UpdateBandCommand, dto.Band](bandHandlers.Update))
	commands.RegisterHandler(commandBus, "", commands.HandlerFunc[ratesapp.DeleteBandCommand, ratesapp.DeleteResult](bandHandlers.Delete))

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, "", &calendarapp.QuoteHandler{Service: d.Calendar})
	queries.RegisterHandler(queryBus, "", &calendarapp.GetCalendarHandler{Service: d.Calendar})
	queries.RegisterHandler(queryBus, "", &ratesapp.ListRulesHandler{UoWFactory: d.Factory})
	queries.RegisterHandler(queryBus, "", &ratesapp.ListBandsHandler{UoWFactory: d.Factory})
	queries.RegisterHandler(queryBus, "", &ratesapp.ListUnitsHandler{UoWFactory: d.Factory})

	validator := middleware.NewStructValidator()
	mws := []middleware.CommandMiddleware{
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Validation(validator),
	}
	if d.Idempotency != nil {
		mws = append(mws, middleware.Idempotency(d.Idempotency, nil))
	}
	if d.Outbox != nil {
		mws = append(mws, middleware.OutboxFlush(d.Outbox, d.Logger))
	}
	mws = append(mws, middleware.Transaction(d.Factory, nil))

	return Buses{
		Commands: middleware.ChainCommands(commandBus, mws...),
		Queries:  middleware.ChainQueries(queryBus, middleware.QueryValidation(validator)),
	}
}
