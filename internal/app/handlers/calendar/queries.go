package calendar

import (
	"context"
	"time"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/queries"
	calendarsvc "rentdesk/internal/app/services/calendar"
	"rentdesk/internal/domain/units"
)

const (
	quoteKey       = "calendar.quote"
	getCalendarKey = "calendar.view"
)

type QuoteQuery struct {
	UnitID   string    `validate:"required"`
	CheckIn  time.Time `validate:"required"`
	CheckOut time.Time `validate:"required"`
}

func (q QuoteQuery) Key() string { return quoteKey }

type QuoteHandler struct {
	Service *calendarsvc.Service
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (dto.Quote, error) {
	if h.Service == nil {
		return dto.Quote{}, ErrServiceRequired
	}
	quote, err := h.Service.Quote(ctx, units.UnitID(q.UnitID), q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.MapQuote(quote), nil
}

type GetCalendarQuery struct {
	UnitID string    `validate:"required"`
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required"`
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	Service *calendarsvc.Service
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	if h.Service == nil {
		return dto.Calendar{}, ErrServiceRequired
	}
	cal, window, err := h.Service.Calendar(ctx, units.UnitID(q.UnitID), q.From, q.To)
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(cal, window), nil
}

var (
	_ queries.Handler[QuoteQuery, dto.Quote]          = (*QuoteHandler)(nil)
	_ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
)
