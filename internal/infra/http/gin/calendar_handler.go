package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	calendarapp "rentdesk/internal/app/handlers/calendar"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/domain/shared/daterange"
)

type CalendarHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h CalendarHandler) errs() errorResponder { return errorResponder{Logger: h.Logger} }

func (h CalendarHandler) Quote(c *gin.Context) {
	checkIn, checkOut, err := parseDays(c.Query("checkin"), c.Query("checkout"))
	if err != nil {
		h.errs().badRequest(c, err)
		return
	}
	query := calendarapp.QuoteQuery{UnitID: c.Param("id"), CheckIn: checkIn, CheckOut: checkOut}
	result, err := queries.Ask[calendarapp.QuoteQuery, dto.Quote](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) Calendar(c *gin.Context) {
	from, to, err := parseDays(c.Query("from"), c.Query("to"))
	if err != nil {
		h.errs().badRequest(c, err)
		return
	}
	query := calendarapp.GetCalendarQuery{UnitID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[calendarapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type createBookingRequest struct {
	BookingID string       `json:"booking_id"`
	UnitID    string       `json:"unit_id" binding:"required"`
	CheckIn   string       `json:"checkin" binding:"required"`
	CheckOut  string       `json:"checkout" binding:"required"`
	Guest     dto.GuestDTO `json:"guest"`
	Adults    int          `json:"adults"`
	Children  int          `json:"children"`
	Pending   bool         `json:"pending"`
}

func (h CalendarHandler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs().badRequest(c, err)
		return
	}
	checkIn, checkOut, err := parseDays(req.CheckIn, req.CheckOut)
	if err != nil {
		h.errs().badRequest(c, err)
		return
	}
	cmd := calendarapp.CreateBookingCommand{
		ActorID:         actorID(c),
		BookingID:       req.BookingID,
		UnitID:          req.UnitID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guest:           req.Guest,
		Adults:          req.Adults,
		Children:        req.Children,
		Pending:         req.Pending,
		IdempotencyKeyV: c.GetHeader(headerIdempotencyKey),
	}
	result, err := commands.Dispatch[calendarapp.CreateBookingCommand, dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type stayRequest struct {
	CheckIn  string `json:"checkin" binding:"required"`
	CheckOut string `json:"checkout" binding:"required"`
}

func (h CalendarHandler) RescheduleBooking(c *gin.Context) {
	var req stayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs().badRequest(c, err)
		return
	}
	checkIn, checkOut, err := parseDays(req.CheckIn, req.CheckOut)
	if err != nil {
		h.errs().badRequest(c, err)
		return
	}
	cmd := calendarapp.RescheduleBookingCommand{ActorID: actorID(c), BookingID: c.Param("id"), CheckIn: checkIn, CheckOut: checkOut}
	result, err := commands.Dispatch[calendarapp.RescheduleBookingCommand, dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) ConfirmBooking(c *gin.Context) {
	cmd := calendarapp.ConfirmBookingCommand{ActorID: actorID(c), BookingID: c.Param("id")}
	result, err := commands.Dispatch[calendarapp.ConfirmBookingCommand, dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) CancelBooking(c *gin.Context) {
	cmd := calendarapp.CancelBookingCommand{ActorID: actorID(c), BookingID: c.Param("id")}
	result, err := commands.Dispatch[calendarapp.CancelBookingCommand, dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type blockRequest struct {
	BlockID string `json:"block_id"`
	Start   string `json:"start" binding:"required"`
	End     string `json:"end" binding:"required"`
	Reason  string `json:"reason"`
}

func (h CalendarHandler) CreateBlock(c *gin.Context) {
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs().badRequest(c, err)
		return
	}
	start, end, err := parseDays(req.Start, req.End)
	if err != nil {
		h.errs().badRequest(c, err)
		return
	}
	cmd := calendarapp.CreateBlockCommand{
		ActorID: actorID(c),
		BlockID: req.BlockID,
		UnitID:  c.Param("id"),
		Start:   start,
		End:     end,
		Reason:  req.Reason,
	}
	result, err := commands.Dispatch[calendarapp.CreateBlockCommand, dto.Block](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h CalendarHandler) RescheduleBlock(c *gin.Context) {
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs().badRequest(c, err)
		return
	}
	start, end, err := parseDays(req.Start, req.End)
	if err != nil {
		h.errs().badRequest(c, err)
		return
	}
	cmd := calendarapp.RescheduleBlockCommand{ActorID: actorID(c), BlockID: c.Param("id"), Start: start, End: end}
	result, err := commands.Dispatch[calendarapp.RescheduleBlockCommand, dto.Block](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) DeleteBlock(c *gin.Context) {
	cmd := calendarapp.DeleteBlockCommand{ActorID: actorID(c), BlockID: c.Param("id")}
	result, err := commands.Dispatch[calendarapp.DeleteBlockCommand, calendarapp.DeleteBlockResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// parseDays reads two YYYY-MM-DD values.
func parseDays(from, to string) (time.Time, time.Time, error) {
	start, err := daterange.ParseDay(from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", from)
	}
	end, err := daterange.ParseDay(to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", to)
	}
	return start, end, nil
}

var _ CalendarHTTP = CalendarHandler{}
