package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	ratesapp "rentdesk/internal/app/handlers/rates"
	"rentdesk/internal/app/queries"
)

type RatesHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h RatesHandler) errs() errorResponder { return errorResponder{Logger: h.Logger} }

func (h RatesHandler) ListUnits(c *gin.Context) {
	result, err := queries.Ask[ratesapp.ListUnitsQuery, ratesapp.UnitCollection](c.Request.Context(), h.Queries, ratesapp.ListUnitsQuery{})
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type unitRequest struct {
	PropertyID       string `json:"property_id"`
	Name             string `json:"name"`
	Capacity         int    `json:"capacity"`
	BaseNightlyCents int64  `json:"base_nightly_cents"`
	Currency         string `json:"currency"`
}

func (h RatesHandler) UpsertUnit(c *gin.Context) {
	var req unitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs().badRequest(c, err)
		return
	}
	cmd := ratesapp.UpsertUnitCommand{
		ActorID:          actorID(c),
		UnitID:           c.Param("id"),
		PropertyID:       req.PropertyID,
		Name:             req.Name,
		Capacity:         req.Capacity,
		BaseNightlyCents: req.BaseNightlyCents,
		Currency:         req.Currency,
	}
	result, err := commands.Dispatch[ratesapp.UpsertUnitCommand, dto.Unit](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h RatesHandler) ListRules(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.Query("active"))
	result, err := queries.Ask[ratesapp.ListRulesQuery, dto.RuleCollection](c.Request.Context(), h.Queries, ratesapp.ListRulesQuery{ActiveOnly: activeOnly})
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h RatesHandler) CreateRule(c *gin.Context) {
	var req dto.Rule
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs().badRequest(c, err)
		return
	}
	cmd := ratesapp.CreateRuleCommand{ActorID: actorID(c), Rule: req}
	result, err := commands.Dispatch[ratesapp.CreateRuleCommand, dto.Rule](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h RatesHandler) UpdateRule(c *gin.Context) {
	var req dto.Rule
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs().badRequest(c, err)
		return
	}
	cmd := ratesapp.UpdateRuleCommand{ActorID: actorID(c), RuleID: c.Param("id"), Rule: req}
	result, err := commands.Dispatch[ratesapp.UpdateRuleCommand, dto.Rule](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h RatesHandler) DeleteRule(c *gin.Context) {
	cmd := ratesapp.DeleteRuleCommand{ActorID: actorID(c), RuleID: c.Param("id")}
	result, err := commands.Dispatch[ratesapp.DeleteRuleCommand, ratesapp.DeleteResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h RatesHandler) ListBands(c *gin.Context) {
	query := ratesapp.ListBandsQuery{UnitID: c.Param("id")}
	result, err := queries.Ask[ratesapp.ListBandsQuery, dto.BandCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type bandRequest struct {
	BandID            string `json:"band_id"`
	StartDate         string `json:"start_date" binding:"required"`
	EndDate           string `json:"end_date" binding:"required"`
	WeekdayPriceCents *int64 `json:"weekday_price_cents"`
	WeekendPriceCents *int64 `json:"weekend_price_cents"`
	MinStay           int    `json:"min_stay"`
}

func (r bandRequest) payload() (ratesapp.BandPayload, error) {
	start, end, err := parseDays(r.StartDate, r.EndDate)
	if err != nil {
		return ratesapp.BandPayload{}, err
	}
	return ratesapp.BandPayload{
		StartDate:         start,
		EndDate:           end,
		WeekdayPriceCents: r.WeekdayPriceCents,
		WeekendPriceCents: r.WeekendPriceCents,
		MinStay:           r.MinStay,
	}, nil
}

func (h RatesHandler) CreateBand(c *gin.Context) {
	var req bandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs().badRequest(c, err)
		return
	}
	payload, err := req.payload()
	if err != nil {
		h.errs().badRequest(c, err)
		return
	}
	cmd := ratesapp.CreateBandCommand{ActorID: actorID(c), UnitID: c.Param("id"), BandID: req.BandID, Payload: payload}
	result, err := commands.Dispatch[ratesapp.CreateBandCommand, dto.Band](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h RatesHandler) UpdateBand(c *gin.Context) {
	var req bandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs().badRequest(c, err)
		return
	}
	payload, err := req.payload()
	if err != nil {
		h.errs().badRequest(c, err)
		return
	}
	cmd := ratesapp.UpdateBandCommand{ActorID: actorID(c), BandID: c.Param("id"), Payload: payload}
	result, err := commands.Dispatch[ratesapp.UpdateBandCommand, dto.Band](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h RatesHandler) DeleteBand(c *gin.Context) {
	cmd := ratesapp.DeleteBandCommand{ActorID: actorID(c), BandID: c.Param("id")}
	result, err := commands.Dispatch[ratesapp.DeleteBandCommand, ratesapp.DeleteResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.errs().handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ RatesHTTP = RatesHandler{}
