package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/guard"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/rates"
	"rentdesk/internal/domain/rules"
	"rentdesk/internal/infra/obs"
)

const headerIdempotencyKey = "Idempotency-Key"

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, availability.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, availability.ErrValidation),
		errors.Is(err, middleware.ErrInvalidMessage),
		errors.Is(err, middleware.ErrActorRequired),
		errors.Is(err, rules.ErrInvalidRule),
		errors.Is(err, rates.ErrInvalidBand):
		return http.StatusBadRequest
	case errors.Is(err, availability.ErrConflict),
		errors.Is(err, rates.ErrBandOverlap),
		errors.Is(err, uow.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, guard.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, commands.ErrHandlerNotFound),
		errors.Is(err, queries.ErrHandlerNotFound):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

type errorResponder struct {
	Logger *slog.Logger
}

func (r errorResponder) handleError(c *gin.Context, err error) {
	status := statusFor(err)
	r.respondWithError(c, status, err)
}

func (r errorResponder) respondWithError(c *gin.Context, status int, err error) {
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		message = "internal error"
	}
	if r.Logger != nil {
		fields := []any{"status", status, "error", err, "path", c.FullPath(), "request_id", obs.RequestIDFromContext(c.Request.Context())}
		if actor := c.GetHeader(obs.HeaderActorID); actor != "" {
			fields = append(fields, "actor_id", actor)
		}
		if status >= http.StatusInternalServerError {
			r.Logger.Error("request failed", fields...)
		} else {
			r.Logger.Debug("request rejected", fields...)
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func (r errorResponder) badRequest(c *gin.Context, err error) {
	r.respondWithError(c, http.StatusBadRequest, err)
}

func actorID(c *gin.Context) string {
	return c.GetHeader(obs.HeaderActorID)
}
