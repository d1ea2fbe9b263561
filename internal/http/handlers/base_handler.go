// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"concierge/internal/http/middleware"
	"concierge/internal/modules/aiusage"
	"concierge/internal/modules/booking"
	"concierge/internal/modules/memory"
	"concierge/internal/policy"
	"concierge/internal/service"
)

const (
	codeBadRequest      = "BAD_REQUEST"
	codeUnauthorized    = "UNAUTHORIZED"
	codeForbidden       = "FORBIDDEN"
	codeNotFound        = "NOT_FOUND"
	codeConflict        = "CONFLICT"
	codeRateLimited     = "RATE_LIMITED"
	codeQuotaExceeded   = "QUOTA_EXCEEDED"
	codeNoPendingAction = "NO_PENDING_ACTION"
	codePlanFailed      = "PLAN_GENERATION_FAILED"
	codeInternal        = "INTERNAL"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	DebugID string `json:"debugId"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

// writeError redacts msg; binding errors can echo user input back.
func writeError(c *gin.Context, status int, code, msg, debugID string) {
	if debugID == "" {
		debugID = middleware.DebugID(c)
	}
	writeJSON(c, status, errorResponse{Error: policy.RedactPII(msg), Code: code, DebugID: debugID})
}

func writeServiceError(c *gin.Context, err error, debugID string) {
	switch {
	case errors.Is(err, service.ErrBadRequest), errors.Is(err, memory.ErrBadRequest):
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error(), debugID)
	case errors.Is(err, service.ErrNoPendingAction):
		writeError(c, http.StatusBadRequest, codeNoPendingAction, err.Error(), debugID)
	case errors.Is(err, service.ErrConfirmInProgress):
		writeError(c, http.StatusConflict, codeConflict, err.Error(), debugID)
	case errors.Is(err, service.ErrRateLimited):
		writeError(c, http.StatusTooManyRequests, codeRateLimited, "too many requests, try again shortly", debugID)
	case errors.Is(err, aiusage.ErrInsufficientTokens):
		writeError(c, http.StatusTooManyRequests, codeQuotaExceeded, "monthly assistant allowance used up", debugID)
	case errors.Is(err, memory.ErrOwnerMismatch):
		writeError(c, http.StatusForbidden, codeForbidden, "session belongs to another user", debugID)
	case errors.Is(err, service.ErrPlanGenerationFailed):
		writeError(c, http.StatusInternalServerError, codePlanFailed, "could not generate a plan, please try again", debugID)
	default:
		log.Error().Err(err).Str("debugId", debugID).Str("route", c.FullPath()).Msg("unhandled service error")
		writeError(c, http.StatusInternalServerError, codeInternal, "internal error", debugID)
	}
}

func writeBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrBadRequest):
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error(), "")
	case errors.Is(err, booking.ErrNotFound):
		writeError(c, http.StatusNotFound, codeNotFound, err.Error(), "")
	case errors.Is(err, booking.ErrForbidden):
		writeError(c, http.StatusForbidden, codeForbidden, err.Error(), "")
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrConflict):
		writeError(c, http.StatusConflict, codeConflict, err.Error(), "")
	default:
		log.Error().Err(err).Str("debugId", middleware.DebugID(c)).Msg("booking lookup failed")
		writeError(c, http.StatusInternalServerError, codeInternal, "internal error", "")
	}
}

func bindError(c *gin.Context, err error) {
	writeError(c, http.StatusBadRequest, codeBadRequest, describeBindError(err), "")
}
