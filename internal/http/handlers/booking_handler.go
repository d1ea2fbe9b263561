// README: Booking lookup for signed-in owners.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"concierge/internal/http/middleware"
	"concierge/internal/modules/booking"
	"concierge/internal/types"
)

type BookingReader interface {
	Get(ctx context.Context, caller booking.Caller, id types.ID) (*booking.Booking, error)
}

type BookingHandler struct {
	svc BookingReader
}

func NewBookingHandler(svc BookingReader) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// isValidID ensures IDs are lowercase hex and 32 chars (matches the booking id generator).
func isValidID(v string) bool {
	if len(v) != 32 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}

func (h *BookingHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, codeBadRequest, "invalid booking id", "")
		return
	}
	caller := booking.Caller{UserID: middleware.CallerUID(c)}
	if caller.UserID == "" {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "authentication required", "")
		return
	}
	b, err := h.svc.Get(c.Request.Context(), caller, types.ID(id))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}
