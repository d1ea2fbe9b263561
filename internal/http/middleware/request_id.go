// README: Per-request debug id, echoed in X-Request-ID and every response body.
package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	debugIDKey      = "debugId"
	RequestIDHeader = "X-Request-ID"
)

var inboundID = regexp.MustCompile(`^[A-Za-z0-9\-]{8,64}$`)

// RequestID reuses a well-formed inbound X-Request-ID and mints a UUID otherwise.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !inboundID.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(debugIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func DebugID(c *gin.Context) string {
	return c.GetString(debugIDKey)
}
