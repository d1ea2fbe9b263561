// README: Structured access log per request.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev.Str("debugId", DebugID(c)).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", status).
			Str("ip", c.ClientIP()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
