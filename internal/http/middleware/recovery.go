// README: Panic recovery returning a JSON 500 with the debug id.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("debugId", DebugID(c)).Interface("panic", r).Str("route", c.FullPath()).Msg("handler panicked")
				abort(c, http.StatusInternalServerError, "internal error")
			}
		}()
		c.Next()
	}
}
