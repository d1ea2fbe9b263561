// README: Firebase ID-token middleware; identity is optional on chat and required on booking lookups.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"concierge/internal/infra"
)

const (
	callerUIDKey   = "callerUID"
	authEnabledKey = "authEnabled"
)

// Auth verifies a bearer token when one is sent. Requests without an
// Authorization header continue anonymously; a malformed or rejected token is 401.
// With a nil verifier every request is anonymous.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		c.Set(authEnabledKey, true)

		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, http.StatusUnauthorized, "invalid authorization header")
			return
		}
		caller, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			log.Warn().Err(err).Str("debugId", DebugID(c)).Msg("id token rejected")
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(callerUIDKey, caller.UID)
		c.Next()
	}
}

// RequireAuth rejects requests that Auth did not attach a verified caller to.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerUID(c) == "" {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		c.Next()
	}
}

// CallerUID returns the verified user id, or "" for anonymous requests.
func CallerUID(c *gin.Context) string {
	return c.GetString(callerUIDKey)
}

// AuthEnabled reports whether token verification is configured for this server.
func AuthEnabled(c *gin.Context) bool {
	return c.GetBool(authEnabledKey)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "debugId": DebugID(c)})
}
