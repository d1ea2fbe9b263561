// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"concierge/internal/http/handlers"
	"concierge/internal/http/middleware"
	"concierge/internal/infra"
)

type RouterDeps struct {
	Chat     handlers.ChatService
	Bookings handlers.BookingReader
	// Verifier is optional; nil disables token auth.
	Verifier infra.TokenVerifier
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Tracing(),
		middleware.Recovery(),
	)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	chat := handlers.NewChatHandler(deps.Chat)
	api.POST("/chat", chat.Chat)
	api.POST("/chat/confirm", chat.Confirm)

	if deps.Bookings != nil {
		bookings := handlers.NewBookingHandler(deps.Bookings)
		api.GET("/bookings/:id", middleware.RequireAuth(), bookings.Get)
	}
	return r
}
