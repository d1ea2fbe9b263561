// README: Chat and confirm entry points.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"concierge/internal/http/middleware"
	"concierge/internal/service"
)

// ChatService is the orchestrator surface the handlers need.
type ChatService interface {
	Chat(ctx context.Context, req service.ChatRequest) (service.ChatReply, error)
	Confirm(ctx context.Context, req service.ConfirmRequest) (service.ConfirmReply, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	RegisterValidators()
	return &ChatHandler{svc: svc}
}

type chatContext struct {
	IntentHint string `json:"intentHint"`
}

type chatRequest struct {
	SessionID string       `json:"sessionId" binding:"omitempty,sessionid"`
	UserID    string       `json:"userId"`
	Message   string       `json:"message" binding:"required,max=4000"`
	Context   *chatContext `json:"context"`
}

type confirmRequest struct {
	SessionID string `json:"sessionId" binding:"required,sessionid"`
	UserID    string `json:"userId"`
	Confirm   *bool  `json:"confirm" binding:"required"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	userID, ok := resolveUser(c, req.UserID)
	if !ok {
		return
	}
	in := service.ChatRequest{
		SessionID: req.SessionID,
		UserID:    userID,
		Message:   req.Message,
		ClientIP:  c.ClientIP(),
		DebugID:   middleware.DebugID(c),
	}
	if req.Context != nil {
		in.IntentHint = req.Context.IntentHint
	}

	reply, err := h.svc.Chat(c.Request.Context(), in)
	if err != nil {
		writeServiceError(c, err, reply.DebugID)
		return
	}
	writeJSON(c, http.StatusOK, reply)
}

func (h *ChatHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	userID, ok := resolveUser(c, req.UserID)
	if !ok {
		return
	}
	reply, err := h.svc.Confirm(c.Request.Context(), service.ConfirmRequest{
		SessionID: req.SessionID,
		UserID:    userID,
		Confirm:   *req.Confirm,
		DebugID:   middleware.DebugID(c),
	})
	if err != nil {
		writeServiceError(c, err, reply.DebugID)
		return
	}
	writeJSON(c, http.StatusOK, reply)
}

// resolveUser trusts the body userId only when token auth is disabled.
// With auth on, the verified uid wins and a conflicting body userId is 403.
func resolveUser(c *gin.Context, bodyUserID string) (string, bool) {
	if !middleware.AuthEnabled(c) {
		return bodyUserID, true
	}
	uid := middleware.CallerUID(c)
	if bodyUserID != "" && bodyUserID != uid {
		writeError(c, http.StatusForbidden, codeForbidden, "userId does not match the signed-in user", "")
		return "", false
	}
	return uid, true
}
