// README: Confirmation workflow: replay or hold a pending irreversible action.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"concierge/internal/modules/memory"
	"concierge/internal/synth"
	"concierge/internal/telemetry"
	"concierge/internal/tools"
)

const (
	holdMessage    = "No problem, nothing has been booked. Tell me what you would like to change, or confirm when you are ready."
	noToolsMessage = "Confirmed. Our concierge team will take it from here."
)

type ConfirmRequest struct {
	SessionID string
	UserID    string
	Confirm   bool
	DebugID   string
}

type ConfirmReply struct {
	Message             string          `json:"message"`
	PendingConfirmation bool            `json:"pendingConfirmation"`
	DebugID             string          `json:"debugId"`
	ToolResults         []tools.Outcome `json:"toolResults,omitempty"`
}

// Confirm resolves the session's pending action. Declining leaves it stored.
func (c *Concierge) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmReply, error) {
	if req.DebugID == "" {
		req.DebugID = uuid.NewString()
	}
	reply := ConfirmReply{DebugID: req.DebugID}
	if req.SessionID == "" {
		return reply, ErrBadRequest
	}

	ctx, span := telemetry.Tracer().Start(ctx, "concierge.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("debug.id", req.DebugID), attribute.Bool("confirm", req.Confirm))
	logger := log.With().Str("debugId", req.DebugID).Str("sessionId", req.SessionID).Logger()

	if !req.Confirm {
		mem, err := c.memory.Load(ctx, req.SessionID, req.UserID)
		if err != nil {
			return reply, err
		}
		if mem.PendingAction == nil {
			return reply, ErrNoPendingAction
		}
		logger.Info().Str("action", mem.PendingAction.Action).Msg("pending action declined")
		reply.Message = holdMessage
		reply.PendingConfirmation = true
		return reply, nil
	}

	// The action is cleared before it runs, so a retried or concurrent confirm
	// can never book twice.
	pa, err := c.memory.TakePendingAction(ctx, req.SessionID, req.UserID)
	switch {
	case errors.Is(err, memory.ErrClaimHeld):
		return reply, ErrConfirmInProgress
	case err != nil:
		return reply, err
	case pa == nil:
		return reply, ErrNoPendingAction
	}

	outcomes := c.tools.RunBatch(ctx, pa.ToolCalls, tools.ExecContext{
		CorrelationID: req.DebugID,
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Confirmed:     true,
	})
	reply.ToolResults = outcomes

	logger.Info().Str("action", pa.Action).Int("toolCalls", len(outcomes)).Msg("pending action executed")

	if len(outcomes) == 0 {
		reply.Message = noToolsMessage
		return reply, nil
	}
	reply.Message = synth.ConfirmationMessage(pa.Action, outcomes)
	return reply, nil
}
