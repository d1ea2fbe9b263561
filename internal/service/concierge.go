// README: Concierge orchestrator: rate limit, injection gate, memory, planning, confirmation branch, dispatch, synthesis.
package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"concierge/internal/modules/memory"
	"concierge/internal/planner"
	"concierge/internal/policy"
	"concierge/internal/ratelimit"
	"concierge/internal/synth"
	"concierge/internal/telemetry"
	"concierge/internal/tools"
	"concierge/internal/types"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrRateLimited     = errors.New("rate limited")
	ErrNoPendingAction = errors.New("no pending action")
	// ErrConfirmInProgress is returned while another confirmation for the same
	// session is being resolved.
	ErrConfirmInProgress = errors.New("confirmation already in progress")

	ErrPlanGenerationFailed = planner.ErrPlanGenerationFailed
)

const (
	maxMessageChars  = 4000
	maxShortlistSize = 10
)

type MemoryStore interface {
	Load(ctx context.Context, sessionID, userID string) (memory.Memory, error)
	Save(ctx context.Context, sessionID, userID string, patch memory.Patch) error
	TakePendingAction(ctx context.Context, sessionID, userID string) (*types.ProposedAction, error)
}

type Planner interface {
	GeneratePlan(ctx context.Context, in planner.Input) (types.Plan, error)
	Configured() bool
}

type ToolRunner interface {
	RunBatch(ctx context.Context, calls []types.ToolCall, ec tools.ExecContext) []tools.Outcome
}

type Synthesizer interface {
	Synthesize(ctx context.Context, in synth.Input) string
}

// Quota meters model-backed turns for signed-in users.
type Quota interface {
	UseToken(ctx context.Context, uid string) error
}

type Deps struct {
	Limiter ratelimit.Limiter
	Memory  MemoryStore
	Planner Planner
	Tools   ToolRunner
	Synth   Synthesizer
	// Quota is optional.
	Quota Quota
}

type Concierge struct {
	limiter ratelimit.Limiter
	memory  MemoryStore
	planner Planner
	tools   ToolRunner
	synth   Synthesizer
	quota   Quota
}

func New(deps Deps) *Concierge {
	return &Concierge{
		limiter: deps.Limiter,
		memory:  deps.Memory,
		planner: deps.Planner,
		tools:   deps.Tools,
		synth:   deps.Synth,
		quota:   deps.Quota,
	}
}

type ChatRequest struct {
	SessionID  string
	UserID     string
	Message    string
	IntentHint string
	ClientIP   string
	DebugID    string
}

type UIHints struct {
	Intent               types.Intent    `json:"intent"`
	MissingInfoQuestions []string        `json:"missingInfoQuestions,omitempty"`
	ToolResults          []tools.Outcome `json:"toolResults,omitempty"`
}

type ChatReply struct {
	Message             string   `json:"message"`
	PendingConfirmation bool     `json:"pendingConfirmation"`
	DebugID             string   `json:"debugId"`
	SessionID           string   `json:"sessionId"`
	UIHints             *UIHints `json:"uiHints,omitempty"`
}

// Chat handles one inbound message. The returned reply always carries the
// debug id and session id, also alongside an error.
func (c *Concierge) Chat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	if req.DebugID == "" {
		req.DebugID = uuid.NewString()
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	reply := ChatReply{DebugID: req.DebugID, SessionID: req.SessionID}

	msg := strings.TrimSpace(req.Message)
	if msg == "" || utf8.RuneCountInString(msg) > maxMessageChars {
		return reply, ErrBadRequest
	}

	ctx, span := telemetry.Tracer().Start(ctx, "concierge.chat")
	defer span.End()
	span.SetAttributes(attribute.String("debug.id", req.DebugID), attribute.String("session.id", req.SessionID))
	logger := log.With().Str("debugId", req.DebugID).Str("sessionId", req.SessionID).Logger()

	if !c.limiter.Allow(ctx, ratelimit.Key(req.ClientIP, req.SessionID)) {
		logger.Warn().Str("ip", req.ClientIP).Msg("chat rate limited")
		return reply, ErrRateLimited
	}

	inj := policy.DetectInjection(msg)
	if inj.Severity == policy.SeverityHigh {
		logger.Warn().Strs("reasons", inj.Reasons).Msg("refused high severity prompt injection")
		span.SetAttributes(attribute.Bool("policy.refused", true))
		reply.Message = policy.RefusalMessage
		reply.UIHints = &UIHints{Intent: types.IntentSupport}
		return reply, nil
	}
	if inj.Flagged {
		logger.Info().Strs("reasons", inj.Reasons).Msg("low severity injection indicators")
	}

	mem, err := c.memory.Load(ctx, req.SessionID, req.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("memory load failed, continuing with empty memory")
		mem = memory.Empty()
	}

	if c.quota != nil && req.UserID != "" && c.planner.Configured() {
		if err := c.quota.UseToken(ctx, req.UserID); err != nil {
			return reply, err
		}
	}

	plan, err := c.planner.GeneratePlan(ctx, planner.Input{
		UserMessage:   msg,
		MemorySummary: memory.Summary(mem),
		IntentHint:    req.IntentHint,
		DebugID:       req.DebugID,
	})
	if err != nil {
		return reply, err
	}
	hints := &UIHints{Intent: plan.Intent, MissingInfoQuestions: plan.MissingInfoQuestions}
	reply.UIHints = hints

	if pa := plan.ProposedAction; pa != nil && pa.ConfirmationRequired {
		patch := memory.Patch{
			PendingAction:      pa,
			CurrentTripContext: tripContext(plan),
		}
		if err := c.memory.Save(ctx, req.SessionID, req.UserID, patch); err != nil {
			logger.Error().Err(err).Msg("failed to store pending action")
			return reply, err
		}
		logger.Info().Str("action", pa.Action).Int("toolCalls", len(pa.ToolCalls)).Msg("awaiting confirmation")
		reply.Message = policy.RedactPII(plan.UserVisibleMessage)
		reply.PendingConfirmation = true
		return reply, nil
	}

	outcomes := c.tools.RunBatch(ctx, plan.RecommendedToolCalls, tools.ExecContext{
		CorrelationID: req.DebugID,
		UserID:        req.UserID,
		SessionID:     req.SessionID,
	})
	hints.ToolResults = outcomes

	patch := memory.Patch{CurrentTripContext: tripContext(plan), LastShortlist: shortlist(outcomes)}
	if err := c.memory.Save(ctx, req.SessionID, req.UserID, patch); err != nil {
		logger.Warn().Err(err).Msg("memory save failed")
	}

	reply.Message = c.synth.Synthesize(ctx, synth.Input{
		UserMessage: msg,
		Plan:        plan,
		Outcomes:    outcomes,
		DebugID:     req.DebugID,
	})
	return reply, nil
}

func tripContext(plan types.Plan) map[string]any {
	ctx := map[string]any{"lastIntent": string(plan.Intent)}
	if len(plan.MissingInfoQuestions) > 0 {
		ctx["openQuestions"] = plan.MissingInfoQuestions
	}
	return ctx
}

// shortlist keeps the items of the last successful search so follow-up turns
// can refer to them. It returns nil when no search ran, leaving memory as is.
func shortlist(outcomes []tools.Outcome) []map[string]any {
	var items []map[string]any
	for _, o := range outcomes {
		if o.Status != tools.StatusSucceeded || o.Result == nil {
			continue
		}
		data, ok := o.Result.Data.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"results", "offers", "hotels"} {
			list, ok := data[key].([]any)
			if !ok {
				continue
			}
			for _, v := range list {
				if m, ok := v.(map[string]any); ok {
					m["source"] = string(o.Tool)
					items = append(items, m)
				}
			}
		}
	}
	if len(items) > maxShortlistSize {
		items = items[:maxShortlistSize]
	}
	return items
}
