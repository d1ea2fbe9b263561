// README: Plan generator: injection gate, provider call, strict schema validation and fallback plans.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"concierge/internal/ai"
	"concierge/internal/policy"
	"concierge/internal/telemetry"
	"concierge/internal/tools"
	"concierge/internal/types"
)

// ErrPlanGenerationFailed wraps every provider or validation failure. Callers
// surface it as a server error with the request's debug id.
var ErrPlanGenerationFailed = errors.New("plan generation failed")

// FallbackMessage is returned when no model provider is configured.
const FallbackMessage = "Our planning assistant is offline at the moment. A member of the concierge team will follow up with you shortly."

const defaultTimeout = 20 * time.Second

type Input struct {
	UserMessage   string
	MemorySummary string
	IntentHint    string
	DebugID       string
}

type Planner struct {
	provider ai.Provider
	schema   *jsonschema.Schema
	raw      json.RawMessage
	timeout  time.Duration
}

// New builds a Planner. A nil provider is valid and yields fallback plans.
func New(provider ai.Provider, timeout time.Duration) (*Planner, error) {
	sch, err := compilePlanSchema()
	if err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Planner{provider: provider, schema: sch, raw: PlanSchema(), timeout: timeout}, nil
}

// Configured reports whether a model provider backs this planner.
func (p *Planner) Configured() bool {
	return p.provider != nil
}

// Provider exposes the underlying provider for the synthesizer.
func (p *Planner) Provider() ai.Provider {
	return p.provider
}

func RefusalPlan() types.Plan {
	return types.Plan{
		Intent:               types.IntentSupport,
		MissingInfoQuestions: []string{},
		RecommendedToolCalls: []types.ToolCall{},
		UserVisibleMessage:   policy.RefusalMessage,
	}
}

func FallbackPlan() types.Plan {
	return types.Plan{
		Intent:               types.IntentSupport,
		MissingInfoQuestions: []string{},
		RecommendedToolCalls: []types.ToolCall{},
		UserVisibleMessage:   FallbackMessage,
	}
}

func (p *Planner) GeneratePlan(ctx context.Context, in Input) (types.Plan, error) {
	if policy.DetectInjection(in.UserMessage).Severity == policy.SeverityHigh {
		return RefusalPlan(), nil
	}
	if p.provider == nil {
		return FallbackPlan(), nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "planner.generate")
	defer span.End()
	span.SetAttributes(attribute.String("ai.provider", p.provider.Name()), attribute.String("debug.id", in.DebugID))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pc := ai.PromptContext{
		System:        systemPrompt,
		Developer:     developerPrompt,
		IntentHint:    sanitizeHint(in.IntentHint),
		MemorySummary: policy.RedactPII(in.MemorySummary),
		UserMessage:   in.UserMessage,
	}
	raw, err := p.provider.GenerateStructuredPlan(ctx, pc, p.raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider error")
		log.Error().Err(err).Str("debugId", in.DebugID).Str("provider", p.provider.Name()).Msg("plan provider call failed")
		return types.Plan{}, fmt.Errorf("%w: provider: %v", ErrPlanGenerationFailed, err)
	}

	plan, err := p.parse(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid plan")
		log.Error().Err(err).Str("debugId", in.DebugID).Str("provider", p.provider.Name()).
			Str("output", truncate(policy.RedactPII(string(raw)), 500)).Msg("plan failed validation")
		return types.Plan{}, fmt.Errorf("%w: %v", ErrPlanGenerationFailed, err)
	}
	span.SetAttributes(attribute.String("plan.intent", string(plan.Intent)), attribute.Int("plan.tool_calls", len(plan.RecommendedToolCalls)))
	return plan, nil
}

// parse validates against the schema, decodes strictly and applies the
// confirmation policy. It never coerces an invalid plan into a valid one.
func (p *Planner) parse(raw json.RawMessage) (types.Plan, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return types.Plan{}, fmt.Errorf("not JSON: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return types.Plan{}, fmt.Errorf("schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var plan types.Plan
	if err := dec.Decode(&plan); err != nil {
		return types.Plan{}, fmt.Errorf("decode: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return types.Plan{}, err
	}
	enforceConfirmation(&plan)
	return plan, nil
}

// enforceConfirmation marks a proposed action as needing confirmation when
// its name or any of its tools is irreversible, whatever the model said.
func enforceConfirmation(plan *types.Plan) {
	pa := plan.ProposedAction
	if pa == nil || pa.ConfirmationRequired {
		return
	}
	if policy.RequiresConfirmation(pa.Action) {
		pa.ConfirmationRequired = true
		return
	}
	for _, c := range pa.ToolCalls {
		if spec, ok := tools.Lookup(c.Tool); ok && spec.Irreversible {
			pa.ConfirmationRequired = true
			return
		}
	}
}

func sanitizeHint(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	for _, i := range types.AllIntents {
		if string(i) == hint {
			return hint
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
