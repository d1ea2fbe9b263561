// README: Response synthesizer: turns a plan and tool outcomes into the guest-facing reply.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"concierge/internal/ai"
	"concierge/internal/policy"
	"concierge/internal/telemetry"
	"concierge/internal/tools"
	"concierge/internal/types"
)

// NoResponseMessage is the reply when tools ran but no provider can summarize them.
const NoResponseMessage = "Sorry, I could not generate a response right now. Please try again in a moment."

const (
	defaultTimeout  = 15 * time.Second
	maxOutcomeChars = 6000
	synthesisPrompt = `You are a luxury travel concierge writing the reply to the guest.
Summarize the tool results below in two to four sentences.
Only state facts present in the results. If a result failed, say so plainly.
If a result has status "unknown", say you could not confirm whether it went through and ask one follow-up question.
Do not include internal ids other than booking references.`
)

type Input struct {
	UserMessage string
	Plan        types.Plan
	Outcomes    []tools.Outcome
	DebugID     string
}

type Synthesizer struct {
	provider ai.Provider
	timeout  time.Duration
}

func New(provider ai.Provider, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Synthesizer{provider: provider, timeout: timeout}
}

// Synthesize never fails: provider errors degrade to a deterministic summary.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) string {
	if len(in.Outcomes) == 0 {
		return policy.RedactPII(in.Plan.UserVisibleMessage)
	}
	if s.provider == nil {
		return ensureFollowUp(NoResponseMessage, in.Outcomes)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "synth.generate")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, _ := json.Marshal(in.Outcomes)
	pc := ai.PromptContext{
		System:      synthesisPrompt,
		Developer:   "Tool results: " + truncate(policy.RedactPII(string(results)), maxOutcomeChars),
		UserMessage: in.UserMessage,
	}
	if in.Plan.UserVisibleMessage != "" {
		pc.Developer += "\nDraft message from the planner: " + in.Plan.UserVisibleMessage
	}

	reply, err := s.provider.GenerateText(ctx, pc)
	reply = strings.TrimSpace(reply)
	if err != nil || reply == "" {
		if err != nil {
			span.RecordError(err)
		}
		log.Warn().Err(err).Str("debugId", in.DebugID).Msg("synthesis failed, using outcome summary")
		reply = Describe(in.Outcomes)
	}
	return ensureFollowUp(policy.RedactPII(reply), in.Outcomes)
}

// Describe renders a deterministic sentence per outcome.
func Describe(outcomes []tools.Outcome) string {
	if len(outcomes) == 0 {
		return "There was nothing to do."
	}
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		name := humanize(o.Tool)
		switch o.Status {
		case tools.StatusSucceeded:
			parts = append(parts, fmt.Sprintf("Done: %s.", name))
		case tools.StatusUnknown:
			parts = append(parts, fmt.Sprintf("I could not confirm whether %s went through.", name))
		default:
			reason := "an internal error"
			if o.Result != nil && o.Result.Error != nil {
				reason = strings.TrimSuffix(o.Result.Error.Message, ".")
			}
			parts = append(parts, fmt.Sprintf("I could not complete %s (%s).", name, reason))
		}
	}
	return policy.RedactPII(strings.Join(parts, " "))
}

// ConfirmationMessage is the reply after a confirmed action was executed.
func ConfirmationMessage(action string, outcomes []tools.Outcome) string {
	allOK := len(outcomes) > 0
	for _, o := range outcomes {
		if o.Status != tools.StatusSucceeded {
			allOK = false
		}
	}
	var msg string
	switch {
	case allOK && action != "":
		msg = fmt.Sprintf("Confirmed. %s is complete.", capitalize(policy.RedactPII(action)))
	case allOK:
		msg = "Confirmed. Everything went through."
	default:
		msg = Describe(outcomes)
	}
	return ensureFollowUp(msg, outcomes)
}

const statusFollowUp = "Would you like me to check its status before trying again?"

// ensureFollowUp names every in-doubt side effect and asks to check its status.
// A question already present in the reply does not count, since the model may
// be asking about something else entirely.
func ensureFollowUp(reply string, outcomes []tools.Outcome) string {
	if !tools.AnyUnknown(outcomes) || strings.Contains(reply, statusFollowUp) {
		return reply
	}
	var names []string
	for _, o := range outcomes {
		if o.Status == tools.StatusUnknown {
			names = append(names, humanize(o.Tool))
		}
	}
	return fmt.Sprintf("%s I could not confirm the result of %s. %s", reply, strings.Join(names, " and "), statusFollowUp)
}

func humanize(t types.ToolName) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
