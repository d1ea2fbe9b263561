// README: Plan and proposed-action shapes produced by the planner and persisted in session memory.
package types

import "fmt"

type Intent string

const (
	IntentBrowse  Intent = "browse"
	IntentPlan    Intent = "plan"
	IntentBook    Intent = "book"
	IntentCancel  Intent = "cancel"
	IntentSupport Intent = "support"
	IntentUnknown Intent = "unknown"
)

var AllIntents = []Intent{IntentBrowse, IntentPlan, IntentBook, IntentCancel, IntentSupport, IntentUnknown}

const (
	MaxMissingInfoQuestions = 5
	MaxToolCallsPerTurn     = 3
)

// ProposedAction is an irreversible step that waits for explicit user confirmation.
type ProposedAction struct {
	Action               string     `json:"action"`
	ConfirmationRequired bool       `json:"confirmationRequired"`
	Summary              string     `json:"summary,omitempty"`
	BookingID            string     `json:"bookingId,omitempty"`
	ToolCalls            []ToolCall `json:"toolCalls,omitempty"`
}

type Plan struct {
	Intent               Intent          `json:"intent"`
	MissingInfoQuestions []string        `json:"missingInfoQuestions"`
	RecommendedToolCalls []ToolCall      `json:"recommendedToolCalls"`
	UserVisibleMessage   string          `json:"userVisibleMessage"`
	ProposedAction       *ProposedAction `json:"proposedAction,omitempty"`
}

// Validate checks the structural limits of a plan. A plan failing Validate must never be applied.
func (p Plan) Validate() error {
	if !isIntent(p.Intent) {
		return fmt.Errorf("unknown intent %q", p.Intent)
	}
	if len(p.MissingInfoQuestions) > MaxMissingInfoQuestions {
		return fmt.Errorf("too many missing-info questions: %d", len(p.MissingInfoQuestions))
	}
	if len(p.RecommendedToolCalls) > MaxToolCallsPerTurn {
		return fmt.Errorf("too many recommended tool calls: %d", len(p.RecommendedToolCalls))
	}
	for _, c := range p.RecommendedToolCalls {
		if !IsKnownTool(c.Tool) {
			return fmt.Errorf("tool %q is not in the allowlist", c.Tool)
		}
	}
	if p.ProposedAction != nil {
		if p.ProposedAction.Action == "" {
			return fmt.Errorf("proposed action has no name")
		}
		if len(p.ProposedAction.ToolCalls) > MaxToolCallsPerTurn {
			return fmt.Errorf("too many proposed tool calls: %d", len(p.ProposedAction.ToolCalls))
		}
		for _, c := range p.ProposedAction.ToolCalls {
			if !IsKnownTool(c.Tool) {
				return fmt.Errorf("proposed tool %q is not in the allowlist", c.Tool)
			}
		}
	}
	return nil
}

func isIntent(v Intent) bool {
	for _, i := range AllIntents {
		if i == v {
			return true
		}
	}
	return false
}
