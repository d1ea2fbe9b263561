// README: Best-effort execution of a turn's tool calls (truncated, sequential, independently failing).
package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"concierge/internal/types"
)

type OutcomeStatus string

const (
	StatusSucceeded OutcomeStatus = "succeeded"
	StatusFailed    OutcomeStatus = "failed"
	// StatusUnknown means a side effect may have happened; the reply must say so.
	StatusUnknown OutcomeStatus = "unknown"
)

// Outcome records one executed call. Hard failures carry Error and no Result.
type Outcome struct {
	Tool   types.ToolName `json:"tool"`
	Status OutcomeStatus  `json:"status"`
	Result *Result        `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// RunBatch executes at most MaxToolCallsPerTurn calls in order. A failing call,
// including a DispatchError or a handler panic, does not stop the ones after it.
func (d *Dispatcher) RunBatch(ctx context.Context, calls []types.ToolCall, ec ExecContext) []Outcome {
	if len(calls) > types.MaxToolCallsPerTurn {
		log.Warn().Str("debugId", ec.CorrelationID).Int("requested", len(calls)).Msg("truncating tool calls")
		calls = calls[:types.MaxToolCallsPerTurn]
	}
	out := make([]Outcome, 0, len(calls))
	for _, call := range calls {
		out = append(out, d.runOne(ctx, call, ec))
	}
	return out
}

func (d *Dispatcher) runOne(ctx context.Context, call types.ToolCall, ec ExecContext) (o Outcome) {
	o.Tool = call.Tool
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("debugId", ec.CorrelationID).Str("tool", string(call.Tool)).Interface("panic", r).Msg("tool handler panicked")
			o = Outcome{Tool: call.Tool, Status: StatusFailed, Error: fmt.Sprintf("internal error in %s", call.Tool)}
		}
	}()

	res, err := d.Dispatch(ctx, call, ec)
	if err != nil {
		o.Status = StatusFailed
		o.Error = err.Error()
		return o
	}
	o.Result = &res
	switch {
	case res.OK:
		o.Status = StatusSucceeded
	case res.OutcomeUnknown():
		o.Status = StatusUnknown
	default:
		o.Status = StatusFailed
	}
	return o
}

// AnyUnknown reports whether any outcome left a side effect in doubt.
func AnyUnknown(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Status == StatusUnknown {
			return true
		}
	}
	return false
}
