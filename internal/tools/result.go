// README: Uniform tool result envelope, soft error codes and the hard dispatch error.
package tools

import (
	"fmt"

	"concierge/internal/types"
)

// ErrorCode classifies a soft, business-level tool failure.
type ErrorCode string

const (
	CodeInvalidArgs          ErrorCode = "INVALID_ARGS"
	CodeAuthRequired         ErrorCode = "AUTH_REQUIRED"
	CodeConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeForbidden            ErrorCode = "FORBIDDEN"
	CodeConflict             ErrorCode = "CONFLICT"
	CodeVendorError          ErrorCode = "VENDOR_ERROR"
	CodeVendorAuthError      ErrorCode = "VENDOR_AUTH_ERROR"
)

type ToolError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Result is the envelope every handler returns. Exactly one of Data or Error is meaningful.
type Result struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ToolError `json:"error,omitempty"`
}

func okResult(data any) Result {
	return Result{OK: true, Data: data}
}

func failResult(code ErrorCode, msg string, details map[string]any) Result {
	return Result{Error: &ToolError{Code: code, Message: msg, Details: details}}
}

// OutcomeUnknown reports whether the supplier may or may not have applied the call.
func (r Result) OutcomeUnknown() bool {
	if r.OK || r.Error == nil {
		return false
	}
	outcome, _ := r.Error.Details["outcome"].(string)
	return outcome == "unknown"
}

// ExecContext carries the caller identity and confirmation state into a handler.
type ExecContext struct {
	CorrelationID string
	UserID        string
	SessionID     string
	// Confirmed is set only when replaying a pending action the user approved.
	Confirmed bool
}

// DispatchError is a programming error: the tool is not part of the closed catalogue.
// It is never folded into a Result.
type DispatchError struct {
	Tool   types.ToolName
	Reason string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %q: %s", e.Tool, e.Reason)
}
