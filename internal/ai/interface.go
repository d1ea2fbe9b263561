// README: Capability-model provider contract shared by Gemini, OpenAI and the test stub.
package ai

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrEmptyResponse is returned when the model produced no usable candidate.
var ErrEmptyResponse = errors.New("model returned no content")

// Provider is the abstraction over a capability model. Implementations must not
// retry on their own; callers decide how to degrade.
type Provider interface {
	// GenerateStructuredPlan asks for a JSON document that should conform to schema.
	// The returned bytes are untrusted and must be validated by the caller.
	GenerateStructuredPlan(ctx context.Context, pc PromptContext, schema json.RawMessage) (json.RawMessage, error)

	// GenerateText asks for a short free-form reply.
	GenerateText(ctx context.Context, pc PromptContext) (string, error)

	Name() string
}
