// README: Prompt context passed to providers and the combined-prompt renderer.
package ai

import (
	"fmt"
	"strings"
)

// PromptContext carries the layered instructions for one model call.
type PromptContext struct {
	// System is the fixed persona and safety rules.
	System string
	// Developer holds task-specific rules (tool catalogue, output contract).
	Developer string
	// IntentHint is an optional caller-supplied hint, e.g. "book".
	IntentHint string
	// MemorySummary is a redacted, bounded summary of session memory.
	MemorySummary string
	// UserMessage is the end-user's text for this turn.
	UserMessage string
}

// Render combines the layers into one prompt. Dynamic context goes into the prompt
// body rather than SystemInstruction so a single model handle can serve every request.
func (pc PromptContext) Render() string {
	var b strings.Builder
	if pc.System != "" {
		b.WriteString(pc.System)
		b.WriteString("\n\n")
	}
	if pc.Developer != "" {
		b.WriteString(pc.Developer)
		b.WriteString("\n\n")
	}
	if pc.IntentHint != "" {
		fmt.Fprintf(&b, "Intent hint from the client: %s\n", pc.IntentHint)
	}
	memory := pc.MemorySummary
	if memory == "" {
		memory = "NONE"
	}
	fmt.Fprintf(&b, "Session memory: %s\n\n", memory)
	fmt.Fprintf(&b, "User Message: %s", pc.UserMessage)
	return b.String()
}

// cleanJSONString strips markdown code fences some models wrap around JSON.
func cleanJSONString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
