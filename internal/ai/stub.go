// README: Deterministic provider for tests and offline demos.
package ai

import (
	"context"
	"encoding/json"
	"sync"
)

// StubProvider returns canned responses and records the prompts it received.
type StubProvider struct {
	mu sync.Mutex

	PlanJSON string
	PlanErr  error
	Text     string
	TextErr  error

	PlanCalls []PromptContext
	TextCalls []PromptContext
}

func (s *StubProvider) Name() string { return "stub" }

func (s *StubProvider) GenerateStructuredPlan(_ context.Context, pc PromptContext, _ json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlanCalls = append(s.PlanCalls, pc)
	if s.PlanErr != nil {
		return nil, s.PlanErr
	}
	return json.RawMessage(s.PlanJSON), nil
}

func (s *StubProvider) GenerateText(_ context.Context, pc PromptContext) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TextCalls = append(s.TextCalls, pc)
	if s.TextErr != nil {
		return "", s.TextErr
	}
	return s.Text, nil
}

// Calls returns how many plan and text requests were made.
func (s *StubProvider) Calls() (plans, texts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.PlanCalls), len(s.TextCalls)
}
