// README: OpenAI chat-completions provider over plain net/http (json_schema response format).
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

type OpenAIProvider struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

type OpenAIOption func(*OpenAIProvider)

// WithEndpoint points the provider at a compatible gateway (or a test server).
func WithEndpoint(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.endpoint = url }
}

func NewOpenAIProvider(apiKey, model string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	p := &OpenAIProvider{
		apiKey:   apiKey,
		model:    model,
		endpoint: openAIEndpoint,
		// context cancellation is still honoured via NewRequestWithContext.
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *jsonSchemaSpec `json:"json_schema,omitempty"`
}

type jsonSchemaSpec struct {
	Name string `json:"name"`
	// Strict mode cannot express free-form tool args, so the schema is advisory here.
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) GenerateStructuredPlan(ctx context.Context, pc PromptContext, schema json.RawMessage) (json.RawMessage, error) {
	out, err := p.call(ctx, chatRequest{
		Model:       p.model,
		Messages:    messages(pc),
		Temperature: 0.2,
		ResponseFormat: &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaSpec{Name: "concierge_plan", Schema: schema},
		},
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(cleanJSONString(out)), nil
}

func (p *OpenAIProvider) GenerateText(ctx context.Context, pc PromptContext) (string, error) {
	out, err := p.call(ctx, chatRequest{Model: p.model, Messages: messages(pc), Temperature: 0.4})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func messages(pc PromptContext) []chatMessage {
	user := PromptContext{IntentHint: pc.IntentHint, MemorySummary: pc.MemorySummary, UserMessage: pc.UserMessage}
	msgs := []chatMessage{}
	if pc.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: pc.System})
	}
	if pc.Developer != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: pc.Developer})
	}
	return append(msgs, chatMessage{Role: "user", Content: user.Render()})
}

func (p *OpenAIProvider) call(ctx context.Context, body chatRequest) (string, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("openai: unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("openai: api error: %s", cr.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("openai: unexpected status %d", resp.StatusCode)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return cr.Choices[0].Message.Content, nil
}
