// README: Gemini provider (JSON-mode plan generation and short text synthesis).
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements Provider using Google's Gemini models.
type GeminiProvider struct {
	client    *genai.Client
	planModel *genai.GenerativeModel
	textModel *genai.GenerativeModel
}

// NewGeminiProvider initializes a Gemini client. modelName defaults to gemini-2.0-flash.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	plan := client.GenerativeModel(modelName)
	plan.ResponseMIMEType = "application/json"
	plan.SetTemperature(0.2)

	text := client.GenerativeModel(modelName)
	text.SetTemperature(0.4)
	text.SetMaxOutputTokens(512)

	return &GeminiProvider{client: client, planModel: plan, textModel: text}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() {
	p.client.Close()
}

// GenerateStructuredPlan embeds the schema in the prompt; Gemini's own response
// schema cannot express additionalProperties, so strictness is enforced by the caller.
func (p *GeminiProvider) GenerateStructuredPlan(ctx context.Context, pc PromptContext, schema json.RawMessage) (json.RawMessage, error) {
	prompt := fmt.Sprintf("%s\n\nRespond with a single JSON object that validates against this JSON Schema:\n%s", pc.Render(), string(schema))
	text, err := p.generate(ctx, p.planModel, prompt)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(cleanJSONString(text)), nil
}

func (p *GeminiProvider) GenerateText(ctx context.Context, pc PromptContext) (string, error) {
	text, err := p.generate(ctx, p.textModel, pc.Render())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *GeminiProvider) generate(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	if out.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return out.String(), nil
}
