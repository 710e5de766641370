package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"sigma-backend/internal/models"
)

// GeminiProvider generates replies through the Gemini API. Direct
// completion only; tool use is not wired for this provider.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiProvider(apiKey, modelName string) (*GeminiProvider, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Close() {
	p.client.Close()
}

func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	prompt := buildGeminiPrompt(req)

	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return nil, fmt.Errorf("Gemini returned empty text")
	}
	return &Completion{Text: text}, nil
}

func buildGeminiPrompt(req CompletionRequest) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	if req.Context != "" {
		b.WriteString("\n\nContext from previous conversations:\n")
		b.WriteString(req.Context)
	}
	if len(req.History) > 0 {
		b.WriteString("\n\nCurrent conversation:\n")
		for _, m := range req.History {
			if m.Role == models.RoleAssistant {
				b.WriteString("Assistant: ")
			} else {
				b.WriteString("Human: ")
			}
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nHuman: ")
	b.WriteString(req.Message)
	return b.String()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
