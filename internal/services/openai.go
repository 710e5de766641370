package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"sigma-backend/internal/models"
)

// maxToolIterations bounds the tool-calling loop per turn.
const maxToolIterations = 5

const systemPrompt = `You are SigmaGPT, an intelligent assistant that helps users with various tasks.

IMPORTANT RULES:
1. For mathematical problems, use the calculator tool
2. For questions about current events or facts you need to verify, use the search tool
3. If tools are not available or fail, answer from your training data
4. Always provide a complete and helpful response, even if tools fail
5. Be helpful, accurate, and concise`

// OpenAIProvider generates replies through an OpenAI-compatible chat
// completions endpoint (Together, OpenAI). It runs the tool-calling loop
// internally: requested tools are executed locally and their results fed
// back until the model produces a final message.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	tools  *ToolRegistry
}

// NewOpenAIClient builds the shared client for chat and embeddings.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}

func NewOpenAIProvider(client *openai.Client, model string, tools *ToolRegistry) *OpenAIProvider {
	return &OpenAIProvider{client: client, model: model, tools: tools}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:       p.model,
		Messages:    p.buildMessages(req),
		Temperature: openai.Float(0),
	}
	if !req.DisableTools && p.tools != nil {
		params.Tools = p.toolParams()
	}

	var toolCalls []models.ToolCallInfo

	for i := 0; i < maxToolIterations; i++ {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("provider returned no choices")
		}

		msg := resp.Choices[0].Message

		// Tool calls are only honored when tool use is on; a model that
		// requests tools on a direct completion falls through to its content.
		if len(msg.ToolCalls) > 0 && !req.DisableTools && p.tools != nil {
			params.Messages = append(params.Messages, msg.ToParam())
			for _, call := range msg.ToolCalls {
				result := p.tools.Call(ctx, call.Function.Name, call.Function.Arguments)
				toolCalls = append(toolCalls, models.ToolCallInfo{
					Name:  call.Function.Name,
					Input: call.Function.Arguments,
				})
				params.Messages = append(params.Messages, openai.ToolMessage(result, call.ID))
			}
			continue
		}

		text := strings.TrimSpace(normalizeContent(msg.Content))
		if text == "" {
			return nil, fmt.Errorf("provider returned empty content")
		}
		return &Completion{Text: text, ToolCalls: toolCalls}, nil
	}

	return nil, fmt.Errorf("provider exceeded %d tool iterations", maxToolIterations)
}

func (p *OpenAIProvider) buildMessages(req CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	system := systemPrompt
	if req.Context != "" {
		system += "\n\nContext from previous conversations:\n" + req.Context
	}

	msgs := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}
	for _, m := range req.History {
		switch m.Role {
		case models.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return append(msgs, openai.UserMessage(req.Message))
}

func (p *OpenAIProvider) toolParams() []openai.ChatCompletionToolParam {
	var params []openai.ChatCompletionToolParam
	for _, t := range p.tools.All() {
		params = append(params, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  openai.FunctionParameters(t.Parameters()),
			},
		})
	}
	return params
}
