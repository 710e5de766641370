package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Tool is an auxiliary capability the provider can invoke during a turn.
// Call returns its result as text; failures are reported in the text so the
// model can recover, never as Go errors.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Call(ctx context.Context, input string) string
}

// ToolRegistry holds the tools available to a provider, keyed by name.
type ToolRegistry struct {
	tools []Tool
	byKey map[string]Tool
}

func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{byKey: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools = append(r.tools, t)
		r.byKey[t.Name()] = t
	}
	return r
}

func (r *ToolRegistry) All() []Tool {
	return r.tools
}

// Call dispatches to the named tool. Unknown names produce an error string
// rather than failing the turn.
func (r *ToolRegistry) Call(ctx context.Context, name, input string) string {
	observer := toolObserverFrom(ctx)
	if observer != nil {
		observer("tool_start", name, input)
	}

	tool, ok := r.byKey[name]
	var result string
	if !ok {
		result = fmt.Sprintf("Tool %q is not available.", name)
	} else {
		result = tool.Call(ctx, input)
	}

	if observer != nil {
		observer("tool_end", name, result)
	}
	return result
}

// ─── Calculator ───

// CalculatorTool evaluates arithmetic expressions locally.
type CalculatorTool struct{}

func NewCalculatorTool() *CalculatorTool { return &CalculatorTool{} }

func (t *CalculatorTool) Name() string { return "calculator" }

func (t *CalculatorTool) Description() string {
	return "Useful for mathematical calculations. Input should be a mathematical expression."
}

func (t *CalculatorTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{
				"type":        "string",
				"description": "A mathematical expression to evaluate, e.g. \"2+2\" or \"(3*4)/2\"",
			},
		},
		"required": []string{"expression"},
	}
}

func (t *CalculatorTool) Call(ctx context.Context, input string) string {
	expr := extractArgument(input, "expression")
	result, err := evalExpression(expr)
	if err != nil {
		return fmt.Sprintf("Error calculating %s: %v", expr, err)
	}
	return fmt.Sprintf("%s = %s", expr, formatNumber(result))
}

// ─── Web search ───

const serpAPIBaseURL = "https://serpapi.com/search.json"

// SearchTool looks up current information through the SerpAPI JSON API.
// With no API key configured it degrades to a canned unavailable message.
type SearchTool struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewSearchTool(apiKey string) *SearchTool {
	return &SearchTool{
		apiKey:  apiKey,
		baseURL: serpAPIBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Useful for searching the internet for current information. Input should be a search query."
}

func (t *SearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "A search query to find current information",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchTool) Call(ctx context.Context, input string) string {
	query := extractArgument(input, "query")
	if strings.TrimSpace(query) == "" {
		return "Please provide a search query."
	}
	if t.apiKey == "" {
		return "I cannot search the web right now as the search service is not configured. " +
			"Answer from training data and note the information might not be current."
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", t.apiKey)
	params.Set("num", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Sprintf("Search failed: %v", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Search failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Search failed with status %d.", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Sprintf("Search failed: %v", err)
	}

	return summarizeSearchResults(body, query)
}

// summarizeSearchResults turns a SerpAPI response into prompt-ready text:
// the answer box when present, then the top organic results.
func summarizeSearchResults(body []byte, query string) string {
	var parsed struct {
		AnswerBox struct {
			Answer  string `json:"answer"`
			Snippet string `json:"snippet"`
		} `json:"answer_box"`
		OrganicResults []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
		} `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Sprintf("Search returned an unreadable response for %q.", query)
	}

	var b strings.Builder
	if parsed.AnswerBox.Answer != "" {
		b.WriteString("Answer: " + parsed.AnswerBox.Answer + "\n")
	} else if parsed.AnswerBox.Snippet != "" {
		b.WriteString("Answer: " + parsed.AnswerBox.Snippet + "\n")
	}

	for i, r := range parsed.OrganicResults {
		if i >= 3 {
			break
		}
		b.WriteString(fmt.Sprintf("%d. %s — %s (%s)\n", i+1, r.Title, r.Snippet, r.Link))
	}

	if b.Len() == 0 {
		return fmt.Sprintf("No search results found for %q.", query)
	}
	return strings.TrimSpace(b.String())
}

// extractArgument pulls a named string field out of a tool-arguments value.
// Providers hand arguments over as JSON objects, but the value may also be a
// bare string; both are accepted and normalized here.
func extractArgument(input, field string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &args); err == nil {
		if v, ok := args[field]; ok {
			return normalizeContent(v)
		}
		// Single-field objects with a mismatched key still carry the value.
		if len(args) == 1 {
			for _, v := range args {
				return normalizeContent(v)
			}
		}
		return ""
	}
	return trimmed
}
