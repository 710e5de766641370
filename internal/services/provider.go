package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"sigma-backend/internal/models"
)

// CompletionRequest is one generation call: the user message plus the
// bounded history window and any retrieved memory context.
type CompletionRequest struct {
	Context      string // retrieved memory snippets, may be empty
	History      []models.Message
	Message      string
	DisableTools bool // direct completion, no tool use
}

// Completion is the provider's final output for a turn. ToolCalls records
// which tools ran while producing the text.
type Completion struct {
	Text      string
	ToolCalls []models.ToolCallInfo
}

// Provider is the external text-generation service. Implementations may run
// auxiliary tools (calculator, web search) internally before producing the
// final text.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// normalizeContent coerces a loosely typed value from a provider or tool
// boundary into a string. Everything past this point works with plain
// strings.
func normalizeContent(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
