package services

import "context"

// ToolObserver receives tool lifecycle notifications during a turn.
// event is "tool_start" or "tool_end"; payload is the tool input or output.
type ToolObserver func(event, tool, payload string)

type toolObserverKey struct{}

// WithToolObserver attaches an observer to the context so tool invocations
// made while serving this request can be streamed to the client.
func WithToolObserver(ctx context.Context, fn ToolObserver) context.Context {
	return context.WithValue(ctx, toolObserverKey{}, fn)
}

func toolObserverFrom(ctx context.Context) ToolObserver {
	fn, _ := ctx.Value(toolObserverKey{}).(ToolObserver)
	return fn
}
