package llm

import (
	"context"
	"encoding/json"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

// GenerationParams tunes a single decision request.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ToolDefinition describes one capability offered to the decision oracle.
//
// # Fields
//
//   - Name: Registered tool name the oracle must use when requesting it.
//   - Description: When-to-use guidance shown to the oracle.
//   - Parameters: JSON schema of the tool's arguments.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// =============================================================================
// Streaming Events
// =============================================================================

// StreamEventType discriminates streaming events from a decision round.
type StreamEventType string

const (
	// StreamEventToken carries one text chunk of the decision output.
	StreamEventToken StreamEventType = "token"

	// StreamEventError carries a mid-stream failure.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one event emitted while a decision streams.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Err     error
}

// StreamCallback receives stream events in emission order.
//
// Returning a non-nil error aborts the decision (e.g., client disconnect).
type StreamCallback func(event StreamEvent) error

// =============================================================================
// Decision
// =============================================================================

// Decision is the oracle's answer for one round: a tagged variant that is
// either a final textual answer or a list of requested tool calls.
//
// # Description
//
// RequestsTools() discriminates the variant. When tools are requested,
// Answer holds any text the oracle produced before the calls (possibly
// empty); the agent loop records both on the assistant message.
type Decision struct {
	Answer    string
	ToolCalls []datatypes.ToolCall
}

// RequestsTools reports whether the oracle asked for tool invocations.
func (d Decision) RequestsTools() bool {
	return len(d.ToolCalls) > 0
}

// DecisionClient is the opaque decision oracle behind the agent loop.
//
// # Description
//
// One call is one decision round: given the system directive, the full
// conversation history and the available tools, the oracle either answers
// or requests tool calls. Implementations stream text increments through
// the callback before returning; timeouts are the implementation's
// responsibility.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use across sessions.
type DecisionClient interface {
	Decide(ctx context.Context, system string, history []datatypes.Message,
		tools []ToolDefinition, callback StreamCallback) (Decision, error)
}
