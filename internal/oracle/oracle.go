// Package oracle is the boundary to the LLM chat-completion service. The
// agent treats it as an opaque function-calling collaborator: given an
// ordered message list and a tool catalogue it returns either final text or
// a list of requested tool calls.
package oracle

import (
	"context"
	"errors"
)

// ErrNotConfigured reports that no completion backend was configured.
var ErrNotConfigured = errors.New("oracle: no API key configured")

// Message is one turn of the conversation sent to the oracle.
type Message struct {
	Role       string     `json:"role"` // system | user | assistant | tool
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured request from the oracle to invoke one tool.
type ToolCall struct {
	ID       string       `json:"id"` // correlation id pairing the result turn
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its raw JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDef describes one tool the oracle may call.
type ToolDef struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef is a JSON-schema-typed tool signature.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Completion is the oracle's answer for one round-trip: either final text
// content or one or more requested tool calls.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is the chat-completion collaborator. Implementations are expected
// to be stateless, potentially slow, and potentially failing; callers bound
// each round-trip with the context.
type Client interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDef) (*Completion, error)
}

// Unconfigured stands in when no API key is set. Every round-trip fails
// with ErrNotConfigured, which the agent resolves to its fallback reply.
type Unconfigured struct{}

func (Unconfigured) Complete(context.Context, []Message, []ToolDef) (*Completion, error) {
	return nil, ErrNotConfigured
}
