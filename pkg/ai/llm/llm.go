// Package llm provides the streaming chat interface the Turn Manager drives.
// Providers emit a single logical sequence of chunks per request — text
// deltas, tool-call requests, a terminal done, or an error — and perform
// their own cross-provider fallback internally: to the caller, one
// StreamChat call is always one stream, even if the provider silently
// switches backends mid-stream.
package llm

import (
	"context"

	"github.com/lumentra-ai/callagent/pkg/ai"
)

// LLM-specific error variables for backward compatibility
var (
	// ErrRecoverable indicates a temporary LLM failure that may succeed if retried.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent LLM failure that will not succeed if retried.
	ErrFatal = ai.ErrFatal
)

// Role identifies who produced a ChatMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request from the model to invoke a named
// function; its result must be fed back as a ChatMessage with Role ==
// RoleTool carrying the matching ToolCallID.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded
}

// ToolDefinition describes a callable tool to the provider.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ChatMessage is one history entry: role plus an optional tool-call
// payload. Every tool message must carry ToolCallID, and every assistant
// message carrying ToolCalls must be followed (before the next assistant
// text message) by one tool message per call — callers are responsible
// for that invariant; this package only carries the data.
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // set on assistant messages that request tool calls
	ToolCallID string     // set on tool-result messages
	ToolName   string     // set on tool-result messages
}

// ChatRequest describes one streaming completion request.
type ChatRequest struct {
	UserMessage  string
	History      []ChatMessage
	SystemPrompt string
	Tools        []ToolDefinition
	Metadata     map[string]any
}

// ChunkKind discriminates StreamChunk's payload.
type ChunkKind int

const (
	ChunkText ChunkKind = iota
	ChunkToolCall
	ChunkDone
	ChunkError
)

// StreamChunk is one element of a ChatStream. Exactly one of the
// kind-specific fields is meaningful for a given Kind.
type StreamChunk struct {
	Kind     ChunkKind
	Text     string   // ChunkText
	ToolCall ToolCall // ChunkToolCall
	Err      error    // ChunkError
	Provider string   // telemetry tag; may be set on any chunk
}

// ChatStream is a single logical completion stream. Recv returns
// io.EOF-equivalent via a final ChunkDone chunk rather than a sentinel
// error, so a cancelled stream and an exhausted one are distinguishable:
// a cancelled stream's next Recv returns context.Canceled.
type ChatStream interface {
	Recv(ctx context.Context) (StreamChunk, error)
	Close() error
}

// LLM is the main interface for large language model providers.
type LLM interface {
	// StreamChat starts a streaming completion. The returned stream must
	// be drained or closed by the caller; cancelling ctx aborts it.
	StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error)

	Name() string
}
