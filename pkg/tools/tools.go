// Package tools implements the callable function registry the LLM adapter
// invokes mid-stream, plus the fixed filler phrases spoken while a tool
// call is in flight.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
)

// ExecContext carries the call-scoped values a tool needs to act on
// behalf of a specific caller.
type ExecContext struct {
	TenantID        string
	CallID          string
	CallerPhone     string
	EscalationPhone string
}

// Func is a callable tool implementation. The returned value must be
// JSON-serializable; the caller string-coerces it into a tool message.
type Func func(ctx context.Context, args map[string]any, ec ExecContext) (any, error)

// Tool pairs a callable with the definition advertised to the LLM.
type Tool struct {
	Definition llm.ToolDefinition
	Func       Func
}

// Registry holds the tools available to a tenant's LLM requests.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(name string, def llm.ToolDefinition, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def.Name = name
	r.tools[name] = &Tool{Definition: def, Func: fn}
}

// Definitions returns the tool definitions to pass to the LLM adapter,
// sorted by name for deterministic ordering.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ErrUnknownTool is returned by Execute when no tool is registered under
// the requested name.
type ErrUnknownTool struct{ Name string }

func (e *ErrUnknownTool) Error() string { return fmt.Sprintf("tools: unknown tool %q", e.Name) }

// Execute runs the named tool synchronously. The call may itself perform
// I/O; it is treated as opaque by the caller.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, ec ExecContext) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrUnknownTool{Name: name}
	}
	return t.Func(ctx, args, ec)
}

// fillerTable is the fixed mapping from tool name to the phrase spoken
// as a fresh TTS chunk while the tool call is in flight.
var fillerTable = map[string]string{
	"check_availability": "Let me check that for you.",
	"create_booking":     "One moment while I book that.",
	"get_business_hours": "Let me look that up.",
	"transfer_to_human":  "I'll connect you with someone right away.",
}

const defaultFiller = "One moment please."

// Filler returns the phrase to speak while toolName runs.
func Filler(toolName string) string {
	if phrase, ok := fillerTable[toolName]; ok {
		return phrase
	}
	return defaultFiller
}
