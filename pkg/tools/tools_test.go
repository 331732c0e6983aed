package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
)

func TestFiller(t *testing.T) {
	tests := map[string]string{
		"check_availability": "Let me check that for you.",
		"create_booking":     "One moment while I book that.",
		"get_business_hours": "Let me look that up.",
		"transfer_to_human":  "I'll connect you with someone right away.",
		"unknown_tool":       "One moment please.",
	}
	for name, want := range tests {
		if got := Filler(name); got != want {
			t.Errorf("Filler(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestRegistry_ExecuteAndDefinitions(t *testing.T) {
	r := NewRegistry()
	r.Register("check_availability", llm.ToolDefinition{Description: "checks room availability"},
		func(ctx context.Context, args map[string]any, ec ExecContext) (any, error) {
			return map[string]any{"available": true, "call_id": ec.CallID}, nil
		})

	defs := r.Definitions()
	if len(defs) != 1 || defs[0].Name != "check_availability" {
		t.Fatalf("unexpected definitions: %+v", defs)
	}

	result, err := r.Execute(context.Background(), "check_availability", nil, ExecContext{CallID: "call1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok || m["call_id"] != "call1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "nonexistent", nil, ExecContext{})
	var unknown *ErrUnknownTool
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}
