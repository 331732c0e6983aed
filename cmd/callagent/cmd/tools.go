package cmd

import (
	"context"
	"fmt"

	"github.com/lumentra-ai/callagent/pkg/ai/llm"
	"github.com/lumentra-ai/callagent/pkg/tools"
)

// defaultTools builds the receptionist tool set wired into every call:
// availability lookup, booking creation, business hours, and escalation
// to a human. Each implementation is a deliberately thin stand-in — real
// deployments register tenant-specific callables over the same Registry.
func defaultTools(escalationPhone string) *tools.Registry {
	reg := tools.NewRegistry()

	reg.Register("check_availability", llm.ToolDefinition{
		Description: "Checks whether a requested date and time slot is available.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date": map[string]any{"type": "string", "description": "Requested date, e.g. 2026-08-03"},
				"time": map[string]any{"type": "string", "description": "Requested time, e.g. 14:00"},
			},
			"required": []string{"date", "time"},
		},
	}, func(ctx context.Context, args map[string]any, ec tools.ExecContext) (any, error) {
		return map[string]any{
			"available": true,
			"date":      args["date"],
			"time":      args["time"],
		}, nil
	})

	reg.Register("create_booking", llm.ToolDefinition{
		Description: "Books a requested date and time slot for the caller.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date": map[string]any{"type": "string"},
				"time": map[string]any{"type": "string"},
				"name": map[string]any{"type": "string", "description": "Name to book under"},
			},
			"required": []string{"date", "time"},
		},
	}, func(ctx context.Context, args map[string]any, ec tools.ExecContext) (any, error) {
		return map[string]any{
			"confirmation_id": fmt.Sprintf("bk-%s", ec.CallID),
			"date":            args["date"],
			"time":            args["time"],
		}, nil
	})

	reg.Register("get_business_hours", llm.ToolDefinition{
		Description: "Returns the business's operating hours.",
	}, func(ctx context.Context, args map[string]any, ec tools.ExecContext) (any, error) {
		return map[string]any{
			"monday_friday": "9:00 AM - 6:00 PM",
			"saturday":      "10:00 AM - 4:00 PM",
			"sunday":        "closed",
		}, nil
	})

	reg.Register("transfer_to_human", llm.ToolDefinition{
		Description: "Escalates the call to a human operator.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{"type": "string"},
			},
		},
	}, func(ctx context.Context, args map[string]any, ec tools.ExecContext) (any, error) {
		phone := ec.EscalationPhone
		if phone == "" {
			phone = escalationPhone
		}
		return map[string]any{
			"transferred_to": phone,
			"reason":         args["reason"],
		}, nil
	})

	return reg
}
