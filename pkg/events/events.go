// Package events publishes call lifecycle notifications to NATS so
// external systems (billing, CRM sync, live dashboards) can react to a
// call without polling session state.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects used for call lifecycle events.
const (
	SubjectResponse          = "callagent.call.response"
	SubjectTransferRequested = "callagent.call.transfer_requested"
	SubjectCallEnd           = "callagent.call.end"
)

// ResponsePayload is published once per completed assistant turn.
type ResponsePayload struct {
	CallID    string    `json:"call_id"`
	TenantID  string    `json:"tenant_id"`
	Text      string    `json:"text"`
	ToolsUsed []string  `json:"tools_used,omitempty"`
	At        time.Time `json:"at"`
}

// TransferRequestedPayload is published when a call is handed to a human.
type TransferRequestedPayload struct {
	CallID          string    `json:"call_id"`
	TenantID        string    `json:"tenant_id"`
	EscalationPhone string    `json:"escalation_phone"`
	Reason          string    `json:"reason"`
	At              time.Time `json:"at"`
}

// CallEndPayload is published once when a call's session is cleaned up.
type CallEndPayload struct {
	CallID   string    `json:"call_id"`
	TenantID string    `json:"tenant_id"`
	Reason   string    `json:"reason"`
	Duration float64   `json:"duration_seconds"`
	At       time.Time `json:"at"`
}

// Publisher publishes call lifecycle events to NATS. A nil *Publisher, or
// one constructed with NewNoop, silently drops every event, so callers can
// wire events optionally without branching at every call site.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher wraps an already-connected NATS connection.
func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// NewNoop returns a Publisher that drops every event.
func NewNoop() *Publisher {
	return &Publisher{}
}

func (p *Publisher) publish(subject string, payload any) error {
	if p == nil || p.conn == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	return nil
}

// Response publishes a completed-turn event.
func (p *Publisher) Response(payload ResponsePayload) error {
	return p.publish(SubjectResponse, payload)
}

// TransferRequested publishes a human-handoff event.
func (p *Publisher) TransferRequested(payload TransferRequestedPayload) error {
	return p.publish(SubjectTransferRequested, payload)
}

// CallEnd publishes a call-ended event.
func (p *Publisher) CallEnd(payload CallEndPayload) error {
	return p.publish(SubjectCallEnd, payload)
}
