package events

import "testing"

func TestNoopPublisher_NeverErrors(t *testing.T) {
	p := NewNoop()
	if err := p.Response(ResponsePayload{CallID: "c1"}); err != nil {
		t.Errorf("unexpected error from noop publisher: %v", err)
	}
	if err := p.TransferRequested(TransferRequestedPayload{CallID: "c1"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.CallEnd(CallEndPayload{CallID: "c1"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNilPublisher_NeverErrors(t *testing.T) {
	var p *Publisher
	if err := p.Response(ResponsePayload{}); err != nil {
		t.Errorf("unexpected error from nil publisher: %v", err)
	}
}
