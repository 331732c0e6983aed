package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCollectors_StateTransitionsIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.StateTransitions.WithLabelValues("idle", "listening").Inc()
	c.StateTransitions.WithLabelValues("idle", "listening").Inc()

	m := &dto.Metric{}
	if err := c.StateTransitions.WithLabelValues("idle", "listening").Write(m); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m.Counter.GetValue() != 2 {
		t.Errorf("expected counter value 2, got %v", m.Counter.GetValue())
	}
}

func TestCollectors_ActiveCallsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.ActiveCalls.Inc()
	c.ActiveCalls.Inc()
	c.ActiveCalls.Dec()

	m := &dto.Metric{}
	if err := c.ActiveCalls.Write(m); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m.Gauge.GetValue() != 1 {
		t.Errorf("expected gauge value 1, got %v", m.Gauge.GetValue())
	}
}
