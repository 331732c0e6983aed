// Package metrics exposes the Turn Manager's operational counters and
// histograms to Prometheus, replacing ad hoc state-transition and
// latency bookkeeping with labeled collectors scrapeable over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors bundles every metric the Turn Manager records. Construct
// one with NewCollectors and share it across all call sessions; the
// underlying prometheus collectors are safe for concurrent use.
type Collectors struct {
	StateTransitions  *prometheus.CounterVec
	EndpointingWait   prometheus.Histogram
	BargeIns          prometheus.Counter
	TimeToFirstToken  prometheus.Histogram
	ToolCalls         *prometheus.CounterVec
	TurnsCompleted    prometheus.Counter
	TurnsFailed       *prometheus.CounterVec
	ActiveCalls       prometheus.Gauge
}

// NewCollectors registers a full set of collectors with reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	return &Collectors{
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callagent",
			Name:      "pipeline_state_transitions_total",
			Help:      "Count of audio pipeline state transitions by from/to state.",
		}, []string{"from", "to"}),

		EndpointingWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "callagent",
			Name:      "endpointing_wait_seconds",
			Help:      "Wait duration chosen by the endpointing policy before invoking the LLM.",
			Buckets:   []float64{.1, .2, .4, .6, .8, 1, 1.5, 2, 3, 5, 8, 12},
		}),

		BargeIns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "callagent",
			Name:      "barge_ins_total",
			Help:      "Count of confirmed caller interruptions during assistant playback.",
		}),

		TimeToFirstToken: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "callagent",
			Name:      "llm_time_to_first_token_seconds",
			Help:      "Latency from requesting a streaming completion to its first chunk.",
			Buckets:   prometheus.DefBuckets,
		}),

		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callagent",
			Name:      "tool_calls_total",
			Help:      "Count of tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),

		TurnsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "callagent",
			Name:      "turns_completed_total",
			Help:      "Count of caller turns that produced a spoken assistant response.",
		}),

		TurnsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callagent",
			Name:      "turns_failed_total",
			Help:      "Count of caller turns that fell back to the apology utterance, by reason.",
		}, []string{"reason"}),

		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "callagent",
			Name:      "active_calls",
			Help:      "Number of calls currently in progress.",
		}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
