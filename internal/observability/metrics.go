package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Domain collectors for the question pipeline. Label values come from small
// closed sets (route names, error kinds, purposes) so cardinality stays fixed.
var (
	RouteDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_route_decisions_total",
			Help: "Questions routed to the sql or chat path, by rule.",
		},
		[]string{"route", "reason"},
	)

	SafetyRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_safety_rejections_total",
			Help: "Requests rejected by the safety guard.",
		},
		[]string{"endpoint"},
	)

	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_sql_validation_failures_total",
			Help: "Generated SQL rejected by the guard, by failure kind.",
		},
		[]string{"kind"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_cache_lookups_total",
			Help: "Result cache lookups by outcome.",
		},
		[]string{"result"},
	)

	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_llm_calls_total",
			Help: "Language model completions by provider, purpose and outcome.",
		},
		[]string{"provider", "purpose", "outcome"},
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_llm_call_duration_seconds",
			Help:    "Language model completion latency.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"provider", "purpose"},
	)

	Fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_fallbacks_total",
			Help: "Degradations to the chat path or to the built-in analysis.",
		},
		[]string{"reason"},
	)

	WarehouseLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_warehouse_query_duration_seconds",
			Help:    "Execution time of validated SQL against the warehouse.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		RouteDecisions, SafetyRejections, ValidationFailures, CacheLookups,
		LLMCalls, LLMLatency, Fallbacks, WarehouseLatency,
	)
}

// ObserveLLM records one completion.
func ObserveLLM(provider, purpose string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LLMCalls.WithLabelValues(provider, purpose, outcome).Inc()
	LLMLatency.WithLabelValues(provider, purpose).Observe(d.Seconds())
}

// ObserveCache records a cache lookup.
func ObserveCache(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}
