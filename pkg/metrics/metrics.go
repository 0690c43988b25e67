// Package metrics exposes Prometheus instrumentation for the watcher
// and the agent turns it dispatches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"issueagents/pkg/logx"
)

var (
	// PollsTotal counts completed watcher poll cycles.
	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "issueagents_polls_total",
		Help: "Number of watcher poll cycles completed.",
	})

	// TurnsTotal counts agent turns by role and outcome.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "issueagents_turns_total",
		Help: "Number of agent turns, by role and outcome.",
	}, []string{"role", "outcome"})

	// TurnDuration observes agent turn latency by role.
	TurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "issueagents_turn_duration_seconds",
		Help:    "Duration of agent turns in seconds.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"role"})

	// LLMRequestsTotal counts completion requests by provider.
	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "issueagents_llm_requests_total",
		Help: "Number of LLM completion requests, by provider.",
	}, []string{"provider"})

	// LLMTokensTotal counts tokens reported by the provider.
	LLMTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "issueagents_llm_tokens_total",
		Help: "LLM tokens consumed, by type (input or output).",
	}, []string{"type"})
)

// ObserveTurn records one agent turn.
func ObserveTurn(role, outcome string, elapsed time.Duration) {
	TurnsTotal.WithLabelValues(role, outcome).Inc()
	TurnDuration.WithLabelValues(role).Observe(elapsed.Seconds())
}

// ObserveLLMUsage records provider-reported token usage for one request.
func ObserveLLMUsage(provider string, inputTokens, outputTokens int64) {
	LLMRequestsTotal.WithLabelValues(provider).Inc()
	LLMTokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	LLMTokensTotal.WithLabelValues("output").Add(float64(outputTokens))
}

// Serve starts an HTTP listener exposing /metrics. It blocks, so callers
// run it on its own goroutine. Errors are logged, not returned, since a
// broken metrics endpoint should not take down the watcher.
func Serve(addr string) {
	logger := logx.NewLogger("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Metrics endpoint listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics endpoint failed: %v", err)
	}
}
