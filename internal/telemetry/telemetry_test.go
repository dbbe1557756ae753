package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersExposed(t *testing.T) {
	m := New()
	m.ObserveAttempt("meta-llama/llama-3.1-8b-instruct:free", "rate_limited", 2*time.Second)
	m.ObserveAttempt("meta-llama/llama-3.1-8b-instruct:free", "ok", time.Second)
	m.ObserveRetry("rate-limit-exhausted")
	m.ObserveFallback("meta-llama/llama-3.2-3b-instruct:free")
	m.CycleArchived("completed")
	m.AgentFailed("geometer")
	m.PhaseEntered("synthesis")

	if got := testutil.ToFloat64(m.completions.WithLabelValues("meta-llama/llama-3.1-8b-instruct:free", "ok")); got != 1 {
		t.Fatalf("expected 1 ok attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.cycles.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed cycle, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		"mindloop_completion_requests_total",
		"mindloop_completion_retries_total",
		"mindloop_completion_fallbacks_total",
		"mindloop_completion_latency_seconds",
		"mindloop_cycles_total",
		"mindloop_agent_failures_total",
		"mindloop_phase_transitions_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metric %s missing from exposition", name)
		}
	}
}
