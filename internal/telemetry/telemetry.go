// Package telemetry exposes mindloop metrics on a dedicated Prometheus
// registry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds every mindloop collector. It satisfies the completion
// client's metrics hook and the orchestrator's.
type Metrics struct {
	registry *prometheus.Registry

	completions      *prometheus.CounterVec
	retries          *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	cycles           *prometheus.CounterVec
	agentFailures    *prometheus.CounterVec
	phaseTransitions *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindloop_completion_requests_total",
			Help: "Completion attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindloop_completion_retries_total",
			Help: "Completion retries by reason.",
		}, []string{"reason"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindloop_completion_fallbacks_total",
			Help: "Completions answered by a fallback model.",
		}, []string{"model"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindloop_completion_latency_seconds",
			Help:    "Latency of single completion attempts.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindloop_cycles_total",
			Help: "Archived cycles by final status.",
		}, []string{"status"}),
		agentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindloop_agent_failures_total",
			Help: "Agents that failed during execution.",
		}, []string{"role"}),
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindloop_phase_transitions_total",
			Help: "Phase transitions of the current cycle.",
		}, []string{"phase"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.completions, m.retries, m.fallbacks, m.latency,
		m.cycles, m.agentFailures, m.phaseTransitions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAttempt(model, outcome string, d time.Duration) {
	m.completions.WithLabelValues(model, outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveRetry(reason string) { m.retries.WithLabelValues(reason).Inc() }

func (m *Metrics) ObserveFallback(model string) { m.fallbacks.WithLabelValues(model).Inc() }

func (m *Metrics) CycleArchived(status string) { m.cycles.WithLabelValues(status).Inc() }

func (m *Metrics) AgentFailed(role string) { m.agentFailures.WithLabelValues(role).Inc() }

func (m *Metrics) PhaseEntered(phase string) { m.phaseTransitions.WithLabelValues(phase).Inc() }

// Serve exposes /metrics on its own port until ctx is done. A port <= 0 does
// nothing.
func (m *Metrics) Serve(ctx context.Context, port int, logger *zap.Logger) error {
	if port <= 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics listening", zap.Int("port", port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
