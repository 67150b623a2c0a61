// Package metrics exposes Prometheus counters for loop activity.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "ralph"

// Metrics holds the loop's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	iterations        *prometheus.CounterVec
	gateRuns          *prometheus.CounterVec
	agentAttempts     *prometheus.CounterVec
	learningsRejected prometheus.Counter
	repeatWarnings    *prometheus.CounterVec
	iterationDuration prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "iterations_total",
				Help:      "Loop iterations by outcome",
			},
			[]string{"outcome"},
		),
		gateRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_runs_total",
				Help:      "Quality gate executions by gate and result",
			},
			[]string{"gate", "result"},
		),
		agentAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_attempts_total",
				Help:      "Worker invocation attempts by classification",
			},
			[]string{"classification"},
		),
		learningsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "learnings_rejected_total",
				Help:      "Learning entries rejected as harmful",
			},
		),
		repeatWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_repeat_warnings_total",
				Help:      "Repeat-failure warnings emitted by gate",
			},
			[]string{"gate"},
		),
		iterationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "iteration_duration_seconds",
				Help:      "Wall-clock duration of loop iterations",
				Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
			},
		),
	}

	m.registry.MustRegister(
		m.iterations,
		m.gateRuns,
		m.agentAttempts,
		m.learningsRejected,
		m.repeatWarnings,
		m.iterationDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Iteration records a finished iteration.
func (m *Metrics) Iteration(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(outcome).Inc()
	m.iterationDuration.Observe(d.Seconds())
}

// GateRun records one gate execution.
func (m *Metrics) GateRun(gate string, passed bool) {
	if m == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	m.gateRuns.WithLabelValues(gate, result).Inc()
}

// AgentAttempt records one worker attempt with its classification.
func (m *Metrics) AgentAttempt(classification string) {
	if m == nil {
		return
	}
	m.agentAttempts.WithLabelValues(classification).Inc()
}

// LearningRejected records a harmful learning that was dropped.
func (m *Metrics) LearningRejected() {
	if m == nil {
		return
	}
	m.learningsRejected.Inc()
}

// RepeatWarning records a repeat-failure warning for gate.
func (m *Metrics) RepeatWarning(gate string) {
	if m == nil {
		return
	}
	m.repeatWarnings.WithLabelValues(gate).Inc()
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
