// Package metrics exposes the bot's Prometheus instruments.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/himera-swap/internal/session"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	screenTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_screen_transitions_total",
			Help: "Total number of session screen transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of stored sessions",
		},
	)
	sessionsByFlow = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_flow",
			Help: "Number of sessions per order flow",
		},
		[]string{"flow"},
	)
	rendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_renders_total",
			Help: "View renders by outcome (edited, sent, fallback, failed)",
		},
		[]string{"outcome"},
	)
	orderEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_evaluations_total",
			Help: "Pending order evaluations by kind and result",
		},
		[]string{"kind", "result"},
	)
	orderExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_executions_total",
			Help: "Order executions by kind and status",
		},
		[]string{"kind", "status"},
	)
	orderScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_scan_duration_seconds",
			Help:    "Duration of pending order scans",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	rateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter by rule",
		},
		[]string{"rule"},
	)
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open)",
		},
		[]string{"service"},
	)
)

var trackedFlows = []session.Flow{
	session.FlowNone,
	session.FlowLimit,
	session.FlowDCA,
}

func init() {
	session.RegisterTransitionRecorder(RecordScreenTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	botCommandsTotal.WithLabelValues(orUnknown(command), orUnknown(status)).Inc()
	commandDurationSeconds.WithLabelValues(orUnknown(command)).Observe(duration.Seconds())
}

// RecordScreenTransition tracks session screen changes.
func RecordScreenTransition(from, to string) {
	screenTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

// RecordRender counts a render outcome.
func RecordRender(outcome string) {
	rendersTotal.WithLabelValues(orUnknown(outcome)).Inc()
}

// RecordOrderEvaluation counts an evaluated pending order.
func RecordOrderEvaluation(kind, result string) {
	orderEvaluationsTotal.WithLabelValues(orUnknown(kind), orUnknown(result)).Inc()
}

// RecordOrderExecution counts an executed order occurrence.
func RecordOrderExecution(kind, status string) {
	orderExecutionsTotal.WithLabelValues(orUnknown(kind), orUnknown(status)).Inc()
}

// ObserveScan records how long a scan of the given kind took.
func ObserveScan(kind string, duration time.Duration) {
	orderScanDuration.WithLabelValues(orUnknown(kind)).Observe(duration.Seconds())
}

// RecordRateLimitHit counts a rejected request.
func RecordRateLimitHit(rule string) {
	rateLimitHitsTotal.WithLabelValues(orUnknown(rule)).Inc()
}

// SetBreakerState publishes the numeric state of the breaker guarding service.
func SetBreakerState(service string, state int) {
	breakerState.WithLabelValues(service).Set(float64(state))
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// SessionCollector periodically gathers session counts per flow and emits gauge metrics.
type SessionCollector struct {
	storage  session.Storage
	interval time.Duration
}

// NewSessionCollector builds a collector bound to the session storage.
func NewSessionCollector(storage session.Storage, interval time.Duration) *SessionCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SessionCollector{storage: storage, interval: interval}
}

// Run polls the storage every interval until ctx is cancelled.
func (c *SessionCollector) Run(ctx context.Context) {
	if c == nil || c.storage == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		_ = c.Collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Collect refreshes the gauges once.
func (c *SessionCollector) Collect(ctx context.Context) error {
	steps, err := c.storage.All(ctx)
	if err != nil {
		return err
	}

	activeSessions.Set(float64(len(steps)))

	counts := make(map[session.Flow]int, len(trackedFlows))
	for _, step := range steps {
		flow := session.FlowNone
		if step != nil && step.Flow != "" {
			flow = step.Flow
		}
		counts[flow]++
	}

	sessionsByFlow.Reset()
	for _, flow := range trackedFlows {
		sessionsByFlow.WithLabelValues(string(flow)).Set(float64(counts[flow]))
		delete(counts, flow)
	}
	for flow, count := range counts {
		sessionsByFlow.WithLabelValues(string(flow)).Set(float64(count))
	}

	return nil
}
