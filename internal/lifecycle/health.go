package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// ErrShuttingDown is reported by Readiness once Drain was called.
var ErrShuttingDown = errors.New("shutting down")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers liveness unconditionally and readiness from the dependency check.
type Probes struct {
	log      *slog.Logger
	ready    func(ctx context.Context) error
	draining atomic.Bool
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates Probes. ready may be nil.
func NewProbes(ready func(ctx context.Context) error, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, ready: ready}
}

// Drain makes Readiness fail so load balancers stop routing webhook traffic before shutdown.
func (p *Probes) Drain() {
	p.draining.Store(true)
}

// Liveness reports that the process is running.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness fails while draining or when a dependency is unhealthy.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrShuttingDown
	}
	if p.ready == nil {
		return nil
	}
	return p.ready(ctx)
}

// Handler serves probe as a plain-text endpoint.
func Handler(probe func(ctx context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := probe(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
}
