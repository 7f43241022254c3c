package errors

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerSettings tunes a CircuitBreaker. Zero fields take the defaults of DefaultBreakerSettings.
type BreakerSettings struct {
	// MinRequests is the sample size before the failure ratio is considered.
	MinRequests int
	// FailureRatio trips the breaker once failures/requests reaches it.
	FailureRatio float64
	// Cooldown is how long the breaker stays open before letting probes through.
	Cooldown time.Duration
	// Probes is the number of consecutive successes in half-open needed to close.
	Probes int
	// OnStateChange, when set, is called outside the lock after every transition.
	OnStateChange func(from, to State)
}

var DefaultBreakerSettings = BreakerSettings{
	MinRequests:  10,
	FailureRatio: 0.5,
	Cooldown:     30 * time.Second,
	Probes:       3,
}

// CircuitBreaker stops calling a failing dependency for a cooldown period.
// Only retryable errors count as failures: a 404 from a healthy service must not trip it.
type CircuitBreaker struct {
	settings BreakerSettings
	now      func() time.Time

	mu        sync.Mutex
	state     State
	requests  int
	failures  int
	inFlight  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker returns a closed breaker using DefaultBreakerSettings.
func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWith(BreakerSettings{})
}

// NewCircuitBreakerWith returns a closed breaker with s applied over the defaults.
func NewCircuitBreakerWith(s BreakerSettings) *CircuitBreaker {
	if s.MinRequests <= 0 {
		s.MinRequests = DefaultBreakerSettings.MinRequests
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = DefaultBreakerSettings.FailureRatio
	}
	if s.Cooldown <= 0 {
		s.Cooldown = DefaultBreakerSettings.Cooldown
	}
	if s.Probes <= 0 {
		s.Probes = DefaultBreakerSettings.Probes
	}
	return &CircuitBreaker{settings: s, now: time.Now}
}

// Call runs fn unless the breaker is open or its half-open probes are all in flight.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err == nil || !IsRetryable(err))
	return err
}

// State reports the current state, moving an expired open breaker to half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	from := cb.state
	cb.refreshLocked()
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return to
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	from := cb.state
	cb.refreshLocked()
	to := cb.state

	var err error
	switch {
	case cb.state == StateOpen:
		err = ErrCircuitOpen
	case cb.state == StateHalfOpen && cb.inFlight >= cb.settings.Probes:
		err = ErrCircuitOpen
	default:
		cb.inFlight++
	}
	cb.mu.Unlock()

	cb.notify(from, to)
	return err
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	from := cb.state
	cb.inFlight--

	switch cb.state {
	case StateHalfOpen:
		if !ok {
			cb.setLocked(StateOpen)
			break
		}
		cb.successes++
		if cb.successes >= cb.settings.Probes {
			cb.setLocked(StateClosed)
		}
	case StateClosed:
		cb.requests++
		if !ok {
			cb.failures++
		}
		if cb.requests >= cb.settings.MinRequests &&
			float64(cb.failures)/float64(cb.requests) >= cb.settings.FailureRatio {
			cb.setLocked(StateOpen)
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) refreshLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.settings.Cooldown {
		cb.setLocked(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) setLocked(s State) {
	cb.state = s
	cb.requests, cb.failures, cb.successes = 0, 0, 0
	if s == StateOpen {
		cb.openedAt = cb.now()
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(from, to)
	}
}
