package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Fast-failing requests
	StateHalfOpen              // Testing with one trial request
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText lets snapshots serialize the state by name rather than by
// ordinal.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time copy of a breaker's state, safe to hand to
// observability endpoints.
type Snapshot struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	OpenedAt            time.Time `json:"openedAt,omitzero"`
}

// CircuitBreaker guards calls to a single backend service. All transitions
// happen under the breaker's own mutex; breakers for different services
// never share state.
type CircuitBreaker struct {
	name   string
	logger *slog.Logger

	mutex         sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	probeInFlight bool

	failureThreshold int
	resetTimeout     time.Duration
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CircuitBreaker{
		name:             name,
		logger:           logger,
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     timeout,
	}
}

// Allow reports whether a call to the service may proceed. probe is true
// exactly when the caller holds the single half-open trial slot; its
// outcome must be reported with Outcome.Probe set so the slot is released.
func (cb *CircuitBreaker) Allow() (permit bool, probe bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.probeInFlight = true
			cb.logger.Info("circuit half-open, admitting trial request",
				slog.String("service", cb.name))
			return true, true
		}
		return false, false
	case StateHalfOpen:
		if cb.probeInFlight {
			return false, false
		}
		cb.probeInFlight = true
		return true, true
	default:
		return true, false
	}
}

// Record advances the state machine with the outcome of a permitted call.
// Must be called exactly once per permit granted by Allow.
func (cb *CircuitBreaker) Record(outcome Outcome) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if outcome.Probe {
		cb.recordProbe(outcome)
		return
	}

	switch cb.state {
	case StateClosed:
		if outcome.Success {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
			cb.logger.Warn("circuit opened",
				slog.String("service", cb.name),
				slog.Int("consecutive_failures", cb.failures),
				slog.String("error_kind", string(outcome.ErrorKind)))
		}
	case StateOpen, StateHalfOpen:
		// Stale report from a call permitted before the breaker
		// tripped. The transition already happened; the in-flight
		// probe, if any, still owns the verdict.
	}
}

func (cb *CircuitBreaker) recordProbe(outcome Outcome) {
	cb.probeInFlight = false

	if cb.state != StateHalfOpen {
		// A manual reset raced the probe; nothing left to resolve.
		return
	}

	if outcome.Success {
		cb.state = StateClosed
		cb.failures = 0
		cb.logger.Info("circuit closed after successful probe",
			slog.String("service", cb.name))
		return
	}

	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.logger.Warn("circuit reopened after failed probe",
		slog.String("service", cb.name),
		slog.String("error_kind", string(outcome.ErrorKind)))
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Snapshot returns a copy of the breaker's observable state.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return Snapshot{
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		OpenedAt:            cb.openedAt,
	}
}

// Reset forces the breaker back to closed with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.openedAt = time.Time{}
	cb.probeInFlight = false
}
