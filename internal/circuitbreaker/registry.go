package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"
)

// Registry holds one breaker per service name. Lookups take the read lock;
// a missing breaker is created under the write lock, so two services never
// contend once their breakers exist.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	threshold int
	timeout   time.Duration
	logger    *slog.Logger
}

func NewRegistry(threshold int, timeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
	}
}

func (r *Registry) GetBreaker(serviceName string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[serviceName]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[serviceName]; exists {
		return cb
	}

	cb = NewCircuitBreaker(serviceName, r.threshold, r.timeout, r.logger)
	r.breakers[serviceName] = cb
	return cb
}

// Allow asks the service's breaker whether a call may proceed.
func (r *Registry) Allow(serviceName string) (permit bool, probe bool) {
	return r.GetBreaker(serviceName).Allow()
}

// ReportOutcome feeds a permitted call's result back into the service's
// breaker. A report for a service that never passed through Allow is a
// caller bug; it is logged and dropped rather than inventing state.
func (r *Registry) ReportOutcome(serviceName string, outcome Outcome) {
	r.mutex.RLock()
	cb, exists := r.breakers[serviceName]
	r.mutex.RUnlock()

	if !exists {
		r.logger.Error("outcome reported for service with no circuit",
			slog.String("service", serviceName))
		return
	}

	cb.Record(outcome)
}

// GetState returns a snapshot of the service's breaker, creating it in the
// closed state if it does not exist yet.
func (r *Registry) GetState(serviceName string) Snapshot {
	return r.GetBreaker(serviceName).Snapshot()
}

// Reset forces a single service's breaker back to closed.
func (r *Registry) Reset(serviceName string) {
	r.GetBreaker(serviceName).Reset()
}

// Stats snapshots every breaker, keyed by service name.
func (r *Registry) Stats() map[string]Snapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]Snapshot, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Snapshot()
	}
	return stats
}
