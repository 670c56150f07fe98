// Package circuitbreaker implements the circuit breaker pattern for the
// gateway's backend services.
//
// A circuit breaker prevents cascading failures by temporarily blocking
// requests to failing services. It has three states:
//
//   - closed: Normal operation, requests pass through
//   - open: Service failing, requests fast-fail without a network call
//   - half-open: Testing recovery with a single trial request
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 30*time.Second, logger)
//	permit, probe := registry.Allow("billsApi")
//	if permit {
//	    // Make request...
//	    registry.ReportOutcome("billsApi", circuitbreaker.ResponseOutcome(status, latency, probe))
//	}
package circuitbreaker
