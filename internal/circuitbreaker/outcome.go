package circuitbreaker

import "time"

// ErrorKind classifies how a proxied call went wrong. The breaker only
// distinguishes success from failure; the kind rides along for logs and
// metrics.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = "none"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindConnectionRefused ErrorKind = "connection-refused"
	ErrorKindDNSFailure        ErrorKind = "dns-failure"
	ErrorKindUpstream5xx       ErrorKind = "upstream-5xx"
	ErrorKindOther             ErrorKind = "other"
)

// Outcome is the result of one permitted call, reported exactly once.
// A backend that answers, even with a 4xx, counts as a success; the breaker
// protects against unreachable or collapsing backends, not application
// errors. StatusCode is 0 when no response was received. Probe marks the
// outcome of the half-open trial call.
type Outcome struct {
	Success    bool
	StatusCode int
	Latency    time.Duration
	ErrorKind  ErrorKind
	Probe      bool
}

// FailureOutcome builds the non-response outcome for a call that never
// produced an upstream answer.
func FailureOutcome(kind ErrorKind, latency time.Duration, probe bool) Outcome {
	return Outcome{
		Success:   false,
		Latency:   latency,
		ErrorKind: kind,
		Probe:     probe,
	}
}

// ResponseOutcome builds the outcome for a call that received an upstream
// response. Anything below 500 is a success from the breaker's view.
func ResponseOutcome(statusCode int, latency time.Duration, probe bool) Outcome {
	out := Outcome{
		StatusCode: statusCode,
		Latency:    latency,
		ErrorKind:  ErrorKindNone,
		Probe:      probe,
	}
	if statusCode >= 500 {
		out.ErrorKind = ErrorKindUpstream5xx
	} else {
		out.Success = true
	}
	return out
}
