package metrics

import (
	"sort"
	"sync"
	"time"
)

// Metrics accumulates per-service gateway counters. Writes arrive from the
// collector goroutine; snapshots may be taken from any goroutine.
type Metrics struct {
	mutex             sync.RWMutex
	requests          map[string]int64
	circuitRejections map[string]int64
	outcomes          map[string]map[string]int64
	responseTimes     map[string][]time.Duration
	statusCodes       map[string]map[int]int64
	clientErrors      map[string]int64
	startTime         time.Time
}

type Snapshot struct {
	TotalRequests int64                     `json:"total_requests"`
	Uptime        time.Duration             `json:"uptime"`
	Services      map[string]ServiceMetrics `json:"services"`
	ClientErrors  map[string]int64          `json:"client_errors,omitempty"`
}

type ServiceMetrics struct {
	Requests          int64            `json:"requests"`
	CircuitRejections int64            `json:"circuit_rejections"`
	Outcomes          map[string]int64 `json:"outcomes,omitempty"`
	StatusCodes       map[int]int64    `json:"status_codes,omitempty"`
	AvgResponse       time.Duration    `json:"avg_response"`
	P50Response       time.Duration    `json:"p50_response"`
	P95Response       time.Duration    `json:"p95_response"`
	P99Response       time.Duration    `json:"p99_response"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:          make(map[string]int64),
		circuitRejections: make(map[string]int64),
		outcomes:          make(map[string]map[string]int64),
		responseTimes:     make(map[string][]time.Duration),
		statusCodes:       make(map[string]map[int]int64),
		clientErrors:      make(map[string]int64),
		startTime:         time.Now(),
	}
}

func (m *Metrics) IncrementRequests(service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests[service]++
}

func (m *Metrics) IncrementCircuitRejections(service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.circuitRejections[service]++
}

func (m *Metrics) IncrementClientErrors(reason string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.clientErrors[reason]++
}

// RecordOutcome records one completed proxy attempt. statusCode 0 means no
// upstream response was received.
func (m *Metrics) RecordOutcome(service string, duration time.Duration, statusCode int, errorKind string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[service] = append(m.responseTimes[service], duration)

	if len(m.responseTimes[service]) > 1000 {
		m.responseTimes[service] = m.responseTimes[service][1:]
	}

	if m.outcomes[service] == nil {
		m.outcomes[service] = make(map[string]int64)
	}
	m.outcomes[service][errorKind]++

	if statusCode > 0 {
		if m.statusCodes[service] == nil {
			m.statusCodes[service] = make(map[int]int64)
		}
		m.statusCodes[service][statusCode]++
	}
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:   time.Since(m.startTime),
		Services: make(map[string]ServiceMetrics),
	}

	if len(m.clientErrors) > 0 {
		snap.ClientErrors = make(map[string]int64, len(m.clientErrors))
		for reason, count := range m.clientErrors {
			snap.ClientErrors[reason] = count
		}
	}

	// Collect every service name any counter has seen
	allServices := make(map[string]bool)
	for service := range m.requests {
		allServices[service] = true
	}
	for service := range m.circuitRejections {
		allServices[service] = true
	}
	for service := range m.responseTimes {
		allServices[service] = true
	}
	for service := range m.outcomes {
		allServices[service] = true
	}

	for service := range allServices {
		snap.TotalRequests += m.requests[service]

		sm := ServiceMetrics{
			Requests:          m.requests[service],
			CircuitRejections: m.circuitRejections[service],
			Outcomes:          copyCounts(m.outcomes[service]),
			StatusCodes:       copyCounts(m.statusCodes[service]),
		}

		durations := m.responseTimes[service]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			sm.AvgResponse = average(sorted)
			sm.P50Response = percentile(sorted, 0.50)
			sm.P95Response = percentile(sorted, 0.95)
			sm.P99Response = percentile(sorted, 0.99)
		}

		snap.Services[service] = sm
	}

	return snap
}

func copyCounts[K comparable](src map[K]int64) map[K]int64 {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[K]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
