package registry

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// HealthStatus is the registry's view of a backend. A service is unknown
// until its first poll completes and is never removed, only marked
// unhealthy.
type HealthStatus string

const (
	StatusUnknown   HealthStatus = "unknown"
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
)

const DefaultHealthPath = "/healthz"

// Service describes one backend: its resolved base URL, health endpoint,
// per-call timeout, and current polled status. Health fields are guarded by
// the service's own mutex and written only by that service's poller, so two
// services never contend.
type Service struct {
	name      string
	baseURL   *url.URL
	healthURL string
	timeout   time.Duration

	mutex         sync.Mutex
	status        HealthStatus
	lastCheckedAt time.Time
}

// NewService builds a descriptor. An empty healthPath falls back to
// /healthz. The status starts unknown until the first poll lands.
func NewService(name, baseURL, healthPath string, timeout time.Duration) (*Service, error) {
	if name == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("service %q: invalid base URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("service %q: base URL must use http or https", name)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("service %q: base URL must have a host", name)
	}

	if healthPath == "" {
		healthPath = DefaultHealthPath
	}

	return &Service{
		name:      name,
		baseURL:   u,
		healthURL: u.ResolveReference(&url.URL{Path: healthPath}).String(),
		timeout:   timeout,
		status:    StatusUnknown,
	}, nil
}

func (s *Service) Name() string { return s.name }

// BaseURL returns the parsed base URL. The value is immutable; callers must
// not mutate it.
func (s *Service) BaseURL() *url.URL { return s.baseURL }

// Timeout is the per-call deadline for proxied requests to this service.
func (s *Service) Timeout() time.Duration { return s.timeout }

// HealthURL is the fully resolved probe target.
func (s *Service) HealthURL() string { return s.healthURL }

func (s *Service) Status() HealthStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.status
}

// SetHealthy records a poll result and stamps the check time.
// Returns true if the status changed, false if it was already in that state.
func (s *Service) SetHealthy(healthy bool) (changed bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastCheckedAt = time.Now()

	next := StatusUnhealthy
	if healthy {
		next = StatusHealthy
	}

	if s.status == next {
		return false
	}

	s.status = next
	return true
}

// ServiceSnapshot is a point-in-time copy of a descriptor, safe to hand to
// observability endpoints.
type ServiceSnapshot struct {
	Name        string
	BaseURL     string
	Status      HealthStatus
	Timeout     time.Duration
	LastChecked time.Time
}

func (s *Service) Snapshot() ServiceSnapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return ServiceSnapshot{
		Name:        s.name,
		BaseURL:     s.baseURL.String(),
		Status:      s.status,
		Timeout:     s.timeout,
		LastChecked: s.lastCheckedAt,
	}
}
