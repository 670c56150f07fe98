package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"
)

var (
	ErrDuplicateService = errors.New("service already registered")
	ErrUnknownService   = errors.New("unknown service")
)

const DefaultProbeTimeout = 5 * time.Second

// Registry tracks every configured backend service. Registration happens at
// startup; after that the set of services never changes, only their polled
// health does.
type Registry struct {
	logger *slog.Logger
	client *http.Client

	mutex    sync.RWMutex
	services map[string]*Service
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRegistry builds an empty registry. probeTimeout bounds each health
// probe; zero means DefaultProbeTimeout.
func NewRegistry(probeTimeout time.Duration, logger *slog.Logger) *Registry {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger:   logger,
		client:   &http.Client{Timeout: probeTimeout},
		services: make(map[string]*Service),
	}
}

// Register adds a service. Called once per configured service at startup.
func (r *Registry) Register(svc *Service) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.services[svc.Name()]; exists {
		return fmt.Errorf("service %q: %w", svc.Name(), ErrDuplicateService)
	}

	r.services[svc.Name()] = svc
	return nil
}

// Get returns the live descriptor for a service name.
func (r *Registry) Get(name string) (*Service, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	svc, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service %q: %w", name, ErrUnknownService)
	}
	return svc, nil
}

// Resolve returns the service's current base URL. It does not fail for an
// unhealthy service; callers that care about health must use Status.
func (r *Registry) Resolve(name string) (*url.URL, error) {
	svc, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return svc.BaseURL(), nil
}

// Status reports the service's polled health. Unregistered names report
// unknown, same as a registered service before its first poll.
func (r *Registry) Status(name string) HealthStatus {
	svc, err := r.Get(name)
	if err != nil {
		return StatusUnknown
	}
	return svc.Status()
}

// Describe returns a snapshot for observability endpoints.
func (r *Registry) Describe(name string) (ServiceSnapshot, error) {
	svc, err := r.Get(name)
	if err != nil {
		return ServiceSnapshot{}, err
	}
	return svc.Snapshot(), nil
}

// Names lists registered services in stable order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartHealthLoop launches one poller goroutine per registered service,
// each on its own ticker so a hung backend never delays the others.
// Calling it twice is a no-op.
func (r *Registry) StartHealthLoop(interval time.Duration) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, svc := range r.services {
		r.wg.Add(1)
		go func(svc *Service) {
			defer r.wg.Done()
			r.poll(ctx, svc, interval)
		}(svc)
	}
}

// Shutdown cancels every poller and returns once all of them have stopped.
func (r *Registry) Shutdown() {
	r.mutex.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
