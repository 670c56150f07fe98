package registry

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// poll periodically probes one service's health endpoint and updates its
// status. It runs until the registry shuts down.
func (r *Registry) poll(ctx context.Context, svc *Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("health poller stopped",
				slog.String("service", svc.Name()))
			return

		case <-ticker.C:
			r.probe(ctx, svc)
		}
	}
}

// probe issues a single GET to the service's health endpoint. Any 2xx
// answer counts as healthy; everything else, including transport errors and
// timeouts, counts as unhealthy. Probe failures are never fatal.
func (r *Registry) probe(ctx context.Context, svc *Service) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.HealthURL(), nil)
	if err != nil {
		r.logger.Error("failed to build health probe",
			slog.String("service", svc.Name()),
			slog.String("error", err.Error()))
		return
	}

	res, err := r.client.Do(req)
	if err != nil {
		// Cancellation during shutdown is not a backend failure.
		if ctx.Err() != nil {
			return
		}
		if svc.SetHealthy(false) {
			r.logger.Warn("service is down",
				slog.String("service", svc.Name()),
				slog.String("error", err.Error()))
		}
		return
	}
	defer res.Body.Close()

	healthy := res.StatusCode/100 == 2
	changed := svc.SetHealthy(healthy)

	if changed {
		if healthy {
			r.logger.Info("service is back up",
				slog.String("service", svc.Name()))
		} else {
			r.logger.Warn("service is down",
				slog.String("service", svc.Name()),
				slog.Int("status", res.StatusCode))
		}
	}
}
