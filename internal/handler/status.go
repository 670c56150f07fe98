package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/angeloszaimis/gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/gateway/internal/registry"
)

type routeStatus struct {
	PathPrefix  string                  `json:"pathPrefix"`
	ServiceName string                  `json:"serviceName"`
	RewriteFrom string                  `json:"rewriteFrom,omitempty"`
	RewriteTo   string                  `json:"rewriteTo,omitempty"`
	Description string                  `json:"description,omitempty"`
	BaseURL     string                  `json:"baseURL,omitempty"`
	Health      registry.HealthStatus   `json:"health"`
	LastCheck   time.Time               `json:"lastCheck,omitzero"`
	Circuit     circuitbreaker.Snapshot `json:"circuitBreaker"`
}

type serviceHealth struct {
	Service        string                  `json:"service"`
	Status         registry.HealthStatus   `json:"status"`
	CircuitBreaker circuitbreaker.Snapshot `json:"circuitBreaker"`
	LastCheck      time.Time               `json:"lastCheck,omitzero"`
}

// ServicesHandler lists every route with its service's current health and
// circuit state.
func (gw *Gateway) ServicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules := gw.routes.Rules()
		routes := make([]routeStatus, 0, len(rules))

		for _, rule := range rules {
			rs := routeStatus{
				PathPrefix:  rule.PathPrefix,
				ServiceName: rule.ServiceName,
				RewriteFrom: rule.RewriteFrom,
				RewriteTo:   rule.RewriteTo,
				Description: rule.Description,
				Health:      registry.StatusUnknown,
				Circuit:     gw.breakers.GetState(rule.ServiceName),
			}
			if snap, err := gw.services.Describe(rule.ServiceName); err == nil {
				rs.BaseURL = snap.BaseURL
				rs.Health = snap.Status
				rs.LastCheck = snap.LastChecked
			}
			routes = append(routes, rs)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string][]routeStatus{"routes": routes}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// ServiceHealthHandler reports one service's health and breaker snapshot.
// The service name comes from the request's {name} path segment.
func (gw *Gateway) ServiceHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		snap, err := gw.services.Describe(name)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown service", name, r.URL.Path)
			return
		}

		resp := serviceHealth{
			Service:        snap.Name,
			Status:         snap.Status,
			CircuitBreaker: gw.breakers.GetState(name),
			LastCheck:      snap.LastChecked,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HealthzHandler reports the gateway's own liveness.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
