package main

import (
	"net/http"

	"github.com/angeloszaimis/gateway/internal/handler"
	"github.com/angeloszaimis/gateway/internal/metrics"
)

func setupRouter(gateway *handler.Gateway, metricsCollector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /services", gateway.ServicesHandler())
	mux.HandleFunc("GET /services/{name}/health", gateway.ServiceHealthHandler())
	mux.HandleFunc("GET /healthz", handler.HealthzHandler())
	mux.HandleFunc("GET /metrics", metricsCollector.Handler())
	mux.HandleFunc("/", gateway.ServeHTTP)

	return mux
}
