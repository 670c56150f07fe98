package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/gateway/internal/metrics"
	"github.com/angeloszaimis/gateway/internal/registry"
	"github.com/angeloszaimis/gateway/internal/route"
)

// Gateway dispatches inbound requests to backend services. Each request is
// matched against the route table, gated by the service's circuit breaker,
// proxied to the registry's resolved base URL, and its outcome reported back
// to the breaker exactly once.
type Gateway struct {
	logger       *slog.Logger
	routes       *route.Table
	services     *registry.Registry
	breakers     *circuitbreaker.Registry
	collector    *metrics.Collector
	proxy        *httputil.ReverseProxy
	maxBodyBytes int64
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	gw.logger.Info("Received request",
		slog.String("from", extractClientIP(r)),
		slog.String("method", r.Method),
		slog.String("path", path),
		slog.String("host", r.Host))

	rule, ok := gw.routes.Match(path)
	if !ok {
		gw.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventClientError,
			Timestamp: time.Now(),
			Reason:    metrics.ReasonNoRoute,
		})
		message := fmt.Sprintf("no route for path, known prefixes: %s",
			strings.Join(gw.routes.Prefixes(), ", "))
		writeError(w, http.StatusNotFound, message, "", path)
		return
	}

	if gw.maxBodyBytes > 0 && r.ContentLength > gw.maxBodyBytes {
		gw.logger.Warn("Request body exceeds limit",
			slog.String("service", rule.ServiceName),
			slog.Int64("content_length", r.ContentLength),
			slog.Int64("limit", gw.maxBodyBytes))
		gw.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventClientError,
			Timestamp: time.Now(),
			Service:   rule.ServiceName,
			Reason:    metrics.ReasonBodyTooLarge,
		})
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", gw.maxBodyBytes),
			rule.ServiceName, path)
		return
	}
	if gw.maxBodyBytes > 0 && r.Body != nil {
		// Chunked uploads carry no Content-Length; cap them while streaming.
		r.Body = http.MaxBytesReader(w, r.Body, gw.maxBodyBytes)
	}

	gw.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now(),
		Service:   rule.ServiceName,
	})

	permit, isProbe := gw.breakers.Allow(rule.ServiceName)
	if !permit {
		gw.logger.Warn("Circuit open, rejecting request",
			slog.String("service", rule.ServiceName),
			slog.String("path", path))
		gw.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventCircuitRejected,
			Timestamp: time.Now(),
			Service:   rule.ServiceName,
		})
		writeError(w, http.StatusServiceUnavailable,
			fmt.Sprintf("circuit open for %s", rule.ServiceName),
			rule.ServiceName, path)
		return
	}

	svc, err := gw.services.Get(rule.ServiceName)
	if err != nil {
		gw.logger.Error("Route references unregistered service",
			slog.String("service", rule.ServiceName),
			slog.String("prefix", rule.PathPrefix))
		// No call is attempted, but the permitted slot must still be
		// reported or a half-open probe would never be released.
		gw.breakers.ReportOutcome(rule.ServiceName,
			circuitbreaker.FailureOutcome(circuitbreaker.ErrorKindOther, 0, isProbe))
		gw.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventClientError,
			Timestamp: time.Now(),
			Service:   rule.ServiceName,
			Reason:    metrics.ReasonUnknownService,
		})
		writeError(w, http.StatusInternalServerError,
			"service not registered", rule.ServiceName, path)
		return
	}

	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	target := &proxyTarget{
		service:      rule.ServiceName,
		base:         svc.BaseURL(),
		path:         rule.RewritePath(path),
		originalPath: path,
		requestID:    requestID,
		start:        time.Now(),
	}

	gw.logger.Info("Forwarding to backend",
		slog.String("service", rule.ServiceName),
		slog.String("backend", target.base.String()),
		slog.String("path", target.path),
		slog.Bool("probe", isProbe))

	ctx, cancel := context.WithTimeout(r.Context(), svc.Timeout())
	defer cancel()
	ctx = context.WithValue(ctx, targetContextKey{}, target)

	w.Header().Set("X-Request-Id", requestID)
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

	// Reporting is deferred so it also runs when the proxy aborts the
	// handler on a client disconnect mid-copy.
	defer func() {
		elapsed := time.Since(target.start)

		if target.tooLarge {
			// A request-body overflow is a client error, not a backend
			// failure.
			gw.breakers.ReportOutcome(rule.ServiceName, circuitbreaker.Outcome{
				Success:   true,
				Latency:   elapsed,
				ErrorKind: circuitbreaker.ErrorKindNone,
				Probe:     isProbe,
			})
			return
		}

		var outcome circuitbreaker.Outcome
		if target.errKind != "" {
			outcome = circuitbreaker.FailureOutcome(target.errKind, elapsed, isProbe)
		} else {
			outcome = circuitbreaker.ResponseOutcome(wrapped.statusCode, elapsed, isProbe)
		}

		gw.breakers.ReportOutcome(rule.ServiceName, outcome)
		gw.emitEvent(metrics.MetricEvent{
			Type:       metrics.EventResponseCompleted,
			Timestamp:  time.Now(),
			Service:    rule.ServiceName,
			ErrorKind:  string(outcome.ErrorKind),
			Duration:   elapsed,
			StatusCode: outcome.StatusCode,
		})
	}()

	gw.proxy.ServeHTTP(wrapped, r.WithContext(ctx))
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (gw *Gateway) emitEvent(event metrics.MetricEvent) {
	if gw.collector == nil {
		return
	}

	select {
	case gw.collector.EventChannel() <- event:
	default:
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, so
// streamed responses can still be flushed through the recorder.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func New(logger *slog.Logger, routes *route.Table, services *registry.Registry, breakers *circuitbreaker.Registry, collector *metrics.Collector, maxBodyBytes int64) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	gw := &Gateway{
		logger:       logger,
		routes:       routes,
		services:     services,
		breakers:     breakers,
		collector:    collector,
		maxBodyBytes: maxBodyBytes,
	}
	gw.proxy = newProxy(gw)

	return gw
}
