package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"syscall"
	"time"

	"github.com/angeloszaimis/gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/gateway/internal/metrics"
)

// proxyTarget carries one request's routing decision through the reverse
// proxy callbacks. The failure fields are written only by the proxy's
// ErrorHandler, which runs before ServeHTTP returns.
type proxyTarget struct {
	service      string
	base         *url.URL
	path         string
	originalPath string
	requestID    string
	start        time.Time

	errKind  circuitbreaker.ErrorKind
	tooLarge bool
}

type targetContextKey struct{}

func targetFrom(ctx context.Context) *proxyTarget {
	target, _ := ctx.Value(targetContextKey{}).(*proxyTarget)
	return target
}

func newProxy(gw *Gateway) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Transport: newTransport(),
		ErrorLog:  slog.NewLogLogger(gw.logger.Handler(), slog.LevelError),
		Rewrite: func(pr *httputil.ProxyRequest) {
			target := targetFrom(pr.In.Context())

			pr.SetURL(target.base)
			pr.Out.URL.Path = target.path
			pr.Out.URL.RawPath = ""
			pr.Out.Host = target.base.Host

			pr.SetXForwarded()
			pr.Out.Header.Set("X-Forwarded-Service", target.service)
			pr.Out.Header.Set("X-Forwarded-Path", target.originalPath)
			pr.Out.Header.Set("X-Request-Id", target.requestID)
		},
		ModifyResponse: func(res *http.Response) error {
			target := targetFrom(res.Request.Context())

			res.Header.Set("X-Served-By", target.service)
			res.Header.Set("X-Response-Time", time.Since(target.start).String())
			return nil
		},
		ErrorHandler: gw.proxyError,
	}
}

// proxyError translates transport failures into the uniform error envelope.
// Raw network errors are logged but never reach the client.
func (gw *Gateway) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	target := targetFrom(r.Context())
	if target == nil {
		http.Error(w, "proxy error", http.StatusBadGateway)
		return
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		target.tooLarge = true
		gw.logger.Warn("Request body exceeded limit mid-stream",
			slog.String("service", target.service),
			slog.Int64("limit", tooLarge.Limit))
		gw.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventClientError,
			Timestamp: time.Now(),
			Service:   target.service,
			Reason:    metrics.ReasonBodyTooLarge,
		})
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			target.service, target.originalPath)
		return
	}

	target.errKind = classifyError(err)
	gw.logger.Warn("Upstream call failed",
		slog.String("service", target.service),
		slog.String("backend", target.base.String()),
		slog.String("error_kind", string(target.errKind)),
		slog.String("error", err.Error()))
	writeError(w, http.StatusServiceUnavailable,
		"upstream request failed", target.service, target.originalPath)
}

// classifyError maps a transport failure onto the breaker's outcome kinds.
func classifyError(err error) circuitbreaker.ErrorKind {
	var dnsErr *net.DNSError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return circuitbreaker.ErrorKindTimeout
	case errors.As(err, &dnsErr):
		return circuitbreaker.ErrorKindDNSFailure
	case errors.Is(err, syscall.ECONNREFUSED):
		return circuitbreaker.ErrorKindConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return circuitbreaker.ErrorKindTimeout
	}

	return circuitbreaker.ErrorKindOther
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
