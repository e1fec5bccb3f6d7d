package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elearn_client_requests_total",
		Help: "Number of outbound API requests.",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "elearn_client_request_duration_seconds",
		Help:    "Outbound API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// MonitorHTTP wraps rt with request metrics and per-request logging.
func MonitorHTTP(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}

	return httpLog{next: rt}
}

type httpLog struct {
	next http.RoundTripper
}

func (h httpLog) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	slog.InfoContext(ctx, fmt.Sprintf("http: starting %s %s", req.Method, req.URL.Path))

	start := time.Now()
	resp, err := h.next.RoundTrip(req)
	requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	requestsTotal.WithLabelValues(req.Method, status).Inc()

	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("http: %s %s failed", req.Method, req.URL.Path), "error", err)
		return resp, err
	}

	slog.InfoContext(ctx, fmt.Sprintf("http: finished %s %s: %s", req.Method, req.URL.Path, resp.Status))
	return resp, nil
}
