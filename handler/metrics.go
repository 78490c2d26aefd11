package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	schools  prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, cached func() float64) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schooldir",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "schooldir",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		schools: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "schooldir",
			Name:      "schools_cached",
			Help:      "Schools currently held in the view-model cache.",
		}, cached),
	}
	reg.MustRegister(m.requests, m.latency, m.schools)
	return m
}

// instrument records the request counter and latency histogram. The route
// label is read after the request so it holds the matched pattern.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		h.metrics.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		h.metrics.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
