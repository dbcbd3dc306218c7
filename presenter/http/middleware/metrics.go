package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests         *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncer",
			Subsystem: "presenter",
			Name:      "http_requests_total",
			Help:      "Number of handled http requests.",
		}, []string{"method", "route", "code"}),
		RequestDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "syncer",
			Subsystem: "presenter",
			Name:      "http_request_duration_seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
	}
}

func NewMetricsMiddleware(metrics *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ts := time.Now()
			next.ServeHTTP(ww, r)

			route := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.Requests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			metrics.RequestDurations.WithLabelValues(route).Observe(time.Since(ts).Seconds())
		})
	}
}
