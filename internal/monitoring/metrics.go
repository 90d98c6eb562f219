package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/calcapi/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calcapi_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calcapi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calcapi_auth_attempts_total",
			Help: "Total register and login attempts by outcome",
		},
		[]string{"event", "success"},
	)
	calculationsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calcapi_calculations_total",
			Help: "Calculations evaluated on create or update, by type and outcome",
		},
		[]string{"type", "outcome"},
	)
	usersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calcapi_users",
			Help: "Registered users",
		},
	)
	calculationsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calcapi_calculations",
			Help: "Stored calculations by type",
		},
		[]string{"type"},
	)
)

// Middleware records request count and duration. Routes are labelled with
// the matched chi pattern so path parameters don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := strconv.Itoa(ww.Status())
		route := routePattern(r)
		httpRequests.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAuthAttempt records a register or login attempt.
func RecordAuthAttempt(event string, success bool) {
	authAttempts.WithLabelValues(event, strconv.FormatBool(success)).Inc()
}

// RecordCalculation records one evaluation. Types that don't parse are
// grouped under "unknown".
func RecordCalculation(calcType, outcome string) {
	label := "unknown"
	if t, err := models.ParseCalculationType(calcType); err == nil {
		label = string(t)
	}
	calculationsEvaluated.WithLabelValues(label, outcome).Inc()
}
