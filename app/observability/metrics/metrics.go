package metrics

import (
	"log"
	"net/http"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the shared metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal       metric.Int64Counter
	HTTPRequestDurationSecs metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments from the global meter provider.
// Safe to call more than once.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("aulaplan")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDurationSecs, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		appMetrics = m
	})
}

// Observe is a middleware recording request counts and latency per
// method and status class.
func Observe() func(next http.Handler) http.Handler {
	InitAppMetrics()
	m := appMetrics
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.Int("status", ww.Status()),
			)
			m.HTTPRequestsTotal.Add(r.Context(), 1, attrs)
			m.HTTPRequestDurationSecs.Record(r.Context(), time.Since(start).Seconds(), attrs)
		})
	}
}
