package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	ledgerWarnings  *prometheus.CounterVec
	vehicleExits    *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkyard_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parkyard_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkyard_cash_session_transitions_total",
		Help: "Cash session transitions by name and outcome.",
	}, []string{"transition", "outcome"})
	warnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkyard_ledger_integrity_warnings_total",
		Help: "Ledger aggregations that found transactions with unrecognized payment methods.",
	}, []string{"type"})
	exits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkyard_vehicle_exits_total",
		Help: "Committed vehicle exits by payment method.",
	}, []string{"payment_method"})
	registry.MustRegister(requests, duration, transitions, warnings, exits)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		transitions:     transitions,
		ledgerWarnings:  warnings,
		vehicleExits:    exits,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveTransition counts a cash session transition attempt.
func (m *Metrics) ObserveTransition(transition string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.transitions.WithLabelValues(transition, outcome).Inc()
}

// ObserveLedgerWarnings counts integrity warnings raised during aggregation.
func (m *Metrics) ObserveLedgerWarnings(txType string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ledgerWarnings.WithLabelValues(txType).Add(float64(count))
}

// ObserveVehicleExit counts a committed exit.
func (m *Metrics) ObserveVehicleExit(paymentMethod string) {
	if m == nil {
		return
	}
	m.vehicleExits.WithLabelValues(paymentMethod).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
