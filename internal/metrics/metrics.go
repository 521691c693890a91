// Package metrics holds the Prometheus collectors shared by the engine,
// the reminder scheduler and the HTTP server.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fintrack/internal/repo"
)

const namespace = "fintrack"

// Collectors is registered on its own registry so tests can create as many
// as they like. A nil *Collectors records nothing.
type Collectors struct {
	Registry *prometheus.Registry

	Settlements      *prometheus.CounterVec
	Normalized       prometheus.Counter
	Reminders        *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

func New() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement operations by kind and result.",
		}, []string{"op", "result"}),
		Normalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalized_obligations_total",
			Help:      "Recurring obligations rolled forward by normalization.",
		}),
		Reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Reminder deliveries by class and outcome.",
		}, []string{"class", "outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reminder_dispatch_seconds",
			Help:      "Time spent scanning and delivering one reminder class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.Settlements,
		c.Normalized,
		c.Reminders,
		c.DispatchDuration,
		c.Requests,
		c.RequestDuration,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{Registry: c.Registry})
}

// ObserveSettlement counts one pay, skip, delete or create call.
func (c *Collectors) ObserveSettlement(op string, err error) {
	if c == nil {
		return
	}
	c.Settlements.WithLabelValues(op, result(err)).Inc()
}

func (c *Collectors) ObserveNormalized(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Normalized.Add(float64(n))
}

// ObserveDispatch records the outcome of one reminder class run.
func (c *Collectors) ObserveDispatch(class string, delivered, failed int, took time.Duration) {
	if c == nil {
		return
	}
	c.Reminders.WithLabelValues(class, "delivered").Add(float64(delivered))
	c.Reminders.WithLabelValues(class, "failed").Add(float64(failed))
	c.DispatchDuration.WithLabelValues(class).Observe(took.Seconds())
}

func (c *Collectors) ObserveRequest(method, route string, status int, took time.Duration) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repo.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
