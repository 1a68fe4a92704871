// Package metric gathers prometheus metrics for the hub.
package metric

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric holds the hub's prometheus collectors.
type Metric struct {
	serviceTiming   *prometheus.SummaryVec
	errorCounter    *prometheus.CounterVec
	dispatchCounter *prometheus.CounterVec
}

// New creates, registers and returns the hub's metric collectors.
func New(appID string) *Metric {
	r := strings.NewReplacer(
		"-", "_",
		" ", "_")
	serviceName := r.Replace(appID)

	m := &Metric{
		serviceTiming: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "service_timing",
				Help: fmt.Sprintf("%s timing", serviceName),
			},
			[]string{fmt.Sprintf("%s_service", serviceName)},
		),
		errorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "error_counter",
				Help: fmt.Sprintf("%s error counter", serviceName),
			},
			[]string{fmt.Sprintf("%s_error", serviceName)},
		),
		dispatchCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_counter",
				Help: fmt.Sprintf("%s device command dispatch counter", serviceName),
			},
			[]string{"capability", "outcome"},
		),
	}

	prometheus.MustRegister(m.serviceTiming)
	prometheus.MustRegister(m.errorCounter)
	prometheus.MustRegister(m.dispatchCounter)

	return m
}

// ErrorCounter increments the error counter for the given label.
func (m *Metric) ErrorCounter(label string) {
	m.errorCounter.
		WithLabelValues(label).
		Inc()
}

// DispatchCounter counts dispatched device commands per capability and outcome.
func (m *Metric) DispatchCounter(capability, outcome string) {
	m.dispatchCounter.
		WithLabelValues(capability, outcome).
		Inc()
}

// Timing observes the duration since start for the given label.
func (m *Metric) Timing(start time.Time, label string) {
	m.serviceTiming.
		WithLabelValues(label).
		Observe(time.Since(start).Seconds())
}

// TimeTracker is a middleware tracking handler timing.
func (m *Metric) TimeTracker(next http.HandlerFunc, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		m.Timing(start, name)
	}
}

// RouterHandlerHTTP exposes the prometheus scrape handler.
func (m *Metric) RouterHandlerHTTP() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	}
}
