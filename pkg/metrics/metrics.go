// Package metrics exposes Prometheus collectors for the relay service.
//
// Collectors are registered on a private registry so several instances can
// coexist in one process (tests, multiple devices). Handler serves that
// registry in the Prometheus text format.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartrelay/relay-go/pkg/wire"
)

const namespace = "smartrelay"

// Metrics holds the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	commands      *prometheus.CounterVec
	commandTime   *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	ticks         *prometheus.CounterVec
	connections   *prometheus.GaugeVec
	httpRequests  *prometheus.CounterVec
	uptime        prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Commands handled by method and result code.",
			},
			[]string{"method", "code"},
		),
		commandTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Time spent handling a command.",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"method"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notifications emitted by method.",
			},
			[]string{"method"},
		),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Dirty ticker checks by outcome.",
			},
			[]string{"outcome"},
		),
		connections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections",
				Help:      "Open controller connections by transport.",
			},
			[]string{"transport"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		uptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Device uptime as reported in sys.uptime.",
			},
		),
	}

	m.registry.MustRegister(
		m.commands,
		m.commandTime,
		m.notifications,
		m.ticks,
		m.connections,
		m.httpRequests,
		m.uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCommand records one handled command.
func (m *Metrics) ObserveCommand(method string, code wire.ErrorCode, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(method, code.String()).Inc()
	m.commandTime.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveNotification records one emitted notification.
func (m *Metrics) ObserveNotification(method string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(method).Inc()
}

// Tick outcomes.
const (
	TickReported = "reported"
	TickIdle     = "idle"
	TickFailed   = "failed"
)

// ObserveTick records one ticker check.
func (m *Metrics) ObserveTick(outcome string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
}

// ConnectionOpened increments the open connection gauge for transport.
func (m *Metrics) ConnectionOpened(transport string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(transport).Inc()
}

// ConnectionClosed decrements the open connection gauge for transport.
func (m *Metrics) ConnectionClosed(transport string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(transport).Dec()
}

// SetUptime records the current uptime in seconds.
func (m *Metrics) SetUptime(seconds int64) {
	if m == nil {
		return
	}
	m.uptime.Set(float64(seconds))
}

// Middleware counts HTTP requests by route pattern.
// route extracts the route label from the request after it was served.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			m.httpRequests.WithLabelValues(route(r), r.Method, strconv.Itoa(rw.status)).Inc()
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes connection takeover through for WebSocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
