package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are registered on a per-server registry so tests and embedded
// servers never collide on the global one.
type metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	streamEvents    *prometheus.CounterVec
	streams         *prometheus.CounterVec
	activeStreams   prometheus.Gauge
	droppedTurns    prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_rpc_requests_total",
			Help: "RPC requests by route and response status.",
		}, []string{"route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_rpc_request_duration_seconds",
			Help:    "Time until the RPC handler returned. Streams are timed to their first byte.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		streamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_stream_events_total",
			Help: "Dify events relayed to clients by event type.",
		}, []string{"event"}),
		streams: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_streams_total",
			Help: "Finished streams by outcome.",
		}, []string{"outcome"}),
		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_streams",
			Help: "Streams currently being relayed.",
		}),
		droppedTurns: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_turns_dropped_total",
			Help: "Turns not persisted because the worker queue was full.",
		}),
	}
}

// middleware records every request once its handler returns.
func (m *metrics) middleware(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	route := c.Route().Path
	m.requests.WithLabelValues(route, strconv.Itoa(c.Response().StatusCode())).Inc()
	m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

	return err
}
