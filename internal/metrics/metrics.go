package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the agent's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	jobsReceived     prometheus.Counter
	jobsRejected     *prometheus.CounterVec
	jobsReported     *prometheus.CounterVec
	legs             *prometheus.CounterVec
	deviceRetries    prometheus.Counter
	documentMethods  *prometheus.CounterVec
	legLatency       *prometheus.HistogramVec
	deviceQueueDepth prometheus.Gauge
	supervisorState  prometheus.Gauge
	reconnects       prometheus.Counter
	registrations    *prometheus.CounterVec
	outboxDepth      prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		jobsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "print_agent_jobs_received_total",
			Help: "Total number of print_job events received",
		}),
		jobsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "print_agent_jobs_rejected_total",
			Help: "Jobs rejected before delivery, by reason",
		}, []string{"reason"}),
		jobsReported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "print_agent_jobs_reported_total",
			Help: "Result events produced, by outcome",
		}, []string{"outcome"}),
		legs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "print_agent_legs_total",
			Help: "Delivery legs attempted, by channel and outcome",
		}, []string{"channel", "outcome"}),
		deviceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "print_agent_device_retries_total",
			Help: "Reconnect-and-retry attempts on the device channel",
		}),
		documentMethods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "print_agent_document_method_total",
			Help: "Successful document deliveries, by mechanism",
		}, []string{"method"}),
		legLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "print_agent_leg_duration_seconds",
			Help:    "Delivery leg duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		deviceQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "print_agent_device_queue_depth",
			Help: "Jobs waiting for the device channel",
		}),
		supervisorState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "print_agent_connection_state",
			Help: "Connection state: 0 disconnected, 1 connecting, 2 registering, 3 active",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "print_agent_reconnects_total",
			Help: "Server reconnect attempts",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "print_agent_registrations_total",
			Help: "Registration attempts, by result",
		}, []string{"result"}),
		outboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "print_agent_outbox_depth",
			Help: "Result events waiting for an active connection",
		}),
	}

	c.registry.MustRegister(
		c.jobsReceived,
		c.jobsRejected,
		c.jobsReported,
		c.legs,
		c.deviceRetries,
		c.documentMethods,
		c.legLatency,
		c.deviceQueueDepth,
		c.supervisorState,
		c.reconnects,
		c.registrations,
		c.outboxDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordReceived() {
	c.jobsReceived.Inc()
}

func (c *Collector) RecordRejected(reason string) {
	c.jobsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordReported(success bool) {
	c.jobsReported.WithLabelValues(outcome(success)).Inc()
}

func (c *Collector) RecordLeg(channel string, success bool, seconds float64) {
	c.legs.WithLabelValues(channel, outcome(success)).Inc()
	c.legLatency.WithLabelValues(channel).Observe(seconds)
}

func (c *Collector) RecordDeviceRetry() {
	c.deviceRetries.Inc()
}

func (c *Collector) RecordDocumentMethod(method string) {
	c.documentMethods.WithLabelValues(method).Inc()
}

func (c *Collector) SetDeviceQueueDepth(n int) {
	c.deviceQueueDepth.Set(float64(n))
}

func (c *Collector) SetConnectionState(state int) {
	c.supervisorState.Set(float64(state))
}

func (c *Collector) RecordReconnect() {
	c.reconnects.Inc()
}

func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

func (c *Collector) SetOutboxDepth(n int) {
	c.outboxDepth.Set(float64(n))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
