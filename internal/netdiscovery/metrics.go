package netdiscovery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "netdiscovery"

// Metrics holds the Prometheus collectors the scheduler and transport layer
// update as jobs run. Unlike a package-global singleton, the caller supplies
// the registry — letting an embedding process mount these alongside its own
// metrics rather than fighting over prometheus.DefaultRegisterer.
type Metrics struct {
	jobsStarted   prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsAborted   prometheus.Counter

	devicesReported *prometheus.CounterVec
	inFlight        *prometheus.GaugeVec

	probeDuration *prometheus.HistogramVec
	sendErrors    prometheus.Counter
}

// NewMetrics creates and registers a Metrics instance against reg. reg must
// not be nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "started_total",
			Help:      "Total number of jobs that received a START message.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "completed_total",
			Help:      "Total number of jobs that ran to normal completion (END).",
		}),
		jobsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "aborted_total",
			Help:      "Total number of jobs torn down via EXIT instead of END.",
		}),
		devicesReported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "devices",
			Name:      "reported_total",
			Help:      "Total number of DEVICE messages emitted, by job.",
		}, []string{"job"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Number of addresses currently dispatched to a worker, by job.",
		}, []string{"job"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Duration of one probe invocation, by probe kind.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"probe"}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "transport",
			Name:      "send_errors_total",
			Help:      "Total number of lifecycle messages that failed to send.",
		}),
	}

	reg.MustRegister(
		m.jobsStarted, m.jobsCompleted, m.jobsAborted,
		m.devicesReported, m.inFlight, m.probeDuration, m.sendErrors,
	)
	return m
}

func (m *Metrics) JobStarted()   { m.jobsStarted.Inc() }
func (m *Metrics) JobCompleted() { m.jobsCompleted.Inc() }
func (m *Metrics) JobAborted()   { m.jobsAborted.Inc() }

func (m *Metrics) DeviceReported(job string) { m.devicesReported.WithLabelValues(job).Inc() }

func (m *Metrics) SetInFlight(job string, n int) { m.inFlight.WithLabelValues(job).Set(float64(n)) }

func (m *Metrics) ObserveProbeDuration(probe string, d time.Duration) {
	m.probeDuration.WithLabelValues(probe).Observe(d.Seconds())
}

func (m *Metrics) SendError() { m.sendErrors.Inc() }
