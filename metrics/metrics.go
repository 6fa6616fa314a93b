package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what happens to every line read from the decoder
type Metrics struct {
	LinesRead        prometheus.Counter
	DecodeFailures   prometheus.Counter
	Accepted         prometheus.Counter
	Throttled        prometheus.Counter
	PersistFailures  prometheus.Counter
	DispatchFailures prometheus.Counter
	HeaderDrift      prometheus.Counter
	SensorsTracked   prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdrweather_lines_read_total",
			Help: "Lines read from the decoder stream.",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdrweather_decode_failures_total",
			Help: "Lines that were not sensor events.",
		}),
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdrweather_events_accepted_total",
			Help: "Events that passed the per-sensor throttle.",
		}),
		Throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdrweather_events_throttled_total",
			Help: "Events dropped as retransmissions inside the throttle interval.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdrweather_persist_failures_total",
			Help: "Accepted events that at least one storage backend failed to store.",
		}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdrweather_dispatch_failures_total",
			Help: "Readings a notification dispatcher failed to deliver.",
		}),
		HeaderDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdrweather_header_drift_total",
			Help: "Rows whose field set differed from their sensor log header.",
		}),
		SensorsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sdrweather_sensors_tracked",
			Help: "Distinct sensors seen since start.",
		}),
	}

	reg.MustRegister(
		m.LinesRead,
		m.DecodeFailures,
		m.Accepted,
		m.Throttled,
		m.PersistFailures,
		m.DispatchFailures,
		m.HeaderDrift,
		m.SensorsTracked,
	)
	return m
}
