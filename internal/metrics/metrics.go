package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery paths.
const (
	PathDisplay = "display"
	PathMessage = "message"
	PathLaunch  = "launch"
)

// Suppression reasons.
const (
	ReasonPassDebounced    = "pass_debounced"
	ReasonMedicineFloor    = "medicine_floor"
	ReasonDisplayDuplicate = "display_duplicate"
	ReasonPermissionDenied = "permission_denied"
	ReasonMessageDebounced = "message_debounced"
	ReasonLaunchDebounced  = "launch_debounced"
	ReasonSoundDuplicate   = "sound_duplicate"
	ReasonDeliveryFailed   = "delivery_failed"
	ReasonInvalidTime      = "invalid_time"
)

// Metrics is nil-safe; a nil *Metrics records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	passes     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	schedules  prometheus.Gauge
	surfaces   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medremind",
			Name:      "scheduler_passes_total",
			Help:      "Scheduler passes by execution context and outcome.",
		}, []string{"context", "outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medremind",
			Name:      "deliveries_total",
			Help:      "Reminder delivery attempts that reached the user, by path.",
		}, []string{"path"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medremind",
			Name:      "suppressed_total",
			Help:      "Reminder work skipped, by reason.",
		}, []string{"reason"}),
		schedules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "medremind",
			Name:      "schedules",
			Help:      "Schedules seen by the last scheduler pass.",
		}),
		surfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "medremind",
			Name:      "connected_surfaces",
			Help:      "Foreground surfaces connected to the daemon.",
		}),
	}
	reg.MustRegister(m.passes, m.deliveries, m.suppressed, m.schedules, m.surfaces)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Pass(context, outcome string) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(context, outcome).Inc()
}

func (m *Metrics) Delivered(path string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(path).Inc()
}

func (m *Metrics) Suppressed(reason string) {
	if m == nil {
		return
	}
	m.suppressed.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetSchedules(n int) {
	if m == nil {
		return
	}
	m.schedules.Set(float64(n))
}

func (m *Metrics) SetSurfaces(n int) {
	if m == nil {
		return
	}
	m.surfaces.Set(float64(n))
}

// Counters exposes the collectors for assertions in tests.
func (m *Metrics) Counters() (passes, deliveries, suppressed *prometheus.CounterVec) {
	return m.passes, m.deliveries, m.suppressed
}
