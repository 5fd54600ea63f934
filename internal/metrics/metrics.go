// Package metrics instruments the fusion loop for observability only;
// nothing in the fusion core reads these values back. Mirrors the
// namespaced Metrics-struct-plus-singleton pattern used for ASGARD's
// own subsystem metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the fusion core exposes.
type Metrics struct {
	GateRejections   *prometheus.CounterVec
	Resets           prometheus.Counter
	GeofenceVetoes   prometheus.Counter
	FixQuality       prometheus.Gauge
	CurrentHDOP      prometheus.Gauge
	CurrentSpeedMPS  prometheus.Gauge
	UpdateLatencySec prometheus.Histogram
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// GetMetrics returns the process-wide fusion metrics instance,
// registering its collectors on first use.
func GetMetrics() *Metrics {
	globalOnce.Do(func() {
		global = newMetrics()
	})
	return global
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.GateRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vpscore",
			Subsystem: "ekf",
			Name:      "gate_rejections_total",
			Help:      "Visual fixes the EKF did not accept (out-of-order, gated out, or degenerate covariance), by reason label",
		},
		[]string{"reason"},
	)

	m.Resets = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vpscore",
			Subsystem: "ekf",
			Name:      "resets_total",
			Help:      "Times the fusion engine was explicitly reset (EKF and dead reckoning cleared)",
		},
	)

	m.GeofenceVetoes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vpscore",
			Subsystem: "geofence",
			Name:      "vetoes_total",
			Help:      "Fusion outputs invalidated by the geofence mask",
		},
	)

	m.FixQuality = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vpscore",
			Subsystem: "fusion",
			Name:      "fix_quality",
			Help:      "Current fix quality: 0=none, 1=visual, 2=ekf, 3=dr",
		},
	)

	m.CurrentHDOP = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vpscore",
			Subsystem: "fusion",
			Name:      "hdop",
			Help:      "Current reported HDOP",
		},
	)

	m.CurrentSpeedMPS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vpscore",
			Subsystem: "fusion",
			Name:      "speed_mps",
			Help:      "Current ground speed estimate in meters per second",
		},
	)

	m.UpdateLatencySec = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vpscore",
			Subsystem: "fusion",
			Name:      "update_duration_seconds",
			Help:      "Wall-clock time spent in a single Fusion.Update call",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
	)

	return m
}

// RecordGateRejection increments the rejection counter for the given
// reason label. The fusion loop uses the single label "rejected" for
// every visual fix the EKF did not accept.
func RecordGateRejection(reason string) {
	GetMetrics().GateRejections.WithLabelValues(reason).Inc()
}

// RecordReset increments the reset counter. It is called by
// Fusion.Reset; the EKF's own gap-triggered reset is not counted.
func RecordReset() {
	GetMetrics().Resets.Inc()
}

// RecordGeofenceVeto increments the geofence veto counter.
func RecordGeofenceVeto() {
	GetMetrics().GeofenceVetoes.Inc()
}

// Observe publishes the current tick's headline numbers to the
// quality/HDOP/speed gauges.
func Observe(fixQuality int, hdop, speedMPS float64) {
	m := GetMetrics()
	m.FixQuality.Set(float64(fixQuality))
	m.CurrentHDOP.Set(hdop)
	m.CurrentSpeedMPS.Set(speedMPS)
}
