// Package fusion composes the EKF, dead-reckoning extrapolator, and
// geofence into the single source-selection state machine the host
// ticks once per cycle.
package fusion

import (
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asgard/vps-core/internal/fusion/deadreckoning"
	"github.com/asgard/vps-core/internal/fusion/ekf"
	"github.com/asgard/vps-core/internal/geodesy"
	"github.com/asgard/vps-core/internal/geofence"
	"github.com/asgard/vps-core/internal/metrics"
	"github.com/asgard/vps-core/pkg/logging"
)

// FixSource identifies which estimator produced a tick's position.
type FixSource int

const (
	SourceNone FixSource = iota
	SourceVisual
	SourceEkfPredict
	SourceDeadReckoning
)

func (s FixSource) String() string {
	switch s {
	case SourceVisual:
		return "visual"
	case SourceEkfPredict:
		return "ekf_predict"
	case SourceDeadReckoning:
		return "dead_reckoning"
	default:
		return "none"
	}
}

// FixQuality is the dimensionless quality number reported downstream
// in the NMEA fix-quality field.
type FixQuality int

const (
	QualityNone FixQuality = iota
	QualityVisual
	QualityEkf
	QualityDr
)

// noFixHDOP is the placeholder HDOP reported when there is no
// position at all.
const noFixHDOP = 99.0

// predictHDOP is the fixed HDOP assigned to EKF-predicted (uncorrected)
// positions -- there is no fresh measurement to derive an uncertainty
// from, so a conservative constant stands in.
const predictHDOP = 3.0

// headingFloorMPS is the ground-speed threshold below which heading is
// reported as zero rather than held from a prior tick.
const headingFloorMPS = 0.5

// FusionOutput is the per-tick result the host hands to the NMEA and
// MSP encoders.
type FusionOutput struct {
	Position    geodesy.GeoPoint
	HDOP        float64
	SpeedMPS    float64
	HeadingDeg  float64
	FixQuality  FixQuality
	Source      FixSource
	GeofenceOK  bool
	EkfAccepted bool
	HasPosition bool
}

// FixRecord is a richer, opt-in diagnostic snapshot of a tick beyond
// the minimal FusionOutput contract: a correlation ID for cross-system
// log/metric joins, the raw Mahalanobis distance from the EKF gate,
// which branch of the state machine fired, and the geofence's signed
// distance to the boundary.
type FixRecord struct {
	TickID           uuid.UUID
	Output           FusionOutput
	MahalanobisGate  float64
	GeofenceDistance float64
}

// Fusion owns the EKF, the dead-reckoning state, and a read-only
// reference to an optional geofence.
type Fusion struct {
	logger *logrus.Logger

	filter *ekf.Filter
	dr     *deadreckoning.State
	fence  *geofence.Geofence

	lastRecord FixRecord
}

// New constructs a Fusion instance. fence may be nil to disable
// geofence masking. A nil logger yields a silent, discard-output
// logger, matching ekf.New's convention.
func New(ekfConfig ekf.Config, drConfig deadreckoning.Config, fence *geofence.Geofence, logger *logrus.Logger) *Fusion {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Fusion{
		logger: logger,
		filter: ekf.New(ekfConfig, logger),
		dr:     deadreckoning.New(drConfig),
		fence:  fence,
	}
}

// Reset clears both the EKF and the dead-reckoning anchor, preserving
// the dead-reckoning configuration.
func (f *Fusion) Reset() {
	f.filter.Reset()
	f.dr.Clear()
	metrics.RecordReset()
}

// LastDiagnostic returns the richer snapshot of the most recently
// processed tick.
func (f *Fusion) LastDiagnostic() FixRecord { return f.lastRecord }

// Update runs one fusion tick: it feeds an optional visual fix to the
// EKF, falls back through EKF prediction and dead reckoning when no
// fresh visual fix is available, applies the geofence mask, and
// computes kinematics.
func (f *Fusion) Update(visual *geodesy.GeoPoint, hdop, t float64) FusionOutput {
	out := FusionOutput{HDOP: noFixHDOP, FixQuality: QualityNone, Source: SourceNone}
	tickID := uuid.New()

	var gate float64

	switch {
	case visual != nil:
		accepted := f.filter.Update(*visual, hdop, t)
		out.EkfAccepted = accepted
		gate = f.filter.LastGate()

		if f.filter.Initialized() {
			out.Position = f.filter.Position()
			out.HDOP = hdop
			out.Source = SourceVisual
			out.FixQuality = QualityVisual
			out.HasPosition = true

			vlat, vlon := f.filter.Velocity()
			vnMPS, veMPS := degPerSecToMPS(vlat, vlon, out.Position.Lat)
			f.dr.UpdateRef(out.Position, vnMPS, veMPS, hdop, t)
		}

		if !accepted {
			metrics.RecordGateRejection("rejected")
		}

	case f.filter.Initialized():
		pred := f.filter.Predict(t)
		if pred != (geodesy.GeoPoint{}) {
			out.Position = pred
			out.HDOP = predictHDOP
			out.Source = SourceEkfPredict
			out.FixQuality = QualityEkf
			out.HasPosition = true
		} else if pos, drHDOP, ok := f.dr.Extrapolate(t); ok {
			out.Position = pos
			out.HDOP = drHDOP
			out.Source = SourceDeadReckoning
			out.FixQuality = QualityDr
			out.HasPosition = true
		}

	default:
		if pos, drHDOP, ok := f.dr.Extrapolate(t); ok {
			out.Position = pos
			out.HDOP = drHDOP
			out.Source = SourceDeadReckoning
			out.FixQuality = QualityDr
			out.HasPosition = true
		}
	}

	geofenceDistance := 0.0
	if out.HasPosition && f.fence != nil {
		geofenceDistance = f.fence.Distance(out.Position)
		out.GeofenceOK = f.fence.Contains(out.Position)
		if !out.GeofenceOK {
			out.HasPosition = false
			out.FixQuality = QualityNone
			out.Source = SourceNone
			metrics.RecordGeofenceVeto()
		}
	} else {
		out.GeofenceOK = true
	}

	if f.filter.Initialized() {
		out.SpeedMPS = f.filter.SpeedMPS()
		if out.SpeedMPS > headingFloorMPS {
			vlat, vlon := f.filter.Velocity()
			vnMPS, veMPS := degPerSecToMPS(vlat, vlon, f.filter.Position().Lat)
			heading := math.Atan2(veMPS, vnMPS) * 180.0 / math.Pi
			out.HeadingDeg = math.Mod(heading+360.0, 360.0)
		}
	}

	metrics.Observe(int(out.FixQuality), out.HDOP, out.SpeedMPS)

	f.lastRecord = FixRecord{
		TickID:           tickID,
		Output:           out,
		MahalanobisGate:  gate,
		GeofenceDistance: geofenceDistance,
	}

	return out
}

// degPerSecToMPS converts deg/s velocity components to north/east m/s
// at the given latitude, the same scaling ekf.Filter.SpeedMPS uses
// internally.
func degPerSecToMPS(vlat, vlon, lat float64) (vnMPS, veMPS float64) {
	const metersPerDegLat = 111320.0
	latRad := lat * math.Pi / 180.0
	return vlat * metersPerDegLat, vlon * metersPerDegLat * math.Cos(latRad)
}
