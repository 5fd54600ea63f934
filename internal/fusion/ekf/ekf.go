// Package ekf implements the 4-state constant-velocity Kalman filter
// at the heart of the fusion core: state x = [lat, lon, vlat, vlon] in
// degrees and deg/s, with innovation gating on each measurement
// update.
//
// The matrix work mirrors Valkyrie/internal/fusion's use of
// gonum.org/v1/gonum/mat, cut down from that filter's 15-state
// attitude/position model to this one's 4-state position/velocity
// model.
package ekf

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/asgard/vps-core/internal/geodesy"
	"github.com/asgard/vps-core/pkg/logging"
)

// Config holds the tunable parameters of the filter. Units: ProcessNoise
// and MeasurementNoise are expressed in deg^2 (and deg^2/s-powers for
// the velocity terms of the process noise) -- NOT meters or m/s. A
// caller substituting their own values must keep that unit system; do
// not silently mix meters and degrees here.
type Config struct {
	ProcessNoise     float64
	MeasurementNoise float64
	GateThreshold    float64
	MaxGapSeconds    float64
}

// DefaultConfig returns the default tuning used when a caller does not
// override it.
func DefaultConfig() Config {
	return Config{
		ProcessNoise:     1e-10,
		MeasurementNoise: 1e-8,
		GateThreshold:    5.0,
		MaxGapSeconds:    30.0,
	}
}

// WithDefaults backfills zero-valued fields with DefaultConfig values,
// the same constructor-side defaulting convention used by
// Valkyrie/internal/failsafe.NewEmergencySystem and
// internal/orbital/hal.NewSpaceGPSController.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ProcessNoise == 0 {
		c.ProcessNoise = d.ProcessNoise
	}
	if c.MeasurementNoise == 0 {
		c.MeasurementNoise = d.MeasurementNoise
	}
	if c.GateThreshold == 0 {
		c.GateThreshold = d.GateThreshold
	}
	if c.MaxGapSeconds == 0 {
		c.MaxGapSeconds = d.MaxGapSeconds
	}
	return c
}

// Filter is the 4-state EKF: x = [lat, lon, vlat, vlon].
type Filter struct {
	config      Config
	logger      *logrus.Logger
	x           *mat.VecDense
	p           *mat.Dense
	lastT       float64
	initialized bool
	lastGate    float64
}

// New creates an uninitialized filter with the given config and
// logger. Pass a nil logger to get a silent, discard-output logger.
func New(config Config, logger *logrus.Logger) *Filter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Filter{
		config: config.WithDefaults(),
		logger: logger,
		x:      mat.NewVecDense(4, nil),
		p:      mat.NewDense(4, 4, nil),
	}
}

// Reset returns the filter to its uninitialized state.
func (f *Filter) Reset() {
	f.x = mat.NewVecDense(4, nil)
	f.p = mat.NewDense(4, 4, nil)
	f.lastT = 0
	f.initialized = false
	f.lastGate = 0
}

// Initialized reports whether the filter has accepted its first fix.
func (f *Filter) Initialized() bool { return f.initialized }

// LastGate returns the Mahalanobis distance computed on the most
// recent update attempt.
func (f *Filter) LastGate() float64 { return f.lastGate }

// Position returns the filter's current (lat, lon) estimate.
func (f *Filter) Position() geodesy.GeoPoint {
	return geodesy.GeoPoint{Lat: f.x.AtVec(0), Lon: f.x.AtVec(1)}
}

// Velocity returns (vlat, vlon) in deg/s.
func (f *Filter) Velocity() (vlat, vlon float64) {
	return f.x.AtVec(2), f.x.AtVec(3)
}

// SpeedMPS returns the ground speed in m/s, converting deg/s velocity
// components using the local meters-per-degree scale.
func (f *Filter) SpeedMPS() float64 {
	const metersPerDegLat = 111320.0
	latRad := f.x.AtVec(0) * math.Pi / 180.0

	vnMps := f.x.AtVec(2) * metersPerDegLat
	veMps := f.x.AtVec(3) * metersPerDegLat * math.Cos(latRad)

	return math.Sqrt(vnMps*vnMps + veMps*veMps)
}

// Predict projects the position forward to time t without committing
// any state change, returning the (0,0) sentinel if the filter is
// uninitialized. Prefer PredictChecked for new call sites; this form
// is kept because the fusion state machine's prediction path consumes
// exactly this sentinel behavior.
func (f *Filter) Predict(t float64) geodesy.GeoPoint {
	if !f.initialized {
		return geodesy.GeoPoint{}
	}
	dt := t - f.lastT
	return geodesy.GeoPoint{
		Lat: f.x.AtVec(0) + f.x.AtVec(2)*dt,
		Lon: f.x.AtVec(1) + f.x.AtVec(3)*dt,
	}
}

// PredictChecked gives callers a genuine uninitialized signal:
// identical math to Predict, but reports validity through ok rather
// than overloading (0,0), which is itself a legitimate GPS point (the
// Gulf of Guinea).
func (f *Filter) PredictChecked(t float64) (p geodesy.GeoPoint, ok bool) {
	if !f.initialized {
		return geodesy.GeoPoint{}, false
	}
	return f.Predict(t), true
}

// Update feeds the filter a new measurement z with uncertainty hdop at
// time t. It returns accepted=true when the measurement corrected the
// state or (re)initialized it (the very first measurement, and the
// measurement that follows a gap longer than MaxGapSeconds, which
// resets the filter and reinitializes it from z), and false when the
// update was rejected (out-of-order, gated out, or a degenerate
// innovation covariance).
func (f *Filter) Update(z geodesy.GeoPoint, hdop float64, t float64) (accepted bool) {
	if !f.initialized {
		f.initializeWith(z, t)
		return true
	}

	dt := t - f.lastT
	if dt < 0 {
		f.logger.WithFields(logrus.Fields{"dt": dt}).Warn("ekf: rejecting out-of-order measurement")
		return false
	}

	if dt > f.config.MaxGapSeconds {
		f.logger.WithFields(logrus.Fields{"dt": dt, "max_gap_s": f.config.MaxGapSeconds}).
			Warn("ekf: gap exceeds max_gap_s, resetting and reinitializing")
		f.Reset()
		f.initializeWith(z, t)
		return true
	}

	return f.predictAndUpdate(z, hdop, t, dt)
}

func (f *Filter) initializeWith(z geodesy.GeoPoint, t float64) {
	f.x = mat.NewVecDense(4, []float64{z.Lat, z.Lon, 0, 0})
	f.p = mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		f.p.Set(i, i, 1e-6)
	}
	f.lastT = t
	f.initialized = true
	f.lastGate = 0
}

func (f *Filter) predictAndUpdate(z geodesy.GeoPoint, hdop float64, t, dt float64) bool {
	q := f.config.ProcessNoise

	F := mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	Q := mat.NewDense(4, 4, nil)
	Q.Set(0, 0, q*math.Pow(dt, 4)/4)
	Q.Set(1, 1, q*math.Pow(dt, 4)/4)
	Q.Set(2, 2, q*dt*dt)
	Q.Set(3, 3, q*dt*dt)
	Q.Set(0, 2, q*math.Pow(dt, 3)/2)
	Q.Set(2, 0, q*math.Pow(dt, 3)/2)
	Q.Set(1, 3, q*math.Pow(dt, 3)/2)
	Q.Set(3, 1, q*math.Pow(dt, 3)/2)

	var xPred mat.VecDense
	xPred.MulVec(F, f.x)

	var fp mat.Dense
	fp.Mul(F, f.p)
	var pPred mat.Dense
	pPred.Mul(&fp, F.T())
	pPred.Add(&pPred, Q)

	f.lastT = t

	// Innovation covariance S = P_pred[0:2,0:2] + R*I2
	r := f.config.MeasurementNoise * hdop * hdop
	s00 := pPred.At(0, 0) + r
	s01 := pPred.At(0, 1)
	s10 := pPred.At(1, 0)
	s11 := pPred.At(1, 1) + r

	det := s00*s11 - s01*s10
	if math.Abs(det) < 1e-30 {
		f.logger.Warn("ekf: degenerate innovation covariance, committing predicted state only")
		f.x = &xPred
		f.p = &pPred
		return false
	}

	y0 := z.Lat - xPred.AtVec(0)
	y1 := z.Lon - xPred.AtVec(1)

	// S^-1 (2x2 closed form) and Mahalanobis distance d = sqrt(y^T S^-1 y)
	sInv00 := s11 / det
	sInv01 := -s01 / det
	sInv10 := -s10 / det
	sInv11 := s00 / det

	mdSq := y0*(sInv00*y0+sInv01*y1) + y1*(sInv10*y0+sInv11*y1)
	if mdSq < 0 {
		mdSq = 0
	}
	d := math.Sqrt(mdSq)
	f.lastGate = d

	if d > f.config.GateThreshold {
		f.logger.WithFields(logrus.Fields{"mahalanobis": d, "gate_threshold": f.config.GateThreshold}).
			Info("ekf: measurement gated out as outlier")
		f.x = &xPred
		f.p = &pPred
		return false
	}

	// Kalman gain K = P_pred * H^T * S^-1, H selects [lat,lon].
	k00 := pPred.At(0, 0)*sInv00 + pPred.At(0, 1)*sInv10
	k01 := pPred.At(0, 0)*sInv01 + pPred.At(0, 1)*sInv11
	k10 := pPred.At(1, 0)*sInv00 + pPred.At(1, 1)*sInv10
	k11 := pPred.At(1, 0)*sInv01 + pPred.At(1, 1)*sInv11
	k20 := pPred.At(2, 0)*sInv00 + pPred.At(2, 1)*sInv10
	k21 := pPred.At(2, 0)*sInv01 + pPred.At(2, 1)*sInv11
	k30 := pPred.At(3, 0)*sInv00 + pPred.At(3, 1)*sInv10
	k31 := pPred.At(3, 0)*sInv01 + pPred.At(3, 1)*sInv11

	xNew := mat.NewVecDense(4, []float64{
		xPred.AtVec(0) + k00*y0 + k01*y1,
		xPred.AtVec(1) + k10*y0 + k11*y1,
		xPred.AtVec(2) + k20*y0 + k21*y1,
		xPred.AtVec(3) + k30*y0 + k31*y1,
	})

	// P = (I - K*H) * P_pred, H = [[1,0,0,0],[0,1,0,0]]
	kh := mat.NewDense(4, 4, nil)
	khRows := [4][2]float64{{k00, k01}, {k10, k11}, {k20, k21}, {k30, k31}}
	for i := 0; i < 4; i++ {
		kh.Set(i, 0, khRows[i][0])
		kh.Set(i, 1, khRows[i][1])
	}

	ident := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		ident.Set(i, i, 1)
	}

	var imKH mat.Dense
	imKH.Sub(ident, kh)

	var pNew mat.Dense
	pNew.Mul(&imKH, &pPred)

	// Symmetrize to guard against floating-point drift away from a
	// valid covariance matrix.
	var pSym mat.Dense
	pSym.Add(&pNew, pNew.T())
	pSym.Scale(0.5, &pSym)

	f.x = xNew
	f.p = &pSym

	return true
}
