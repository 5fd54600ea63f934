package ekf

import (
	"math"
	"testing"

	"github.com/asgard/vps-core/internal/geodesy"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestColdStartInitializes(t *testing.T) {
	f := New(DefaultConfig(), nil)

	z := geodesy.GeoPoint{Lat: 37.0, Lon: -122.0}
	accepted := f.Update(z, 1.0, 0)

	if !accepted {
		t.Fatal("first update should always be accepted")
	}
	if !f.Initialized() {
		t.Fatal("filter should be initialized after first update")
	}

	pos := f.Position()
	if pos != z {
		t.Errorf("position after init = %+v, want %+v", pos, z)
	}
	if f.SpeedMPS() != 0 {
		t.Errorf("speed after init = %v, want 0", f.SpeedMPS())
	}
}

func TestIdempotentInit(t *testing.T) {
	f := New(DefaultConfig(), nil)
	z := geodesy.GeoPoint{Lat: 10.0, Lon: 20.0}

	f.Update(z, 1.0, 0)
	accepted := f.Update(z, 1.0, 0)

	if !accepted {
		t.Fatal("second identical update should be accepted")
	}
	pos := f.Position()
	if !almostEqual(pos.Lat, z.Lat, 1e-9) || !almostEqual(pos.Lon, z.Lon, 1e-9) {
		t.Errorf("position = %+v, want %+v", pos, z)
	}
}

func TestOutOfOrderRejected(t *testing.T) {
	f := New(DefaultConfig(), nil)
	f.Update(geodesy.GeoPoint{Lat: 1, Lon: 1}, 1.0, 5)

	accepted := f.Update(geodesy.GeoPoint{Lat: 1.001, Lon: 1.001}, 1.0, 3)
	if accepted {
		t.Fatal("out-of-order measurement (dt<0) must be rejected")
	}
	if !f.Initialized() {
		t.Fatal("filter should remain initialized after an out-of-order rejection")
	}
}

func TestMovingNorth(t *testing.T) {
	f := New(DefaultConfig(), nil)
	f.Update(geodesy.GeoPoint{Lat: 37.0, Lon: -122.0}, 1.0, 0)

	dLat := 10.0 / 111320.0
	accepted := f.Update(geodesy.GeoPoint{Lat: 37.0 + dLat, Lon: -122.0}, 1.0, 1)

	if !accepted {
		t.Fatal("second consistent measurement should be accepted")
	}

	speed := f.SpeedMPS()
	if speed < 9 || speed > 11 {
		t.Errorf("speed = %v, want in [9,11]", speed)
	}
}

func TestGatingRejectsOutlier(t *testing.T) {
	f := New(DefaultConfig(), nil)
	f.Update(geodesy.GeoPoint{Lat: 37.0, Lon: -122.0}, 1.0, 0)
	dLat := 10.0 / 111320.0
	f.Update(geodesy.GeoPoint{Lat: 37.0 + dLat, Lon: -122.0}, 1.0, 1)

	accepted := f.Update(geodesy.GeoPoint{Lat: 47.0, Lon: -122.0}, 1.0, 2)
	if accepted {
		t.Fatal("gross outlier must be rejected by gating")
	}

	pos := f.Position()
	if !almostEqual(pos.Lat, 37.00018, 1e-3) {
		t.Errorf("predicted (not outlier) position lat = %v, want ~37.00018", pos.Lat)
	}
}

func TestResetOnGap(t *testing.T) {
	f := New(DefaultConfig(), nil)
	f.Update(geodesy.GeoPoint{Lat: 1.0, Lon: 1.0}, 1.0, 0)

	z2 := geodesy.GeoPoint{Lat: 5.0, Lon: 5.0}
	accepted := f.Update(z2, 1.0, 0+DefaultConfig().MaxGapSeconds+1)

	if !accepted {
		t.Fatal("post-gap measurement should be accepted as a fresh init")
	}

	pos := f.Position()
	if pos != z2 {
		t.Errorf("position after gap reset = %+v, want %+v (not a blend)", pos, z2)
	}

	vlat, vlon := f.Velocity()
	if vlat != 0 || vlon != 0 {
		t.Errorf("velocity after gap reset = (%v,%v), want (0,0)", vlat, vlon)
	}
}

func TestPredictUninitializedSentinel(t *testing.T) {
	f := New(DefaultConfig(), nil)

	got := f.Predict(10)
	if got.Lat != 0 || got.Lon != 0 {
		t.Errorf("uninitialized predict = %+v, want (0,0) sentinel", got)
	}

	_, ok := f.PredictChecked(10)
	if ok {
		t.Error("PredictChecked should report ok=false when uninitialized")
	}
}

func TestPredictAfterInit(t *testing.T) {
	f := New(DefaultConfig(), nil)
	f.Update(geodesy.GeoPoint{Lat: 37.0, Lon: -122.0}, 1.0, 0)
	dLat := 10.0 / 111320.0
	f.Update(geodesy.GeoPoint{Lat: 37.0 + dLat, Lon: -122.0}, 1.0, 1)

	pred := f.Predict(3)
	wantLat := 37.0 + 2*10.0/111320.0

	if !almostEqual(pred.Lat, wantLat, 1e-4) {
		t.Errorf("predict(3).Lat = %v, want ~%v", pred.Lat, wantLat)
	}

	_, ok := f.PredictChecked(3)
	if !ok {
		t.Error("PredictChecked should report ok=true once initialized")
	}
}

func TestResetClearsState(t *testing.T) {
	f := New(DefaultConfig(), nil)
	f.Update(geodesy.GeoPoint{Lat: 1, Lon: 1}, 1.0, 0)
	f.Reset()

	if f.Initialized() {
		t.Fatal("filter should be uninitialized after Reset")
	}
	if got := f.Predict(5); got.Lat != 0 || got.Lon != 0 {
		t.Errorf("predict after reset = %+v, want (0,0)", got)
	}
}
