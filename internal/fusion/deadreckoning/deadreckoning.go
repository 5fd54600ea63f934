// Package deadreckoning extrapolates a position forward from a single
// anchor (position, velocity, HDOP, timestamp) when no fresher
// estimate is available.
package deadreckoning

import (
	"math"

	"github.com/asgard/vps-core/internal/geodesy"
)

// Config holds the extrapolation parameters.
type Config struct {
	MaxExtrapSeconds float64
	HDOPGrowthRate   float64
}

// DefaultConfig returns a conservative extrapolation window suitable
// for short visual-fix dropouts.
func DefaultConfig() Config {
	return Config{
		MaxExtrapSeconds: 30.0,
		HDOPGrowthRate:   2.0,
	}
}

// WithDefaults backfills zero-valued fields.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MaxExtrapSeconds == 0 {
		c.MaxExtrapSeconds = d.MaxExtrapSeconds
	}
	if c.HDOPGrowthRate == 0 {
		c.HDOPGrowthRate = d.HDOPGrowthRate
	}
	return c
}

// State holds a single constant-velocity anchor plus its extrapolation
// parameters. Its zero value has no reference and extrapolates
// nothing.
type State struct {
	config Config

	refPos       geodesy.GeoPoint
	vnMPS        float64
	veMPS        float64
	refHDOP      float64
	refT         float64
	hasReference bool
}

// New creates a cleared dead-reckoning state with the given config.
func New(config Config) *State {
	return &State{config: config.WithDefaults()}
}

// UpdateRef overwrites the anchor used for future extrapolation.
func (s *State) UpdateRef(pos geodesy.GeoPoint, vnMPS, veMPS, hdop, t float64) {
	s.refPos = pos
	s.vnMPS = vnMPS
	s.veMPS = veMPS
	s.refHDOP = hdop
	s.refT = t
	s.hasReference = true
}

// Clear drops the current reference, preserving the configured
// MaxExtrapSeconds and HDOPGrowthRate.
func (s *State) Clear() {
	*s = State{config: s.config}
}

// HasReference reports whether UpdateRef has ever been called since
// construction or the last Clear.
func (s *State) HasReference() bool { return s.hasReference }

// Extrapolate projects the anchor forward to time t. ok is false when
// there is no reference, the requested time is before the anchor, or
// the gap exceeds MaxExtrapSeconds.
func (s *State) Extrapolate(t float64) (pos geodesy.GeoPoint, hdop float64, ok bool) {
	if !s.hasReference {
		return geodesy.GeoPoint{}, 0, false
	}

	dt := t - s.refT
	if dt < 0 || dt > s.config.MaxExtrapSeconds {
		return geodesy.GeoPoint{}, 0, false
	}

	const metersPerDegLat = 111320.0
	refLatRad := s.refPos.Lat * math.Pi / 180.0

	dLat := (s.vnMPS / metersPerDegLat) * dt
	dLon := (s.veMPS / (metersPerDegLat * math.Cos(refLatRad))) * dt

	pos = geodesy.GeoPoint{Lat: s.refPos.Lat + dLat, Lon: s.refPos.Lon + dLon}
	hdop = s.refHDOP + s.config.HDOPGrowthRate*dt

	return pos, hdop, true
}
