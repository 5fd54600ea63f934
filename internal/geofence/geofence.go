// Package geofence implements the circle/rectangle containment tests
// the fusion core gates its output against.
//
// A Geofence is immutable once constructed -- the fusion core holds a
// read-only reference to it and never mutates it, mirroring how
// Valkyrie's failsafe subsystem treats its landing-zone / no-fly-zone
// configuration as read-only runtime state.
package geofence

import "github.com/asgard/vps-core/internal/geodesy"

// Kind distinguishes the two supported fence shapes.
type Kind int

const (
	Circle Kind = iota
	Rect
)

// Geofence is an immutable containment boundary, either a circle or an
// axis-aligned (in lat/lon) rectangle, with an inward safety margin.
type Geofence struct {
	kind Kind

	center geodesy.GeoPoint

	radiusKM float64 // Circle

	halfLatKM float64 // Rect
	halfLonKM float64 // Rect

	marginKM float64
}

// NewCircleFence constructs a circular fence. Negative radius/margin
// inputs are clamped to zero rather than producing an inside-out
// fence.
func NewCircleFence(center geodesy.GeoPoint, radiusKM, marginKM float64) *Geofence {
	return &Geofence{
		kind:     Circle,
		center:   center,
		radiusKM: nonNegative(radiusKM),
		marginKM: nonNegative(marginKM),
	}
}

// NewRectFence constructs an axis-aligned rectangular fence.
func NewRectFence(center geodesy.GeoPoint, halfLatKM, halfLonKM, marginKM float64) *Geofence {
	return &Geofence{
		kind:      Rect,
		center:    center,
		halfLatKM: nonNegative(halfLatKM),
		halfLonKM: nonNegative(halfLonKM),
		marginKM:  nonNegative(marginKM),
	}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Contains reports whether p lies within the fence, after applying
// the inward margin.
func (g *Geofence) Contains(p geodesy.GeoPoint) bool {
	switch g.kind {
	case Circle:
		return geodesy.HaversineKM(g.center, p) <= g.radiusKM-g.marginKM
	case Rect:
		dLat, dLon := g.signedOffsetsKM(p)
		return abs(dLat) <= g.halfLatKM-g.marginKM && abs(dLon) <= g.halfLonKM-g.marginKM
	default:
		return false
	}
}

// Distance returns the signed distance to the fence boundary: positive
// inside, negative outside.
func (g *Geofence) Distance(p geodesy.GeoPoint) float64 {
	switch g.kind {
	case Circle:
		return g.radiusKM - geodesy.HaversineKM(g.center, p)
	case Rect:
		dLat, dLon := g.signedOffsetsKM(p)
		latMargin := g.halfLatKM - abs(dLat)
		lonMargin := g.halfLonKM - abs(dLon)
		if latMargin < lonMargin {
			return latMargin
		}
		return lonMargin
	default:
		return 0
	}
}

// signedOffsetsKM computes the north/east Haversine-based offsets of p
// from the fence center, with sign taken from simple lat/lon
// comparison. This intentionally keeps unsigned Haversine distance
// plus sign-reapplication rather than a planar approximation, which
// disagrees from great-circle distance at large extents.
func (g *Geofence) signedOffsetsKM(p geodesy.GeoPoint) (dLatKM, dLonKM float64) {
	dLatKM = geodesy.HaversineKM(g.center, geodesy.GeoPoint{Lat: p.Lat, Lon: g.center.Lon})
	if p.Lat < g.center.Lat {
		dLatKM = -dLatKM
	}

	dLonKM = geodesy.HaversineKM(g.center, geodesy.GeoPoint{Lat: g.center.Lat, Lon: p.Lon})
	if p.Lon < g.center.Lon {
		dLonKM = -dLonKM
	}

	return dLatKM, dLonKM
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
