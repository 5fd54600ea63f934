package geodesy

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestTileRoundTrip(t *testing.T) {
	pts := []GeoPoint{
		{Lat: 37.7749, Lon: -122.4194},
		{Lat: 0.0, Lon: 0.000001},
		{Lat: -84.9, Lon: 179.9},
		{Lat: 51.5074, Lon: -0.1278},
		{Lat: 35.6762, Lon: 139.6503},
	}

	for _, p := range pts {
		for zoom := 0; zoom <= 20; zoom++ {
			tile, px := GPSToTilePixel(p, zoom)
			got := TilePixelToGPS(tile, px)

			if !almostEqual(got.Lat, p.Lat, 1e-6) || !almostEqual(got.Lon, p.Lon, 1e-6) {
				t.Errorf("zoom=%d: round trip of %+v produced %+v", zoom, p, got)
			}
		}
	}
}

func TestTileClamp(t *testing.T) {
	cases := []GeoPoint{
		{Lat: 89.9, Lon: -181.0},
		{Lat: -89.9, Lon: 181.0},
		{Lat: 0, Lon: 0},
	}

	for _, p := range cases {
		for zoom := 0; zoom <= 10; zoom++ {
			n := 1 << uint(zoom)
			tile := GPSToTile(p, zoom)
			if tile.X < 0 || tile.X > n-1 {
				t.Errorf("zoom=%d x=%d out of range for %+v", zoom, tile.X, p)
			}
			if tile.Y < 0 || tile.Y > n-1 {
				t.Errorf("zoom=%d y=%d out of range for %+v", zoom, tile.Y, p)
			}
		}
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := GeoPoint{Lat: 37.0, Lon: -122.0}
	b := GeoPoint{Lat: 37.5, Lon: -121.5}

	if d := math.Abs(HaversineKM(a, b) - HaversineKM(b, a)); d >= 1e-9 {
		t.Errorf("haversine not symmetric: delta=%v", d)
	}

	if d := HaversineKM(a, a); d != 0 {
		t.Errorf("haversine(a,a) = %v, want 0", d)
	}
}

func TestMetersPerPixelMonotonicity(t *testing.T) {
	lat := 37.0
	for zoom := 0; zoom < 20; zoom++ {
		a := MetersPerPixel(lat, zoom)
		b := MetersPerPixel(lat, zoom+1)
		if !almostEqual(b, a/2.0, 1e-6) {
			t.Errorf("zoom %d->%d: mpp %v -> %v, want halving", zoom, zoom+1, a, b)
		}
	}
}

func TestHomographyDegenerate(t *testing.T) {
	tile := TileCoord{Z: 18, X: 1000, Y: 1000}
	h := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1e-12}

	got := HomographyToGPS(h, tile, 128, 128)
	if got.Lat != 0 || got.Lon != 0 {
		t.Errorf("expected (0,0) sentinel for degenerate homography, got %+v", got)
	}
}

func TestHomographyIdentity(t *testing.T) {
	tile := TileCoord{Z: 18, X: 1000, Y: 1000}
	h := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

	got := HomographyToGPS(h, tile, 128, 128)
	want := TileCenter(tile)

	if !almostEqual(got.Lat, want.Lat, 1e-9) || !almostEqual(got.Lon, want.Lon, 1e-9) {
		t.Errorf("identity homography at tile center: got %+v, want %+v", got, want)
	}
}

func TestTilesInRadiusCap(t *testing.T) {
	center := GeoPoint{Lat: 37.0, Lon: -122.0}
	tiles := TilesInRadius(center, 50.0, 14, 5)
	if len(tiles) > 5 {
		t.Errorf("expected at most 5 tiles, got %d", len(tiles))
	}
}

func TestTilesInRadiusContainsCenter(t *testing.T) {
	center := GeoPoint{Lat: 37.0, Lon: -122.0}
	centerTile := GPSToTile(center, 14)

	tiles := TilesInRadius(center, 5.0, 14, 1000)

	found := false
	for _, ti := range tiles {
		if ti == centerTile {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected tile set to include the center tile %+v", centerTile)
	}
}
