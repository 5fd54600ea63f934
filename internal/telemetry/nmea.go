// Package telemetry implements the two wire formats the fusion core
// hands to the host for delivery to the flight controller: NMEA 0183
// ASCII sentences and the binary MSP_SET_RAW_GPS frame used by
// Cleanflight/Betaflight.
//
// Both encoders are pure, stateless functions operating on
// caller-supplied buffers, the same shape as
// Valkyrie/internal/actuators/mavlink_protocol.go's serializeMessage:
// build the body, compute a checksum over it, frame it, return the
// byte count.
package telemetry

import (
	"fmt"

	"github.com/asgard/vps-core/internal/geodesy"
)

// FixQuality is the NMEA fix-quality indicator reported in $GPGGA.
type FixQuality int

const (
	FixQualityNone   FixQuality = 0
	FixQualityVisual FixQuality = 1
	FixQualityEkf    FixQuality = 2
	FixQualityDr     FixQuality = 3
)

// MinNMEABufferSize is the minimum caller-supplied buffer size the
// encoders require.
const MinNMEABufferSize = 128

// nmeaChecksum XORs every byte strictly between a leading '$' (if
// present) and the terminating '*'.
func nmeaChecksum(body string) byte {
	var sum byte
	for i := 0; i < len(body); i++ {
		c := body[i]
		if i == 0 && c == '$' {
			continue
		}
		if c == '*' {
			break
		}
		sum ^= c
	}
	return sum
}

// degToNMEA formats a signed degree value as ddmm.mmmmm (2-digit
// degrees for latitude, 3-digit for longitude) plus a hemisphere
// letter.
func degToNMEA(deg float64, isLat bool) (field string, hemisphere byte) {
	neg := deg < 0
	abs := deg
	if neg {
		abs = -deg
	}

	degrees := int(abs)
	minutes := (abs - float64(degrees)) * 60.0

	var degWidth int
	if isLat {
		degWidth = 2
		if neg {
			hemisphere = 'S'
		} else {
			hemisphere = 'N'
		}
	} else {
		degWidth = 3
		if neg {
			hemisphere = 'W'
		} else {
			hemisphere = 'E'
		}
	}

	field = fmt.Sprintf("%0*d%08.5f", degWidth, degrees, minutes)
	return field, hemisphere
}

// GGAFields is the minimal set of inputs $GPGGA needs beyond the
// position itself.
type GGAFields struct {
	Position    geodesy.GeoPoint
	FixQuality  FixQuality
	HDOP        float64
	AltitudeM   float64
	Hour, Min   int
	Sec, Centis int // Centis is hundredths of a second, 0-99
}

// EncodeGGA writes a $GPGGA sentence into buf (which must be at least
// MinNMEABufferSize bytes) and returns the number of bytes written.
func EncodeGGA(buf []byte, f GGAFields) (int, error) {
	if len(buf) < MinNMEABufferSize {
		return 0, fmt.Errorf("telemetry: GGA buffer too small: need >= %d bytes, got %d", MinNMEABufferSize, len(buf))
	}

	latField, latHemi := degToNMEA(f.Position.Lat, true)
	lonField, lonHemi := degToNMEA(f.Position.Lon, false)

	body := fmt.Sprintf("GPGGA,%02d%02d%02d.%02d,%s,%c,%s,%c,%d,08,%.1f,%.1f,M,0.0,M,,",
		f.Hour, f.Min, f.Sec, f.Centis,
		latField, latHemi,
		lonField, lonHemi,
		int(f.FixQuality),
		f.HDOP,
		f.AltitudeM,
	)

	return frameNMEA(buf, body)
}

// RMCFields is the minimal set of inputs $GPRMC needs beyond the
// position itself.
type RMCFields struct {
	Position    geodesy.GeoPoint
	Active      bool
	SpeedMPS    float64
	HeadingDeg  float64
	Hour, Min   int
	Sec, Centis int // Centis is hundredths of a second, 0-99
	Day, Month  int
	Year        int // full year, e.g. 2026
}

const knotsPerMPS = 1.9438444924

// EncodeRMC writes a $GPRMC sentence into buf (which must be at least
// MinNMEABufferSize bytes) and returns the number of bytes written.
func EncodeRMC(buf []byte, f RMCFields) (int, error) {
	if len(buf) < MinNMEABufferSize {
		return 0, fmt.Errorf("telemetry: RMC buffer too small: need >= %d bytes, got %d", MinNMEABufferSize, len(buf))
	}

	latField, latHemi := degToNMEA(f.Position.Lat, true)
	lonField, lonHemi := degToNMEA(f.Position.Lon, false)

	status := byte('V')
	if f.Active {
		status = 'A'
	}

	speedKnots := f.SpeedMPS * knotsPerMPS

	body := fmt.Sprintf("GPRMC,%02d%02d%02d.%02d,%c,%s,%c,%s,%c,%.1f,%.1f,%02d%02d%02d,,,A",
		f.Hour, f.Min, f.Sec, f.Centis,
		status,
		latField, latHemi,
		lonField, lonHemi,
		speedKnots,
		f.HeadingDeg,
		f.Day, f.Month, f.Year%100,
	)

	return frameNMEA(buf, body)
}

// frameNMEA writes "$" + body + "*" + upper-hex-checksum + "\r\n" into
// buf, returning the byte count.
func frameNMEA(buf []byte, body string) (int, error) {
	checksum := nmeaChecksum(body)
	sentence := fmt.Sprintf("$%s*%02X\r\n", body, checksum)

	n := copy(buf, sentence)
	if n < len(sentence) {
		return n, fmt.Errorf("telemetry: buffer too small for sentence: need %d bytes, got %d", len(sentence), len(buf))
	}
	return n, nil
}
