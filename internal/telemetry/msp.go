package telemetry

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MSP frame markers and the one command the fusion core ever emits.
// Grounded in the same magic-byte-plus-checksum framing as the
// MAVLink encoder, but MSP v1 uses a single XOR checksum rather than
// MAVLink's X.25 CRC, and its header spells "$M<" for a host-to-FC
// frame.
const (
	mspPreamble1 = '$'
	mspPreamble2 = 'M'
	mspToFC      = '<'

	// MSPSetRawGPS is the MSP v1 command ID for injecting a GPS fix.
	MSPSetRawGPS = 201

	// mspGPSPayloadLen is the fixed payload length for MSP_SET_RAW_GPS.
	mspGPSPayloadLen = 18
)

// GPSFrame is the payload of an MSP_SET_RAW_GPS frame: fix state,
// satellite count, position in 1e7-scaled integer degrees, altitude in
// meters, ground speed in cm/s, heading in decidegrees, and HDOP
// scaled by 100 -- exactly the field widths Betaflight's MSP parser
// expects.
type GPSFrame struct {
	FixType      uint8
	NumSat       uint8
	LatE7        int32
	LonE7        int32
	AltitudeM    int16
	GroundSpeed  uint16 // cm/s
	GroundCourse uint16 // decidegrees
	HDOPx100     uint16
}

// MSPFrameSize is the fixed wire size of an MSP_SET_RAW_GPS frame:
// 3-byte preamble, 1-byte length, 1-byte command, 18-byte payload,
// 1-byte checksum.
const MSPFrameSize = 3 + 1 + 1 + mspGPSPayloadLen + 1

// EncodeSetRawGPS writes an MSP_SET_RAW_GPS frame into buf and returns
// the byte count. buf must be at least MSPFrameSize bytes.
func EncodeSetRawGPS(buf []byte, g GPSFrame) (int, error) {
	if len(buf) < MSPFrameSize {
		return 0, fmt.Errorf("telemetry: MSP buffer too small: need >= %d bytes, got %d", MSPFrameSize, len(buf))
	}

	payload := new(bytes.Buffer)
	payload.WriteByte(g.FixType)
	payload.WriteByte(g.NumSat)
	binary.Write(payload, binary.LittleEndian, g.LatE7)
	binary.Write(payload, binary.LittleEndian, g.LonE7)
	binary.Write(payload, binary.LittleEndian, g.AltitudeM)
	binary.Write(payload, binary.LittleEndian, g.GroundSpeed)
	binary.Write(payload, binary.LittleEndian, g.GroundCourse)
	binary.Write(payload, binary.LittleEndian, g.HDOPx100)

	body := payload.Bytes()

	frame := new(bytes.Buffer)
	frame.WriteByte(mspPreamble1)
	frame.WriteByte(mspPreamble2)
	frame.WriteByte(mspToFC)
	frame.WriteByte(uint8(len(body)))
	frame.WriteByte(MSPSetRawGPS)
	frame.Write(body)
	frame.WriteByte(mspChecksum(uint8(len(body)), MSPSetRawGPS, body))

	out := frame.Bytes()
	n := copy(buf, out)
	if n < len(out) {
		return n, fmt.Errorf("telemetry: MSP buffer too small: need %d bytes, got %d", len(out), len(buf))
	}
	return n, nil
}

// mspChecksum XORs the size byte, the command byte, and every payload
// byte, matching the MSP v1 wire protocol.
func mspChecksum(size, command uint8, payload []byte) byte {
	sum := size ^ command
	for _, b := range payload {
		sum ^= b
	}
	return sum
}
