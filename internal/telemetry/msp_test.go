package telemetry

import (
	"bytes"
	"testing"
)

func TestEncodeSetRawGPSFraming(t *testing.T) {
	buf := make([]byte, MSPFrameSize)
	g := GPSFrame{
		FixType: 2, NumSat: 12,
		LatE7: 375000000, LonE7: -1222500000,
		AltitudeM: 0, GroundSpeed: 500, GroundCourse: 900, HDOPx100: 120,
	}

	n, err := EncodeSetRawGPS(buf, g)
	if err != nil {
		t.Fatalf("EncodeSetRawGPS failed: %v", err)
	}
	if n != MSPFrameSize || MSPFrameSize != 24 {
		t.Fatalf("n = %d, want 24", n)
	}

	wantHeader := []byte{0x24, 0x4D, 0x3C, 0x12, 0xC9}
	if !bytes.Equal(buf[:5], wantHeader) {
		t.Errorf("header = % X, want % X", buf[:5], wantHeader)
	}

	size := buf[3]
	command := buf[4]
	if command != MSPSetRawGPS {
		t.Errorf("command = %d, want %d", command, MSPSetRawGPS)
	}
	if int(size) != mspGPSPayloadLen {
		t.Errorf("size = %d, want %d", size, mspGPSPayloadLen)
	}

	payload := buf[5 : 5+int(size)]
	wantChecksum := mspChecksum(size, command, payload)
	if gotChecksum := buf[5+int(size)]; gotChecksum != wantChecksum {
		t.Errorf("checksum = %d, want %d", gotChecksum, wantChecksum)
	}
}

func TestEncodeSetRawGPSBufferTooSmall(t *testing.T) {
	buf := make([]byte, 4)
	if _, err := EncodeSetRawGPS(buf, GPSFrame{}); err == nil {
		t.Fatal("expected error for undersized buffer")
	}
}

func TestMSPChecksumXOR(t *testing.T) {
	c := mspChecksum(2, 201, []byte{0x01, 0x02})
	want := byte(2) ^ byte(201) ^ 0x01 ^ 0x02
	if c != want {
		t.Errorf("checksum = %d, want %d", c, want)
	}
}
