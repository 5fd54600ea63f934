package clock

import (
	"testing"
	"time"
)

func TestSystemNowIsUTC(t *testing.T) {
	now := System{}.Now()
	if now.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", now.Location())
	}
}

func TestFixedNowReturnsConfiguredInstant(t *testing.T) {
	at := time.Date(2026, time.March, 5, 12, 30, 0, 0, time.FixedZone("PST", -8*3600))
	f := Fixed{At: at}

	got := f.Now()
	if !got.Equal(at) {
		t.Errorf("Now() = %v, want %v", got, at)
	}
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
}

func TestFixedNowIsStable(t *testing.T) {
	at := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	f := Fixed{At: at}

	first := f.Now()
	second := f.Now()
	if !first.Equal(second) {
		t.Errorf("Fixed.Now() returned different instants: %v, %v", first, second)
	}
}
