// Package clock isolates the wall-clock UTC time source behind a
// small interface so tests can inject deterministic time. Everything
// else in the fusion core is pure and takes its timestamps as plain
// float64 seconds from the host; only the NMEA encoder's broken-down
// UTC time/date fields need an actual wall clock.
package clock

import "time"

// Source supplies the current UTC time.
type Source interface {
	Now() time.Time
}

// System is the real wall-clock Source, used by the host in
// production.
type System struct{}

// Now returns time.Now() in UTC.
func (System) Now() time.Time { return time.Now().UTC() }

// Fixed is a deterministic Source for tests: it always returns the
// same instant.
type Fixed struct {
	At time.Time
}

// Now returns the fixed instant, converted to UTC.
func (f Fixed) Now() time.Time { return f.At.UTC() }
