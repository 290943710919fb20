// Package clock defines the engine's time representation.
//
// Timestamp and Duration are both signed microsecond counts, not time.Time:
// the engine replays historical data and advances simulated time from event
// timestamps, so wall-clock Time semantics (monotonic reading, location
// handling) would only get in the way. time.Time is used at the edges
// (parsing config durations, stamping log lines) and converted at the
// boundary.
package clock

import "time"

// Timestamp is signed microseconds since the Unix epoch.
type Timestamp int64

// Duration is a signed delta of microseconds.
type Duration int64

const (
	Microsecond Duration = 1
	Millisecond          = 1000 * Microsecond
	Second               = 1000 * Millisecond
	Minute               = 60 * Second
	Hour                 = 60 * Minute
)

// Seconds returns a Duration of n seconds.
func Seconds(n int64) Duration { return Duration(n) * Second }

// Now returns the current wall-clock time as a Timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts a time.Time to a Timestamp, truncating to microseconds.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// ToTime converts a Timestamp back to a time.Time in UTC.
func (t Timestamp) ToTime() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// Add returns t advanced by d.
func (t Timestamp) Add(d Duration) Timestamp {
	return t + Timestamp(d)
}

// Sub returns the Duration between t and u (t - u).
func (t Timestamp) Sub(u Timestamp) Duration {
	return Duration(t - u)
}

// Before reports whether t occurs strictly before u.
func (t Timestamp) Before(u Timestamp) bool { return t < u }

// After reports whether t occurs strictly after u.
func (t Timestamp) After(u Timestamp) bool { return t > u }

// IsZero reports whether t is the zero Timestamp.
func (t Timestamp) IsZero() bool { return t == 0 }

// DateKey returns the calendar date of t as a yyyymmdd integer in UTC,
// matching the mmap date-index encoding.
func (t Timestamp) DateKey() int64 {
	tm := t.ToTime()
	y, m, d := tm.Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// Duration conversions, mirroring time.Duration's accessor style.
func (d Duration) Microseconds() int64 { return int64(d) }
func (d Duration) Milliseconds() int64 { return int64(d) / int64(Millisecond) }
func (d Duration) Seconds() float64    { return float64(d) / float64(Second) }
func (d Duration) ToStd() time.Duration {
	return time.Duration(d) * time.Microsecond
}

// FromStd converts a standard library Duration into a Duration.
func FromStd(d time.Duration) Duration {
	return Duration(d.Microseconds())
}
