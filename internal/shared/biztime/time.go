// Package biztime centralises wall-clock access. All storage and transport use
// UTC; envelope timestamps use second precision with a literal Z suffix.
package biztime

import (
	"sync/atomic"
	"time"
)

// WireLayout is the timestamp layout carried in envelopes.
const WireLayout = "2006-01-02T15:04:05Z"

var nowFunc atomic.Pointer[func() time.Time]

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	if fn := nowFunc.Load(); fn != nil {
		return (*fn)().UTC()
	}
	return time.Now().UTC()
}

// SetNowFunc overrides the clock until the returned restore func is called.
// Tests only.
func SetNowFunc(fn func() time.Time) (restore func()) {
	prev := nowFunc.Swap(&fn)
	return func() { nowFunc.Store(prev) }
}

// FormatWire renders t as an envelope timestamp.
func FormatWire(t time.Time) string {
	return t.UTC().Format(WireLayout)
}

// ParseWire parses an envelope timestamp.
func ParseWire(s string) (time.Time, error) {
	return time.ParseInLocation(WireLayout, s, time.UTC)
}
