// Package utils provides small shared helpers and constants for the engine
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// DurationMs converts a duration to fractional milliseconds
func DurationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
