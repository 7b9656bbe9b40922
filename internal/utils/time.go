package utils

import (
	"time"
)

// NormalizeTime returns t as a UTC instant truncated to whole seconds.
// Stored timestamps and the "now" used for filtering both go through it so
// that range comparisons in SQL and in Go agree at the boundary.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
