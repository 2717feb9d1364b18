package utils

import "math"

// -----------------------------------------------------------------------------

// Defaults applied when config values are missing or out of range.
const (
	DefaultMaxSamples       = 1000
	DefaultMaxBufferedBytes = 262144 // 256 KiB of unsent payload per subscriber
	DefaultRetentionDays    = 7
)

// -----------------------------------------------------------------------------

// CalculateMaxStoredEvents estimates how many journaled pulse events the
// retention window can hold. Sizing assumes a dashboard-driven feed of at
// most ~1 event/second over an 8h operations day, rounded up to 30000/day.
func CalculateMaxStoredEvents(days int) int {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return int(math.Ceil(float64(days) * 30000))
}
