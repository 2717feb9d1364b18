package models

import "time"

// MSample is one timestamped (sorrow, hope) observation retained by the
// KPI window. Timestamp is unix milliseconds (exact in float64 storage).
type MSample struct {
	Timestamp int64   `json:"timestamp"`
	Sorrow    float64 `json:"sorrow"`
	Hope      float64 `json:"hope"`
}

// -----------------------------------------------------------------------------

// Time converts the stored millisecond timestamp back to time.Time (UTC).
func (s MSample) Time() time.Time {
	return time.UnixMilli(s.Timestamp).UTC()
}
