package models

// MKPIStats is the aggregate view over the currently retained sample window.
// HopeRatio = totalHope / (totalHope + totalSorrow), 0 when undefined.
type MKPIStats struct {
	SampleCount int     `json:"sample_count"`
	HopeRatio   float64 `json:"hope_ratio"`
	AvgHope     float64 `json:"avg_hope"`
	AvgSorrow   float64 `json:"avg_sorrow"`
}
