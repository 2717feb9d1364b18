package models

// MSystemStatus reports process-level resource usage for the admin surface.
type MSystemStatus struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryRSSMB    float64 `json:"memory_rss_mb"`
	MemoryPercent  float32 `json:"memory_percent"`
	Goroutines     int     `json:"goroutines"`
	NumCPU         int     `json:"num_cpu"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	HostMemoryUsed float64 `json:"host_memory_used_percent"`
}
