package models

// MHubStats is a point-in-time snapshot of the broadcast hub.
type MHubStats struct {
	ConnectedClients int     `json:"connected_clients"`
	MessagesSent     uint64  `json:"messages_sent"`
	MessagesDropped  uint64  `json:"messages_dropped"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}
