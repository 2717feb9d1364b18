package models

// MComposites carries the two normalized affect scores of a pulse.
// Both values are expected in [0,1]; the ingestion handler rejects
// anything else before an event is constructed.
type MComposites struct {
	Hope   float64 `json:"hope"`
	Sorrow float64 `json:"sorrow"`
}

// -----------------------------------------------------------------------------

// MPulseEvent is one live sentiment event. It is transient: constructed per
// ingestion call and serialized exactly once for broadcast. The journal copy
// is best-effort.
type MPulseEvent struct {
	Composites MComposites            `json:"composites"`
	Timestamp  string                 `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
