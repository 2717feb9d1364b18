package models

// MInsight is the generated operational reading of the current window.
type MInsight struct {
	GeneratedAt string      `json:"generated_at"`
	Reflection  MReflection `json:"reflection"`
	Suggestion  MSuggestion `json:"suggestion"`
}

// MReflection summarizes what the window looks like right now.
type MReflection struct {
	SampleCount    int     `json:"sample_count"`
	HopeRatio      float64 `json:"hope_ratio"`
	Correlation    float64 `json:"correlation"`
	Anomaly        bool    `json:"anomaly"`
	MarketOpen     bool    `json:"market_open"`
	RiskPosture    string  `json:"risk_posture"`
	SentimentFloor float64 `json:"sentiment_floor"`
}

// MSuggestion is the deterministic rule outcome derived from a reflection.
type MSuggestion struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}
