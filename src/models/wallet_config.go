package models

// MWalletConfig is the operational guardrail document served to the
// dashboard. It lives in a JSON file next to the process and every
// mutation appends to GrowthHistory.
type MWalletConfig struct {
	Version                int                `json:"version"`
	BaseCurrency           string             `json:"base_currency"`
	RiskPosture            string             `json:"risk_posture"`
	MaxSingleAllocationUSD float64            `json:"max_single_allocation_usd"`
	AssetClassWeightCaps   map[string]float64 `json:"asset_class_weight_caps"`
	SentimentFloor         float64            `json:"sentiment_floor"`
	LastUpdated            string             `json:"last_updated"`
	GrowthHistory          []MWalletChange    `json:"growth_history"`
}

type MWalletChange struct {
	Timestamp string `json:"timestamp"`
	ChangedBy string `json:"changed_by"`
	Note      string `json:"note"`
}
