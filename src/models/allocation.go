package models

import "time"

// Allocation sides accepted by the API.
const (
	AllocationSideIncrease = "increase"
	AllocationSideReduce   = "reduce"
)

// MAllocation is one booked allocation instruction for a portfolio.
type MAllocation struct {
	ID               string    `json:"id"`
	Portfolio        string    `json:"portfolio"`
	AssetClass       string    `json:"asset_class"`
	Side             string    `json:"side"`
	AmountUSD        float64   `json:"amount_usd"`
	Note             string    `json:"note,omitempty"`
	SentimentScore   *float64  `json:"sentiment_score,omitempty"`
	SentimentFlagged bool      `json:"sentiment_flagged"`
	MarketOpen       bool      `json:"market_open"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}
