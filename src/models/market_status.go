package models

// MMarketStatus is the session state of one tracked exchange.
type MMarketStatus struct {
	MIC        string `json:"mic"`
	Open       bool   `json:"open"`
	TradingDay bool   `json:"trading_day"`
	LocalTime  string `json:"local_time"`
}
