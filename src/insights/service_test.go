package insights

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseops/src/kpi"
	"pulseops/src/logger"
	"pulseops/src/models"
	"pulseops/src/wallet"
)

type stubSessions struct{ open bool }

func (s stubSessions) AnyMarketOpen() bool { return s.open }

func newTestService(t *testing.T, marketOpen bool) (*Service, *kpi.Aggregator, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC))
	log := logger.NewLogger(nil, "insights-test")

	agg := kpi.NewAggregator(100, clock, log)

	wm := wallet.NewManager(filepath.Join(t.TempDir(), "wallet.json"), clock, log)
	require.NoError(t, wm.Ensure())

	return NewService(agg, stubSessions{open: marketOpen}, wm, clock, log), agg, clock
}

func TestGenerateEmptyWindowHolds(t *testing.T) {
	svc, _, _ := newTestService(t, true)

	insight := svc.Generate()

	assert.Equal(t, "2025-06-02T09:30:00Z", insight.GeneratedAt)
	assert.Equal(t, 0, insight.Reflection.SampleCount)
	assert.Zero(t, insight.Reflection.HopeRatio)
	assert.False(t, insight.Reflection.Anomaly)
	assert.Equal(t, ActionHold, insight.Suggestion.Action)
	assert.Equal(t, "no pulse data in the current window", insight.Suggestion.Reason)
}

func TestGenerateDeRisksBelowSentimentFloor(t *testing.T) {
	svc, agg, _ := newTestService(t, true)

	for i := 0; i < 5; i++ {
		agg.PushSample(0.8, 0.2)
	}

	insight := svc.Generate()

	assert.InDelta(t, 0.2, insight.Reflection.HopeRatio, 1e-9)
	assert.InDelta(t, wallet.DefaultSentimentFloor, insight.Reflection.SentimentFloor, 1e-9)
	assert.Equal(t, ActionDeRisk, insight.Suggestion.Action)
}

func TestGenerateLeansInWhenMarketsOpen(t *testing.T) {
	svc, agg, _ := newTestService(t, true)

	for i := 0; i < 5; i++ {
		agg.PushSample(0.2, 0.8)
	}

	insight := svc.Generate()

	assert.True(t, insight.Reflection.MarketOpen)
	assert.Equal(t, ActionLeanIn, insight.Suggestion.Action)
}

func TestGenerateHoldsWhenMarketsClosed(t *testing.T) {
	svc, agg, _ := newTestService(t, false)

	for i := 0; i < 5; i++ {
		agg.PushSample(0.2, 0.8)
	}

	insight := svc.Generate()

	assert.False(t, insight.Reflection.MarketOpen)
	assert.Equal(t, ActionHold, insight.Suggestion.Action)
	assert.Equal(t, "window within normal bounds", insight.Suggestion.Reason)
}

func TestGenerateFlagsAnomalousWindow(t *testing.T) {
	svc, agg, _ := newTestService(t, true)

	// Six alternating readings, then one far outside the band.
	for i := 0; i < 3; i++ {
		agg.PushSample(0.6, 0.4)
		agg.PushSample(0.4, 0.6)
	}
	agg.PushSample(0.1, 0.9)

	insight := svc.Generate()

	assert.True(t, insight.Reflection.Anomaly)
	assert.Equal(t, ActionReview, insight.Suggestion.Action)
}

func TestGenerateReportsCorrelation(t *testing.T) {
	svc, agg, _ := newTestService(t, false)

	// Hope and sorrow move in perfect opposition.
	agg.PushSample(0.6, 0.4)
	agg.PushSample(0.4, 0.6)
	agg.PushSample(0.7, 0.3)
	agg.PushSample(0.3, 0.7)

	insight := svc.Generate()

	assert.InDelta(t, -1.0, insight.Reflection.Correlation, 1e-9)
}

func TestGenerateRespectsUpdatedGuardrails(t *testing.T) {
	svc, agg, _ := newTestService(t, true)

	for i := 0; i < 5; i++ {
		agg.PushSample(0.5, 0.5)
	}

	// Ratio 0.5 clears the default floor.
	assert.Equal(t, ActionHold, svc.Generate().Suggestion.Action)

	_, err := svc.Wallet.Update("ops-admin", "raise floor", func(cfg *models.MWalletConfig) {
		cfg.SentimentFloor = 0.6
	})
	require.NoError(t, err)

	// The same window now sits under the floor.
	assert.Equal(t, ActionDeRisk, svc.Generate().Suggestion.Action)
}
