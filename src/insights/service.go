package insights

import (
	"time"

	"github.com/jonboulle/clockwork"

	"pulseops/src/analysis/core"
	"pulseops/src/interfaces"
	"pulseops/src/kpi"
	"pulseops/src/logger"
	"pulseops/src/models"
	"pulseops/src/wallet"
)

// An anomaly is a latest hope reading further than this many standard
// deviations from the window mean.
const anomalyZScoreThreshold = 2.0

// Hope ratio above which an open market reads as constructive.
const leanInHopeRatio = 0.65

// Suggestion actions emitted by the reflector.
const (
	ActionHold   = "hold"
	ActionReview = "review"
	ActionDeRisk = "de_risk"
	ActionLeanIn = "lean_in"
)

// -----------------------------------------------------------------------------

// Service turns the current KPI window, market session and wallet guardrails
// into one deterministic operational reading. Every rule is a pure function
// of its inputs so the same window always yields the same suggestion.
type Service struct {
	Aggregator *kpi.Aggregator
	Sessions   interfaces.ISessionGate
	Wallet     *wallet.Manager
	Clock      clockwork.Clock
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

func NewService(agg *kpi.Aggregator, sessions interfaces.ISessionGate, wm *wallet.Manager, clock clockwork.Clock, log *logger.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		Aggregator: agg,
		Sessions:   sessions,
		Wallet:     wm,
		Clock:      clock,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

// Generate produces the current insight.
func (s *Service) Generate() models.MInsight {
	stats := s.Aggregator.Stats()
	samples := s.Aggregator.Samples()
	guardrails := s.Wallet.Config()
	marketOpen := s.Sessions.AnyMarketOpen()

	hopes := make([]float64, len(samples))
	sorrows := make([]float64, len(samples))
	for i, sample := range samples {
		hopes[i] = sample.Hope
		sorrows[i] = sample.Sorrow
	}

	reflection := models.MReflection{
		SampleCount:    stats.SampleCount,
		HopeRatio:      stats.HopeRatio,
		Correlation:    core.CalculateCorrelation(hopes, sorrows),
		Anomaly:        detectAnomaly(hopes),
		MarketOpen:     marketOpen,
		RiskPosture:    guardrails.RiskPosture,
		SentimentFloor: guardrails.SentimentFloor,
	}

	insight := models.MInsight{
		GeneratedAt: s.Clock.Now().UTC().Format(time.RFC3339),
		Reflection:  reflection,
		Suggestion:  suggest(reflection),
	}

	s.Logger.Debug("Generated insight: action=%s samples=%d hope_ratio=%.3f",
		insight.Suggestion.Action, reflection.SampleCount, reflection.HopeRatio)
	return insight
}

// -----------------------------------------------------------------------------

// detectAnomaly flags a window whose latest hope reading sits far outside
// the rest of the window.
func detectAnomaly(hopes []float64) bool {
	if len(hopes) < 3 {
		return false
	}
	history := hopes[:len(hopes)-1]
	latest := hopes[len(hopes)-1]

	mean, std := core.CalculateMeanStd(history)
	if std == 0 {
		return latest != mean
	}
	z := core.CalculateZScore(latest, mean, std)
	return z > anomalyZScoreThreshold || z < -anomalyZScoreThreshold
}

// -----------------------------------------------------------------------------

// suggest maps a reflection onto the action the dashboard surfaces. Rules
// are ordered from most to least urgent and the first match wins.
func suggest(r models.MReflection) models.MSuggestion {
	switch {
	case r.SampleCount == 0:
		return models.MSuggestion{
			Action: ActionHold,
			Reason: "no pulse data in the current window",
		}
	case r.Anomaly:
		return models.MSuggestion{
			Action: ActionReview,
			Reason: "latest hope reading deviates sharply from the window",
		}
	case r.HopeRatio < r.SentimentFloor:
		return models.MSuggestion{
			Action: ActionDeRisk,
			Reason: "hope ratio sits below the wallet sentiment floor",
		}
	case r.HopeRatio >= leanInHopeRatio && r.MarketOpen:
		return models.MSuggestion{
			Action: ActionLeanIn,
			Reason: "constructive sentiment while markets are open",
		}
	default:
		return models.MSuggestion{
			Action: ActionHold,
			Reason: "window within normal bounds",
		}
	}
}
