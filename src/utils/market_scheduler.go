package utils

import (
	"sync"
	"time"

	"pulseops/src/logger"
	"pulseops/src/models"
)

// MarketScheduler tracks the trading calendars of the exchanges the
// operations dashboard cares about, keyed by MIC code from config.
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(mics []string, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
	}
	ms.UpdateMICs(mics)
	return ms
}

// -----------------------------------------------------------------------------

// UpdateMICs replaces the tracked exchange set.
func (ms *MarketScheduler) UpdateMICs(mics []string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.Calendars = make(map[string]*TradingCalendar)
	for _, mic := range mics {
		cal := GetCalendarByMIC(mic)
		if cal != nil {
			ms.Calendars[cal.MIC] = cal
		}
	}

	ms.Logger.Info("MarketScheduler: tracking %d exchange calendars.", len(ms.Calendars))
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked markets are currently open
func (ms *MarketScheduler) AnyMarketOpen() bool {
	now := time.Now().UTC()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if len(ms.Calendars) == 0 {
		return false
	}

	for _, cal := range ms.Calendars {
		if cal.IsOpenOnMinute(now) {
			return true
		}
	}

	return false
}

// -----------------------------------------------------------------------------

// Status reports the session state of every tracked exchange.
func (ms *MarketScheduler) Status() []models.MMarketStatus {
	now := time.Now().UTC()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	result := make([]models.MMarketStatus, 0, len(ms.Calendars))
	for mic, cal := range ms.Calendars {
		local := now
		if cal.Timezone != nil {
			local = now.In(cal.Timezone)
		}
		result = append(result, models.MMarketStatus{
			MIC:        mic,
			Open:       cal.IsOpenOnMinute(now),
			TradingDay: cal.IsTradingDay(now),
			LocalTime:  local.Format(time.RFC3339),
		})
	}

	return result
}
