package kpi

import (
	"sync"

	"pulseops/src/logger"
	"pulseops/src/models"
	"pulseops/src/utils"

	"github.com/jonboulle/clockwork"
)

// -----------------------------------------------------------------------------
// Aggregator maintains a bounded rolling window of (sorrow, hope) samples and
// answers aggregate queries without unbounded memory growth. The window is
// count-bounded: the newest maxSamples observations are retained and each
// push over capacity evicts the oldest. One instance is shared per process,
// constructed and injected by the composition root.
// -----------------------------------------------------------------------------

type Aggregator struct {
	mu     sync.RWMutex
	ring   *utils.RingBuffer
	clock  clockwork.Clock
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewAggregator creates an aggregator retaining at most maxSamples samples.
// A nil clock selects the real clock.
func NewAggregator(maxSamples int, clock clockwork.Clock, l *logger.Logger) *Aggregator {
	if maxSamples <= 0 {
		maxSamples = utils.DefaultMaxSamples
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Aggregator{
		ring:   utils.NewRingBuffer(maxSamples),
		clock:  clock,
		logger: l,
	}
}

// -----------------------------------------------------------------------------

// PushSample appends one observation stamped with the current time, then
// applies eviction. O(1) per push: the ring overwrites its oldest row when
// full. Range checks happen at the ingestion boundary, not here.
func (a *Aggregator) PushSample(sorrow, hope float64) {
	sample := models.MSample{
		Timestamp: a.clock.Now().UnixMilli(),
		Sorrow:    sorrow,
		Hope:      hope,
	}

	a.mu.Lock()
	a.ring.Append(sample)
	a.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Stats computes the aggregate view over the retained window. The hope
// ratio is totalHope / (totalHope + totalSorrow), 0 when there are no
// samples or both totals are zero. Reads work on a snapshot, so
// concurrent pushes never corrupt a computation.
func (a *Aggregator) Stats() models.MKPIStats {
	a.mu.RLock()
	snapshot := a.ring.GetSnapshot()
	a.mu.RUnlock()

	stats := models.MKPIStats{SampleCount: len(snapshot)}
	if len(snapshot) == 0 {
		return stats
	}

	var totalHope, totalSorrow float64
	for _, row := range snapshot {
		totalSorrow += row[models.RB_IDX_SORROW]
		totalHope += row[models.RB_IDX_HOPE]
	}

	if sum := totalHope + totalSorrow; sum > 0 {
		stats.HopeRatio = totalHope / sum
	}

	n := float64(len(snapshot))
	stats.AvgHope = totalHope / n
	stats.AvgSorrow = totalSorrow / n

	return stats
}

// -----------------------------------------------------------------------------

// Samples returns the retained window oldest-to-newest.
func (a *Aggregator) Samples() []models.MSample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.ring.GetAll()
}

// -----------------------------------------------------------------------------

// Size returns the number of currently retained samples.
func (a *Aggregator) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.ring.Size()
}

// -----------------------------------------------------------------------------

// Window returns the configured maximum retained sample count.
func (a *Aggregator) Window() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.ring.Capacity()
}

// -----------------------------------------------------------------------------

// Resize changes the window capacity at runtime, keeping the newest samples
// that fit. Non-positive values are ignored.
func (a *Aggregator) Resize(maxSamples int) {
	if maxSamples <= 0 {
		return
	}

	a.mu.Lock()
	a.ring.Resize(maxSamples)
	size := a.ring.Size()
	a.mu.Unlock()

	if a.logger != nil {
		a.logger.Info("KPI window resized to %d samples (%d retained)", maxSamples, size)
	}
}
