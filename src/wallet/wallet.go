package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"pulseops/src/helpers"
	"pulseops/src/logger"
	"pulseops/src/models"
)

// Defaults applied when no wallet file exists yet.
const (
	DefaultBaseCurrency      = "USD"
	DefaultRiskPosture       = "balanced"
	DefaultMaxSingleUSD      = 250000
	DefaultSentimentFloor    = 0.35
	walletFilePermissions    = 0o644
	walletTempSuffix         = ".tmp"
	initialGrowthHistoryNote = "initialized with default guardrails"
)

// -----------------------------------------------------------------------------

// Manager owns the wallet guardrail file. All reads return copies and all
// mutations go through Update, which appends to the growth history and
// rewrites the file atomically.
type Manager struct {
	path   string
	clock  clockwork.Clock
	logger *logger.Logger

	mu     sync.RWMutex
	config *models.MWalletConfig
}

// -----------------------------------------------------------------------------

func NewManager(path string, clock clockwork.Clock, log *logger.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		path:   path,
		clock:  clock,
		logger: log,
	}
}

// -----------------------------------------------------------------------------

// Ensure loads the wallet file, creating it with defaults when missing.
func (m *Manager) Ensure() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		m.config = defaultConfig(m.clock.Now().UTC())
		if err := m.writeLocked(); err != nil {
			return err
		}
		m.logger.Info("Wallet guardrails initialized at %s", m.path)
		return nil
	}
	if err != nil {
		return helpers.NewConfigurationError(fmt.Sprintf("failed to read wallet file %s", m.path), err)
	}

	cfg := &models.MWalletConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return helpers.NewConfigurationError(fmt.Sprintf("failed to parse wallet file %s", m.path), err)
	}
	if err := validate(cfg); err != nil {
		return err
	}

	m.config = cfg
	m.logger.Info("Wallet guardrails loaded from %s (version %d)", m.path, cfg.Version)
	return nil
}

// -----------------------------------------------------------------------------

// Config returns a copy of the current guardrails.
func (m *Manager) Config() models.MWalletConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneConfig(m.config)
}

// -----------------------------------------------------------------------------

// Update applies the mutation, validates the result, appends a growth
// history entry and persists the new version. The stored config is left
// untouched when anything fails.
func (m *Manager) Update(changedBy, note string, apply func(*models.MWalletConfig)) (models.MWalletConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := cloneConfig(m.config)
	apply(&updated)

	if err := validate(&updated); err != nil {
		return models.MWalletConfig{}, err
	}

	now := m.clock.Now().UTC()
	updated.Version++
	updated.LastUpdated = now.Format(time.RFC3339)
	updated.GrowthHistory = append(updated.GrowthHistory, models.MWalletChange{
		Timestamp: now.Format(time.RFC3339),
		ChangedBy: changedBy,
		Note:      note,
	})

	previous := m.config
	m.config = &updated
	if err := m.writeLocked(); err != nil {
		m.config = previous
		return models.MWalletConfig{}, err
	}

	m.logger.Info("Wallet guardrails updated to version %d by %s", updated.Version, changedBy)
	return cloneConfig(&updated), nil
}

// -----------------------------------------------------------------------------

// writeLocked persists the current config through a temp file so a crash
// mid-write never leaves a truncated wallet behind. Callers hold the lock.
func (m *Manager) writeLocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return helpers.NewConfigurationError("failed to serialize wallet config", err)
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return helpers.NewConfigurationError(fmt.Sprintf("failed to create wallet directory %s", dir), err)
		}
	}

	tmp := m.path + walletTempSuffix
	if err := os.WriteFile(tmp, data, walletFilePermissions); err != nil {
		return helpers.NewConfigurationError(fmt.Sprintf("failed to write wallet file %s", tmp), err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return helpers.NewConfigurationError(fmt.Sprintf("failed to replace wallet file %s", m.path), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func validate(cfg *models.MWalletConfig) error {
	if cfg.MaxSingleAllocationUSD <= 0 {
		return helpers.NewValidationError("max_single_allocation_usd must be positive, got %.2f", cfg.MaxSingleAllocationUSD)
	}
	if cfg.SentimentFloor < 0 || cfg.SentimentFloor > 1 {
		return helpers.NewValidationError("sentiment_floor must be within [0, 1], got %.3f", cfg.SentimentFloor)
	}
	for class, weight := range cfg.AssetClassWeightCaps {
		if weight < 0 || weight > 1 {
			return helpers.NewValidationError("weight cap for %s must be within [0, 1], got %.3f", class, weight)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func cloneConfig(cfg *models.MWalletConfig) models.MWalletConfig {
	out := *cfg
	out.AssetClassWeightCaps = make(map[string]float64, len(cfg.AssetClassWeightCaps))
	for class, weight := range cfg.AssetClassWeightCaps {
		out.AssetClassWeightCaps[class] = weight
	}
	out.GrowthHistory = append([]models.MWalletChange(nil), cfg.GrowthHistory...)
	return out
}

// -----------------------------------------------------------------------------

func defaultConfig(now time.Time) *models.MWalletConfig {
	return &models.MWalletConfig{
		Version:                1,
		BaseCurrency:           DefaultBaseCurrency,
		RiskPosture:            DefaultRiskPosture,
		MaxSingleAllocationUSD: DefaultMaxSingleUSD,
		AssetClassWeightCaps: map[string]float64{
			"equities":    0.6,
			"bonds":       0.8,
			"commodities": 0.3,
			"cash":        1.0,
		},
		SentimentFloor: DefaultSentimentFloor,
		LastUpdated:    now.Format(time.RFC3339),
		GrowthHistory: []models.MWalletChange{
			{
				Timestamp: now.Format(time.RFC3339),
				ChangedBy: "system",
				Note:      initialGrowthHistoryNote,
			},
		},
	}
}
