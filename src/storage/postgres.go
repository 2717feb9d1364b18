package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"pulseops/src/helpers"
	"pulseops/src/logger"
	"pulseops/src/models"
	"pulseops/src/utils"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// The schema is named after the executable so several deployments can
	// share one database.
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	// A fresh deployment usually races its database container, so the first
	// ping gets a few retries before Initialize gives up.
	if _, err := helpers.RetryWithBackoff(d.Logger, "postgres ping", 5, 2*time.Second, func() (interface{}, error) {
		return nil, db.Ping()
	}); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.ensureTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ensureTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."pulse_events" (
			id TEXT PRIMARY KEY,
			timestamp BIGINT NOT NULL,
			hope DOUBLE PRECISION NOT NULL,
			sorrow DOUBLE PRECISION NOT NULL,
			metadata TEXT
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create pulse_events: %w", err)
	}

	query = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_pulse_events_timestamp ON "%s"."pulse_events" (timestamp)`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index pulse_events: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."allocations" (
			id TEXT PRIMARY KEY,
			portfolio TEXT NOT NULL,
			asset_class TEXT NOT NULL,
			side TEXT NOT NULL,
			amount_usd DOUBLE PRECISION NOT NULL,
			note TEXT,
			sentiment_score DOUBLE PRECISION,
			sentiment_flagged BOOLEAN NOT NULL,
			market_open BOOLEAN NOT NULL,
			created_by TEXT NOT NULL,
			created_at BIGINT NOT NULL
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create allocations: %w", err)
	}

	query = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_allocations_created_at ON "%s"."allocations" (created_at)`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index allocations: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SavePulseEvent(event *models.MPulseEvent) error {
	id, ts, metadata, err := flattenPulseEvent(event)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO "%s"."pulse_events" (id, timestamp, hope, sorrow, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, d.Schema)
	_, err = d.DB.Exec(query, id, ts, event.Composites.Hope, event.Composites.Sorrow, metadata)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveAllocation(alloc *models.MAllocation) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."allocations" (id, portfolio, asset_class, side, amount_usd, note, sentiment_score, sentiment_flagged, market_open, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, d.Schema)
	_, err := d.DB.Exec(query, alloc.ID, alloc.Portfolio, alloc.AssetClass, alloc.Side, alloc.AmountUSD, alloc.Note,
		alloc.SentimentScore, alloc.SentimentFlagged, alloc.MarketOpen, alloc.CreatedBy, alloc.CreatedAt.UTC().UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListAllocations(limit int) ([]models.MAllocation, error) {
	query := fmt.Sprintf(`
		SELECT id, portfolio, asset_class, side, amount_usd, note, sentiment_score, sentiment_flagged, market_open, created_by, created_at
		FROM "%s"."allocations"
		ORDER BY created_at DESC
		LIMIT $1
	`, d.Schema)
	rows, err := d.DB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAllocations(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	d.Logger.Info("Cleaning up pulse events older than %d days (timestamp < %d)...", retentionDays, cutoff)

	query := fmt.Sprintf(`DELETE FROM "%s"."pulse_events" WHERE timestamp < $1`, d.Schema)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		d.Logger.Error("Cleanup pulse_events error: %v", err)
	}

	maxRows := utils.CalculateMaxStoredEvents(retentionDays)
	query = fmt.Sprintf(`
		DELETE FROM "%s"."pulse_events" WHERE id NOT IN (
			SELECT id FROM "%s"."pulse_events" ORDER BY timestamp DESC LIMIT $1
		)
	`, d.Schema, d.Schema)
	if _, err := d.DB.Exec(query, maxRows); err != nil {
		d.Logger.Error("Cleanup pulse_events row cap error: %v", err)
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Ping() error {
	if d.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return d.DB.Ping()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
