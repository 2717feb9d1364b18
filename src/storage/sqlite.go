package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pulseops/src/logger"
	"pulseops/src/models"
	"pulseops/src/utils"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	// An in-memory database is scoped to its connection, so the pool must
	// not open a second one.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.ensureTables()
}

// -----------------------------------------------------------------------------

// ensureTables creates the journal tables when missing. Unlike a derived
// cache, both tables hold operator-facing history and must survive restarts.
func (d *AsyncSQLiteDB) ensureTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS pulse_events (
			id TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			hope REAL NOT NULL,
			sorrow REAL NOT NULL,
			metadata TEXT
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create pulse_events: %w", err)
	}

	if _, err := d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_pulse_events_timestamp ON pulse_events (timestamp)"); err != nil {
		return fmt.Errorf("failed to index pulse_events: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS allocations (
			id TEXT PRIMARY KEY,
			portfolio TEXT NOT NULL,
			asset_class TEXT NOT NULL,
			side TEXT NOT NULL,
			amount_usd REAL NOT NULL,
			note TEXT,
			sentiment_score REAL,
			sentiment_flagged INTEGER NOT NULL,
			market_open INTEGER NOT NULL,
			created_by TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create allocations: %w", err)
	}

	if _, err := d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_allocations_created_at ON allocations (created_at)"); err != nil {
		return fmt.Errorf("failed to index allocations: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SavePulseEvent(event *models.MPulseEvent) error {
	id, ts, metadata, err := flattenPulseEvent(event)
	if err != nil {
		return err
	}

	_, err = d.DB.Exec(`
		INSERT INTO pulse_events (id, timestamp, hope, sorrow, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, id, ts, event.Composites.Hope, event.Composites.Sorrow, metadata)
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveAllocation(alloc *models.MAllocation) error {
	_, err := d.DB.Exec(`
		INSERT INTO allocations (id, portfolio, asset_class, side, amount_usd, note, sentiment_score, sentiment_flagged, market_open, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, alloc.ID, alloc.Portfolio, alloc.AssetClass, alloc.Side, alloc.AmountUSD, alloc.Note,
		alloc.SentimentScore, alloc.SentimentFlagged, alloc.MarketOpen, alloc.CreatedBy, alloc.CreatedAt.UTC().UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) ListAllocations(limit int) ([]models.MAllocation, error) {
	rows, err := d.DB.Query(`
		SELECT id, portfolio, asset_class, side, amount_usd, note, sentiment_score, sentiment_flagged, market_open, created_by, created_at
		FROM allocations
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAllocations(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	d.Logger.Info("Cleaning up pulse events older than %d days (timestamp < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec("DELETE FROM pulse_events WHERE timestamp < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup pulse_events error: %v", err)
	}

	// Row cap keeps a runaway producer from outgrowing the retention window.
	maxRows := utils.CalculateMaxStoredEvents(retentionDays)
	if _, err := d.DB.Exec(`
		DELETE FROM pulse_events WHERE id NOT IN (
			SELECT id FROM pulse_events ORDER BY timestamp DESC LIMIT ?
		)
	`, maxRows); err != nil {
		d.Logger.Error("Cleanup pulse_events row cap error: %v", err)
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Ping() error {
	if d.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return d.DB.Ping()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Shared row helpers
// -----------------------------------------------------------------------------

// flattenPulseEvent maps an event onto journal columns. The event timestamp
// is trusted when parseable and replaced with the receive time otherwise.
func flattenPulseEvent(event *models.MPulseEvent) (id string, ts int64, metadata interface{}, err error) {
	id = uuid.NewString()

	ts = time.Now().UTC().UnixMilli()
	if event.Timestamp != "" {
		if parsed, parseErr := time.Parse(time.RFC3339Nano, event.Timestamp); parseErr == nil {
			ts = parsed.UTC().UnixMilli()
		}
	}

	if len(event.Metadata) > 0 {
		data, marshalErr := json.Marshal(event.Metadata)
		if marshalErr != nil {
			return "", 0, nil, fmt.Errorf("failed to serialize event metadata: %w", marshalErr)
		}
		metadata = string(data)
	}

	return id, ts, metadata, nil
}

// -----------------------------------------------------------------------------

func scanAllocations(rows *sql.Rows) ([]models.MAllocation, error) {
	allocations := []models.MAllocation{}
	for rows.Next() {
		var (
			alloc     models.MAllocation
			note      sql.NullString
			score     sql.NullFloat64
			createdAt int64
		)
		if err := rows.Scan(&alloc.ID, &alloc.Portfolio, &alloc.AssetClass, &alloc.Side, &alloc.AmountUSD,
			&note, &score, &alloc.SentimentFlagged, &alloc.MarketOpen, &alloc.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		alloc.Note = note.String
		if score.Valid {
			value := score.Float64
			alloc.SentimentScore = &value
		}
		alloc.CreatedAt = time.UnixMilli(createdAt).UTC()
		allocations = append(allocations, alloc)
	}
	return allocations, rows.Err()
}
