// Package store persists deployment outcomes in an embedded SQLite
// database. Rows are append-only; the schema is forward-compatible and
// unknown columns are ignored on read.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/models"
	"github.com/varunvs7692/chaos-negotiator/pkg/telemetry"
)

// Store is the narrow persistence interface consumed by the engine.
// An in-memory implementation backs the tests.
type Store interface {
	Save(ctx context.Context, outcome *models.DeploymentOutcome) error
	Recent(ctx context.Context, limit int) ([]models.DeploymentOutcome, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	deployment_id TEXT NOT NULL,
	heuristic_score REAL NOT NULL,
	ml_score REAL NOT NULL,
	final_score REAL NOT NULL,
	actual_error_rate_percent REAL NOT NULL,
	actual_latency_change_percent REAL NOT NULL,
	rollback_triggered INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	features TEXT
);
CREATE INDEX IF NOT EXISTS idx_outcomes_deployment_id ON outcomes(deployment_id);
`

// evictionCheckEvery controls how often the retention cap is probed.
const evictionCheckEvery = 256

// SQLite is the file-backed outcome store.
type SQLite struct {
	db  *sql.DB
	log *logger.Logger

	retentionRows int64
	saves         atomic.Int64
}

// Options tunes the store beyond the database path.
type Options struct {
	// RetentionRows is the soft row cap; 0 disables eviction.
	RetentionRows int64
}

// Open opens (or creates) the outcome database at path and applies the
// schema. Writes are durable before Save returns.
func Open(ctx context.Context, path string, opts Options, log *logger.Logger) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000",
		url.PathEscape(path))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome db: %w", err)
	}

	// SQLite serializes writers; a single connection avoids lock
	// contention between the request path and the tuner.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping outcome db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply outcome schema: %w", err)
	}

	return &SQLite{
		db:            db,
		log:           log.WithComponent("store"),
		retentionRows: opts.RetentionRows,
	}, nil
}

// Save appends one outcome. The insert is committed and synced before
// returning success.
func (s *SQLite) Save(ctx context.Context, o *models.DeploymentOutcome) error {
	ctx, span := telemetry.StoreSpan(ctx, "save")
	defer span.End()
	defer telemetry.Timed(span)()

	rollback := 0
	if o.RollbackTriggered {
		rollback = 1
	}

	var features any
	if len(o.Features) > 0 {
		encoded, err := json.Marshal(o.Features)
		if err != nil {
			return fmt.Errorf("failed to encode features: %w", err)
		}
		features = string(encoded)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (
			deployment_id, heuristic_score, ml_score, final_score,
			actual_error_rate_percent, actual_latency_change_percent,
			rollback_triggered, timestamp, features
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.DeploymentID, o.HeuristicScore, o.MLScore, o.FinalScore,
		o.ActualErrorRatePercent, o.ActualLatencyChangePercent,
		rollback, o.Timestamp.UTC().Format(time.RFC3339Nano), features,
	)
	if err != nil {
		wrapped := fmt.Errorf("failed to insert outcome: %w", err)
		span.SetError(wrapped)
		return wrapped
	}
	span.SetOK()

	if n := s.saves.Add(1); s.retentionRows > 0 && n%evictionCheckEvery == 0 {
		go s.evict(context.Background())
	}

	return nil
}

// evict trims rows beyond the retention cap, oldest first. Runs off
// the request path; failures are logged and retried on a later probe.
func (s *SQLite) evict(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM outcomes WHERE id <= (
			SELECT id FROM outcomes ORDER BY id DESC LIMIT 1 OFFSET ?
		)`, s.retentionRows)
	if err != nil {
		s.log.Warn("outcome eviction failed", "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Info("evicted old outcomes", "rows", n)
	}
}

// Recent returns up to limit outcomes, newest first. A limit of zero
// returns an empty slice.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]models.DeploymentOutcome, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative, got %d", limit)
	}
	if limit == 0 {
		return []models.DeploymentOutcome{}, nil
	}

	ctx, span := telemetry.StoreSpan(ctx, "recent")
	defer span.End()
	span.SetAttribute("db.limit", limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT deployment_id, heuristic_score, ml_score, final_score,
			actual_error_rate_percent, actual_latency_change_percent,
			rollback_triggered, timestamp, features
		FROM outcomes
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		wrapped := fmt.Errorf("failed to query outcomes: %w", err)
		span.SetError(wrapped)
		return nil, wrapped
	}
	defer rows.Close()

	outcomes := []models.DeploymentOutcome{}
	for rows.Next() {
		var (
			o        models.DeploymentOutcome
			rollback int
			ts       string
			features sql.NullString
		)
		if err := rows.Scan(
			&o.DeploymentID, &o.HeuristicScore, &o.MLScore, &o.FinalScore,
			&o.ActualErrorRatePercent, &o.ActualLatencyChangePercent,
			&rollback, &ts, &features,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.RollbackTriggered = rollback != 0
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			o.Timestamp = parsed
		}
		if features.Valid && features.String != "" {
			// Rows written by older builds have no feature vector.
			_ = json.Unmarshal([]byte(features.String), &o.Features)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}
	span.SetOK()

	return outcomes, nil
}

// Count returns the number of stored outcomes.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return n, nil
}

// Health verifies the database connection.
func (s *SQLite) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
