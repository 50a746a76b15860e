package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/scanner"
	"github.com/wonny/marketscan/backend/pkg/database"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Schema owned by the history repository
var schema = []string{
	`CREATE TABLE IF NOT EXISTS scan_runs (
		scan_id     UUID PRIMARY KEY,
		universe_id TEXT NOT NULL,
		scan_time   TIMESTAMPTZ NOT NULL,
		alert_count INT NOT NULL,
		high_count  INT NOT NULL,
		fetched     INT NOT NULL,
		failed      INT NOT NULL,
		duration_ms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_runs_universe_time
		ON scan_runs (universe_id, scan_time DESC)`,
	`CREATE TABLE IF NOT EXISTS scan_alerts (
		scan_id        UUID NOT NULL REFERENCES scan_runs (scan_id) ON DELETE CASCADE,
		rank           INT NOT NULL,
		symbol         TEXT NOT NULL,
		price          DOUBLE PRECISION NOT NULL,
		change         DOUBLE PRECISION NOT NULL,
		change_percent DOUBLE PRECISION NOT NULL,
		volume         BIGINT NOT NULL,
		previous_close DOUBLE PRECISION NOT NULL,
		severity       TEXT NOT NULL,
		PRIMARY KEY (scan_id, rank)
	)`,
}

// Run is one persisted scan with its alerts in rank order
type Run struct {
	ScanID     string            `json:"scanId"`
	UniverseID string            `json:"universeId"`
	ScanTime   time.Time         `json:"scanTime"`
	AlertCount int               `json:"alertCount"`
	HighCount  int               `json:"highCount"`
	Fetched    int               `json:"fetched"`
	Failed     int               `json:"failed"`
	DurationMs int64             `json:"durationMs"`
	Alerts     []contracts.Alert `json:"alerts"`
}

// Repository stores completed scans in Postgres
// ⭐ SSOT: scan history is written and read only here
type Repository struct {
	pool    *pgxpool.Pool
	logger  *logger.Logger
	timeout time.Duration
}

// NewRepository migrates the schema and returns the repository
func NewRepository(ctx context.Context, db *database.DB, log *logger.Logger) (*Repository, error) {
	if err := db.Migrate(ctx, schema...); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Repository{
		pool:    db.Pool,
		logger:  log.Component("history"),
		timeout: 5 * time.Second,
	}, nil
}

// RunFromResult converts a scan result into its persisted form
func RunFromResult(result scanner.Result) (Run, bool) {
	if result.Skipped || result.LastScan == nil || result.ScanID == "" {
		return Run{}, false
	}
	return Run{
		ScanID:     result.ScanID,
		UniverseID: result.UniverseID,
		ScanTime:   *result.LastScan,
		AlertCount: len(result.Alerts),
		HighCount:  contracts.CountHigh(result.Alerts),
		Fetched:    result.Fetched,
		Failed:     result.Failed,
		DurationMs: result.Duration.Milliseconds(),
		Alerts:     result.Alerts,
	}, true
}

// Record is a scan subscriber; failures are logged
func (r *Repository) Record(result scanner.Result) {
	run, ok := RunFromResult(result)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.Save(ctx, run); err != nil {
		r.logger.WithError(err).WithField("scan_id", run.ScanID).Warn("Failed to record scan history")
	}
}

// Save writes a run and its alerts in one transaction
func (r *Repository) Save(ctx context.Context, run Run) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO scan_runs
				(scan_id, universe_id, scan_time, alert_count, high_count, fetched, failed, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (scan_id) DO NOTHING`,
			run.ScanID, run.UniverseID, run.ScanTime, run.AlertCount, run.HighCount,
			run.Fetched, run.Failed, run.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("insert scan run: %w", err)
		}

		if len(run.Alerts) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		query := `
			INSERT INTO scan_alerts
				(scan_id, rank, symbol, price, change, change_percent, volume, previous_close, severity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (scan_id, rank) DO NOTHING`

		for i, a := range run.Alerts {
			batch.Queue(query, run.ScanID, i, a.Symbol, a.Price, a.Change, a.ChangePercent,
				a.Volume, a.PreviousClose, string(a.Severity))
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for range run.Alerts {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("insert scan alert: %w", err)
			}
		}
		return nil
	})
}

// ClampLimit bounds a caller supplied page size
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Recent returns the latest runs of a universe, newest first
func (r *Repository) Recent(ctx context.Context, universeID string, limit int) ([]Run, error) {
	query := `
		SELECT scan_id::text, universe_id, scan_time, alert_count, high_count, fetched, failed, duration_ms
		FROM scan_runs
		WHERE universe_id = $1
		ORDER BY scan_time DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, universeID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query scan runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	index := make(map[string]int)
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ScanID, &run.UniverseID, &run.ScanTime, &run.AlertCount,
			&run.HighCount, &run.Fetched, &run.Failed, &run.DurationMs); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run.Alerts = []contracts.Alert{}
		index[run.ScanID] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return runs, nil
	}

	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ScanID
	}

	alertRows, err := r.pool.Query(ctx, `
		SELECT scan_id::text, symbol, price, change, change_percent, volume, previous_close, severity
		FROM scan_alerts
		WHERE scan_id = ANY($1::uuid[])
		ORDER BY scan_id, rank`, ids)
	if err != nil {
		return nil, fmt.Errorf("query scan alerts: %w", err)
	}
	defer alertRows.Close()

	for alertRows.Next() {
		var scanID, severity string
		var a contracts.Alert
		if err := alertRows.Scan(&scanID, &a.Symbol, &a.Price, &a.Change, &a.ChangePercent,
			&a.Volume, &a.PreviousClose, &severity); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		i := index[scanID]
		a.Severity = contracts.Severity(severity)
		a.UniverseID = runs[i].UniverseID
		a.ScanTime = runs[i].ScanTime
		runs[i].Alerts = append(runs[i].Alerts, a)
	}
	return runs, alertRows.Err()
}

// Prune deletes runs older than before; alerts cascade
func (r *Repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM scan_runs WHERE scan_time < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune scan runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
