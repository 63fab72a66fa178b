// Package sqlitedb implements dataset and audit storage on a single SQLite
// database file.
package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/interfaces"
	"github.com/bobmcallan/navrank/internal/models"
)

// FileName is the database file created under the data path
const FileName = "navrank.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS funds(
		scheme_code TEXT PRIMARY KEY,
		scheme_name TEXT NOT NULL,
		category    TEXT NOT NULL,
		amc         TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS nav(
		scheme_code TEXT NOT NULL,
		date        TEXT NOT NULL,
		nav         REAL NOT NULL,
		PRIMARY KEY (scheme_code, date)
	)`,
	`CREATE TABLE IF NOT EXISTS meta(
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reports(
		run_id     TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		body       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS raw(
		subdir TEXT NOT NULL,
		key    TEXT NOT NULL,
		data   BLOB NOT NULL,
		PRIMARY KEY (subdir, key)
	)`,
}

const (
	dateLayout    = "2006-01-02"
	metaFetchedAt = "dataset_fetched_at"
)

// Store is a SQLite-backed StorageManager
type Store struct {
	db     *sql.DB
	path   string
	logger *common.Logger
}

// NewStore opens (creating if needed) the database under dir
func NewStore(logger *common.Logger, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store path %s: %w", dir, err)
	}
	dsn := filepath.Join(dir, FileName) + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY churn
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise schema: %w", err)
		}
	}

	logger.Info().Str("path", filepath.Join(dir, FileName)).Msg("SQLite store opened")
	return &Store{db: db, path: dir, logger: logger}, nil
}

// DataPath returns the directory holding the database file
func (s *Store) DataPath() string { return s.path }

// DatasetStore returns the dataset storage interface
func (s *Store) DatasetStore() interfaces.DatasetStore { return s }

// ReportStore returns the report storage interface
func (s *Store) ReportStore() interfaces.ReportStore { return s }

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

// WriteRaw upserts a binary artefact
func (s *Store) WriteRaw(subdir, key string, data []byte) error {
	_, err := s.db.Exec(`INSERT INTO raw(subdir, key, data) VALUES(?, ?, ?)
		ON CONFLICT(subdir, key) DO UPDATE SET data = excluded.data`, subdir, key, data)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", subdir, key, err)
	}
	return nil
}

// ReadRaw returns an artefact written by WriteRaw
func (s *Store) ReadRaw(subdir, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM raw WHERE subdir = ? AND key = ?`, subdir, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("'%s/%s': %w", subdir, key, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", subdir, key, err)
	}
	return data, nil
}

// GetDataset loads the cached universe and every NAV history
func (s *Store) GetDataset(ctx context.Context) (*models.Dataset, error) {
	var fetched string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaFetchedAt).Scan(&fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("'dataset': %w", interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset metadata: %w", err)
	}

	ds := &models.Dataset{History: make(map[string][]models.NAVObservation)}
	if ds.FetchedAt, err = time.Parse(time.RFC3339Nano, fetched); err != nil {
		return nil, fmt.Errorf("invalid dataset timestamp %q: %w", fetched, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT scheme_code, scheme_name, category, amc FROM funds ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	for rows.Next() {
		var f models.Fund
		if err := rows.Scan(&f.ID, &f.Name, &f.Category, &f.AMC); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		ds.Funds = append(ds.Funds, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read funds: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT scheme_code, date, nav FROM nav ORDER BY scheme_code, date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nav: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code, date string
		var nav float64
		if err := rows.Scan(&code, &date, &nav); err != nil {
			return nil, fmt.Errorf("failed to scan nav: %w", err)
		}
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			s.logger.Warn().Str("scheme", code).Str("date", date).Msg("Skipping NAV row with invalid date")
			continue
		}
		ds.History[code] = append(ds.History[code], models.NAVObservation{Date: t, NAV: nav})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nav: %w", err)
	}
	return ds, nil
}

// SaveDataset replaces the cached dataset in a single transaction
func (s *Store) SaveDataset(ctx context.Context, ds *models.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearDataset(ctx, tx); err != nil {
		return err
	}

	fundStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO funds(scheme_code, scheme_name, category, amc) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare fund insert: %w", err)
	}
	defer fundStmt.Close()
	for _, f := range ds.Funds {
		if _, err := fundStmt.ExecContext(ctx, f.ID, f.Name, f.Category, f.AMC); err != nil {
			return fmt.Errorf("failed to insert fund %s: %w", f.ID, err)
		}
	}

	navStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO nav(scheme_code, date, nav) VALUES(?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare nav insert: %w", err)
	}
	defer navStmt.Close()
	for code, history := range ds.History {
		for _, o := range history {
			if _, err := navStmt.ExecContext(ctx, code, o.Date.Format(dateLayout), o.NAV); err != nil {
				return fmt.Errorf("failed to insert nav for %s: %w", code, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key, value) VALUES(?, ?)`,
		metaFetchedAt, ds.FetchedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to write dataset metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}
	s.logger.Debug().Int("funds", len(ds.Funds)).Int("histories", len(ds.History)).Msg("Dataset saved")
	return nil
}

// DeleteDataset removes the cached dataset
func (s *Store) DeleteDataset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := clearDataset(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func clearDataset(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`DELETE FROM funds`,
		`DELETE FROM nav`,
		`DELETE FROM meta WHERE key = '` + metaFetchedAt + `'`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear dataset: %w", err)
		}
	}
	return nil
}

// GetReport loads a stored simulation report
func (s *Store) GetReport(ctx context.Context, runID string) (*models.SimulationReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE run_id = ?`, runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("'%s': %w", runID, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", runID, err)
	}
	var report models.SimulationReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", runID, err)
	}
	return &report, nil
}

// SaveReport upserts a simulation report
func (s *Store) SaveReport(ctx context.Context, report *models.SimulationReport) error {
	if report.RunID == "" {
		return errors.New("report has no run id")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO reports(run_id, created_at, body) VALUES(?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET created_at = excluded.created_at, body = excluded.body`,
		report.RunID, report.CreatedAt.UTC().Format(time.RFC3339Nano), string(body))
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.RunID, err)
	}
	return nil
}

// ListReports returns stored run IDs in ascending order
func (s *Store) ListReports(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM reports ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan report id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
