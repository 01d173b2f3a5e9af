// Package sqlite implements the persistence contract on SQLite.
// Indexes and reports are stored as JSON blobs; only the columns used
// for lookups and history listings are broken out.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cwhitney/diffscope/internal/domain"
	"github.com/cwhitney/diffscope/internal/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a SQLite store at the given path. Use ":memory:"
// for an in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	-- Cached codebase indexes, one per (user, repository)
	CREATE TABLE IF NOT EXISTS indexes (
		user TEXT NOT NULL,
		repository TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		payload TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user, repository)
	);

	-- Per-user impact map overrides, stored as raw YAML
	CREATE TABLE IF NOT EXISTS impact_map_overrides (
		user TEXT NOT NULL,
		repository TEXT NOT NULL,
		payload BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user, repository)
	);

	-- Analysis run history
	CREATE TABLE IF NOT EXISTS reports (
		report_id TEXT PRIMARY KEY,
		user TEXT NOT NULL,
		repository TEXT NOT NULL,
		target TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		files_changed INTEGER NOT NULL,
		features_affected INTEGER NOT NULL,
		generated_at INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_user_repo ON reports(user, repository, generated_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetIndex implements store.Store.
func (s *Store) GetIndex(ctx context.Context, user, repo string) (domain.CodebaseIndex, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM indexes WHERE user = ? AND repository = ?`,
		user, repo).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CodebaseIndex{}, false, nil
	}
	if err != nil {
		return domain.CodebaseIndex{}, false, fmt.Errorf("query index: %w", err)
	}

	var idx domain.CodebaseIndex
	if err := json.Unmarshal([]byte(payload), &idx); err != nil {
		return domain.CodebaseIndex{}, false, fmt.Errorf("decode index: %w", err)
	}
	return idx, true, nil
}

// PutIndex implements store.Store.
func (s *Store) PutIndex(ctx context.Context, user, repo string, idx domain.CodebaseIndex) error {
	payload, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO indexes (user, repository, commit_sha, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user, repository) DO UPDATE SET
			commit_sha = excluded.commit_sha,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		user, repo, idx.CommitSHA, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store index: %w", err)
	}
	return nil
}

// GetImpactMapOverride implements store.Store.
func (s *Store) GetImpactMapOverride(ctx context.Context, user, repo string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM impact_map_overrides WHERE user = ? AND repository = ?`,
		user, repo).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query override: %w", err)
	}
	return payload, true, nil
}

// PutImpactMapOverride implements store.Store.
func (s *Store) PutImpactMapOverride(ctx context.Context, user, repo string, raw []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO impact_map_overrides (user, repository, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user, repository) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		user, repo, raw, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store override: %w", err)
	}
	return nil
}

// SaveReport implements store.Store.
func (s *Store) SaveReport(ctx context.Context, user string, report domain.AnalysisReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (report_id, user, repository, target, risk_level, files_changed, features_affected, generated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), user, report.Repository, report.Target,
		string(report.Impact.RiskLevel), report.Stats.FilesChanged,
		report.Stats.FeaturesAffected, report.GeneratedAt.Unix(), string(payload))
	if err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

// ListReports implements store.Store, newest first.
func (s *Store) ListReports(ctx context.Context, user, repo string, limit int) ([]store.ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT report_id, repository, target, risk_level, files_changed, features_affected, generated_at
		FROM reports
		WHERE user = ? AND repository = ?
		ORDER BY generated_at DESC
		LIMIT ?`,
		user, repo, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var summaries []store.ReportSummary
	for rows.Next() {
		var summary store.ReportSummary
		var risk string
		var generatedAt int64
		if err := rows.Scan(&summary.ID, &summary.Repository, &summary.Target,
			&risk, &summary.FilesChanged, &summary.FeaturesAffected, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		summary.RiskLevel = domain.RiskLevel(risk)
		summary.GeneratedAt = time.Unix(generatedAt, 0).UTC()
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// GetReport implements store.Store.
func (s *Store) GetReport(ctx context.Context, user, id string) (domain.AnalysisReport, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM reports WHERE user = ? AND report_id = ?`,
		user, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnalysisReport{}, false, nil
	}
	if err != nil {
		return domain.AnalysisReport{}, false, fmt.Errorf("query report: %w", err)
	}

	var report domain.AnalysisReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return domain.AnalysisReport{}, false, fmt.Errorf("decode report: %w", err)
	}
	return report, true, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
