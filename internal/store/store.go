// Package store defines the persistence contract for cached indexes,
// impact-map overrides and analysis history. Callers treat stored
// values as opaque blobs; schema ownership stays with the adapter.
package store

import (
	"context"
	"time"

	"github.com/cwhitney/diffscope/internal/domain"
)

// ReportSummary is one row of analysis history.
type ReportSummary struct {
	ID               string
	Repository       string
	Target           string
	RiskLevel        domain.RiskLevel
	FilesChanged     int
	FeaturesAffected int
	GeneratedAt      time.Time
}

// Store persists per-user pipeline state. The index methods satisfy the
// indexer's cache port.
type Store interface {
	GetIndex(ctx context.Context, user, repo string) (domain.CodebaseIndex, bool, error)
	PutIndex(ctx context.Context, user, repo string, idx domain.CodebaseIndex) error

	// GetImpactMapOverride returns the stored impact-map YAML, if any.
	GetImpactMapOverride(ctx context.Context, user, repo string) ([]byte, bool, error)
	PutImpactMapOverride(ctx context.Context, user, repo string, raw []byte) error

	SaveReport(ctx context.Context, user string, report domain.AnalysisReport) error
	ListReports(ctx context.Context, user, repo string, limit int) ([]ReportSummary, error)
	GetReport(ctx context.Context, user, id string) (domain.AnalysisReport, bool, error)

	Close() error
}
