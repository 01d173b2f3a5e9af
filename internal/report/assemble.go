// Package report assembles analysis results into the final report
// artifact and renders it to Markdown.
package report

import (
	"fmt"
	"time"

	"github.com/cwhitney/diffscope/internal/domain"
)

// Input carries everything Assemble combines into one report.
type Input struct {
	Repository    string
	Target        string
	Title         string
	HeadSHA       string
	ConfigSource  string
	Files         []domain.ParsedFile
	Impact        domain.ImpactResult
	TestScenarios []domain.TestScenario
	CodeReview    []domain.CodeReviewItem
}

// Assemble deterministically combines the pipeline outputs. The same
// input always produces the same report apart from the timestamp.
func Assemble(in Input, now time.Time) domain.AnalysisReport {
	return domain.AnalysisReport{
		Repository:    in.Repository,
		Target:        in.Target,
		Title:         in.Title,
		HeadSHA:       in.HeadSHA,
		ConfigSource:  in.ConfigSource,
		GeneratedAt:   now.UTC(),
		Impact:        in.Impact,
		TestScenarios: in.TestScenarios,
		CodeReview:    in.CodeReview,
		Stats:         computeStats(in.Files, in.Impact),
	}
}

func computeStats(files []domain.ParsedFile, impact domain.ImpactResult) domain.ReportStats {
	stats := domain.ReportStats{
		FilesChanged:     len(files),
		FeaturesAffected: impact.DirectFeatureCount(),
	}
	for _, f := range files {
		stats.Additions += f.Additions
		stats.Deletions += f.Deletions
	}
	return stats
}

// TargetForPR renders the report target label for a pull request.
func TargetForPR(number int) string {
	return fmt.Sprintf("pr/%d", number)
}

// TargetForRefs renders the report target label for a ref comparison.
func TargetForRefs(base, head string) string {
	return base + "..." + head
}
