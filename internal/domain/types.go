package domain

import "time"

const (
	FileStatusAdded    = "added"
	FileStatusDeleted  = "deleted"
	FileStatusModified = "modified"
	FileStatusRenamed  = "renamed"
)

const (
	ChangeAdd    = "add"
	ChangeDel    = "del"
	ChangeNormal = "normal"
)

// ParsedFile is one changed file from a unified diff.
type ParsedFile struct {
	Path      string        `json:"path"`
	OldPath   string        `json:"oldPath,omitempty"`
	Additions int           `json:"additions"`
	Deletions int           `json:"deletions"`
	Status    string        `json:"status"`
	Chunks    []ParsedChunk `json:"chunks"`
}

// ParsedChunk is a single @@ hunk.
type ParsedChunk struct {
	OldStart int            `json:"oldStart"`
	NewStart int            `json:"newStart"`
	Changes  []ParsedChange `json:"changes"`
}

// ParsedChange is one line within a hunk. LineNumber refers to the new
// file for additions and context lines, and to the old file for deletions.
type ParsedChange struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	LineNumber int    `json:"lineNumber"`
}

// RiskLevel is the coarse severity classification for a change set.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

const (
	ImpactDirect   = "direct"
	ImpactIndirect = "indirect"
)

// FeatureImpact records how one configured feature is affected.
// AffectedFiles is always empty for indirect impacts.
type FeatureImpact struct {
	Name          string   `json:"name"`
	AffectedFiles []string `json:"affectedFiles"`
	ChangeType    string   `json:"changeType"`
	Description   string   `json:"description"`
}

// ImpactResult is the output of impact analysis for one change set.
type ImpactResult struct {
	Features  []FeatureImpact `json:"features"`
	Services  []string        `json:"services"`
	Pages     []string        `json:"pages"`
	RiskLevel RiskLevel       `json:"riskLevel"`
	Summary   string          `json:"summary"`
}

// DirectFeatureCount returns the number of directly impacted features.
func (r ImpactResult) DirectFeatureCount() int {
	count := 0
	for _, f := range r.Features {
		if f.ChangeType == ImpactDirect {
			count++
		}
	}
	return count
}

// ModuleInfo is the static summary for one indexed source file.
type ModuleInfo struct {
	Path     string   `json:"path"`
	Language string   `json:"language"`
	Imports  []string `json:"imports"`
	Exports  []string `json:"exports"`
	Summary  string   `json:"summary,omitempty"`
}

// CodebaseIndex is a bounded snapshot of a repository at one commit.
// It is rebuilt wholesale whenever the default branch head moves past
// CommitSHA; it is never patched incrementally.
type CodebaseIndex struct {
	RepoFullName string       `json:"repoFullName"`
	CommitSHA    string       `json:"commitSha"`
	CreatedAt    time.Time    `json:"createdAt"`
	Tree         []string     `json:"tree"`
	Modules      []ModuleInfo `json:"modules"`
}

// Stale reports whether the index no longer describes the given head commit.
func (i CodebaseIndex) Stale(headSHA string) bool {
	return i.CommitSHA != headSHA
}

// TestScenario priority and type enumerations.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

const (
	ScenarioFunctional  = "functional"
	ScenarioRegression  = "regression"
	ScenarioEdgeCase    = "edge-case"
	ScenarioIntegration = "integration"
)

// TestScenario is one AI-generated test case.
type TestScenario struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Feature        string   `json:"feature"`
	Priority       string   `json:"priority"`
	Type           string   `json:"type"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expectedResult"`
}

// CodeReviewItem severity and category enumerations.
const (
	SeverityCritical   = "critical"
	SeverityWarning    = "warning"
	SeverityInfo       = "info"
	SeveritySuggestion = "suggestion"
)

const (
	CategoryBug             = "bug"
	CategorySecurity        = "security"
	CategoryPerformance     = "performance"
	CategoryMaintainability = "maintainability"
	CategoryStyle           = "style"
)

// CodeReviewItem is one AI-generated review finding.
type CodeReviewItem struct {
	ID          string `json:"id"`
	File        string `json:"file"`
	Line        int    `json:"line,omitempty"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// ReportStats are the headline numbers for an analysis run.
type ReportStats struct {
	FilesChanged     int `json:"filesChanged"`
	Additions        int `json:"additions"`
	Deletions        int `json:"deletions"`
	FeaturesAffected int `json:"featuresAffected"`
}

// AnalysisReport is the final assembled artifact for one analysis run.
// Target identifies what was analyzed: "pr/42" or "main...feature-x".
type AnalysisReport struct {
	Repository    string           `json:"repository"`
	Target        string           `json:"target"`
	Title         string           `json:"title,omitempty"`
	HeadSHA       string           `json:"headSha,omitempty"`
	ConfigSource  string           `json:"configSource,omitempty"`
	GeneratedAt   time.Time        `json:"generatedAt"`
	Impact        ImpactResult     `json:"impact"`
	TestScenarios []TestScenario   `json:"testScenarios"`
	CodeReview    []CodeReviewItem `json:"codeReview"`
	Stats         ReportStats      `json:"stats"`
}
