package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwhitney/diffscope/internal/adapter/scm"
	"github.com/cwhitney/diffscope/internal/domain"
	"github.com/cwhitney/diffscope/internal/impact"
	"github.com/cwhitney/diffscope/internal/report"
)

const testDiff = `diff --git a/src/billing/invoice.ts b/src/billing/invoice.ts
index 1111111..2222222 100644
--- a/src/billing/invoice.ts
+++ b/src/billing/invoice.ts
@@ -10,3 +10,4 @@ export function computeTotal() {
 const a = 1;
+const tax = 2;
 const b = 3;
 const c = 4;
`

type fakeSource struct {
	diff    string
	pr      scm.PullRequest
	diffErr error
	prErr   error
}

func (f *fakeSource) PullRequestDiff(ctx context.Context, number int) (string, error) {
	return f.diff, f.diffErr
}

func (f *fakeSource) PullRequest(ctx context.Context, number int) (scm.PullRequest, error) {
	return f.pr, f.prErr
}

func (f *fakeSource) CompareDiff(ctx context.Context, base, head string) (string, error) {
	return f.diff, f.diffErr
}

type fakeGenerator struct {
	scenarios      []domain.TestScenario
	items          []domain.CodeReviewItem
	scenarioErr    error
	reviewErr      error
	scenarioPrompt string
	reviewPrompt   string
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) GenerateTestScenarios(ctx context.Context, prompt string, max int) ([]domain.TestScenario, error) {
	f.scenarioPrompt = prompt
	return f.scenarios, f.scenarioErr
}

func (f *fakeGenerator) GenerateCodeReview(ctx context.Context, prompt string, max int) ([]domain.CodeReviewItem, error) {
	f.reviewPrompt = prompt
	return f.items, f.reviewErr
}

type fakeResolver struct {
	cfg    impact.MapConfig
	source string
}

func (f *fakeResolver) Resolve(ctx context.Context, user, repo string) (impact.MapConfig, string) {
	return f.cfg, f.source
}

type fakeIndexProvider struct {
	idx domain.CodebaseIndex
	err error
}

func (f *fakeIndexProvider) Get(ctx context.Context, user, repo string) (domain.CodebaseIndex, error) {
	return f.idx, f.err
}

type fakeContextBuilder struct {
	rendered string
}

func (f *fakeContextBuilder) Context(idx domain.CodebaseIndex, changedPaths []string) string {
	return f.rendered
}

type fakeSaver struct {
	saved []domain.AnalysisReport
	err   error
}

func (f *fakeSaver) SaveReport(ctx context.Context, user string, r domain.AnalysisReport) error {
	f.saved = append(f.saved, r)
	return f.err
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.warnings = append(l.warnings, message)
}

func billingConfig() impact.MapConfig {
	return impact.MapConfig{
		Features: []impact.Feature{
			{Name: "billing", Description: "Invoicing", Paths: []string{"src/billing/**"}},
		},
	}
}

func newTestOrchestrator(source *fakeSource, gen *fakeGenerator, saver ReportSaver, logger Logger, indexes IndexProvider, contexts ContextBuilder) *Orchestrator {
	return NewOrchestrator(source, gen, &fakeResolver{cfg: billingConfig(), source: impact.SourceRepository},
		indexes, contexts, saver, logger, "alice", "acme/shop", Options{})
}

func TestAnalyzePRProducesCompleteReport(t *testing.T) {
	source := &fakeSource{
		diff: testDiff,
		pr:   scm.PullRequest{Number: 42, Title: "Add tax", HeadSHA: "abc123"},
	}
	gen := &fakeGenerator{
		scenarios: []domain.TestScenario{{ID: "s-1", Title: "t", Priority: domain.PriorityHigh, Type: domain.ScenarioFunctional}},
		items:     []domain.CodeReviewItem{{ID: "r-1", Title: "f", Severity: domain.SeverityInfo, Category: domain.CategoryStyle}},
	}
	saver := &fakeSaver{}
	logger := &recordingLogger{}

	orch := newTestOrchestrator(source, gen, saver, logger,
		&fakeIndexProvider{idx: domain.CodebaseIndex{CommitSHA: "abc123"}},
		&fakeContextBuilder{rendered: "## Changed modules"})

	result, err := orch.AnalyzePR(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "acme/shop", result.Repository)
	assert.Equal(t, "pr/42", result.Target)
	assert.Equal(t, "Add tax", result.Title)
	assert.Equal(t, "abc123", result.HeadSHA)
	assert.Equal(t, impact.SourceRepository, result.ConfigSource)
	assert.Equal(t, 1, result.Stats.FilesChanged)
	assert.Equal(t, 1, result.Stats.Additions)
	assert.Equal(t, 1, result.Stats.FeaturesAffected)
	assert.Len(t, result.TestScenarios, 1)
	assert.Len(t, result.CodeReview, 1)
	assert.False(t, result.GeneratedAt.IsZero())

	// billing feature matched via the impact map
	require.Len(t, result.Impact.Features, 1)
	assert.Equal(t, "billing", result.Impact.Features[0].Name)

	// prompts carried the rendered codebase context
	assert.Contains(t, gen.scenarioPrompt, "## Changed modules")
	assert.Contains(t, gen.reviewPrompt, "## Changed modules")
	// review prompt embeds the diff verbatim
	assert.Contains(t, gen.reviewPrompt, "+const tax = 2;")

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "pr/42", saver.saved[0].Target)
	assert.Empty(t, logger.warnings)
}

func TestAnalyzeRefs(t *testing.T) {
	source := &fakeSource{diff: testDiff}
	gen := &fakeGenerator{}

	orch := newTestOrchestrator(source, gen, nil, nil, nil, nil)

	result, err := orch.AnalyzeRefs(context.Background(), "main", "feature-x")
	require.NoError(t, err)
	assert.Equal(t, "main...feature-x", result.Target)
	assert.Empty(t, result.Title)
	assert.Empty(t, result.HeadSHA)
}

func TestAnalyzePRFailsOnDiffError(t *testing.T) {
	wantErr := domain.NewPipelineError("fetch-diff", domain.KindSCMNotFound, "pull request #42 diff", nil)
	source := &fakeSource{diffErr: wantErr, pr: scm.PullRequest{Number: 42}}

	orch := newTestOrchestrator(source, &fakeGenerator{}, nil, nil, nil, nil)

	_, err := orch.AnalyzePR(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindSCMNotFound))
}

func TestAnalyzePRFailsOnGenerationError(t *testing.T) {
	source := &fakeSource{diff: testDiff}
	gen := &fakeGenerator{
		scenarioErr: domain.NewPipelineError("ai-generation", domain.KindAIRateLimited, "slow down", nil),
	}

	orch := newTestOrchestrator(source, gen, &fakeSaver{}, nil, nil, nil)

	_, err := orch.AnalyzePR(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAIRateLimited))
}

func TestAnalyzePRFailsOnReviewParseError(t *testing.T) {
	source := &fakeSource{diff: testDiff}
	gen := &fakeGenerator{
		reviewErr: domain.NewPipelineError("ai-generation", domain.KindAIParse, "bad JSON", nil),
	}

	orch := newTestOrchestrator(source, gen, nil, nil, nil, nil)

	_, err := orch.AnalyzePR(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAIParse))
}

func TestIndexFailureDegradesToNoContext(t *testing.T) {
	source := &fakeSource{diff: testDiff}
	gen := &fakeGenerator{}
	logger := &recordingLogger{}

	orch := newTestOrchestrator(source, gen, nil, logger,
		&fakeIndexProvider{err: errors.New("tree fetch failed")},
		&fakeContextBuilder{rendered: "should not appear"})

	_, err := orch.AnalyzePR(context.Background(), 42)
	require.NoError(t, err)

	assert.NotContains(t, gen.scenarioPrompt, "should not appear")
	require.Len(t, logger.warnings, 1)
	assert.Contains(t, logger.warnings[0], "codebase index unavailable")
}

func TestSaveFailureDoesNotFailAnalysis(t *testing.T) {
	source := &fakeSource{diff: testDiff}
	saver := &fakeSaver{err: errors.New("disk full")}
	logger := &recordingLogger{}

	orch := newTestOrchestrator(source, &fakeGenerator{}, saver, logger, nil, nil)

	_, err := orch.AnalyzePR(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, logger.warnings, 1)
	assert.Contains(t, logger.warnings[0], "report persistence failed")
}

func TestReportRendersAfterPipeline(t *testing.T) {
	source := &fakeSource{diff: testDiff, pr: scm.PullRequest{Title: "Add tax"}}
	orch := newTestOrchestrator(source, &fakeGenerator{}, nil, nil, nil, nil)

	result, err := orch.AnalyzePR(context.Background(), 42)
	require.NoError(t, err)

	md := report.RenderMarkdown(result)
	assert.True(t, strings.HasPrefix(md, report.Marker))
	assert.Contains(t, md, "- Target: pr/42")
}
