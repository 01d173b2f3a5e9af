// Package analysis orchestrates the impact-analysis pipeline: diff
// parsing, impact mapping, codebase context, AI generation and report
// assembly.
package analysis

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwhitney/diffscope/internal/adapter/scm"
	"github.com/cwhitney/diffscope/internal/diff"
	"github.com/cwhitney/diffscope/internal/domain"
	"github.com/cwhitney/diffscope/internal/impact"
	"github.com/cwhitney/diffscope/internal/prompt"
	"github.com/cwhitney/diffscope/internal/report"
)

// Source supplies diffs and PR metadata.
type Source interface {
	PullRequestDiff(ctx context.Context, number int) (string, error)
	PullRequest(ctx context.Context, number int) (scm.PullRequest, error)
	CompareDiff(ctx context.Context, base, head string) (string, error)
}

// Generator produces validated AI outputs from prepared prompts.
type Generator interface {
	Name() string
	GenerateTestScenarios(ctx context.Context, prompt string, maxScenarios int) ([]domain.TestScenario, error)
	GenerateCodeReview(ctx context.Context, prompt string, maxItems int) ([]domain.CodeReviewItem, error)
}

// ConfigResolver supplies the effective impact map and a source label.
type ConfigResolver interface {
	Resolve(ctx context.Context, user, repo string) (impact.MapConfig, string)
}

// IndexProvider supplies a current codebase index.
type IndexProvider interface {
	Get(ctx context.Context, user, repo string) (domain.CodebaseIndex, error)
}

// ContextBuilder renders codebase context for changed paths.
type ContextBuilder interface {
	Context(idx domain.CodebaseIndex, changedPaths []string) string
}

// ReportSaver persists finished reports. Persistence failures never
// fail an analysis.
type ReportSaver interface {
	SaveReport(ctx context.Context, user string, report domain.AnalysisReport) error
}

// Logger is the narrow logging port for pipeline degradation warnings.
type Logger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// Options bound AI output sizes.
type Options struct {
	MaxScenarios   int
	MaxReviewItems int
}

// DefaultOptions returns the standard output bounds.
func DefaultOptions() Options {
	return Options{MaxScenarios: 10, MaxReviewItems: 15}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxScenarios <= 0 {
		o.MaxScenarios = d.MaxScenarios
	}
	if o.MaxReviewItems <= 0 {
		o.MaxReviewItems = d.MaxReviewItems
	}
	return o
}

// Orchestrator runs the pipeline for one user and repository.
type Orchestrator struct {
	source    Source
	generator Generator
	resolver  ConfigResolver
	indexes   IndexProvider
	contexts  ContextBuilder
	saver     ReportSaver
	logger    Logger
	user      string
	repo      string
	opts      Options
	now       func() time.Time
}

// NewOrchestrator wires the pipeline. indexes, contexts, saver and
// logger may be nil; each disables its optional stage.
func NewOrchestrator(source Source, generator Generator, resolver ConfigResolver,
	indexes IndexProvider, contexts ContextBuilder, saver ReportSaver,
	logger Logger, user, repo string, opts Options) *Orchestrator {
	return &Orchestrator{
		source:    source,
		generator: generator,
		resolver:  resolver,
		indexes:   indexes,
		contexts:  contexts,
		saver:     saver,
		logger:    logger,
		user:      user,
		repo:      repo,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// AnalyzePR runs the full pipeline for one pull request.
func (o *Orchestrator) AnalyzePR(ctx context.Context, number int) (domain.AnalysisReport, error) {
	var rawDiff string
	var pr scm.PullRequest

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawDiff, err = o.source.PullRequestDiff(gctx, number)
		return err
	})
	g.Go(func() error {
		var err error
		pr, err = o.source.PullRequest(gctx, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.AnalysisReport{}, err
	}

	return o.analyze(ctx, rawDiff, report.TargetForPR(number), pr.Title, pr.HeadSHA)
}

// AnalyzeRefs runs the full pipeline for a base...head comparison.
func (o *Orchestrator) AnalyzeRefs(ctx context.Context, base, head string) (domain.AnalysisReport, error) {
	rawDiff, err := o.source.CompareDiff(ctx, base, head)
	if err != nil {
		return domain.AnalysisReport{}, err
	}

	return o.analyze(ctx, rawDiff, report.TargetForRefs(base, head), "", "")
}

// analyze is the shared pipeline tail. It either returns a complete
// report or one classified error; codebase context and persistence are
// the only best-effort stages.
func (o *Orchestrator) analyze(ctx context.Context, rawDiff, target, title, headSHA string) (domain.AnalysisReport, error) {
	files := diff.Parse(rawDiff)

	cfg, configSource := o.resolver.Resolve(ctx, o.user, o.repo)
	impactResult := impact.NewAnalyzer(cfg).Analyze(files)

	codebaseContext := o.buildContext(ctx, files)

	testPrompt, err := prompt.BuildTestScenarioPrompt(impactResult, files, codebaseContext, o.opts.MaxScenarios)
	if err != nil {
		return domain.AnalysisReport{}, domain.NewPipelineError("ai-generation", domain.KindInternal, "build test scenario prompt", err)
	}
	reviewPrompt := prompt.BuildCodeReviewPrompt(impactResult, files, rawDiff, codebaseContext, o.opts.MaxReviewItems)

	scenarios, err := o.generator.GenerateTestScenarios(ctx, testPrompt, o.opts.MaxScenarios)
	if err != nil {
		return domain.AnalysisReport{}, err
	}
	reviewItems, err := o.generator.GenerateCodeReview(ctx, reviewPrompt, o.opts.MaxReviewItems)
	if err != nil {
		return domain.AnalysisReport{}, err
	}

	result := report.Assemble(report.Input{
		Repository:    o.repo,
		Target:        target,
		Title:         title,
		HeadSHA:       headSHA,
		ConfigSource:  configSource,
		Files:         files,
		Impact:        impactResult,
		TestScenarios: scenarios,
		CodeReview:    reviewItems,
	}, o.now())

	if o.saver != nil {
		if err := o.saver.SaveReport(ctx, o.user, result); err != nil {
			o.warn(ctx, "report persistence failed", map[string]interface{}{
				"repo": o.repo, "target": target, "error": err.Error(),
			})
		}
	}

	return result, nil
}

// buildContext returns rendered codebase context, or empty when the
// index is unavailable. Index failures degrade the analysis instead of
// failing it.
func (o *Orchestrator) buildContext(ctx context.Context, files []domain.ParsedFile) string {
	if o.indexes == nil || o.contexts == nil || len(files) == 0 {
		return ""
	}

	idx, err := o.indexes.Get(ctx, o.user, o.repo)
	if err != nil {
		o.warn(ctx, "codebase index unavailable, continuing without context", map[string]interface{}{
			"repo": o.repo, "error": err.Error(),
		})
		return ""
	}

	changed := make([]string, 0, len(files))
	for _, f := range files {
		changed = append(changed, f.Path)
	}
	return o.contexts.Context(idx, changed)
}

func (o *Orchestrator) warn(ctx context.Context, message string, fields map[string]interface{}) {
	if o.logger != nil {
		o.logger.LogWarning(ctx, message, fields)
	}
}
