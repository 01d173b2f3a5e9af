// Package cli wires the analysis pipeline into Cobra commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cwhitney/diffscope/internal/domain"
	"github.com/cwhitney/diffscope/internal/report"
	"github.com/cwhitney/diffscope/internal/store"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Analyzer defines the dependency required to run the analyze command.
type Analyzer interface {
	AnalyzePR(ctx context.Context, number int) (domain.AnalysisReport, error)
	AnalyzeRefs(ctx context.Context, base, head string) (domain.AnalysisReport, error)
}

// IndexReader supplies a current codebase index for the index command.
type IndexReader interface {
	Get(ctx context.Context, user, repo string) (domain.CodebaseIndex, error)
}

// HistoryLister lists prior analysis runs for the history command.
type HistoryLister interface {
	ListReports(ctx context.Context, user, repo string, limit int) ([]store.ReportSummary, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Analyzer   Analyzer
	Indexes    IndexReader
	History    HistoryLister
	Args       Arguments
	User       string
	Repository string
	Version    string
}

// isTerminal reports whether the fd is an interactive terminal. Stubbed
// in tests.
var isTerminal = func(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "diffscope",
		Short: "AI-assisted change impact analysis",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(analyzeCommand(deps.Analyzer, deps.Repository))
	root.AddCommand(indexCommand(deps.Indexes, deps.User, deps.Repository))
	root.AddCommand(historyCommand(deps.History, deps.User, deps.Repository))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.PreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func analyzeCommand(analyzer Analyzer, repository string) *cobra.Command {
	var baseRef string
	var headRef string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze [pr-number]",
		Short: "Analyze a pull request or a ref pair",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var rep domain.AnalysisReport
			var err error
			switch {
			case len(args) == 1:
				number, convErr := strconv.Atoi(args[0])
				if convErr != nil || number <= 0 {
					return fmt.Errorf("invalid pull request number %q", args[0])
				}
				rep, err = analyzer.AnalyzePR(ctx, number)
			case headRef != "":
				rep, err = analyzer.AnalyzeRefs(ctx, baseRef, headRef)
			default:
				return fmt.Errorf("nothing to analyze; pass a pull request number or --head")
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}

			if isTerminal(os.Stderr.Fd()) {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s  %s  %d files, %d features affected\n",
					riskColor(rep.Impact.RiskLevel)(string(rep.Impact.RiskLevel)), repository, rep.Stats.FilesChanged, rep.Stats.FeaturesAffected)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), report.RenderMarkdown(rep))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseRef, "base", "main", "Base reference to diff against")
	cmd.Flags().StringVar(&headRef, "head", "", "Head reference to analyze (enables ref-pair mode)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON instead of Markdown")

	return cmd
}

func indexCommand(indexes IndexReader, user, repository string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or inspect the codebase index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexes == nil {
				return fmt.Errorf("indexing is not configured; enable the store or check source settings")
			}
			idx, err := indexes.Get(cmd.Context(), user, repository)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), idx)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Repository: %s\n", idx.RepoFullName)
			_, _ = fmt.Fprintf(out, "Indexed at: %s (head %s)\n", idx.CreatedAt.Format("2006-01-02 15:04:05 MST"), shortRef(idx.CommitSHA))
			_, _ = fmt.Fprintf(out, "Tree files: %d\n", len(idx.Tree))
			_, _ = fmt.Fprintf(out, "Modules:    %d\n", len(idx.Modules))
			for _, mod := range sortedModules(idx.Modules) {
				_, _ = fmt.Fprintf(out, "  %-12s %s\n", mod.Language, mod.Path)
				if mod.Summary != "" {
					_, _ = fmt.Fprintf(out, "  %-12s %s\n", "", mod.Summary)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the index as JSON")

	return cmd
}

func historyCommand(history HistoryLister, user, repository string) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List prior analysis runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if history == nil {
				return fmt.Errorf("history requires the store; enable it in configuration")
			}
			summaries, err := history.ListReports(cmd.Context(), user, repository, limit)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				_, _ = fmt.Fprintln(out, "No analysis runs recorded.")
				return nil
			}
			for _, s := range summaries {
				_, _ = fmt.Fprintf(out, "%s  %-8s  %-20s  %3d files  %2d features  %s\n",
					s.GeneratedAt.Format("2006-01-02 15:04"),
					riskColor(s.RiskLevel)(string(s.RiskLevel)),
					s.Target,
					s.FilesChanged,
					s.FeaturesAffected,
					s.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit history as JSON")

	return cmd
}

func riskColor(level domain.RiskLevel) func(a ...interface{}) string {
	switch level {
	case domain.RiskCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case domain.RiskHigh:
		return color.New(color.FgRed).SprintFunc()
	case domain.RiskMedium:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgGreen).SprintFunc()
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortRef(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

func sortedModules(modules []domain.ModuleInfo) []domain.ModuleInfo {
	sorted := append([]domain.ModuleInfo(nil), modules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return sorted
}
