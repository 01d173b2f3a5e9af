package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cwhitney/diffscope/internal/adapter/cli"
	"github.com/cwhitney/diffscope/internal/adapter/llm/anthropic"
	llmhttp "github.com/cwhitney/diffscope/internal/adapter/llm/http"
	"github.com/cwhitney/diffscope/internal/adapter/llm/openai"
	"github.com/cwhitney/diffscope/internal/adapter/scm"
	"github.com/cwhitney/diffscope/internal/adapter/scm/github"
	"github.com/cwhitney/diffscope/internal/adapter/scm/local"
	"github.com/cwhitney/diffscope/internal/adapter/store/sqlite"
	"github.com/cwhitney/diffscope/internal/config"
	"github.com/cwhitney/diffscope/internal/impact"
	"github.com/cwhitney/diffscope/internal/index"
	"github.com/cwhitney/diffscope/internal/store"
	"github.com/cwhitney/diffscope/internal/usecase/analysis"
	"github.com/cwhitney/diffscope/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Cancellable context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "diffscope",
		EnvPrefix:   "DIFFSCOPE",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := buildLogger(cfg.Logging)

	source, user, repoName, err := buildSource(cfg)
	if err != nil {
		return err
	}

	generator, err := buildGenerator(cfg, logger)
	if err != nil {
		return err
	}

	// Persistence is optional; every consumer degrades without it.
	var pipelineStore store.Store
	if cfg.Store.Enabled {
		storeDir := filepath.Dir(cfg.Store.Path)
		if err := os.MkdirAll(storeDir, 0755); err != nil {
			log.Printf("warning: failed to create store directory: %v", err)
		} else {
			sqliteStore, err := sqlite.NewStore(cfg.Store.Path)
			if err != nil {
				log.Printf("warning: failed to initialize store: %v", err)
			} else {
				pipelineStore = sqliteStore
				defer pipelineStore.Close()
			}
		}
	}

	warnings := warnLogger{}

	var overrides impact.OverrideStore
	if pipelineStore != nil {
		overrides = pipelineStore
	}
	resolver := impact.NewResolver(source, overrides)
	if cfg.Impact.MapPath != "" {
		resolver.SetMapPath(cfg.Impact.MapPath)
	}

	builder := index.NewBuilder(source, index.Options{
		MaxModules:  cfg.Indexing.MaxModules,
		BatchSize:   cfg.Indexing.BatchSize,
		MaxFileSize: cfg.Indexing.MaxFileSize,
	})
	var indexCache index.Cache
	if pipelineStore != nil {
		indexCache = pipelineStore
	}
	indexes := index.NewCachedProvider(builder, indexCache, source, warnings)
	retriever := index.NewRetriever(cfg.Indexing.AliasPrefix)

	var saver analysis.ReportSaver
	if pipelineStore != nil {
		saver = pipelineStore
	}

	orchestrator := analysis.NewOrchestrator(source, generator, resolver,
		indexes, retriever, saver, warnings, user, repoName, analysis.Options{
			MaxScenarios:   cfg.Impact.MaxScenarios,
			MaxReviewItems: cfg.Impact.MaxReviewItems,
		})

	var history cli.HistoryLister
	if pipelineStore != nil {
		history = pipelineStore
	}

	root := cli.NewRootCommand(cli.Dependencies{
		Analyzer:   orchestrator,
		Indexes:    indexes,
		History:    history,
		User:       user,
		Repository: repoName,
		Version:    version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

// buildSource picks GitHub when an owner/name repository is configured,
// otherwise the local git clone.
func buildSource(cfg *config.Config) (scm.Reader, string, string, error) {
	if cfg.GitHub.Repository != "" {
		owner, repo, ok := strings.Cut(cfg.GitHub.Repository, "/")
		if !ok || owner == "" || repo == "" {
			return nil, "", "", fmt.Errorf("github.repository must be in owner/name form, got %q", cfg.GitHub.Repository)
		}
		if cfg.GitHub.Token == "" {
			return nil, "", "", fmt.Errorf("github.repository is set but no token is configured; set GITHUB_TOKEN or github.token")
		}
		client := github.NewClient(cfg.GitHub.Token, owner, repo)
		if cfg.GitHub.BaseURL != "" {
			client.SetBaseURL(cfg.GitHub.BaseURL)
		}
		if timeout := parseDuration(cfg.HTTP.Timeout); timeout > 0 {
			client.SetTimeout(timeout)
		}
		client.SetRetryConfig(retryConfig(cfg.HTTP))
		return client, owner, client.RepoFullName(), nil
	}

	repoDir := cfg.Git.RepositoryDir
	if repoDir == "" {
		repoDir = "."
	}
	return local.NewEngine(repoDir), "local", repositoryName(repoDir), nil
}

// buildGenerator picks the first enabled provider with an API key,
// preferring Anthropic.
func buildGenerator(cfg *config.Config, logger llmhttp.Logger) (analysis.Generator, error) {
	timeout := parseDuration(cfg.HTTP.Timeout)
	retries := retryConfig(cfg.HTTP)

	if p, ok := cfg.Providers["anthropic"]; ok && p.Enabled && realKey(p.APIKey) {
		provider := anthropic.NewProvider(p.APIKey, p.Model, logger)
		if timeout > 0 {
			provider.Client().SetTimeout(timeout)
		}
		provider.Client().SetRetryConfig(retries)
		return provider, nil
	}
	if p, ok := cfg.Providers["openai"]; ok && p.Enabled && realKey(p.APIKey) {
		provider := openai.NewProvider(p.APIKey, p.Model, logger)
		if timeout > 0 {
			provider.Client().SetTimeout(timeout)
		}
		provider.Client().SetRetryConfig(retries)
		return provider, nil
	}
	return nil, fmt.Errorf("no AI provider available; set ANTHROPIC_API_KEY or OPENAI_API_KEY")
}

// realKey filters out unexpanded ${VAR} placeholders left by the config
// loader when the environment variable is unset.
func realKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, "$")
}

func buildLogger(cfg config.LoggingConfig) llmhttp.Logger {
	level := llmhttp.LogLevelInfo
	switch cfg.Level {
	case "debug":
		level = llmhttp.LogLevelDebug
	case "error":
		level = llmhttp.LogLevelError
	}

	format := llmhttp.LogFormatHuman
	if cfg.Format == "json" {
		format = llmhttp.LogFormatJSON
	}

	return llmhttp.NewDefaultLogger(level, format, cfg.RedactAPIKeys)
}

func retryConfig(cfg config.HTTPConfig) llmhttp.RetryConfig {
	rc := llmhttp.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		rc.MaxRetries = cfg.MaxRetries
	}
	if d := parseDuration(cfg.InitialBackoff); d > 0 {
		rc.InitialBackoff = d
	}
	if d := parseDuration(cfg.MaxBackoff); d > 0 {
		rc.MaxBackoff = d
	}
	if cfg.BackoffMultiplier > 1 {
		rc.Multiplier = cfg.BackoffMultiplier
	}
	return rc
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("warning: invalid duration %q ignored", s)
		return 0
	}
	return d
}

func repositoryName(repoDir string) string {
	abs, err := filepath.Abs(repoDir)
	if err != nil {
		return "unknown"
	}
	return filepath.Base(abs)
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "diffscope"))
	}
	return paths
}

// warnLogger routes pipeline degradation warnings to the process log.
type warnLogger struct{}

func (warnLogger) LogWarning(_ context.Context, message string, fields map[string]interface{}) {
	if len(fields) == 0 {
		log.Printf("warning: %s", message)
		return
	}
	log.Printf("warning: %s %v", message, fields)
}

// Compile-time interface compliance checks
var _ scm.Reader = (*github.Client)(nil)
var _ scm.Reader = (*local.Engine)(nil)
var _ analysis.Generator = (*anthropic.Provider)(nil)
var _ analysis.Generator = (*openai.Provider)(nil)
var _ analysis.Source = (*github.Client)(nil)
var _ analysis.Source = (*local.Engine)(nil)
var _ index.Source = (*github.Client)(nil)
var _ impact.FileFetcher = (*local.Engine)(nil)
var _ store.Store = (*sqlite.Store)(nil)
