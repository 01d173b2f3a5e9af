package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions controls where configuration is loaded from.
type LoaderOptions struct {
	// ConfigPaths are directories searched for the config file, in order.
	ConfigPaths []string
	// FileName is the config file name without extension. Defaults to
	// "diffscope".
	FileName string
	// EnvPrefix is the prefix for environment variable overrides.
	// Defaults to "DIFFSCOPE".
	EnvPrefix string
}

var (
	bracedVarRegex = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	bareVarRegex   = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
)

// Load reads configuration from file and environment, applies defaults,
// and expands ${VAR} references in string values.
func Load(opts LoaderOptions) (*Config, error) {
	if opts.FileName == "" {
		opts.FileName = "diffscope"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "DIFFSCOPE"
	}

	v := viper.New()
	v.SetConfigName(opts.FileName)
	v.SetConfigType("yaml")

	paths := append([]string{}, opts.ConfigPaths...)
	paths = append(paths, ".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandConfig(&cfg)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers.anthropic.enabled", true)
	v.SetDefault("providers.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("providers.anthropic.apiKey", "${ANTHROPIC_API_KEY}")
	v.SetDefault("providers.openai.enabled", true)
	v.SetDefault("providers.openai.model", "gpt-4o")
	v.SetDefault("providers.openai.apiKey", "${OPENAI_API_KEY}")

	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.maxRetries", 3)
	v.SetDefault("http.initialBackoff", "2s")
	v.SetDefault("http.maxBackoff", "32s")
	v.SetDefault("http.backoffMultiplier", 2.0)

	v.SetDefault("github.token", "${GITHUB_TOKEN}")
	v.SetDefault("github.baseURL", "https://api.github.com")

	v.SetDefault("git.repositoryDir", ".")

	v.SetDefault("indexing.maxModules", 30)
	v.SetDefault("indexing.batchSize", 10)
	v.SetDefault("indexing.maxFileSize", 1048576)
	v.SetDefault("indexing.aliasPrefix", "@/")

	v.SetDefault("impact.mapPath", ".diffscope/impact-map.yaml")
	v.SetDefault("impact.maxScenarios", 10)
	v.SetDefault("impact.maxReviewItems", 15)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", defaultStorePath())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "human")
	v.SetDefault("logging.redactAPIKeys", true)
}

func expandConfig(cfg *Config) {
	for name, p := range cfg.Providers {
		p.APIKey = expandEnvVars(p.APIKey)
		p.Model = expandEnvVars(p.Model)
		cfg.Providers[name] = p
	}
	cfg.GitHub.Token = expandEnvVars(cfg.GitHub.Token)
	cfg.GitHub.Repository = expandEnvVars(cfg.GitHub.Repository)
	cfg.GitHub.BaseURL = expandEnvVars(cfg.GitHub.BaseURL)
	cfg.Git.RepositoryDir = expandEnvVars(cfg.Git.RepositoryDir)
	cfg.Store.Path = expandEnvVars(cfg.Store.Path)
	cfg.Impact.MapPath = expandEnvVars(cfg.Impact.MapPath)
}

// expandEnvVars replaces ${VAR} and $VAR references with their
// environment values. References to unset variables are left as-is so
// literal dollar strings survive a round trip.
func expandEnvVars(s string) string {
	s = bracedVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := bracedVarRegex.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
	s = bareVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := bareVarRegex.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
	return s
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./diffscope.db"
	}
	return filepath.Join(home, ".config", "diffscope", "diffscope.db")
}
