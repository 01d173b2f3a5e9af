// Package config loads application configuration from files and
// environment variables.
package config

// Config represents the full application configuration.
type Config struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	HTTP      HTTPConfig                `yaml:"http"`
	GitHub    GitHubConfig              `yaml:"github"`
	Git       GitConfig                 `yaml:"git"`
	Indexing  IndexingConfig            `yaml:"indexing"`
	Impact    ImpactConfig              `yaml:"impact"`
	Store     StoreConfig               `yaml:"store"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ProviderConfig configures a single AI provider.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`
}

// HTTPConfig holds global HTTP client settings.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// GitHubConfig configures the GitHub source adapter. Repository is the
// "owner/name" form; when empty the local git adapter is used instead.
type GitHubConfig struct {
	Token      string `yaml:"token"`
	BaseURL    string `yaml:"baseURL"`
	Repository string `yaml:"repository"`
}

// GitConfig configures the local source adapter.
type GitConfig struct {
	RepositoryDir string `yaml:"repositoryDir"`
}

// IndexingConfig bounds codebase index builds.
type IndexingConfig struct {
	MaxModules  int    `yaml:"maxModules"`
	BatchSize   int    `yaml:"batchSize"`
	MaxFileSize int    `yaml:"maxFileSize"`
	AliasPrefix string `yaml:"aliasPrefix"`
}

// ImpactConfig configures impact mapping and AI output bounds.
type ImpactConfig struct {
	MapPath        string `yaml:"mapPath"`
	MaxScenarios   int    `yaml:"maxScenarios"`
	MaxReviewItems int    `yaml:"maxReviewItems"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures request/response logging.
type LoggingConfig struct {
	Level         string `yaml:"level"`  // debug, info, error
	Format        string `yaml:"format"` // json, human
	RedactAPIKeys bool   `yaml:"redactAPIKeys"`
}
