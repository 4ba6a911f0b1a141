// Package config holds the aide configuration value object. The config is
// loaded once and threaded through constructors; nothing reads it ambiently.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete aide configuration (v2 schema)
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Provider  ProviderConfig  `json:"provider" mapstructure:"provider"`
	Retrieval RetrievalConfig `json:"retrieval" mapstructure:"retrieval"`
	Graph     GraphConfig     `json:"graph" mapstructure:"graph"`
	Intent    IntentConfig    `json:"intent" mapstructure:"intent"`
	Execution ExecutionConfig `json:"execution" mapstructure:"execution"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// ProviderConfig contains reasoning-service client configuration
type ProviderConfig struct {
	BaseURL     string  `json:"baseUrl" mapstructure:"baseUrl"`
	Model       string  `json:"model" mapstructure:"model"`
	APIKeyEnv   string  `json:"apiKeyEnv" mapstructure:"apiKeyEnv"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	TimeoutMs   int     `json:"timeoutMs" mapstructure:"timeoutMs"`
	MaxTokens   int     `json:"maxTokens" mapstructure:"maxTokens"`
}

// ScoringWeights controls how retrieval signals are combined.
type ScoringWeights struct {
	Keyword    float64 `json:"keyword" mapstructure:"keyword"`
	FileType   float64 `json:"fileType" mapstructure:"fileType"`
	Domain     float64 `json:"domain" mapstructure:"domain"`
	Dependency float64 `json:"dependency" mapstructure:"dependency"`
	Route      float64 `json:"route" mapstructure:"route"`
	Symbol     float64 `json:"symbol" mapstructure:"symbol"`
}

// RetrievalConfig contains context retrieval configuration
type RetrievalConfig struct {
	MaxChunks       int            `json:"maxChunks" mapstructure:"maxChunks"`
	TokenBudget     int            `json:"tokenBudget" mapstructure:"tokenBudget"`
	MaxEntryPoints  int            `json:"maxEntryPoints" mapstructure:"maxEntryPoints"`
	MinScore        float64        `json:"minScore" mapstructure:"minScore"`
	LargeChunkLines int            `json:"largeChunkLines" mapstructure:"largeChunkLines"`
	Weights         ScoringWeights `json:"weights" mapstructure:"weights"`
}

// GraphConfig contains symbol graph configuration
type GraphConfig struct {
	MaxNodes  int    `json:"maxNodes" mapstructure:"maxNodes"`
	MaxDepth  int    `json:"maxDepth" mapstructure:"maxDepth"`
	RootAlias string `json:"rootAlias" mapstructure:"rootAlias"`
	RootPath  string `json:"rootPath" mapstructure:"rootPath"`
}

// IntentConfig contains intent classification configuration
type IntentConfig struct {
	ConfidenceThreshold float64 `json:"confidenceThreshold" mapstructure:"confidenceThreshold"`
	HistoryTurns        int     `json:"historyTurns" mapstructure:"historyTurns"`
}

// ExecutionConfig contains execution engine configuration
type ExecutionConfig struct {
	StopOnError      bool   `json:"stopOnError" mapstructure:"stopOnError"`
	BackupDir        string `json:"backupDir" mapstructure:"backupDir"`
	MinTemplateChars int    `json:"minTemplateChars" mapstructure:"minTemplateChars"`
}

// CacheConfig contains read-through cache TTLs
type CacheConfig struct {
	GraphTtlSeconds int `json:"graphTtlSeconds" mapstructure:"graphTtlSeconds"`
	RouteTtlSeconds int `json:"routeTtlSeconds" mapstructure:"routeTtlSeconds"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultScoringWeights returns the default signal weights.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Keyword:    0.25,
		FileType:   0.20,
		Domain:     0.20,
		Dependency: 0.15,
		Route:      0.10,
		Symbol:     0.10,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  2,
		RepoRoot: ".",
		Provider: ProviderConfig{
			BaseURL:     "http://localhost:11434/v1",
			Model:       "qwen2.5-coder",
			APIKeyEnv:   "AIDE_API_KEY",
			Temperature: 0.2,
			TimeoutMs:   60000,
			MaxTokens:   4096,
		},
		Retrieval: RetrievalConfig{
			MaxChunks:       15,
			TokenBudget:     8000,
			MaxEntryPoints:  10,
			MinScore:        0.1,
			LargeChunkLines: 300,
			Weights:         DefaultScoringWeights(),
		},
		Graph: GraphConfig{
			MaxNodes:  5000,
			MaxDepth:  3,
			RootAlias: "@/",
			RootPath:  "src/",
		},
		Intent: IntentConfig{
			ConfidenceThreshold: 0.5,
			HistoryTurns:        6,
		},
		Execution: ExecutionConfig{
			StopOnError:      true,
			BackupDir:        ".aide/backups",
			MinTemplateChars: 50,
		},
		Cache: CacheConfig{
			GraphTtlSeconds: 3600,
			RouteTtlSeconds: 3600,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .aide/config.json under the repo root.
// A missing config file yields defaults, not an error.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 2)
	v.SetDefault("repoRoot", ".")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".aide"))
	v.SetEnvPrefix("AIDE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := DefaultConfig()
			cfg.RepoRoot = repoRoot
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.RepoRoot == "." {
		cfg.RepoRoot = repoRoot
	}
	return cfg, nil
}

// Save writes the configuration to .aide/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".aide")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 2 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Retrieval.MaxChunks <= 0 {
		return &ConfigError{Field: "retrieval.maxChunks", Message: "must be positive"}
	}
	if c.Intent.ConfidenceThreshold < 0 || c.Intent.ConfidenceThreshold > 1 {
		return &ConfigError{Field: "intent.confidenceThreshold", Message: "must be in [0,1]"}
	}
	if c.Graph.MaxDepth <= 0 {
		return &ConfigError{Field: "graph.maxDepth", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
