package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.Version != 2 {
		t.Errorf("version = %d", cfg.Version)
	}
	if cfg.Execution.BackupDir == "" {
		t.Error("no default backup dir")
	}
}

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RepoRoot != root {
		t.Errorf("repo root = %q", cfg.RepoRoot)
	}
	if cfg.Retrieval.MaxChunks != DefaultConfig().Retrieval.MaxChunks {
		t.Errorf("retrieval defaults not applied: %+v", cfg.Retrieval)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Provider.Model = "custom-model"
	cfg.Retrieval.MaxChunks = 25
	cfg.Logging.Level = "debug"
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".aide", "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Provider.Model != "custom-model" {
		t.Errorf("model = %q", loaded.Provider.Model)
	}
	if loaded.Retrieval.MaxChunks != 25 {
		t.Errorf("maxChunks = %d", loaded.Retrieval.MaxChunks)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("level = %q", loaded.Logging.Level)
	}
	if loaded.RepoRoot != root {
		t.Errorf("repo root = %q", loaded.RepoRoot)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad version", func(c *Config) { c.Version = 1 }},
		{"zero max chunks", func(c *Config) { c.Retrieval.MaxChunks = 0 }},
		{"confidence above one", func(c *Config) { c.Intent.ConfidenceThreshold = 1.5 }},
		{"negative confidence", func(c *Config) { c.Intent.ConfidenceThreshold = -0.1 }},
		{"zero graph depth", func(c *Config) { c.Graph.MaxDepth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestConfigErrorNamesField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Graph.MaxDepth = 0

	err := cfg.Validate()
	ce, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("err = %T", err)
	}
	if ce.Field != "graph.maxDepth" {
		t.Errorf("field = %q", ce.Field)
	}
}
