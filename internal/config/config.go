// Package config provides configuration loading and structs for the Katayori server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	NLP        NLPConfig        `yaml:"nlp"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Scan       ScanConfig       `yaml:"scan"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the context index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// EmbeddingConfig holds sentence encoder settings. Kind selects the backend:
// "http" talks to a text-embeddings-inference style service at URL, "onnx"
// runs a local model from ModelPath, "mock" is a deterministic hash encoder
// for tests and dry runs.
type EmbeddingConfig struct {
	Kind            string `yaml:"kind"`
	URL             string `yaml:"url"`
	ModelPath       string `yaml:"model_path"`
	Dimensions      int    `yaml:"dimensions"`
	MaxTokens       int    `yaml:"max_tokens"`
	UseQuantization bool   `yaml:"use_quantization"`
	CacheSize       int    `yaml:"cache_size"`
}

// CorpusConfig holds corpus location and reading settings.
type CorpusConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Limit       int      `yaml:"limit"`
}

// NLPConfig holds annotation settings.
type NLPConfig struct {
	MinOccurrences int      `yaml:"min_occurrences"`
	Blocklist      []string `yaml:"blocklist"`
}

// ExperimentConfig holds association test settings.
type ExperimentConfig struct {
	TopK            int      `yaml:"top_k"`
	NSamples        int      `yaml:"n_samples"`
	Parametric      bool     `yaml:"parametric"`
	Seed            int64    `yaml:"seed"`
	TargetTemplates []string `yaml:"target_templates"`
	PositiveSamples []string `yaml:"positive_samples"`
	NegativeSamples []string `yaml:"negative_samples"`
}

// ScanConfig holds corpus scan settings.
type ScanConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// WatchConfig holds corpus directory watch settings.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	for i, tpl := range cfg.Experiment.TargetTemplates {
		if n := strings.Count(tpl, "{}"); n != 1 {
			return nil, fmt.Errorf("experiment.target_templates[%d] has %d {} insertion points, want exactly 1: %q", i, n, tpl)
		}
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Corpus.Directories {
		cfg.Corpus.Directories[i] = expandPath(cfg.Corpus.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting corpus directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
