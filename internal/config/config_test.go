package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Embedding.Kind != "http" {
		t.Errorf("embedding kind default = %q, want http", cfg.Embedding.Kind)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("dimensions default = %d, want 384", cfg.Embedding.Dimensions)
	}
	if cfg.NLP.MinOccurrences != 2 {
		t.Errorf("min_occurrences default = %d, want 2", cfg.NLP.MinOccurrences)
	}
	if cfg.Experiment.TopK != 15 || cfg.Experiment.NSamples != 10000 {
		t.Errorf("experiment defaults = top_k %d n_samples %d", cfg.Experiment.TopK, cfg.Experiment.NSamples)
	}
	if len(cfg.Experiment.TargetTemplates) == 0 {
		t.Error("target templates default should not be empty")
	}
	if cfg.Scan.Workers != 4 || cfg.Scan.BatchSize != 256 {
		t.Errorf("scan defaults = workers %d batch %d", cfg.Scan.Workers, cfg.Scan.BatchSize)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9000
embedding:
  kind: mock
  dimensions: 8
nlp:
  min_occurrences: 5
  blocklist: ["him"]
experiment:
  top_k: 3
  n_samples: 500
  parametric: true
  seed: 7
corpus:
  directories: ["./books"]
  extensions: [".txt"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Embedding.Kind != "mock" || cfg.Embedding.Dimensions != 8 {
		t.Errorf("embedding = %q/%d", cfg.Embedding.Kind, cfg.Embedding.Dimensions)
	}
	if cfg.NLP.MinOccurrences != 5 {
		t.Errorf("min_occurrences = %d, want 5", cfg.NLP.MinOccurrences)
	}
	if len(cfg.NLP.Blocklist) != 1 || cfg.NLP.Blocklist[0] != "him" {
		t.Errorf("blocklist = %v", cfg.NLP.Blocklist)
	}
	if !cfg.Experiment.Parametric || cfg.Experiment.Seed != 7 {
		t.Errorf("experiment = %+v", cfg.Experiment)
	}
	// "./books" expands relative to the config directory.
	want := filepath.Join(dir, "books")
	if len(cfg.Corpus.Directories) != 1 || cfg.Corpus.Directories[0] != want {
		t.Errorf("corpus directories = %v, want [%s]", cfg.Corpus.Directories, want)
	}
}

func TestLoadRejectsBadTemplates(t *testing.T) {
	cases := []struct {
		name     string
		template string
	}{
		{"no placeholder", "This is a sentence."},
		{"two placeholders", "{} met {} at the station."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			content := "experiment:\n  target_templates: [\"" + tc.template + "\"]\n"
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load() accepted template %q", tc.template)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Corpus.Directories = []string{"/corpus/books"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Save error: %v", err)
	}
	if len(loaded.Corpus.Directories) != 1 || loaded.Corpus.Directories[0] != "/corpus/books" {
		t.Errorf("directories = %v", loaded.Corpus.Directories)
	}
}
