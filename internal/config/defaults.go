package config

import "github.com/hyperjump/katayori/internal/nlp"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/katayori/data/db/records.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/katayori/data/indices/bleve"
	}
	if cfg.Embedding.Kind == "" {
		cfg.Embedding.Kind = "http"
	}
	if cfg.Embedding.URL == "" {
		cfg.Embedding.URL = "http://localhost:8081"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/katayori/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx"}
	}
	if cfg.NLP.MinOccurrences == 0 {
		cfg.NLP.MinOccurrences = 2
	}
	if cfg.NLP.Blocklist == nil {
		cfg.NLP.Blocklist = nlp.DefaultBlocklist
	}
	if cfg.Experiment.TopK == 0 {
		cfg.Experiment.TopK = 15
	}
	if cfg.Experiment.NSamples == 0 {
		cfg.Experiment.NSamples = 10000
	}
	if cfg.Experiment.TargetTemplates == nil {
		cfg.Experiment.TargetTemplates = nlp.DefaultTargetTemplates
	}
	if cfg.Experiment.PositiveSamples == nil {
		cfg.Experiment.PositiveSamples = nlp.DefaultPositiveSamples
	}
	if cfg.Experiment.NegativeSamples == nil {
		cfg.Experiment.NegativeSamples = nlp.DefaultNegativeSamples
	}
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = 4
	}
	if cfg.Scan.BatchSize == 0 {
		cfg.Scan.BatchSize = 256
	}
}
