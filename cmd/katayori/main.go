// Package main is the Katayori CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/katayori/internal/cli"
	"github.com/hyperjump/katayori/internal/config"
	"github.com/hyperjump/katayori/internal/corpus"
	"github.com/hyperjump/katayori/internal/embedding"
	"github.com/hyperjump/katayori/internal/keyword"
	"github.com/hyperjump/katayori/internal/models"
	"github.com/hyperjump/katayori/internal/nlp"
	"github.com/hyperjump/katayori/internal/pipeline"
	"github.com/hyperjump/katayori/internal/server"
	"github.com/hyperjump/katayori/internal/storage"
	"github.com/hyperjump/katayori/internal/watcher"
	"github.com/hyperjump/katayori/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/katayori/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "scan":
		runScan()
	case "entities":
		runEntities()
	case "contexts":
		runContexts()
	case "experiment":
		runExperiment()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("katayori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	ContextIndex keyword.ContextIndex
	Scanner      *pipeline.Scanner
	Experimenter *pipeline.Experimenter
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.ContextIndex != nil {
		_ = c.ContextIndex.Close()
	}
}

func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Kind {
	case "http":
		return embedding.NewHTTPEmbedder(cfg.URL, cfg.Dimensions, cfg.CacheSize), nil
	case "onnx":
		onnxEmbedder, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, falling back to mock", zap.Error(err))
			return embedding.NewMockEmbedder(cfg.Dimensions), nil
		}
		return onnxEmbedder, nil
	case "mock":
		return embedding.NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding kind %q; use http, onnx, or mock", cfg.Kind)
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := newEmbedder(&cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	contextIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize context index: %w", err)
	}

	annotator, err := nlp.NewAnnotator(cfg.NLP.Blocklist)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		_ = contextIndex.Close()
		return nil, fmt.Errorf("failed to initialize annotator: %w", err)
	}
	loader := corpus.NewLoader(cfg.Corpus.Extensions)

	scanOpts := []pipeline.ScannerOption{}
	expOpts := []pipeline.ExperimenterOption{}
	if debug {
		scanOpts = append(scanOpts, pipeline.WithScanLogger(logger))
		expOpts = append(expOpts, pipeline.WithExperimentLogger(logger))
	}
	scanner := pipeline.NewScanner(store, contextIndex, annotator, loader, &cfg.Scan, scanOpts...)
	experimenter := pipeline.NewExperimenter(store, embedder, cfg.Embedding.Kind, &cfg.Experiment, expOpts...)

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		ContextIndex: contextIndex,
		Scanner:      scanner,
		Experimenter: experimenter,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	serverOpts := []server.ServerOption{}
	var watchCancel context.CancelFunc
	if cfg.Watch.Enabled {
		scanner := components.Scanner
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(
			cfg.Corpus.Directories,
			cfg.Corpus.Extensions,
			func(path string) {
				if _, err := scanner.ScanFile(context.Background(), path); err != nil {
					logger.Warn("watch scan file failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				if err := scanner.RemoveSource(context.Background(), path); err != nil {
					logger.Warn("watch remove source failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		var watchCtx context.Context
		watchCtx, watchCancel = context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
		serverOpts = append(serverOpts, server.WithWatcher(watchSvc, resolvedConfigPath))
	}

	srv := server.NewServer(
		components.Scanner,
		components.Experimenter,
		components.Storage,
		components.ContextIndex,
		cfg,
		logger,
		serverOpts...,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchCancel != nil {
		watchCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runScan() {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 0, "maximum records to read (0 = no limit)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: katayori scan [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	recLimit := *limit
	if recLimit == 0 {
		recLimit = cfg.Corpus.Limit
	}
	var n int
	if info.IsDir() {
		n, err = components.Scanner.ScanDirectory(ctx, path, recLimit)
	} else {
		n, err = components.Scanner.ScanFile(ctx, path)
	}
	if err != nil {
		fmt.Printf("Scan failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Scanned %d record(s) from %s\n", n, path)
}

func runEntities() {
	fs := flag.NewFlagSet("entities", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	minOccurrences := fs.Int("min-occurrences", 0, "minimum observations per entity (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids Bleve/SQLite lock conflict).
		u := *serverURL + "/api/v1/entities"
		if *minOccurrences > 0 {
			u += fmt.Sprintf("?min_occurrences=%d", *minOccurrences)
		}
		var resp struct {
			Entities []models.EntityStat `json:"entities"`
		}
		if err := getJSON(u, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Entities failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteEntityStats(os.Stdout, resp.Entities, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	minCount := *minOccurrences
	if minCount == 0 {
		minCount = cfg.NLP.MinOccurrences
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	stats, err := store.EntityStats(context.Background(), minCount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Entity stats failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteEntityStats(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runContexts() {
	fs := flag.NewFlagSet("contexts", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 20, "number of contexts")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: katayori contexts [flags] <name>")
		os.Exit(1)
	}
	name := fs.Arg(0)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	u := fmt.Sprintf("%s/api/v1/entities/%s/contexts?limit=%d", *serverURL, url.PathEscape(name), *limit)
	var resp struct {
		Name     string            `json:"name"`
		Contexts []cli.ContextLine `json:"contexts"`
	}
	if err := getJSON(u, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Contexts failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteContexts(os.Stdout, name, resp.Contexts, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runExperiment() {
	fs := flag.NewFlagSet("experiment", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run locally)")
	topK := fs.Int("top-k", 0, "names per target group (0 = config default)")
	minOccurrences := fs.Int("min-occurrences", 0, "minimum observations per entity (0 = config default)")
	nSamples := fs.Int("n-samples", 0, "number of permutation samples (0 = config default)")
	parametric := fs.Bool("parametric", false, "use the parametric approximation instead of permutations")
	seed := fs.Int64("seed", 0, "random seed for permutation sampling")
	list := fs.Bool("list", false, "list recorded experiments instead of running one")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *list {
		listExperiments(*configPath, *serverURL, format)
		return
	}

	req := &models.ExperimentRequest{
		TopK:           *topK,
		MinOccurrences: *minOccurrences,
		NSamples:       *nSamples,
		Parametric:     *parametric,
		Seed:           *seed,
	}

	if *serverURL != "" {
		exp, err := experimentViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Experiment failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteExperiment(os.Stdout, exp, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	exp, err := components.Experimenter.Run(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Experiment failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteExperiment(os.Stdout, exp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func listExperiments(configPath, serverURL string, format cli.OutputFormat) {
	if serverURL != "" {
		var resp struct {
			Experiments []*models.Experiment `json:"experiments"`
		}
		if err := getJSON(serverURL+"/api/v1/experiments", &resp); err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteExperiments(os.Stdout, resp.Experiments, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	exps, err := store.ListExperiments(context.Background(), 0, 50)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteExperiments(os.Stdout, exps, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func experimentViaHTTP(serverURL string, req *models.ExperimentRequest) (*models.Experiment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/experiments", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var exp models.Experiment
	if err := json.NewDecoder(resp.Body).Decode(&exp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &exp, nil
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Records      int64                  `json:"records"`
	Observations int64                  `json:"observations"`
	Indexed      int64                  `json:"indexed"`
	Config       map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		ctx := context.Background()
		status.Records, err = store.CountRecords(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count records failed: %v\n", err)
			os.Exit(1)
		}
		status.Observations, err = store.CountObservations(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count observations failed: %v\n", err)
			os.Exit(1)
		}
		status.Config = map[string]interface{}{
			"encoder":          cfg.Embedding.Kind,
			"database_path":    cfg.Storage.DatabasePath,
			"bleve_index_path": cfg.Storage.BleveIndexPath,
		}
		if diskBytes, diskErr := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); diskErr == nil {
			status.Config["disk_usage_bytes"] = diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("records:       %d   # scanned corpus records\n", status.Records)
		fmt.Printf("observations:  %d   # per-entity sentiment observations\n", status.Observations)
		fmt.Printf("indexed:       %d   # records in the context index\n", status.Indexed)
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"encoder", "embedding_dimensions", "min_occurrences", "top_k", "n_samples", "database_path", "bleve_index_path", "disk_usage_bytes"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-22s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func getJSON(u string, out interface{}) error {
	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`katayori - Name bias measurement for text corpora

Usage:
  katayori server [flags]             Start the HTTP server
  katayori scan [flags] <path>        Scan a corpus file or directory
  katayori entities [flags]           Show the per-entity sentiment ranking
  katayori contexts [flags] <name>    Show corpus sentences mentioning a name
  katayori experiment [flags]         Run an association test over the corpus
  katayori status [flags]             Show storage and index status
  katayori version                    Show version
  katayori help                       Show this help

Server Flags:
  --config string     Config file path (default: /usr/local/etc/katayori/config.yaml)
  --debug             Enable debug logging

Scan Flags:
  --config string     Config file path
  --limit int         Maximum records to read (0 = config default)

Entities Flags:
  --server string           Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --min-occurrences int     Minimum observations per entity (0 = config default)
  --output string           Output format: text or json

Contexts Flags:
  --server string     Server URL (default: http://localhost:8080)
  --limit int         Number of contexts (default: 20)
  --output string     Output format: text or json

Experiment Flags:
  --server string           Server URL (default: http://localhost:8080). Use --server "" to run locally.
  --top-k int               Names per target group (0 = config default)
  --min-occurrences int     Minimum observations per entity (0 = config default)
  --n-samples int           Number of permutation samples (0 = config default)
  --parametric              Use the parametric approximation
  --seed int                Random seed for permutation sampling
  --list                    List recorded experiments
  --output string           Output format: text or json

Examples:
  katayori server
  katayori scan ./corpus/books
  katayori entities --min-occurrences 3
  katayori contexts Alice
  katayori experiment --top-k 15 --seed 42
  katayori experiment --list
  katayori status --output json`)
}
