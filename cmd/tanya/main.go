// Package main is the tanya CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/chat"
	"github.com/hyperjump/tanya/internal/chunker"
	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/knowledge"
	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/memory"
	"github.com/hyperjump/tanya/internal/score"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/server"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/tui"
	"github.com/hyperjump/tanya/internal/watcher"
	"github.com/hyperjump/tanya/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tanya/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory takes precedence if it exists, so running from a
// project directory picks up the project's settings. Returns the config and
// the path that was actually loaded.
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
	// API keys may live in a .env file next to the working directory.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "chat":
		runChat()
	case "passages":
		runPassages()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("tanya version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// mustSetup loads config and builds a logger; it exits on failure.
func mustSetup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := mustSetup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	assistant, err := buildAssistant(ctx, cfg, components, logger)
	if err != nil {
		logger.Fatal("Failed to initialize generator", zap.Error(err))
	}

	watchOpts := []watcher.WatcherOption{watcher.WithLogger(logger)}
	if d := cfg.Watch.Debounce(); d > 0 {
		watchOpts = append(watchOpts, watcher.WithDebounce(d))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		components.Indexer,
		watchOpts...,
	)
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		assistant,
		components.Indexer,
		components.Store,
		cfg,
		logger,
		server.WithPassageIndex(components.KeywordIndex, components.Speller),
		server.WithWatcher(watchSvc),
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
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: tanya ingest [flags] <file|directory>...")
		os.Exit(1)
	}

	cfg, _, logger := mustSetup(*configPath, *debug)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	failed := false
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed = true
			continue
		}
		if info.IsDir() {
			files, added, err := components.Indexer.IngestDirectory(ctx, path, cfg.Watch.Extensions)
			if err != nil {
				fmt.Printf("%s: %v\n", path, err)
				failed = true
				continue
			}
			fmt.Printf("%s: %d files, %d new passages\n", path, files, added)
			continue
		}
		added, err := components.Indexer.IngestFile(ctx, path, nil)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: %d new passages\n", path, added)
	}
	fmt.Printf("Knowledge base %q now holds %d passages\n", components.Store.Name(), components.Store.Len())
	if failed {
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: tanya ask [flags] <question>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg, _, logger := mustSetup(*configPath, *debug)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	assistant, err := buildAssistant(ctx, cfg, components, logger)
	if err != nil {
		logger.Fatal("Failed to initialize generator", zap.Error(err))
	}

	ans := assistant.Answer(ctx, query)
	if err := cli.WriteAnswer(os.Stdout, ans, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if ans.Failed {
		os.Exit(2)
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (written to log_file)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewFileLogger(cfg.Debug || *debug, cfg.LogFile)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()
	assistant, err := buildAssistant(ctx, cfg, components, logger)
	if err != nil {
		fmt.Printf("Failed to initialize generator: %v\n", err)
		os.Exit(1)
	}

	summary := fmt.Sprintf("%s: %d passages | %s/%s",
		components.Store.Name(), components.Store.Len(), cfg.Generator.Provider, cfg.Generator.Model)
	model := tui.New(ctx, assistant, components.Indexer, summary)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Printf("Chat failed: %v\n", err)
		os.Exit(1)
	}
}

func runPassages() {
	fs := flag.NewFlagSet("passages", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL; empty reads the knowledge base directly")
	limit := fs.Int("limit", 10, "maximum number of passages")
	fuzzy := fs.Bool("fuzzy", false, "tolerate spelling mistakes in keyword matching")
	hybrid := fs.Bool("hybrid", true, "blend keyword and semantic relevance")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: tanya passages [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var results []*search.Result
	if *serverURL != "" {
		results, err = passagesViaHTTP(*serverURL, query, *limit, *fuzzy, *hybrid)
	} else {
		cfg, _, logger := mustSetup(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		components, initErr := initializeComponents(ctx, cfg, logger)
		if initErr != nil {
			logger.Fatal("Failed to initialize", zap.Error(initErr))
		}
		defer components.Close()
		q := &search.Query{Text: query, Limit: *limit, Fuzzy: *fuzzy}
		if !*hybrid {
			q.KeywordWeight = 1
		}
		results, err = search.NewEngine(components.Store, components.KeywordIndex).Search(ctx, q)
	}
	if err != nil {
		fmt.Printf("Passage search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WritePassages(os.Stdout, query, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func passagesViaHTTP(serverURL, query string, limit int, fuzzy, hybrid bool) ([]*search.Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fuzzy", strconv.FormatBool(fuzzy))
	params.Set("mode", "hybrid")
	if !hybrid {
		params.Set("keyword_weight", "1")
	}
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/passages?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	var body struct {
		Hits []*search.Result `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Hits, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL; empty reads the knowledge base directly")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var status map[string]interface{}
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Printf("Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, resolved, logger := mustSetup(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		components, initErr := initializeComponents(ctx, cfg, logger)
		if initErr != nil {
			logger.Fatal("Failed to initialize", zap.Error(initErr))
		}
		defer components.Close()
		status = localStatus(ctx, cfg, resolved, components)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func localStatus(ctx context.Context, cfg *config.Config, configPath string, c *Components) map[string]interface{} {
	status := map[string]interface{}{
		"config_path":        configPath,
		"collection":         c.Store.Name(),
		"passages":           c.Store.Len(),
		"dimensions":         c.Store.Dimensions(),
		"embedding_provider": cfg.Embedding.Provider,
		"embedder":           c.Embedder.Name(),
		"generator":          cfg.Generator.Provider + "/" + cfg.Generator.Model,
		"database_path":      cfg.Storage.DatabasePath(),
	}
	if n, err := c.KeywordIndex.DocCount(); err == nil {
		status["keyword_passages"] = n
	}
	if cols, err := c.Backend.ListCollections(ctx); err == nil {
		names := make([]string, 0, len(cols))
		for _, col := range cols {
			names = append(names, fmt.Sprintf("%s (%d)", col.Name, col.Records))
		}
		status["collections"] = names
	}
	if n, err := c.Backend.CountRecords(ctx, c.Store.Name()); err == nil {
		status["stored_records"] = n
	}
	if n, err := c.Backend.DiskUsage(); err == nil {
		status["database_size"] = cli.FormatBytes(n)
	}
	if n, err := storage.DiskUsageBytes(cfg.Storage.KeywordIndexPath()); err == nil {
		status["keyword_index_size"] = cli.FormatBytes(n)
	}
	return status
}

func statusViaHTTP(serverURL string) (map[string]interface{}, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return status, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*configPath, *force); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *configPath)
}

// writeDefaultConfig saves the built-in defaults to path. Storage lives next
// to the file so a fresh project is self-contained.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	cfg := &config.Config{Storage: config.StorageConfig{Path: "./data"}}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

// buildQuery joins positional arguments into one query.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that follow the query in front of it, since the
// flag package stops parsing at the first positional argument.
func argsReorder(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		if !strings.Contains(a, "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !isBoolFlag(a) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	if len(flags) == 0 {
		return args
	}
	return append(flags, positional...)
}

func isBoolFlag(a string) bool {
	switch strings.TrimLeft(a, "-") {
	case "fuzzy", "hybrid", "debug":
		return true
	}
	return false
}

// Components holds initialized services.
type Components struct {
	Backend      *storage.SQLiteStorage
	Embedder     embedding.Embedder
	Store        *knowledge.Store
	KeywordIndex *keyword.BleveIndex
	Speller      *keyword.SpellChecker
	Indexer      *indexer.Indexer
}

func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Backend != nil {
		_ = c.Backend.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	c := &Components{}
	backend, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Backend = backend

	emb, err := embedding.New(ctx, &cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = emb

	store, err := knowledge.Open(ctx, backend, cfg.Storage.Collection, emb, knowledge.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	c.Store = store

	kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = kw
	c.Speller = keyword.NewSpellChecker(kw,
		keyword.WithMaxDistance(cfg.Suggest.MaxDistance),
		keyword.WithMinFrequency(cfg.Suggest.MinFrequency),
		keyword.WithMaxSuggestions(cfg.Suggest.MaxSuggestions))

	var chunkOpts []chunker.Option
	if len(cfg.Chunking.Separators) > 0 {
		chunkOpts = append(chunkOpts, chunker.WithSeparators(cfg.Chunking.Separators))
	}
	splitter, err := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, chunkOpts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("invalid chunking settings: %w", err)
	}
	c.Indexer = indexer.NewIndexer(store, splitter,
		extract.NewExtractor(extract.WithLogger(logger)),
		indexer.WithKeywordIndex(kw),
		indexer.WithSpellChecker(c.Speller),
		indexer.WithLogger(logger))
	if err := c.Indexer.SyncKeywordIndex(ctx); err != nil {
		logger.Warn("keyword index sync failed", zap.Error(err))
	}

	logger.Info("knowledge base ready",
		zap.String("collection", store.Name()),
		zap.Int("passages", store.Len()),
		zap.Int("dimensions", store.Dimensions()),
		zap.Int("chunk_size", splitter.ChunkSize()),
		zap.Int("chunk_overlap", splitter.ChunkOverlap()))
	return c, nil
}

// buildAssistant wires the generator, memory and scorer around the store.
func buildAssistant(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) (*chat.Assistant, error) {
	gen, err := llm.New(ctx, &cfg.Generator)
	if err != nil {
		return nil, err
	}
	return chat.NewAssistant(c.Store, memory.NewConversation(), gen, score.New(c.Embedder),
		chat.WithDirective(cfg.Chat.Directive),
		chat.WithTopK(cfg.Retrieval.TopK),
		chat.WithHistoryWindow(cfg.Retrieval.HistoryWindow),
		chat.WithLogger(logger)), nil
}

func printUsage() {
	fmt.Println(`tanya - Chat with your documents

Usage:
  tanya server [flags]                 Start the HTTP API (with directory watching)
  tanya ingest [flags] <path>...       Add files or directories to the knowledge base
  tanya ask [flags] <question>         Ask one question and print the answer
  tanya chat [flags]                   Interactive chat in the terminal
  tanya passages [flags] <query>       Look up stored passages
  tanya status [flags]                 Show knowledge base status
  tanya init [--config path] [--force] Write a default config file
  tanya version                        Show version
  tanya help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/tanya/config.yaml,
                     or ./config.yaml when present)
  --debug            Enable debug logging

Ask Flags:
  --output string    Output format: text or json (default: text)

Passages Flags:
  --server string    Server URL; empty reads the knowledge base directly
  --limit int        Maximum passages (default: 10)
  --fuzzy            Tolerate spelling mistakes
  --hybrid           Blend keyword and semantic relevance (default: true)
  --output string    Output format: text or json

Status Flags:
  --server string    Server URL; empty reads the knowledge base directly
  --output string    Output format: text or json

API keys are read from the environment (GROQ_API_KEY, OPENAI_API_KEY,
GEMINI_API_KEY by default) or from a .env file in the working directory.

Examples:
  tanya ingest ~/Documents/handbook.pdf ~/notes
  tanya ask "what does the handbook say about leave?"
  tanya ask --output json "summarise chapter two"
  tanya passages --fuzzy "vacaton policy"
  tanya status --server http://localhost:8080`)
}
