package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"what is leave policy", "-output", "json"},
			expected: []string{"-output", "json", "what is leave policy"},
		},
		{
			name:     "flags first returns same order",
			args:     []string{"-limit", "5", "tides"},
			expected: []string{"-limit", "5", "tides"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"tides"},
			expected: []string{"tides"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "bool flag does not consume the query",
			args:     []string{"-fuzzy", "vacaton", "policy"},
			expected: []string{"-fuzzy", "vacaton", "policy"},
		},
		{
			name:     "flag with equals sign",
			args:     []string{"one", "two", "--hybrid=false"},
			expected: []string{"--hybrid=false", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"lighthouse"}, "lighthouse"},
		{"multiple words", []string{"who", "lit", "it"}, "who lit it"},
		{"quoted phrase", []string{"who lit it"}, "who lit it"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  path: "data"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.Path = filepath.Join(t.TempDir(), "data")
	cfg.Storage.Collection = "kb"
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimensions = 64
	cfg.Chunking.ChunkSize = 120
	cfg.Chunking.ChunkOverlap = 20
	config.ApplyDefaults(cfg)
	return cfg
}

func TestInitializeComponents(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	doc := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(doc, []byte("The lighthouse keeper lights the lamp at dusk."), 0600); err != nil {
		t.Fatal(err)
	}
	added, err := c.Indexer.IngestFile(ctx, doc, nil)
	if err != nil || added != 1 {
		t.Fatalf("IngestFile = %d, %v", added, err)
	}

	status := localStatus(ctx, cfg, "config.yaml", c)
	if status["passages"] != 1 || status["collection"] != "kb" || status["dimensions"] != 64 {
		t.Errorf("unexpected status %v", status)
	}
	if status["stored_records"] != 1 {
		t.Errorf("unexpected stored records: %v", status["stored_records"])
	}
	if cols, _ := status["collections"].([]string); len(cols) != 1 || cols[0] != "kb (1)" {
		t.Errorf("unexpected collections: %v", status["collections"])
	}
	if status["keyword_passages"] != uint64(1) {
		t.Errorf("keyword index not populated: %v", status["keyword_passages"])
	}
	c.Close()

	// Reopening finds the persisted passage.
	c, err = initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Store.Len() != 1 {
		t.Errorf("expected 1 passage after reopen, got %d", c.Store.Len())
	}
	if got := c.Store.Retrieve(ctx, "who lights the lamp", 1); len(got) != 1 || !strings.Contains(got[0], "lighthouse") {
		t.Errorf("unexpected retrieval %v", got)
	}
}

func TestInitializeComponents_unknownEmbedder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = "word2vec"
	if _, err := initializeComponents(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown embedding provider")
	}
}

func TestBuildAssistant_unknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.Provider = "parrot"
	c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := buildAssistant(context.Background(), cfg, c, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown generator provider")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Path != filepath.Join(dir, "data") {
		t.Errorf("storage path = %s, want %s", cfg.Storage.Path, filepath.Join(dir, "data"))
	}
	if cfg.Chunking.ChunkSize != 600 || cfg.Chunking.ChunkOverlap != 100 {
		t.Errorf("chunking = %+v", cfg.Chunking)
	}
	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("expected error when the file exists")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("force overwrite: %v", err)
	}
}
