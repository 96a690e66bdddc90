package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

type recordingIngestor struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recordingIngestor) IngestFile(_ context.Context, path string, _ []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return 1, r.err
}

func (r *recordingIngestor) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path string
		exts []string
		want bool
	}{
		{"a.txt", []string{".txt"}, true},
		{"A.PDF", []string{".pdf"}, true},
		{"a.md", []string{"md"}, true},
		{"a.go", []string{".txt", ".md"}, false},
		{"noext", []string{".txt"}, false},
		{"anything.bin", nil, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.exts); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.exts, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	if !inDir("/a/b", "/a/b/c/d.txt") {
		t.Error("nested path should be inside")
	}
	if inDir("/a/b", "/a/bc/d.txt") || inDir("/a/b", "/a") {
		t.Error("sibling or parent should be outside")
	}
}

func TestWatcher_IngestsNewFilesAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngestor{}
	w := NewWatcher([]string{dir}, []string{".txt"}, true, ing, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	target := filepath.Join(dir, "notes.txt")
	for i := range 3 {
		if err := os.WriteFile(target, []byte{byte('a' + i)}, 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "image.png"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(ing.seen()) > 0 })
	time.Sleep(150 * time.Millisecond)
	got := ing.seen()
	if len(got) != 1 || got[0] != target {
		t.Errorf("ingested %v, want only %s once", got, target)
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngestor{}
	w := NewWatcher([]string{dir}, []string{".md"}, true, ing, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(sub, "later.md")
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(nested, []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return slices.Contains(ing.seen(), nested) })
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{filepath.Join(dir, "a.txt"), filepath.Join(sub, "b.txt"), filepath.Join(dir, "c.bin")} {
		if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	for _, tt := range []struct {
		recursive bool
		want      int
	}{{true, 2}, {false, 1}} {
		ing := &recordingIngestor{err: errors.New("ignored")}
		w := NewWatcher([]string{dir}, []string{".txt"}, tt.recursive, ing)
		ctx, cancel := context.WithCancel(context.Background())
		if err := w.Start(ctx); err != nil {
			t.Fatal(err)
		}
		w.SyncExistingFiles()
		if got := ing.seen(); len(got) != tt.want {
			t.Errorf("recursive=%v: ingested %v, want %d files", tt.recursive, got, tt.want)
		}
		w.Stop()
		cancel()
	}
}

func TestWatcher_StartCreatesRootsAndStopIsIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox")
	w := NewWatcher([]string{root}, nil, false, &recordingIngestor{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
	if got := w.Directories(); len(got) != 1 || got[0] != root {
		t.Errorf("Directories = %v", got)
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_ContextCancelStops(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngestor{}
	w := NewWatcher([]string{dir}, nil, true, ing, WithDebounce(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	waitFor(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.fsw == nil
	})
	if err := os.WriteFile(filepath.Join(dir, "late.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := ing.seen(); len(got) != 0 {
		t.Errorf("ingested after cancel: %v", got)
	}
}
