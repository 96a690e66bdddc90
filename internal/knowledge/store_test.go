package knowledge

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/storage"
)

func openStore(t *testing.T, dbPath string, emb embedding.Embedder) (*Store, *storage.SQLiteStorage) {
	t.Helper()
	backend, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	s, err := Open(context.Background(), backend, "ai_knowledge_base", emb)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, backend
}

func TestStore_RetrieveEmpty(t *testing.T) {
	s, _ := openStore(t, filepath.Join(t.TempDir(), "kb.db"), embedding.NewHashEmbedder(64))
	for _, k := range []int{0, 1, 5} {
		got := s.Retrieve(context.Background(), "anything at all", k)
		if !slices.Equal(got, []string{NoContext}) {
			t.Errorf("Retrieve(k=%d) on empty store = %q", k, got)
		}
	}
	if s.Dimensions() != 0 {
		t.Errorf("Dimensions = %d before first ingest", s.Dimensions())
	}
}

func TestStore_IngestIsIdempotent(t *testing.T) {
	s, backend := openStore(t, filepath.Join(t.TempDir(), "kb.db"), embedding.NewHashEmbedder(64))
	ctx := context.Background()
	chunks := []string{"alpha passage", "beta passage", "alpha passage", "gamma passage"}

	n, err := s.Ingest(ctx, chunks)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || s.Len() != 3 {
		t.Fatalf("first ingest added %d, Len %d; want 3, 3", n, s.Len())
	}
	n, err = s.Ingest(ctx, chunks)
	if err != nil || n != 0 {
		t.Fatalf("second ingest added %d, err %v", n, err)
	}
	if count, _ := backend.CountRecords(ctx, "ai_knowledge_base"); count != 3 {
		t.Errorf("stored %d records, want 3", count)
	}

	recs, err := s.IngestRecords(ctx, []string{"beta passage", "delta passage"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "3" || recs[0].Text != "delta passage" {
		t.Errorf("IngestRecords = %+v", recs)
	}
	want := []string{"alpha passage", "beta passage", "gamma passage", "delta passage"}
	if !slices.Equal(s.Documents(), want) {
		t.Errorf("Documents = %q", s.Documents())
	}
}

func TestStore_RetrieveOrdersBySimilarity(t *testing.T) {
	s, _ := openStore(t, filepath.Join(t.TempDir(), "kb.db"), embedding.NewHashEmbedder(384))
	ctx := context.Background()
	_, err := s.Ingest(ctx, []string{
		"The capital of France is Paris.",
		"Penguins are flightless birds that live in the Southern Hemisphere.",
		"Go channels connect concurrent goroutines.",
	})
	if err != nil {
		t.Fatal(err)
	}

	got := s.Retrieve(ctx, "where do penguins live", 1)
	if len(got) != 1 || got[0] != "Penguins are flightless birds that live in the Southern Hemisphere." {
		t.Errorf("Retrieve k=1 = %q", got)
	}
	got = s.Retrieve(ctx, "goroutines and channels in Go", 2)
	if len(got) != 2 || got[0] != "Go channels connect concurrent goroutines." {
		t.Errorf("Retrieve k=2 = %q", got)
	}
	if got := s.Retrieve(ctx, "Paris", 10); len(got) != 3 {
		t.Errorf("k larger than store should return every passage, got %d", len(got))
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kb.db")
	emb := embedding.NewHashEmbedder(64)
	ctx := context.Background()

	s, backend := openStore(t, dbPath, emb)
	if _, err := s.Ingest(ctx, []string{"first fact", "second fact"}); err != nil {
		t.Fatal(err)
	}
	backend.Close()

	reopened, _ := openStore(t, dbPath, emb)
	if reopened.Len() != 2 || reopened.Dimensions() != 64 {
		t.Fatalf("reopened Len=%d Dimensions=%d", reopened.Len(), reopened.Dimensions())
	}
	if got := reopened.Retrieve(ctx, "second fact", 1); got[0] != "second fact" {
		t.Errorf("Retrieve after reopen = %q", got)
	}
	n, err := reopened.Ingest(ctx, []string{"first fact", "third fact"})
	if err != nil || n != 1 {
		t.Fatalf("Ingest after reopen added %d, err %v", n, err)
	}
	if got := reopened.Documents(); got[2] != "third fact" {
		t.Errorf("Documents = %q", got)
	}
}

func TestStore_DimensionMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kb.db")
	ctx := context.Background()

	s, backend := openStore(t, dbPath, embedding.NewHashEmbedder(16))
	if _, err := s.Ingest(ctx, []string{"sixteen dimensions"}); err != nil {
		t.Fatal(err)
	}
	backend.Close()

	wider, _ := openStore(t, dbPath, embedding.NewHashEmbedder(32))
	_, err := wider.Ingest(ctx, []string{"thirty-two dimensions"})
	if !errors.Is(err, storage.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if wider.Len() != 1 {
		t.Errorf("failed ingest changed Len to %d", wider.Len())
	}
	if got := wider.Retrieve(ctx, "sixteen dimensions", 1); !slices.Equal(got, []string{NoContext}) {
		t.Errorf("mismatched query should yield NoContext, got %q", got)
	}
}

type namedEmbedder struct {
	*embedding.HashEmbedder
	name string
}

func (e namedEmbedder) Name() string { return e.name }

func TestStore_RejectsOtherEmbedder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kb.db")
	ctx := context.Background()

	s, backend := openStore(t, dbPath, embedding.NewHashEmbedder(384))
	if _, err := s.Ingest(ctx, []string{"built offline with hashed terms"}); err != nil {
		t.Fatal(err)
	}
	backend.Close()

	backend, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()
	minilm := namedEmbedder{embedding.NewHashEmbedder(384), "onnx/all-MiniLM-L6-v2.onnx"}
	_, err = Open(ctx, backend, "ai_knowledge_base", minilm)
	if !errors.Is(err, storage.ErrEmbedderMismatch) {
		t.Fatalf("expected ErrEmbedderMismatch, got %v", err)
	}

	reopened, err := Open(ctx, backend, "ai_knowledge_base", embedding.NewHashEmbedder(384))
	if err != nil {
		t.Fatalf("original embedder should still open: %v", err)
	}
	if reopened.Len() != 1 {
		t.Errorf("Len = %d", reopened.Len())
	}
}

func TestStore_EmptyCollectionTakesNewEmbedder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kb.db")
	ctx := context.Background()

	_, backend := openStore(t, dbPath, embedding.NewHashEmbedder(384))
	backend.Close()

	minilm := namedEmbedder{embedding.NewHashEmbedder(384), "onnx/all-MiniLM-L6-v2.onnx"}
	s, backend := openStore(t, dbPath, minilm)
	if _, err := s.Ingest(ctx, []string{"first passage"}); err != nil {
		t.Fatal(err)
	}
	c, err := backend.GetOrCreateCollection(ctx, "ai_knowledge_base")
	if err != nil {
		t.Fatal(err)
	}
	if c.Embedder != minilm.name {
		t.Errorf("collection embedder = %q, want %q", c.Embedder, minilm.name)
	}
}

type brokenEmbedder struct{ *embedding.HashEmbedder }

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder offline")
}

func TestStore_RetrieveEmbedFailure(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kb.db")
	s, backend := openStore(t, dbPath, embedding.NewHashEmbedder(8))
	if _, err := s.Ingest(context.Background(), []string{"something"}); err != nil {
		t.Fatal(err)
	}
	backend.Close()

	broken, _ := openStore(t, dbPath, brokenEmbedder{embedding.NewHashEmbedder(8)})
	if got := broken.Retrieve(context.Background(), "something", 1); !slices.Equal(got, []string{NoContext}) {
		t.Errorf("got %q", got)
	}
}

func TestStore_SearchScoresAndIDs(t *testing.T) {
	s, _ := openStore(t, filepath.Join(t.TempDir(), "kb.db"), embedding.NewHashEmbedder(64))
	ctx := context.Background()
	if hits, err := s.Search(ctx, "anything", 3); err != nil || hits != nil {
		t.Fatalf("Search on empty store = %v, %v", hits, err)
	}
	if _, err := s.Ingest(ctx, []string{"red apples grow on trees", "the harbour freezes in winter"}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "red apples", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "0" || hits[0].Text != "red apples grow on trees" {
		t.Errorf("unexpected top hit %+v", hits[0])
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("hits not ordered by score: %v >= %v", hits[1].Score, hits[0].Score)
	}
}

func TestStore_SearchEmbedFailure(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kb.db")
	s, _ := openStore(t, dbPath, embedding.NewHashEmbedder(64))
	if _, err := s.Ingest(context.Background(), []string{"one"}); err != nil {
		t.Fatal(err)
	}
	s.emb = brokenEmbedder{embedding.NewHashEmbedder(64)}
	if _, err := s.Search(context.Background(), "one", 1); err == nil {
		t.Fatal("expected embedding error")
	}
}
