// Package knowledge is the persistent, deduplicated passage store that
// answers nearest-neighbour queries over embedded passages.
package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/vector"
)

// NoContext is returned by Retrieve in place of passages when nothing can be
// retrieved.
const NoContext = "No relevant context found."

// Store is one collection of the knowledge base. Records live in the storage
// backend; their embeddings are mirrored in an in-memory index for search.
type Store struct {
	backend storage.Storage
	name    string
	emb     embedding.Embedder
	logger  *zap.Logger

	mu    sync.RWMutex
	index *vector.MemoryIndex // nil until the collection's dimension is known
	docs  []string
	byID  map[string]int
	texts map[string]struct{}
	bound bool // the backend records emb as the collection's embedder
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open gets or creates the collection name in backend and loads its records
// into memory. A collection holding passages embedded by another model than
// emb fails with storage.ErrEmbedderMismatch.
func Open(ctx context.Context, backend storage.Storage, name string, emb embedding.Embedder, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		name:    name,
		emb:     emb,
		logger:  zap.NewNop(),
		byID:    make(map[string]int),
		texts:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	coll, err := backend.GetOrCreateCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	if coll.Records > 0 {
		if err := backend.BindEmbedder(ctx, name, emb.Name()); err != nil {
			return nil, err
		}
		s.bound = true
	}
	records, err := backend.ListRecords(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	if coll.Dimensions > 0 {
		if s.index, err = vector.NewMemoryIndex(coll.Dimensions); err != nil {
			return nil, err
		}
	}
	if err := s.load(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to index records of %s: %w", name, err)
	}
	s.logger.Debug("Knowledge base opened",
		zap.String("collection", name),
		zap.Int("records", len(records)),
		zap.Int("dimensions", coll.Dimensions),
		zap.String("embedder", emb.Name()))
	return s, nil
}

// load mirrors stored records in memory. Callers hold mu or own s exclusively.
func (s *Store) load(ctx context.Context, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if s.index == nil {
		idx, err := vector.NewMemoryIndex(len(records[0].Embedding))
		if err != nil {
			return err
		}
		s.index = idx
	}
	ids := make([]string, len(records))
	vecs := make([][]float32, len(records))
	for i, r := range records {
		ids[i] = r.ID
		vecs[i] = r.Embedding
	}
	if err := s.index.Add(ctx, ids, vecs); err != nil {
		return err
	}
	for _, r := range records {
		s.byID[r.ID] = len(s.docs)
		s.docs = append(s.docs, r.Text)
		s.texts[r.Text] = struct{}{}
	}
	return nil
}

// Ingest stores the chunks that are not already present and returns how many
// were added. Ingesting the same chunks again adds nothing.
func (s *Store) Ingest(ctx context.Context, chunks []string) (int, error) {
	added, err := s.IngestRecords(ctx, chunks)
	return len(added), err
}

// IngestRecords is Ingest returning the new records. Repeats inside chunks
// keep their first occurrence. New records get sequential ids continuing from
// the current size and are written in one transaction; on failure nothing is
// stored.
func (s *Store) IngestRecords(ctx context.Context, chunks []string) ([]*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []string
	batch := make(map[string]struct{})
	for _, c := range chunks {
		if _, ok := s.texts[c]; ok {
			continue
		}
		if _, ok := batch[c]; ok {
			continue
		}
		batch[c] = struct{}{}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		s.logger.Debug("No new passages", zap.String("collection", s.name), zap.Int("chunks", len(chunks)))
		return nil, nil
	}

	embs, err := s.emb.EmbedBatch(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to embed passages: %w", err)
	}
	if len(embs) != len(fresh) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d passages", len(embs), len(fresh))
	}

	dims := len(embs[0])
	if s.index != nil {
		dims = s.index.Dimensions()
	}
	records := make([]*models.Record, len(fresh))
	for i, text := range fresh {
		if len(embs[i]) != dims {
			return nil, fmt.Errorf("passage %d: %w: got %d, collection has %d", i, storage.ErrDimensionMismatch, len(embs[i]), dims)
		}
		records[i] = &models.Record{
			ID:        strconv.Itoa(len(s.docs) + i),
			Text:      text,
			Embedding: embs[i],
		}
	}

	if !s.bound {
		if err := s.backend.BindEmbedder(ctx, s.name, s.emb.Name()); err != nil {
			return nil, err
		}
		s.bound = true
	}
	if err := s.backend.AddRecords(ctx, s.name, records); err != nil {
		return nil, fmt.Errorf("failed to store passages: %w", err)
	}
	if err := s.load(ctx, records); err != nil {
		return nil, fmt.Errorf("passages stored but not indexed: %w", err)
	}
	s.logger.Info("Passages added",
		zap.String("collection", s.name),
		zap.Int("added", len(records)),
		zap.Int("total", len(s.docs)))
	return records, nil
}

// Retrieve returns the texts of the k passages most similar to query, most
// similar first. k <= 0 means 1. When nothing can be retrieved, including on
// an embedding failure, it returns a single NoContext entry.
func (s *Store) Retrieve(ctx context.Context, query string, k int) []string {
	if k <= 0 {
		k = 1
	}
	hits, err := s.Search(ctx, query, k)
	if err != nil {
		s.logger.Warn("Retrieval failed", zap.String("collection", s.name), zap.Error(err))
		return []string{NoContext}
	}
	if len(hits) == 0 {
		s.logger.Debug("Nothing retrieved", zap.String("collection", s.name))
		return []string{NoContext}
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Text
	}
	return out
}

// Search returns up to k passages ranked by cosine similarity to query.
// An empty knowledge base yields no hits and no error.
func (s *Store) Search(ctx context.Context, query string, k int) ([]*models.PassageHit, error) {
	if s.Len() == 0 || k <= 0 {
		return nil, nil
	}
	q, err := s.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	results, err := s.index.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	hits := make([]*models.PassageHit, 0, len(results))
	for _, r := range results {
		if i, ok := s.byID[r.ID]; ok {
			hits = append(hits, &models.PassageHit{ID: r.ID, Text: s.docs[i], Score: r.Score})
		}
	}
	return hits, nil
}

// Len is the number of stored passages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Name is the collection name.
func (s *Store) Name() string {
	return s.name
}

// Dimensions is the embedding length of the collection, 0 while it is empty.
func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return 0
	}
	return s.index.Dimensions()
}

// Documents returns a copy of the stored passages in insertion order.
func (s *Store) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.docs))
	copy(out, s.docs)
	return out
}
