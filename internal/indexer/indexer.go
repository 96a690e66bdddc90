// Package indexer turns documents into knowledge-base passages.
package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/chunker"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/knowledge"
)

// ErrUnreadable marks a document whose content could not be extracted.
var ErrUnreadable = errors.New("extract content")

// Indexer extracts, chunks and stores documents. New passages are also added
// to the keyword index when one is configured.
type Indexer struct {
	store        *knowledge.Store
	splitter     *chunker.Splitter
	extractor    *extract.Extractor
	keywordIndex keyword.PassageIndex
	speller      *keyword.SpellChecker
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithKeywordIndex mirrors new passages into ki.
func WithKeywordIndex(ki keyword.PassageIndex) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = ki }
}

// WithSpellChecker reloads sc's dictionary whenever the keyword index grows.
func WithSpellChecker(sc *keyword.SpellChecker) IndexerOption {
	return func(idx *Indexer) { idx.speller = sc }
}

// NewIndexer creates an indexer. extractor may be nil; files are then read as plain text.
func NewIndexer(store *knowledge.Store, splitter *chunker.Splitter, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:     store,
		splitter:  splitter,
		extractor: extractor,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IngestText chunks text and stores the passages not seen before. source
// names the document in the keyword index. Returns the number of new passages.
func (idx *Indexer) IngestText(ctx context.Context, text, source string) (int, error) {
	chunks := idx.splitter.Split(text)
	if len(chunks) == 0 {
		idx.logger.Debug("Document has no text", zap.String("source", source))
		return 0, nil
	}
	records, err := idx.store.IngestRecords(ctx, chunks)
	if err != nil {
		return 0, err
	}
	if idx.keywordIndex != nil && len(records) > 0 {
		passages := make([]keyword.Passage, len(records))
		for i, r := range records {
			passages[i] = keyword.Passage{ID: r.ID, Text: r.Text, Source: source}
		}
		if err := idx.keywordIndex.Index(ctx, passages); err != nil {
			// The knowledge base already holds them; SyncKeywordIndex repairs the gap.
			idx.logger.Warn("Failed to index passages for keyword lookup", zap.String("source", source), zap.Error(err))
		} else {
			idx.refreshSpeller()
		}
	}
	idx.logger.Debug("Document ingested",
		zap.String("source", source),
		zap.Int("chunks", len(chunks)),
		zap.Int("added", len(records)))
	return len(records), nil
}

// IngestReader reads a whole document from r. name's extension selects the format.
func (idx *Indexer) IngestReader(ctx context.Context, r io.Reader, name string) (int, error) {
	var text string
	var err error
	if idx.extractor != nil {
		text, err = idx.extractor.ExtractReader(r, name)
	} else {
		var buf bytes.Buffer
		_, err = buf.ReadFrom(r)
		text = buf.String()
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return idx.IngestText(ctx, text, filepath.Base(name))
}

// IngestFile ingests the file at path. If allowedExts is non-empty, the
// file's extension must be in the list (case-insensitive).
func (idx *Indexer) IngestFile(ctx context.Context, path string, allowedExts []string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return 0, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", absPath)
	}
	f, err := os.Open(absPath)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	idx.logger.Debug("Ingesting file", zap.String("path", absPath))
	n, err := idx.IngestReader(ctx, f, absPath)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", absPath, err)
	}
	return n, nil
}

// IngestDirectory walks dir recursively and ingests each regular file whose
// extension is in allowedExts (every supported format when empty). It stops at the first
// error and reports the files ingested and passages added so far.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, allowedExts []string) (files, added int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		if len(allowedExts) == 0 && !extract.Supported(ext) {
			return nil
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		n, ingestErr := idx.IngestFile(ctx, path, allowedExts)
		if ingestErr != nil {
			return ingestErr
		}
		files++
		added += n
		return nil
	})
	return files, added, err
}

// SyncKeywordIndex re-adds every stored passage to the keyword index when it
// holds fewer passages than the knowledge base, e.g. after its directory was
// removed.
func (idx *Indexer) SyncKeywordIndex(ctx context.Context) error {
	if idx.keywordIndex == nil {
		return nil
	}
	count, err := idx.keywordIndex.DocCount()
	if err != nil {
		return fmt.Errorf("keyword index count: %w", err)
	}
	docs := idx.store.Documents()
	if int(count) >= len(docs) {
		return nil
	}
	passages := make([]keyword.Passage, len(docs))
	for i, text := range docs {
		passages[i] = keyword.Passage{ID: strconv.Itoa(i), Text: text}
	}
	idx.logger.Info("Rebuilding keyword index",
		zap.Uint64("indexed", count),
		zap.Int("passages", len(docs)))
	if err := idx.keywordIndex.Index(ctx, passages); err != nil {
		return err
	}
	idx.refreshSpeller()
	return nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

func (idx *Indexer) refreshSpeller() {
	if idx.speller == nil {
		return
	}
	if err := idx.speller.Refresh(); err != nil {
		idx.logger.Debug("Spell dictionary refresh failed", zap.Error(err))
	}
}
