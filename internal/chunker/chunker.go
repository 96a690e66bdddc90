// Package chunker splits text into overlapping passages of bounded size.
//
// Splitting is recursive: the text is cut on the first separator it contains
// (paragraph, then line, then word), pieces are merged greedily up to the
// chunk size, and pieces that are still too large are cut again with the
// next separator, down to single characters. Lengths are counted in runes.
package chunker

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 600
	DefaultChunkOverlap = 100
)

// DefaultSeparators are tried in order; the empty separator is the
// per-character fallback.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter produces chunks of at most chunkSize characters, each sharing up
// to chunkOverlap characters with its predecessor.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSeparators replaces the separator list. The empty separator is
// appended when missing so that every piece can be cut down to size.
func WithSeparators(seps []string) Option {
	return func(s *Splitter) {
		seps = slices.Clone(seps)
		if len(seps) == 0 || seps[len(seps)-1] != "" {
			seps = append(seps, "")
		}
		s.separators = seps
	}
}

// New returns a Splitter. chunkOverlap must be smaller than chunkSize.
func New(chunkSize, chunkOverlap int, opts ...Option) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}
	s := &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Splitter) ChunkSize() int    { return s.chunkSize }
func (s *Splitter) ChunkOverlap() int { return s.chunkOverlap }

// Chunks returns the chunks of text as a lazy sequence. Each iteration
// re-splits text from the start, so the sequence can be ranged over any
// number of times with identical results.
func (s *Splitter) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		s.split(text, s.separators, yield)
	}
}

// Split collects every chunk of text.
func (s *Splitter) Split(text string) []string {
	return slices.Collect(s.Chunks(text))
}

// split returns false once yield asks to stop.
func (s *Splitter) split(text string, separators []string, yield func(string) bool) bool {
	sep, rest := pickSeparator(text, separators)
	var small []string
	for _, piece := range splitKeepingSeparator(text, sep) {
		if runeLen(piece) < s.chunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			if !s.merge(small, yield) {
				return false
			}
			small = nil
		}
		if len(rest) == 0 {
			if !emit(piece, yield) {
				return false
			}
			continue
		}
		if !s.split(piece, rest, yield) {
			return false
		}
	}
	if len(small) > 0 {
		return s.merge(small, yield)
	}
	return true
}

// merge packs consecutive pieces into chunks. After a chunk is emitted the
// trailing pieces that fit within the overlap are carried into the next one.
func (s *Splitter) merge(pieces []string, yield func(string) bool) bool {
	var (
		window  []string
		lengths []int
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.chunkSize && len(window) > 0 {
			if !emit(strings.Join(window, ""), yield) {
				return false
			}
			for total > s.chunkOverlap || (total > 0 && total+n > s.chunkSize) {
				total -= lengths[0]
				window, lengths = window[1:], lengths[1:]
			}
		}
		window = append(window, p)
		lengths = append(lengths, n)
		total += n
	}
	if len(window) > 0 {
		return emit(strings.Join(window, ""), yield)
	}
	return true
}

// emit is the only way out for chunks, merged or not: each is trimmed of
// surrounding whitespace and a blank one is dropped.
func emit(chunk string, yield func(string) bool) bool {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return true
	}
	return yield(chunk)
}

// pickSeparator returns the first separator present in text and the
// separators that remain for recursing into oversized pieces.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeepingSeparator splits text on sep and attaches each separator to
// the piece that follows it. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for len(text) > 0 {
			_, w := utf8.DecodeRuneInString(text)
			pieces = append(pieces, text[:w])
			text = text[w:]
		}
		return pieces
	}
	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	if parts[0] != "" {
		pieces = append(pieces, parts[0])
	}
	for _, p := range parts[1:] {
		pieces = append(pieces, sep+p)
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
