// Package extract turns uploaded documents into a single plain-text string.
//
// Every format is read as an ordered list of units (PDF pages, slides,
// sheets, paragraphs). A unit that cannot be read contributes an empty
// string; only an unreadable container fails the whole extraction.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Extractor extracts plain text from document files.
type Extractor struct {
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used to report degraded units.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Supported reports whether ext has a dedicated reader. Unknown extensions
// are still extracted as plain text.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".odp", ".ods", ".txt", ".md", ".rst":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractReader drains r and extracts text; the extension of name selects the format.
func (e *Extractor) ExtractReader(r io.Reader, name string) (string, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return e.ExtractBytes(buf.Bytes(), filepath.Ext(name))
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	var (
		units []unit
		err   error
	)
	sep := "\n"
	switch ext {
	case ".pdf":
		units, err = pdfUnits(content)
		sep = ""
	case ".docx":
		units, err = docxUnits(content)
	case ".xlsx":
		units, err = excelUnits(content)
	case ".pptx":
		units, err = pptxUnits(content)
	case ".odt", ".odp", ".ods":
		units, err = openDocumentUnits(content, ext)
	default:
		return extractPlain(content), nil
	}
	if err != nil {
		return "", err
	}
	return e.join(ext, units, sep), nil
}
