package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePathPrefix = "ppt/slides/slide"
)

var (
	// Paragraph elements; the attribute group refuses self-closing tags.
	wpTag = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*[^/>])?>(.*?)</w:p>`)
	wtTag = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	apTag = regexp.MustCompile(`(?s)<a:p(?:\s[^>]*[^/>])?>(.*?)</a:p>`)
	atTag = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)

	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

	slideNumRe = regexp.MustCompile(`slide(\d+)\.xml$`)
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	return buf.String(), nil
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// paragraphs joins the runs of each paragraph and returns one line per
// non-empty paragraph.
func paragraphs(xml string, para, run *regexp.Regexp) string {
	var lines []string
	for _, p := range para.FindAllStringSubmatch(xml, -1) {
		var b strings.Builder
		for _, r := range run.FindAllStringSubmatch(p[1], -1) {
			b.WriteString(html.UnescapeString(r[1]))
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// docxMainPath finds the main document part from [Content_Types].xml,
// falling back to word/document.xml.
func docxMainPath(zr *zip.Reader) string {
	f := findZipFile(zr, contentTypesPath)
	if f == nil {
		return docxDocumentXMLPath
	}
	content, err := readZipFile(f)
	if err != nil {
		return docxDocumentXMLPath
	}
	if m := partNameRe.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return docxDocumentXMLPath
}

// docxUnits returns the main document body as a single unit.
func docxUnits(content []byte) ([]unit, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return nil, err
	}
	docPath := docxMainPath(zr)
	f := findZipFile(zr, docPath)
	if f == nil {
		return nil, fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	return []unit{{
		name: docPath,
		read: func() (string, error) {
			xml, err := readZipFile(f)
			if err != nil {
				return "", err
			}
			return paragraphs(xml, wpTag, wtTag), nil
		},
	}}, nil
}

// pptxUnits returns one unit per slide, in slide-number order.
func pptxUnits(content []byte) ([]unit, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}
	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePathPrefix) {
			continue
		}
		m := slideNumRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	units := make([]unit, 0, len(slides))
	for _, s := range slides {
		units = append(units, unit{
			name: s.file.Name,
			read: func() (string, error) {
				xml, err := readZipFile(s.file)
				if err != nil {
					return "", err
				}
				return paragraphs(xml, apTag, atTag), nil
			},
		})
	}
	return units, nil
}
