package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const odfContentPath = "content.xml"

var (
	// text:p and text:h blocks; inline children such as text:span are stripped.
	odfBlock = regexp.MustCompile(`(?s)<text:(?:p|h)(?:\s[^>]*[^/>])?>(.*?)</text:(?:p|h)>`)
	odfPage  = regexp.MustCompile(`(?s)<(?:draw:page|table:table)(?:\s[^>]*[^/>])?>(.*?)</(?:draw:page|table:table)>`)
	anyTag   = regexp.MustCompile(`<[^>]+>`)
)

// openDocumentUnits handles .odt, .odp and .ods. Presentations and
// spreadsheets yield one unit per page or table; text documents yield one unit.
func openDocumentUnits(content []byte, ext string) ([]unit, error) {
	format := strings.ToUpper(strings.TrimPrefix(ext, "."))
	zr, err := openZip(content, format)
	if err != nil {
		return nil, err
	}
	f := findZipFile(zr, odfContentPath)
	if f == nil {
		return nil, fmt.Errorf("extract %s: %s not found", format, odfContentPath)
	}
	xml, err := readZipFile(f)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", format, err)
	}

	parts := []string{xml}
	if ext != ".odt" {
		if pages := odfPage.FindAllStringSubmatch(xml, -1); len(pages) > 0 {
			parts = parts[:0]
			for _, p := range pages {
				parts = append(parts, p[1])
			}
		}
	}
	units := make([]unit, 0, len(parts))
	for i, part := range parts {
		units = append(units, unit{
			name: fmt.Sprintf("part %d", i+1),
			read: func() (string, error) { return odfText(part), nil },
		})
	}
	return units, nil
}

func odfText(xml string) string {
	var lines []string
	for _, m := range odfBlock.FindAllStringSubmatch(xml, -1) {
		line := strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(m[1], "")))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
