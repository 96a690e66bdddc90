package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pdfUnits returns one unit per page. Pages are concatenated without a
// separator, so a sentence broken across pages stays intact.
func pdfUnits(content []byte) ([]unit, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	n := r.NumPage()
	units := make([]unit, 0, n)
	for i := 1; i <= n; i++ {
		units = append(units, unit{
			name: fmt.Sprintf("page %d", i),
			read: func() (string, error) {
				page := r.Page(i)
				if page.V.IsNull() {
					return "", nil
				}
				return page.GetPlainText(nil)
			},
		})
	}
	return units, nil
}
