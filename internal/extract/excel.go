package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// excelUnits returns one unit per sheet; rows become tab-separated lines.
// The workbook is read eagerly because excelize needs it open while rows are fetched.
func excelUnits(content []byte) ([]unit, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var units []unit
	for _, sheet := range f.GetSheetList() {
		rows, rowsErr := f.GetRows(sheet)
		var b strings.Builder
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		text := strings.TrimSpace(b.String())
		units = append(units, unit{
			name: "sheet " + sheet,
			read: func() (string, error) {
				if rowsErr != nil {
					return "", fmt.Errorf("get rows: %w", rowsErr)
				}
				return text, nil
			},
		})
	}
	return units, nil
}
