package reports

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"checkin-platform/internal/aggregation"
)

// defaultSheet is created by excelize.NewFile and becomes the first sheet
const defaultSheet = "Sheet1"

// sheets in workbook order
var workbookSheets = []struct {
	name string
	kind Kind
}{
	{"Weekly", KindWeekly},
	{"Daily", KindDaily},
	{"Styles", KindStyles},
	{"Producers", KindProducers},
}

// BuildWorkbook renders every summary in result as one XLSX workbook
func BuildWorkbook(result *aggregation.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	err := f.SetDocProps(&excelize.DocProperties{
		Title:       "Checkin Summary",
		Subject:     "Consumption by day and week",
		Creator:     "checkin-platform",
		Description: fmt.Sprintf("Checkins from %s to %s", aggregation.DateKey(result.FirstDate), aggregation.DateKey(result.LastDate)),
		Created:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sheet := range workbookSheets {
		t, _ := tableFor(sheet.kind, result)

		if i == 0 {
			err = f.SetSheetName(defaultSheet, sheet.name)
		} else {
			_, err = f.NewSheet(sheet.name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet.name, err)
		}

		withLegend := sheet.kind == KindDaily || sheet.kind == KindWeekly
		if err := writeSheet(f, sheet.name, t, headerStyle, withLegend); err != nil {
			return nil, fmt.Errorf("failed to write sheet %s: %w", sheet.name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, t table, headerStyle int, withLegend bool) error {
	headers := make([]interface{}, len(t.headers))
	for i, h := range t.headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	lastHeader, _ := excelize.CoordinatesToCellName(len(t.headers), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for r, row := range t.rows {
		values := make([]interface{}, len(row))
		for i, cell := range row {
			if v, ok := cell.(fixed); ok {
				values[i] = v.Float64()
			} else {
				values[i] = cell
			}
		}

		start, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(t.headers))
	if err := f.SetColWidth(sheet, "A", lastCol, 14); err != nil {
		return err
	}

	if !withLegend {
		return nil
	}

	legendRow := len(t.rows) + 3
	for i, line := range Legend {
		cell, _ := excelize.CoordinatesToCellName(1, legendRow+i)
		if err := f.SetCellValue(sheet, cell, line); err != nil {
			return err
		}
	}
	return nil
}
