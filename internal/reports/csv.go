package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/models"
)

// WriteCSV writes one kind of summary from result
func WriteCSV(w io.Writer, kind Kind, result *aggregation.Result) error {
	t, ok := tableFor(kind, result)
	if !ok {
		return fmt.Errorf("unknown report kind %q", kind)
	}
	return writeTable(w, t)
}

// WriteDailyCSV writes one row per date
func WriteDailyCSV(w io.Writer, days []models.DailySummary) error {
	return writeTable(w, dailyTable(days))
}

// WriteWeeklyCSV writes one row per ISO week
func WriteWeeklyCSV(w io.Writer, weeks []models.WeeklySummary) error {
	return writeTable(w, weeklyTable(weeks))
}

// WriteStylesCSV writes one row per style
func WriteStylesCSV(w io.Writer, styles []models.StyleSummary) error {
	return writeTable(w, stylesTable(styles))
}

// WriteProducersCSV writes one row per brewery
func WriteProducersCSV(w io.Writer, producers []models.ProducerSummary) error {
	return writeTable(w, producersTable(producers))
}

func writeTable(w io.Writer, t table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(t.headers))
	for _, row := range t.rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatCell(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case fixed:
		return v.String()
	}
	return fmt.Sprint(cell)
}
