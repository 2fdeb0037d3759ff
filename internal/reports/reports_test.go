package reports

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/measures"
	"checkin-platform/internal/models"
)

func sampleResult(t *testing.T) *aggregation.Result {
	t.Helper()

	agg, err := aggregation.NewAggregator(aggregation.Config{Measures: measures.DefaultConfig()}, nil)
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background(), []models.Checkin{
		{CreatedAt: "2023-01-02 18:00:00", Comment: "[pint]", ABV: models.Float(5.0), RatingScore: models.Float(4.0),
			BeerType: "Bitter - Best", BeerName: "Landlord", BreweryName: "Timothy Taylor", VenueCountry: "England"},
		{CreatedAt: "2023-01-02 20:00:00", ServingType: "bottle", ABV: models.Float(6.0),
			BeerType: "IPA - English", BeerName: "Jaipur", BreweryName: "Thornbridge"},
		{CreatedAt: "2023-01-17 20:00:00", ServingType: "growler", ABV: models.Float(6.0), RatingScore: models.Float(3.75),
			BeerType: "IPA - American", BeerName: "Halo", BreweryName: "Thornbridge"},
	})
	require.NoError(t, err)
	return result
}

func TestWriteCSV_Daily(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, KindDaily, sampleResult(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,drinks,average_score,beverage_ml,alcohol_ml,units,estimated", lines[0])
	assert.Equal(t, "2023-01-02,2,4.00,898.0,48.2,4.8,*", lines[1])
	assert.Equal(t, "2023-01-17,1,3.75,0.0,0.0,0.0,**", lines[2])
}

func TestWriteCSV_Weekly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, KindWeekly, sampleResult(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "week,commencing,drinks,average_score,beverage_ml,alcohol_ml,units,estimated,dry_days", lines[0])
	assert.Equal(t, "2023-W01,2023-01-02,2,4.00,898.0,48.2,4.8,*,6", lines[1])
	assert.Equal(t, "2023-W02,2023-01-09,0,,0.0,0.0,0.0,,7", lines[2])
	assert.Equal(t, "2023-W03,2023-01-16,1,3.75,0.0,0.0,0.0,**,6", lines[3])
}

func TestWriteCSV_StylesAndProducers(t *testing.T) {
	result := sampleResult(t)

	var styles bytes.Buffer
	require.NoError(t, WriteStylesCSV(&styles, result.StylesByPopularity()))
	assert.Equal(t, "style,checkins,rated,average_score\nIPA,2,1,3.75\nBitter,1,1,4.00\n", styles.String())

	var producers bytes.Buffer
	require.NoError(t, WriteProducersCSV(&producers, result.ProducersByScore()))
	assert.Equal(t,
		"brewery,checkins,unique_beers,average_score,average_of_beers\n"+
			"Timothy Taylor,1,1,4.00,4.00\n"+
			"Thornbridge,2,2,3.75,3.75\n",
		producers.String())
}

func TestWriteCSV_UnknownKind(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteCSV(&buf, Kind("monthly"), sampleResult(t)))
}

func TestBuildWorkbook(t *testing.T) {
	data, err := BuildWorkbook(sampleResult(t))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Weekly", "Daily", "Styles", "Producers"}, f.GetSheetList())

	rows, err := f.GetRows("Weekly")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, weeklyHeaders, rows[0])
	assert.Equal(t, "2023-W01", rows[1][0])
	assert.Equal(t, "2023-W02", rows[2][0])

	legend, err := f.GetCellValue("Weekly", "A6")
	require.NoError(t, err)
	assert.Equal(t, Legend[0], legend)
	legend, err = f.GetCellValue("Weekly", "A7")
	require.NoError(t, err)
	assert.Equal(t, Legend[1], legend)

	style, err := f.GetCellValue("Styles", "A2")
	require.NoError(t, err)
	assert.Equal(t, "IPA", style)
}
