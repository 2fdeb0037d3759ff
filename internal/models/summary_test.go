package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate_Merge(t *testing.T) {
	flags := []Estimate{EstimateCertain, EstimateGuessed, EstimateMissing}

	for _, a := range flags {
		for _, b := range flags {
			merged := a.Merge(b)
			assert.GreaterOrEqual(t, int(merged), int(a))
			assert.GreaterOrEqual(t, int(merged), int(b))
			assert.Equal(t, merged, b.Merge(a))
		}
	}

	assert.Equal(t, EstimateMissing, EstimateMissing.Merge(EstimateCertain))
	assert.Equal(t, EstimateGuessed, EstimateCertain.Merge(EstimateGuessed))
}

func TestEstimate_LegendRoundTrip(t *testing.T) {
	for _, e := range []Estimate{EstimateCertain, EstimateGuessed, EstimateMissing} {
		parsed, err := ParseEstimate(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, parsed)

		var scanned Estimate
		require.NoError(t, scanned.Scan([]byte(e.String())))
		assert.Equal(t, e, scanned)
	}

	_, err := ParseEstimate("***")
	assert.Error(t, err)
}

func TestTotals_AverageScore(t *testing.T) {
	var empty Totals
	assert.Nil(t, empty.AverageScore())

	totals := Totals{Rated: 4, RatingTotal: 15}
	require.NotNil(t, totals.AverageScore())
	assert.Equal(t, 3.75, *totals.AverageScore())
}

func TestDailySummary_MarshalJSON(t *testing.T) {
	day := DailySummary{
		Date: "2023-01-02",
		Totals: Totals{
			Drinks:      2,
			Rated:       1,
			RatingTotal: 4,
			BeverageMl:  898,
			Estimated:   EstimateGuessed,
		},
	}

	out, err := json.Marshal(day)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "2023-01-02", decoded["date"])
	assert.Equal(t, "*", decoded["estimated"])
	assert.Equal(t, 4.0, decoded["average_score"])
	assert.Equal(t, 898.0, decoded["beverage_ml"])

	var back DailySummary
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, day, back)
}

func TestWeeklySummary_MarshalJSON_NoRatings(t *testing.T) {
	week := WeeklySummary{Week: "2023-W01", Commencing: "2023-01-02", DryDays: 7}

	out, err := json.Marshal(week)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"average_score":null`)
	assert.Contains(t, string(out), `"dry_days":7`)
}

func TestProducerSummary_AverageOfBeers(t *testing.T) {
	p := NewProducerSummary("Cloudwater")
	// One heavily rated beer and one rated once
	p.BeerRatings["DIPA v3"] = []float64{5, 5, 5, 5}
	p.BeerRatings["Pale"] = []float64{3}
	p.BeerRatings["Unrated Lager"] = nil
	p.Rated = 5
	p.RatingTotal = 23

	require.NotNil(t, p.AverageScore())
	assert.InDelta(t, 4.6, *p.AverageScore(), 1e-9)

	require.NotNil(t, p.AverageOfBeers())
	assert.InDelta(t, 4.0, *p.AverageOfBeers(), 1e-9)
	assert.Equal(t, 3, p.UniqueBeers())

	assert.Nil(t, NewProducerSummary("Nobody").AverageOfBeers())
}

func TestProducerSummary_MarshalJSON(t *testing.T) {
	p := NewProducerSummary("Cloudwater")
	p.Checkins = 2
	p.Rated = 2
	p.RatingTotal = 7
	p.BeerRatings["Pale"] = []float64{3, 4}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Cloudwater", decoded["brewery"])
	assert.Equal(t, 1.0, decoded["unique_beers"])
	assert.Equal(t, 3.5, decoded["average_score"])
	assert.Equal(t, 3.5, decoded["average_of_beers"])

	var back ProducerSummary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []float64{3, 4}, back.BeerRatings["Pale"])
}

func TestStyleSummary_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(StyleSummary{Style: "IPA", Checkins: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"style":"IPA","checkins":3,"rated":0,"rating_total":0,"average_score":null}`, string(data))
}
