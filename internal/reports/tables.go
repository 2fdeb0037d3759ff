// Package reports renders summary results as CSV and XLSX.
package reports

import (
	"github.com/shopspring/decimal"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/models"
)

// Legend explains the estimate markers used in the estimated column
var Legend = []string{
	"* = Some measures guessed from serving.",
	"** = Some beers skipped due to no serving or measure.",
}

// Kind selects which summary a report contains
type Kind string

const (
	KindDaily     Kind = "daily"
	KindWeekly    Kind = "weekly"
	KindStyles    Kind = "styles"
	KindProducers Kind = "producers"
)

var (
	dailyHeaders     = []string{"date", "drinks", "average_score", "beverage_ml", "alcohol_ml", "units", "estimated"}
	weeklyHeaders    = []string{"week", "commencing", "drinks", "average_score", "beverage_ml", "alcohol_ml", "units", "estimated", "dry_days"}
	stylesHeaders    = []string{"style", "checkins", "rated", "average_score"}
	producersHeaders = []string{"brewery", "checkins", "unique_beers", "average_score", "average_of_beers"}
)

// cell values are string, int, fixed or nil for an absent score
type table struct {
	headers []string
	rows    [][]interface{}
}

// fixed is a rounded number that keeps its decimal places when printed
type fixed struct {
	value  decimal.Decimal
	places int32
}

func (f fixed) String() string {
	return f.value.StringFixed(f.places)
}

func (f fixed) Float64() float64 {
	return f.value.InexactFloat64()
}

func volume(v float64) fixed {
	return fixed{value: decimal.NewFromFloat(v).Round(1), places: 1}
}

func score(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return fixed{value: decimal.NewFromFloat(*v).Round(2), places: 2}
}

func dailyTable(days []models.DailySummary) table {
	t := table{headers: dailyHeaders}
	for _, d := range days {
		t.rows = append(t.rows, []interface{}{
			d.Date,
			d.Drinks,
			score(d.AverageScore()),
			volume(d.BeverageMl),
			volume(d.AlcoholMl),
			volume(d.Units),
			d.Estimated.String(),
		})
	}
	return t
}

func weeklyTable(weeks []models.WeeklySummary) table {
	t := table{headers: weeklyHeaders}
	for _, w := range weeks {
		t.rows = append(t.rows, []interface{}{
			w.Week,
			w.Commencing,
			w.Drinks,
			score(w.AverageScore()),
			volume(w.BeverageMl),
			volume(w.AlcoholMl),
			volume(w.Units),
			w.Estimated.String(),
			w.DryDays,
		})
	}
	return t
}

func stylesTable(styles []models.StyleSummary) table {
	t := table{headers: stylesHeaders}
	for _, s := range styles {
		t.rows = append(t.rows, []interface{}{
			s.Style,
			s.Checkins,
			s.Rated,
			score(s.AverageScore()),
		})
	}
	return t
}

func producersTable(producers []models.ProducerSummary) table {
	t := table{headers: producersHeaders}
	for _, p := range producers {
		t.rows = append(t.rows, []interface{}{
			p.Producer,
			p.Checkins,
			p.UniqueBeers(),
			score(p.AverageScore()),
			score(p.AverageOfBeers()),
		})
	}
	return t
}

func tableFor(kind Kind, result *aggregation.Result) (table, bool) {
	switch kind {
	case KindDaily:
		return dailyTable(result.DailySeries()), true
	case KindWeekly:
		return weeklyTable(result.WeeklySeries()), true
	case KindStyles:
		return stylesTable(result.StylesByPopularity()), true
	case KindProducers:
		return producersTable(result.ProducersByScore()), true
	}
	return table{}, false
}
