package aggregation

import (
	"sort"
	"time"

	"checkin-platform/internal/measures"
	"checkin-platform/internal/models"
)

// Result is everything one pass produced. It is owned by the caller once
// Aggregate returns.
type Result struct {
	Daily     map[string]*models.DailySummary
	Weekly    map[string]*models.WeeklySummary
	Styles    map[string]*models.StyleSummary
	Producers map[string]*models.ProducerSummary

	FirstDate     time.Time
	LastDate      time.Time
	InitialRegion measures.Region

	// Records is the input length; Skipped had no usable date
	Records int
	Skipped int
	// Annotated, Estimated and Missing count how each used checkin's measure
	// was found
	Annotated int
	Estimated int
	Missing   int
	ByRegion  map[measures.Region]int
}

func newResult(initial measures.Region) *Result {
	return &Result{
		Daily:         make(map[string]*models.DailySummary),
		Weekly:        make(map[string]*models.WeeklySummary),
		Styles:        make(map[string]*models.StyleSummary),
		Producers:     make(map[string]*models.ProducerSummary),
		InitialRegion: initial,
		ByRegion:      make(map[measures.Region]int),
	}
}

// DailySeries returns the daily summaries in date order
func (r *Result) DailySeries() []models.DailySummary {
	series := make([]models.DailySummary, 0, len(r.Daily))
	for _, key := range sortedKeys(r.Daily) {
		series = append(series, *r.Daily[key])
	}
	return series
}

// WeeklySeries returns the weekly summaries in week order
func (r *Result) WeeklySeries() []models.WeeklySummary {
	series := make([]models.WeeklySummary, 0, len(r.Weekly))
	for _, key := range sortedKeys(r.Weekly) {
		series = append(series, *r.Weekly[key])
	}
	return series
}

// StylesByPopularity orders styles by checkin count, then name
func (r *Result) StylesByPopularity() []models.StyleSummary {
	styles := make([]models.StyleSummary, 0, len(r.Styles))
	for _, s := range r.Styles {
		styles = append(styles, *s)
	}
	sort.Slice(styles, func(i, j int) bool {
		if styles[i].Checkins != styles[j].Checkins {
			return styles[i].Checkins > styles[j].Checkins
		}
		return styles[i].Style < styles[j].Style
	})
	return styles
}

// ProducersByScore orders producers by their average-of-beers score with
// unrated producers last, then by name
func (r *Result) ProducersByScore() []models.ProducerSummary {
	producers := make([]models.ProducerSummary, 0, len(r.Producers))
	for _, p := range r.Producers {
		producers = append(producers, *p)
	}

	scores := make(map[string]*float64, len(producers))
	for _, p := range producers {
		scores[p.Producer] = p.AverageOfBeers()
	}

	sort.Slice(producers, func(i, j int) bool {
		a, b := scores[producers[i].Producer], scores[producers[j].Producer]
		switch {
		case a != nil && b != nil && *a != *b:
			return *a > *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return producers[i].Producer < producers[j].Producer
	})
	return producers
}

// Estimate is the most uncertain flag across all days
func (r *Result) Estimate() models.Estimate {
	flag := models.EstimateCertain
	for _, day := range r.Daily {
		flag = flag.Merge(day.Estimated)
	}
	return flag
}
