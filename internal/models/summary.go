package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Estimate marks how much of a summary's volume data was guessed.
// The zero value is EstimateCertain. Ordering matters: Merge keeps the
// most uncertain flag and a flag never moves back down.
type Estimate int

const (
	// EstimateCertain means every measure came from an annotation
	EstimateCertain Estimate = iota
	// EstimateGuessed means at least one measure came from the serving default
	EstimateGuessed
	// EstimateMissing means at least one checkin had no measure at all
	EstimateMissing
)

// String renders the flag in the report legend form: "", "*" or "**".
func (e Estimate) String() string {
	switch e {
	case EstimateGuessed:
		return "*"
	case EstimateMissing:
		return "**"
	default:
		return ""
	}
}

// Merge returns the more uncertain of the two flags.
func (e Estimate) Merge(other Estimate) Estimate {
	if other > e {
		return other
	}
	return e
}

// ParseEstimate is the inverse of String.
func ParseEstimate(s string) (Estimate, error) {
	switch s {
	case "":
		return EstimateCertain, nil
	case "*":
		return EstimateGuessed, nil
	case "**":
		return EstimateMissing, nil
	}
	return EstimateCertain, fmt.Errorf("unknown estimate flag %q", s)
}

// MarshalJSON implements json.Marshaler
func (e Estimate) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Estimate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEstimate(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Value implements driver.Valuer so flags are stored in their legend form
func (e Estimate) Value() (driver.Value, error) {
	return e.String(), nil
}

// Scan implements sql.Scanner
func (e *Estimate) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*e = EstimateCertain
		return nil
	case string:
		parsed, err := ParseEstimate(v)
		*e = parsed
		return err
	case []byte:
		parsed, err := ParseEstimate(string(v))
		*e = parsed
		return err
	}
	return fmt.Errorf("cannot scan %T into Estimate", src)
}

// Totals holds the additive consumption fields shared by day and week summaries
type Totals struct {
	Drinks      int      `json:"drinks" db:"drinks"`
	Rated       int      `json:"drinks_rated" db:"drinks_rated"`
	RatingTotal float64  `json:"drinks_total_score" db:"drinks_total_score"`
	BeverageMl  float64  `json:"beverage_ml" db:"beverage_ml"`
	AlcoholMl   float64  `json:"alcohol_ml" db:"alcohol_ml"`
	Units       float64  `json:"units" db:"units"`
	Estimated   Estimate `json:"estimated" db:"estimated"`
}

// Add folds other into t. The estimate flag follows the Merge rule.
func (t *Totals) Add(other Totals) {
	t.Drinks += other.Drinks
	t.Rated += other.Rated
	t.RatingTotal += other.RatingTotal
	t.BeverageMl += other.BeverageMl
	t.AlcoholMl += other.AlcoholMl
	t.Units += other.Units
	t.Estimated = t.Estimated.Merge(other.Estimated)
}

// AverageScore is nil when nothing was rated.
func (t Totals) AverageScore() *float64 {
	return average(t.RatingTotal, t.Rated)
}

func average(total float64, count int) *float64 {
	if count <= 0 {
		return nil
	}
	avg := total / float64(count)
	return &avg
}

// DailySummary is the consumption on one calendar date
type DailySummary struct {
	Date string `json:"date" db:"summary_date"`
	Totals
}

// MarshalJSON adds the derived average score
func (d DailySummary) MarshalJSON() ([]byte, error) {
	type alias DailySummary
	return json.Marshal(struct {
		alias
		AverageScore *float64 `json:"average_score"`
	}{alias(d), d.AverageScore()})
}

// WeeklySummary is the consumption in one ISO week
type WeeklySummary struct {
	Week       string `json:"week" db:"iso_week"`
	Commencing string `json:"commencing" db:"commencing"`
	DryDays    int    `json:"dry_days" db:"dry_days"`
	Totals
}

// MarshalJSON adds the derived average score
func (w WeeklySummary) MarshalJSON() ([]byte, error) {
	type alias WeeklySummary
	return json.Marshal(struct {
		alias
		AverageScore *float64 `json:"average_score"`
	}{alias(w), w.AverageScore()})
}

// StyleSummary counts checkins of one beer style
type StyleSummary struct {
	Style       string  `json:"style" db:"style"`
	Checkins    int     `json:"checkins" db:"checkins"`
	Rated       int     `json:"rated" db:"rated"`
	RatingTotal float64 `json:"rating_total" db:"rating_total"`
}

// AverageScore is nil when nothing was rated.
func (s StyleSummary) AverageScore() *float64 {
	return average(s.RatingTotal, s.Rated)
}

// MarshalJSON adds the derived average score
func (s StyleSummary) MarshalJSON() ([]byte, error) {
	type alias StyleSummary
	return json.Marshal(struct {
		alias
		AverageScore *float64 `json:"average_score"`
	}{alias(s), s.AverageScore()})
}

// ProducerSummary counts checkins of one brewery and keeps every rating per
// beer so the brewery score is not dominated by one frequently rated beer.
type ProducerSummary struct {
	Producer    string               `json:"brewery"`
	Checkins    int                  `json:"checkins"`
	Rated       int                  `json:"rated"`
	RatingTotal float64              `json:"rating_total"`
	BeerRatings map[string][]float64 `json:"beer_ratings"`
}

// NewProducerSummary returns an empty summary for name
func NewProducerSummary(name string) *ProducerSummary {
	return &ProducerSummary{
		Producer:    name,
		BeerRatings: make(map[string][]float64),
	}
}

// UniqueBeers is the number of distinct beers checked in, rated or not.
func (p ProducerSummary) UniqueBeers() int {
	return len(p.BeerRatings)
}

// AverageScore is the checkin-weighted mean rating.
func (p ProducerSummary) AverageScore() *float64 {
	return average(p.RatingTotal, p.Rated)
}

// AverageOfBeers averages each rated beer's mean rating with equal weight.
func (p ProducerSummary) AverageOfBeers() *float64 {
	names := make([]string, 0, len(p.BeerRatings))
	for name := range p.BeerRatings {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0.0
	beers := 0
	for _, name := range names {
		ratings := p.BeerRatings[name]
		if len(ratings) == 0 {
			continue
		}
		sum := 0.0
		for _, r := range ratings {
			sum += r
		}
		total += sum / float64(len(ratings))
		beers++
	}
	return average(total, beers)
}

// MarshalJSON adds the derived beer count and scores
func (p ProducerSummary) MarshalJSON() ([]byte, error) {
	type alias ProducerSummary
	return json.Marshal(struct {
		alias
		UniqueBeers    int      `json:"unique_beers"`
		AverageScore   *float64 `json:"average_score"`
		AverageOfBeers *float64 `json:"average_of_beers"`
	}{alias(p), p.UniqueBeers(), p.AverageScore(), p.AverageOfBeers()})
}

// Report describes one persisted summary run
type Report struct {
	ID            string    `json:"id" db:"id"`
	Owner         string    `json:"owner,omitempty" db:"owner"`
	Source        string    `json:"source,omitempty" db:"source"`
	ContentHash   string    `json:"content_hash" db:"content_hash"`
	InitialRegion string    `json:"initial_region" db:"initial_region"`
	Checkins      int       `json:"checkins" db:"checkins"`
	Skipped       int       `json:"skipped" db:"skipped"`
	FirstDate     string    `json:"first_date" db:"first_date"`
	LastDate      string    `json:"last_date" db:"last_date"`
	ArtifactURL   string    `json:"artifact_url,omitempty" db:"artifact_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
