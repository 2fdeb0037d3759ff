// Package aggregation folds a checkin export into daily, weekly, style and
// producer summaries.
package aggregation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"checkin-platform/internal/measures"
	"checkin-platform/internal/models"
	"checkin-platform/pkg/logging"
)

// Config controls an Aggregator
type Config struct {
	// FallbackRegion is used when no checkin names a country. Nil means such
	// exports fail with AmbiguousRegionError.
	FallbackRegion *measures.Region
	Measures       measures.Config
}

// Aggregator runs summary passes. It keeps no state between calls, so one
// Aggregator may serve concurrent passes.
type Aggregator struct {
	resolvers      *measures.Resolvers
	fallbackRegion *measures.Region
	logger         *logging.StructuredLogger
}

// NewAggregator builds an Aggregator. A nil logger discards output.
func NewAggregator(cfg Config, logger *logging.StructuredLogger) (*Aggregator, error) {
	resolvers, err := measures.NewResolvers(cfg.Measures)
	if err != nil {
		return nil, fmt.Errorf("failed to build measure resolvers: %w", err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Aggregator{
		resolvers:      resolvers,
		fallbackRegion: cfg.FallbackRegion,
		logger:         logger,
	}, nil
}

// WithFallbackRegion returns a copy of a that falls back to region when an
// export names no country. The resolvers are shared.
func (a *Aggregator) WithFallbackRegion(region measures.Region) *Aggregator {
	clone := *a
	clone.fallbackRegion = &region
	return &clone
}

// pass is the accumulator for a single Aggregate call
type pass struct {
	resolvers *measures.Resolvers
	regions   *regionTracker
	result    *Result
}

// Aggregate summarises checkins in the given order.
func (a *Aggregator) Aggregate(ctx context.Context, checkins []models.Checkin) (*Result, error) {
	startTime := time.Now()

	if len(checkins) == 0 {
		return nil, &NoDataError{}
	}

	regions, err := newRegionTracker(checkins, a.fallbackRegion)
	if err != nil {
		return nil, err
	}

	p := &pass{
		resolvers: a.resolvers,
		regions:   regions,
		result:    newResult(regions.current),
	}

	for i := range checkins {
		if err := p.fold(ctx, a.logger, i, &checkins[i]); err != nil {
			return nil, err
		}
	}

	result := p.result
	result.Records = len(checkins)
	if len(result.Daily) == 0 {
		return nil, &NoDataError{Records: result.Records, Skipped: result.Skipped}
	}

	result.rollUpWeeks()

	a.logger.Info(ctx, "[AGGREGATE_COMPLETE] Checkins summarised", logging.Fields{
		"records":          result.Records,
		"skipped":          result.Skipped,
		"days":             len(result.Daily),
		"weeks":            len(result.Weekly),
		"initial_region":   result.InitialRegion.String(),
		"first_date":       DateKey(result.FirstDate),
		"last_date":        DateKey(result.LastDate),
		"duration_seconds": time.Since(startTime).Seconds(),
	})

	return result, nil
}

func (p *pass) fold(ctx context.Context, logger *logging.StructuredLogger, index int, c *models.Checkin) error {
	r := p.result

	date, err := c.Date()
	if err != nil {
		r.Skipped++
		logger.Debug(ctx, "[AGGREGATE_SKIP] Checkin has no usable date", logging.Fields{
			"index":      index,
			"checkin_id": c.CheckinID,
			"created_at": c.CreatedAt,
		})
		return nil
	}

	if r.FirstDate.IsZero() || date.Before(r.FirstDate) {
		r.FirstDate = date
	}
	if date.After(r.LastDate) {
		r.LastDate = date
	}

	dateKey := DateKey(date)
	day, ok := r.Daily[dateKey]
	if !ok {
		day = &models.DailySummary{Date: dateKey}
		r.Daily[dateKey] = day
	}

	day.Drinks++
	if c.RatingScore.NonZero() {
		day.Rated++
		day.RatingTotal += c.RatingScore.Value
	}

	region := p.regions.regionFor(c)
	resolver := p.resolvers.For(region)
	r.ByRegion[region]++

	measure, resolved, err := resolver.FromComment(c.Comment)
	if err != nil {
		return fmt.Errorf("checkin %d on %s: %w", index, dateKey, err)
	}

	if resolved {
		r.Annotated++
	} else {
		measure, resolved = resolver.FromServing(c.ServingType)
		day.Estimated = day.Estimated.Merge(models.EstimateGuessed)
		if resolved {
			r.Estimated++
		}
	}

	if resolved {
		ml := float64(measure)
		day.BeverageMl += ml
		if c.ABV.NonZero() {
			alcohol := ml * c.ABV.Value / 100
			day.AlcoholMl += alcohol
			day.Units += alcohol / 10
		}
	} else {
		r.Missing++
		day.Estimated = day.Estimated.Merge(models.EstimateMissing)
	}

	p.foldStyle(c)
	p.foldProducer(c)
	return nil
}

func (p *pass) foldStyle(c *models.Checkin) {
	name := c.Style()
	if name == "" {
		return
	}

	style, ok := p.result.Styles[name]
	if !ok {
		style = &models.StyleSummary{Style: name}
		p.result.Styles[name] = style
	}

	style.Checkins++
	if c.RatingScore.NonZero() {
		style.Rated++
		style.RatingTotal += c.RatingScore.Value
	}
}

func (p *pass) foldProducer(c *models.Checkin) {
	name := c.Producer()
	if name == "" {
		return
	}

	producer, ok := p.result.Producers[name]
	if !ok {
		producer = models.NewProducerSummary(name)
		p.result.Producers[name] = producer
	}

	producer.Checkins++
	beer := strings.TrimSpace(c.BeerName)
	if _, seen := producer.BeerRatings[beer]; !seen && beer != "" {
		producer.BeerRatings[beer] = nil
	}

	if c.RatingScore.NonZero() {
		producer.Rated++
		producer.RatingTotal += c.RatingScore.Value
		if beer != "" {
			producer.BeerRatings[beer] = append(producer.BeerRatings[beer], c.RatingScore.Value)
		}
	}
}

// rollUpWeeks builds the weekly summaries from the daily ones and fills any
// week between the first and last date that had no checkins.
func (r *Result) rollUpWeeks() {
	for _, key := range sortedKeys(r.Daily) {
		day := r.Daily[key]
		date, _ := time.Parse(dateLayout, key)

		weekKey := WeekKey(date)
		week, ok := r.Weekly[weekKey]
		if !ok {
			week = &models.WeeklySummary{
				Week:       weekKey,
				Commencing: DateKey(MondayOf(date)),
				DryDays:    6,
			}
			r.Weekly[weekKey] = week
		} else if week.DryDays > 0 {
			week.DryDays--
		}

		week.Totals.Add(day.Totals)
	}

	for monday := MondayOf(r.FirstDate); !monday.After(r.LastDate); monday = monday.AddDate(0, 0, 7) {
		weekKey := WeekKey(monday)
		if _, ok := r.Weekly[weekKey]; ok {
			continue
		}
		r.Weekly[weekKey] = &models.WeeklySummary{
			Week:       weekKey,
			Commencing: DateKey(monday),
			DryDays:    7,
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
