package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/models"
	"checkin-platform/pkg/database"
	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

// insertBatchSize bounds rows per INSERT so the parameter count stays small
const insertBatchSize = 500

// SummaryRepository provides data access for persisted summary reports
type SummaryRepository interface {
	// Report operations
	CreateReport(ctx context.Context, report *models.Report, result *aggregation.Result) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]*models.Report, int, error)

	// Summary operations
	GetDailySummaries(ctx context.Context, filter SummaryFilter) ([]models.DailySummary, int, error)
	GetWeeklySummaries(ctx context.Context, filter SummaryFilter) ([]models.WeeklySummary, int, error)
	GetStyleSummaries(ctx context.Context, reportID string) ([]models.StyleSummary, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// ReportFilter defines filters for listing reports
type ReportFilter struct {
	Owner  *string
	Limit  int
	Offset int
}

// SummaryFilter selects daily or weekly rows of one report. From and To are
// inclusive dates (YYYY-MM-DD); weekly rows match on their commencing date.
type SummaryFilter struct {
	ReportID string
	From     *string
	To       *string
	Limit    int
	Offset   int
}

var reportColumns = []string{
	"id", "owner", "source", "content_hash", "initial_region", "checkins", "skipped",
	"to_char(first_date, 'YYYY-MM-DD') AS first_date",
	"to_char(last_date, 'YYYY-MM-DD') AS last_date",
	"artifact_url", "created_at",
}

var totalsColumns = []string{
	"drinks", "drinks_rated", "drinks_total_score", "beverage_ml", "alcohol_ml", "units", "estimated",
}

// summaryRepository implements SummaryRepository
type summaryRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) SummaryRepository {
	return &summaryRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateReport stores the report row and every summary of result in one
// transaction
func (r *summaryRepository) CreateReport(ctx context.Context, report *models.Report, result *aggregation.Result) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	builder := r.db.Builder()

	err := r.db.WithTx(ctx, "create_report", func(tx *sqlx.Tx) error {
		insertReport := builder.Insert("checkin_reports").
			Columns("id", "owner", "source", "content_hash", "initial_region", "checkins", "skipped",
				"first_date", "last_date", "artifact_url", "created_at").
			Values(report.ID, report.Owner, report.Source, report.ContentHash, report.InitialRegion,
				report.Checkins, report.Skipped, report.FirstDate, report.LastDate, report.ArtifactURL, report.CreatedAt)
		if err := execInsert(ctx, tx, insertReport); err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}

		daily := result.DailySeries()
		if err := insertBatches(ctx, tx, len(daily), func(start, end int) sq.InsertBuilder {
			q := builder.Insert("daily_summaries").
				Columns(append([]string{"report_id", "summary_date"}, totalsColumns...)...)
			for _, d := range daily[start:end] {
				q = q.Values(append([]interface{}{report.ID, d.Date}, totalsValues(d.Totals)...)...)
			}
			return q
		}); err != nil {
			return fmt.Errorf("failed to insert daily summaries: %w", err)
		}

		weekly := result.WeeklySeries()
		if err := insertBatches(ctx, tx, len(weekly), func(start, end int) sq.InsertBuilder {
			q := builder.Insert("weekly_summaries").
				Columns(append([]string{"report_id", "iso_week", "commencing", "dry_days"}, totalsColumns...)...)
			for _, w := range weekly[start:end] {
				q = q.Values(append([]interface{}{report.ID, w.Week, w.Commencing, w.DryDays}, totalsValues(w.Totals)...)...)
			}
			return q
		}); err != nil {
			return fmt.Errorf("failed to insert weekly summaries: %w", err)
		}

		styles := result.StylesByPopularity()
		if err := insertBatches(ctx, tx, len(styles), func(start, end int) sq.InsertBuilder {
			q := builder.Insert("style_summaries").
				Columns("report_id", "style", "checkins", "rated", "rating_total")
			for _, s := range styles[start:end] {
				q = q.Values(report.ID, s.Style, s.Checkins, s.Rated, s.RatingTotal)
			}
			return q
		}); err != nil {
			return fmt.Errorf("failed to insert style summaries: %w", err)
		}

		producers := result.ProducersByScore()
		if err := insertBatches(ctx, tx, len(producers), func(start, end int) sq.InsertBuilder {
			q := builder.Insert("producer_summaries").
				Columns("report_id", "brewery", "checkins", "unique_beers", "rated", "rating_total", "average_of_beers")
			for _, p := range producers[start:end] {
				q = q.Values(report.ID, p.Producer, p.Checkins, p.UniqueBeers(), p.Rated, p.RatingTotal, p.AverageOfBeers())
			}
			return q
		}); err != nil {
			return fmt.Errorf("failed to insert producer summaries: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug(ctx, "[REPO_CREATE_REPORT] Report stored", logging.Fields{
		"report_id": report.ID,
		"days":      len(result.Daily),
		"weeks":     len(result.Weekly),
		"styles":    len(result.Styles),
		"producers": len(result.Producers),
	})

	return nil
}

func totalsValues(t models.Totals) []interface{} {
	return []interface{}{t.Drinks, t.Rated, t.RatingTotal, t.BeverageMl, t.AlcoholMl, t.Units, t.Estimated}
}

func execInsert(ctx context.Context, tx *sqlx.Tx, q sq.InsertBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func insertBatches(ctx context.Context, tx *sqlx.Tx, total int, build func(start, end int) sq.InsertBuilder) error {
	for start := 0; start < total; start += insertBatchSize {
		end := start + insertBatchSize
		if end > total {
			end = total
		}
		if err := execInsert(ctx, tx, build(start, end)); err != nil {
			return err
		}
	}
	return nil
}

// GetReport retrieves a report by ID
func (r *summaryRepository) GetReport(ctx context.Context, id string) (*models.Report, error) {
	q := r.db.Builder().
		Select(reportColumns...).
		From("checkin_reports").
		Where(sq.Eq{"id": id})

	var report models.Report
	err := r.db.Get(ctx, "get_report", &report, q)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "report",
			ID:       id,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &report, nil
}

// ListReports retrieves reports newest first with pagination
func (r *summaryRepository) ListReports(ctx context.Context, filter ReportFilter) ([]*models.Report, int, error) {
	where := sq.And{}
	if filter.Owner != nil {
		where = append(where, sq.Eq{"owner": *filter.Owner})
	}

	var totalCount int
	countQuery := r.db.Builder().Select("COUNT(*)").From("checkin_reports").Where(where)
	if err := r.db.Get(ctx, "count_reports", &totalCount, countQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	q := r.db.Builder().
		Select(reportColumns...).
		From("checkin_reports").
		Where(where).
		OrderBy("created_at DESC", "id")
	q = paginate(q, filter.Limit, filter.Offset)

	var reports []*models.Report
	if err := r.db.Select(ctx, "list_reports", &reports, q); err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}

	return reports, totalCount, nil
}

// paginate applies LIMIT only when limit is positive
func paginate(q sq.SelectBuilder, limit, offset int) sq.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}

func summaryWhere(filter SummaryFilter, dateColumn string) sq.And {
	where := sq.And{sq.Eq{"report_id": filter.ReportID}}
	if filter.From != nil {
		where = append(where, sq.GtOrEq{dateColumn: *filter.From})
	}
	if filter.To != nil {
		where = append(where, sq.LtOrEq{dateColumn: *filter.To})
	}
	return where
}

// GetDailySummaries retrieves the daily rows of a report in date order
func (r *summaryRepository) GetDailySummaries(ctx context.Context, filter SummaryFilter) ([]models.DailySummary, int, error) {
	where := summaryWhere(filter, "summary_date")

	var totalCount int
	countQuery := r.db.Builder().Select("COUNT(*)").From("daily_summaries").Where(where)
	if err := r.db.Get(ctx, "count_daily_summaries", &totalCount, countQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to count daily summaries: %w", err)
	}

	q := r.db.Builder().
		Select(append([]string{"to_char(summary_date, 'YYYY-MM-DD') AS summary_date"}, totalsColumns...)...).
		From("daily_summaries").
		Where(where).
		OrderBy("summary_date")
	q = paginate(q, filter.Limit, filter.Offset)

	var days []models.DailySummary
	if err := r.db.Select(ctx, "get_daily_summaries", &days, q); err != nil {
		return nil, 0, fmt.Errorf("failed to get daily summaries: %w", err)
	}

	return days, totalCount, nil
}

// GetWeeklySummaries retrieves the weekly rows of a report in week order
func (r *summaryRepository) GetWeeklySummaries(ctx context.Context, filter SummaryFilter) ([]models.WeeklySummary, int, error) {
	where := summaryWhere(filter, "commencing")

	var totalCount int
	countQuery := r.db.Builder().Select("COUNT(*)").From("weekly_summaries").Where(where)
	if err := r.db.Get(ctx, "count_weekly_summaries", &totalCount, countQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to count weekly summaries: %w", err)
	}

	columns := append([]string{
		"iso_week",
		"to_char(commencing, 'YYYY-MM-DD') AS commencing",
		"dry_days",
	}, totalsColumns...)

	q := r.db.Builder().
		Select(columns...).
		From("weekly_summaries").
		Where(where).
		OrderBy("commencing")
	q = paginate(q, filter.Limit, filter.Offset)

	var weeks []models.WeeklySummary
	if err := r.db.Select(ctx, "get_weekly_summaries", &weeks, q); err != nil {
		return nil, 0, fmt.Errorf("failed to get weekly summaries: %w", err)
	}

	return weeks, totalCount, nil
}

// GetStyleSummaries retrieves the styles of a report, most checked in first
func (r *summaryRepository) GetStyleSummaries(ctx context.Context, reportID string) ([]models.StyleSummary, error) {
	q := r.db.Builder().
		Select("style", "checkins", "rated", "rating_total").
		From("style_summaries").
		Where(sq.Eq{"report_id": reportID}).
		OrderBy("checkins DESC", "style")

	var styles []models.StyleSummary
	if err := r.db.Select(ctx, "get_style_summaries", &styles, q); err != nil {
		return nil, fmt.Errorf("failed to get style summaries: %w", err)
	}

	return styles, nil
}

// HealthCheck performs a repository health check
func (r *summaryRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
