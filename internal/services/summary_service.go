package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/measures"
	"checkin-platform/internal/models"
	"checkin-platform/internal/reports"
	"checkin-platform/internal/repository"
	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrPersistenceDisabled is returned by report reads when no database is configured
var ErrPersistenceDisabled = errors.New("report persistence is not configured")

// ArtifactStore uploads generated files for an owner
type ArtifactStore interface {
	Upload(ctx context.Context, owner, filename string, data []byte, contentType string) (string, error)
}

// ResultCache keeps serialized summaries by content key
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
}

// Notifier delivers a digest of the latest weeks
type Notifier interface {
	SendDigest(ctx context.Context, report *models.Report, weeks []models.WeeklySummary) error
}

// Dependencies are the optional collaborators of SummaryService. A nil field
// switches that step off.
type Dependencies struct {
	Repository repository.SummaryRepository
	Artifacts  ArtifactStore
	Cache      ResultCache
	Notifier   Notifier
}

// SummaryRequest is one export to summarise
type SummaryRequest struct {
	Data   []byte
	Source string
	Owner  string
	// Region overrides the configured fallback for exports with no country
	Region *measures.Region
}

// Counters reports how the checkins of a pass were used
type Counters struct {
	Records   int            `json:"records"`
	Skipped   int            `json:"skipped"`
	Annotated int            `json:"annotated"`
	Estimated int            `json:"estimated"`
	Missing   int            `json:"missing"`
	ByRegion  map[string]int `json:"by_region"`
}

// SummaryReport is the outcome of Summarise
type SummaryReport struct {
	Report    *models.Report           `json:"report"`
	Daily     []models.DailySummary    `json:"daily"`
	Weekly    []models.WeeklySummary   `json:"weekly"`
	Styles    []models.StyleSummary    `json:"styles"`
	Producers []models.ProducerSummary `json:"producers"`
	Counters  Counters                 `json:"counters"`
	Estimated models.Estimate          `json:"estimated"`
	Legend    []string                 `json:"legend"`
	Persisted bool                     `json:"persisted"`
	Cached    bool                     `json:"cached"`

	// Result is nil when the report came from the cache
	Result *aggregation.Result `json:"-"`
}

// SummaryService runs aggregation passes and hands the results to the
// configured collaborators
type SummaryService struct {
	aggregator  *aggregation.Aggregator
	loader      *ExportLoader
	deps        Dependencies
	parallelism int
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewSummaryService creates a new summary service
func NewSummaryService(aggregator *aggregation.Aggregator, loader *ExportLoader, deps Dependencies, parallelism int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SummaryService {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &SummaryService{
		aggregator:  aggregator,
		loader:      loader,
		deps:        deps,
		parallelism: parallelism,
		logger:      logger,
		metrics:     metricsCollector,
	}
}

// ContentHash is the hex sha256 of an export
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// cacheKey scopes a cached summary to the region override and the owner,
// since the report inside it carries the owner and their artifact URL.
func cacheKey(hash string, region *measures.Region, owner string) string {
	key := hash
	if region != nil {
		key += ":" + region.String()
	}
	if owner != "" {
		key += ":owner=" + owner
	}
	return key
}

// Summarise aggregates one export. Failures of the collaborators after a
// successful pass are logged and leave the report intact.
func (s *SummaryService) Summarise(ctx context.Context, req SummaryRequest) (*SummaryReport, error) {
	hash := ContentHash(req.Data)
	key := cacheKey(hash, req.Region, req.Owner)
	log := s.logger.WithFields(logging.Fields{
		"source":       req.Source,
		"content_hash": hash,
	})

	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	checkins, err := DecodeExport(req.Data)
	if err != nil {
		s.metrics.RecordAggregationError("malformed_export")
		return nil, err
	}

	agg := s.aggregator
	if req.Region != nil {
		agg = agg.WithFallbackRegion(*req.Region)
	}

	timer := s.metrics.NewTimer(s.metrics.AggregationDuration)
	result, err := agg.Aggregate(ctx, checkins)
	timer.ObserveDuration()
	if err != nil {
		s.metrics.RecordAggregationError(aggregationErrorType(err))
		log.Warn(ctx, "[SUMMARY_FAILED] Export could not be summarised", logging.Fields{
			"records": len(checkins),
			"error":   err.Error(),
		})
		return nil, err
	}
	s.metrics.RecordAggregation(result.Records-result.Skipped, result.Skipped, result.Annotated, result.Estimated, result.Missing)

	report := &models.Report{
		ID:            uuid.NewString(),
		Owner:         req.Owner,
		Source:        req.Source,
		ContentHash:   hash,
		InitialRegion: result.InitialRegion.String(),
		Checkins:      result.Records,
		Skipped:       result.Skipped,
		FirstDate:     aggregation.DateKey(result.FirstDate),
		LastDate:      aggregation.DateKey(result.LastDate),
		CreatedAt:     time.Now().UTC(),
	}

	s.uploadWorkbook(ctx, report, result)
	summary := newSummaryReport(report, result)
	summary.Persisted = s.persist(ctx, report, result)
	s.storeInCache(ctx, key, summary)
	s.notify(ctx, report, summary.Weekly)

	log.Info(ctx, "[SUMMARY_COMPLETE] Export summarised", logging.Fields{
		"report_id": report.ID,
		"checkins":  result.Records,
		"weeks":     len(summary.Weekly),
		"persisted": summary.Persisted,
		"artifact":  report.ArtifactURL != "",
	})

	return summary, nil
}

// SummariseSource loads source and summarises it
func (s *SummaryService) SummariseSource(ctx context.Context, source, owner string, region *measures.Region) (*SummaryReport, error) {
	data, err := s.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return s.Summarise(ctx, SummaryRequest{Data: data, Source: source, Owner: owner, Region: region})
}

// SummariseAll summarises sources concurrently, at most parallelism at a time.
// Reports are returned in source order. The first failure cancels the rest.
func (s *SummaryService) SummariseAll(ctx context.Context, sources []string, owner string, region *measures.Region) ([]*SummaryReport, error) {
	out := make([]*SummaryReport, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			summary, err := s.SummariseSource(gctx, source, owner, region)
			if err != nil {
				return fmt.Errorf("%s: %w", source, err)
			}
			out[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetReport returns a persisted report
func (s *SummaryService) GetReport(ctx context.Context, id string) (*models.Report, error) {
	if s.deps.Repository == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.deps.Repository.GetReport(ctx, id)
}

// ListReports lists persisted reports, newest first
func (s *SummaryService) ListReports(ctx context.Context, filter repository.ReportFilter) ([]*models.Report, int, error) {
	if s.deps.Repository == nil {
		return nil, 0, ErrPersistenceDisabled
	}
	return s.deps.Repository.ListReports(ctx, filter)
}

// GetWeekly returns the weekly rows of a persisted report
func (s *SummaryService) GetWeekly(ctx context.Context, filter repository.SummaryFilter) ([]models.WeeklySummary, int, error) {
	if _, err := s.GetReport(ctx, filter.ReportID); err != nil {
		return nil, 0, err
	}
	return s.deps.Repository.GetWeeklySummaries(ctx, filter)
}

// GetDaily returns the daily rows of a persisted report
func (s *SummaryService) GetDaily(ctx context.Context, filter repository.SummaryFilter) ([]models.DailySummary, int, error) {
	if _, err := s.GetReport(ctx, filter.ReportID); err != nil {
		return nil, 0, err
	}
	return s.deps.Repository.GetDailySummaries(ctx, filter)
}

// GetStyles returns the style rows of a persisted report
func (s *SummaryService) GetStyles(ctx context.Context, reportID string) ([]models.StyleSummary, error) {
	if _, err := s.GetReport(ctx, reportID); err != nil {
		return nil, err
	}
	return s.deps.Repository.GetStyleSummaries(ctx, reportID)
}

// HealthCheck checks the repository when persistence is configured
func (s *SummaryService) HealthCheck(ctx context.Context) error {
	if s.deps.Repository == nil {
		return nil
	}
	return s.deps.Repository.HealthCheck(ctx)
}

func newSummaryReport(report *models.Report, result *aggregation.Result) *SummaryReport {
	byRegion := make(map[string]int, len(result.ByRegion))
	for region, n := range result.ByRegion {
		byRegion[region.String()] = n
	}

	return &SummaryReport{
		Report:    report,
		Daily:     result.DailySeries(),
		Weekly:    result.WeeklySeries(),
		Styles:    result.StylesByPopularity(),
		Producers: result.ProducersByScore(),
		Counters: Counters{
			Records:   result.Records,
			Skipped:   result.Skipped,
			Annotated: result.Annotated,
			Estimated: result.Estimated,
			Missing:   result.Missing,
			ByRegion:  byRegion,
		},
		Estimated: result.Estimate(),
		Legend:    reports.Legend,
		Result:    result,
	}
}

func (s *SummaryService) fromCache(ctx context.Context, key string) *SummaryReport {
	if s.deps.Cache == nil {
		return nil
	}

	data, ok, err := s.deps.Cache.Get(ctx, key)
	if err != nil {
		s.logger.Error(ctx, "[CACHE_ERROR] Cache lookup failed", logging.Fields{"key": key}, err)
		return nil
	}
	if !ok {
		return nil
	}

	var summary SummaryReport
	if err := json.Unmarshal(data, &summary); err != nil {
		s.logger.Error(ctx, "[CACHE_ERROR] Cached summary is unreadable", logging.Fields{"key": key}, err)
		return nil
	}
	summary.Cached = true
	return &summary
}

func (s *SummaryService) storeInCache(ctx context.Context, key string, summary *SummaryReport) {
	if s.deps.Cache == nil {
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		s.logger.Error(ctx, "[CACHE_ERROR] Failed to encode summary", logging.Fields{"key": key}, err)
		return
	}
	if err := s.deps.Cache.Set(ctx, key, data); err != nil {
		s.logger.Error(ctx, "[CACHE_ERROR] Failed to store summary", logging.Fields{"key": key}, err)
	}
}

// uploadWorkbook stores the XLSX artifact and records its URL on report.
// Anonymous requests are not uploaded.
func (s *SummaryService) uploadWorkbook(ctx context.Context, report *models.Report, result *aggregation.Result) {
	if s.deps.Artifacts == nil || report.Owner == "" {
		return
	}

	workbook, err := reports.BuildWorkbook(result)
	if err != nil {
		s.logger.Error(ctx, "[ARTIFACT_ERROR] Failed to build workbook", logging.Fields{"report_id": report.ID}, err)
		return
	}

	url, err := s.deps.Artifacts.Upload(ctx, report.Owner, report.ID+".xlsx", workbook, workbookContentType)
	if err != nil {
		s.logger.Error(ctx, "[ARTIFACT_ERROR] Failed to upload workbook", logging.Fields{"report_id": report.ID}, err)
		return
	}
	report.ArtifactURL = url
}

func (s *SummaryService) persist(ctx context.Context, report *models.Report, result *aggregation.Result) bool {
	if s.deps.Repository == nil {
		return false
	}
	if err := s.deps.Repository.CreateReport(ctx, report, result); err != nil {
		s.logger.Error(ctx, "[PERSIST_ERROR] Failed to store report", logging.Fields{"report_id": report.ID}, err)
		return false
	}
	return true
}

func (s *SummaryService) notify(ctx context.Context, report *models.Report, weeks []models.WeeklySummary) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.SendDigest(ctx, report, weeks); err != nil {
		s.logger.Error(ctx, "[NOTIFY_ERROR] Failed to send digest", logging.Fields{"report_id": report.ID}, err)
	}
}

func aggregationErrorType(err error) string {
	var (
		noData    *aggregation.NoDataError
		ambiguous *aggregation.AmbiguousRegionError
		invalid   *measures.InvalidMeasureError
	)
	switch {
	case errors.As(err, &noData):
		return "no_data"
	case errors.As(err, &ambiguous):
		return "ambiguous_region"
	case errors.As(err, &invalid):
		return "invalid_measure"
	default:
		return "other"
	}
}
