package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/measures"
	"checkin-platform/internal/models"
	"checkin-platform/internal/reports"
	"checkin-platform/internal/repository"
	"checkin-platform/internal/services"
	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

const defaultPageLimit = 100

// SummaryHandler handles checkin summary API endpoints
type SummaryHandler struct {
	service      *services.SummaryService
	validate     *validator.Validate
	maxBodyBytes int64
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewSummaryHandler creates a new summary handler. maxBodyBytes <= 0 leaves
// uploads unbounded.
func NewSummaryHandler(
	service *services.SummaryService,
	maxBodyBytes int64,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *SummaryHandler {
	return &SummaryHandler{
		service:      service,
		validate:     validator.New(),
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

type summaryQuery struct {
	Region string
	Owner  string `validate:"max=254"`
}

type pageQuery struct {
	Page  int `validate:"min=1"`
	Limit int `validate:"min=1,max=1000"`
}

type seriesQuery struct {
	ID     string `validate:"required,uuid"`
	From   string `validate:"omitempty,datetime=2006-01-02"`
	To     string `validate:"omitempty,datetime=2006-01-02"`
	Format string `validate:"oneof=json csv"`
	Page   int    `validate:"min=1"`
	Limit  int    `validate:"min=1,max=1000"`
}

// Summarise handles POST /api/checkins/summary
func (h *SummaryHandler) Summarise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/checkins/summary").Observe(time.Since(startTime).Seconds())
	}()

	query := summaryQuery{
		Region: r.URL.Query().Get("region"),
		Owner:  strings.TrimSpace(r.URL.Query().Get("owner")),
	}
	if err := h.validate.Struct(query); err != nil {
		h.sendError(w, r, validationMessage(err), http.StatusBadRequest)
		return
	}

	var region *measures.Region
	if query.Region != "" {
		parsed, err := measures.ParseRegion(query.Region)
		if err != nil {
			h.sendError(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		region = &parsed
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, r, fmt.Sprintf("export larger than %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		h.sendError(w, r, "failed to read request body", http.StatusBadRequest)
		return
	}

	summary, err := h.service.Summarise(ctx, services.SummaryRequest{
		Data:   data,
		Source: "upload",
		Owner:  query.Owner,
		Region: region,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordAPIRequest("/api/checkins/summary", "POST", "200")
	h.sendJSON(w, summary, http.StatusOK)
}

// ListReports handles GET /api/reports
func (h *SummaryHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/reports").Observe(time.Since(startTime).Seconds())
	}()

	page, err := parsePage(r)
	if err == nil {
		err = h.validate.Struct(page)
	}
	if err != nil {
		h.sendError(w, r, validationMessage(err), http.StatusBadRequest)
		return
	}

	filter := repository.ReportFilter{
		Limit:  page.Limit,
		Offset: (page.Page - 1) * page.Limit,
	}
	if owner := strings.TrimSpace(r.URL.Query().Get("owner")); owner != "" {
		filter.Owner = &owner
	}

	list, total, err := h.service.ListReports(ctx, filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordAPIRequest("/api/reports", "GET", "200")
	h.sendJSON(w, paginated(list, total, page), http.StatusOK)
}

// GetReport handles GET /api/reports/{id}
func (h *SummaryHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/reports/{id}").Observe(time.Since(startTime).Seconds())
	}()

	id := mux.Vars(r)["id"]
	if err := h.validate.Var(id, "required,uuid"); err != nil {
		h.sendError(w, r, "invalid report id", http.StatusBadRequest)
		return
	}

	report, err := h.service.GetReport(ctx, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordAPIRequest("/api/reports/{id}", "GET", "200")
	h.sendJSON(w, report, http.StatusOK)
}

// GetWeekly handles GET /api/reports/{id}/weekly
func (h *SummaryHandler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/reports/{id}/weekly").Observe(time.Since(startTime).Seconds())
	}()

	query, ok := h.parseSeriesQuery(w, r)
	if !ok {
		return
	}

	weeks, total, err := h.service.GetWeekly(ctx, query.filter())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordAPIRequest("/api/reports/{id}/weekly", "GET", "200")
	if query.Format == "csv" {
		h.sendCSV(w, r, query.ID+"-weekly.csv", func(out io.Writer) error {
			return reports.WriteWeeklyCSV(out, weeks)
		})
		return
	}
	h.sendJSON(w, paginated(weeks, total, query.page()), http.StatusOK)
}

// GetDaily handles GET /api/reports/{id}/daily
func (h *SummaryHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/reports/{id}/daily").Observe(time.Since(startTime).Seconds())
	}()

	query, ok := h.parseSeriesQuery(w, r)
	if !ok {
		return
	}

	days, total, err := h.service.GetDaily(ctx, query.filter())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordAPIRequest("/api/reports/{id}/daily", "GET", "200")
	if query.Format == "csv" {
		h.sendCSV(w, r, query.ID+"-daily.csv", func(out io.Writer) error {
			return reports.WriteDailyCSV(out, days)
		})
		return
	}
	h.sendJSON(w, paginated(days, total, query.page()), http.StatusOK)
}

// GetStyles handles GET /api/reports/{id}/styles
func (h *SummaryHandler) GetStyles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/reports/{id}/styles").Observe(time.Since(startTime).Seconds())
	}()

	id := mux.Vars(r)["id"]
	if err := h.validate.Var(id, "required,uuid"); err != nil {
		h.sendError(w, r, "invalid report id", http.StatusBadRequest)
		return
	}
	format := formatParam(r)
	if err := h.validate.Var(format, "oneof=json csv"); err != nil {
		h.sendError(w, r, "invalid format, expected one of: json csv", http.StatusBadRequest)
		return
	}

	styles, err := h.service.GetStyles(ctx, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordAPIRequest("/api/reports/{id}/styles", "GET", "200")
	if format == "csv" {
		h.sendCSV(w, r, id+"-styles.csv", func(out io.Writer) error {
			return reports.WriteStylesCSV(out, styles)
		})
		return
	}
	h.sendJSON(w, styles, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *SummaryHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.service.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK_FAILED] Dependency check failed", logging.Fields{}, err)
		status["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{
		"status": status["status"],
	})
	h.sendJSON(w, status, code)
}

func (h *SummaryHandler) parseSeriesQuery(w http.ResponseWriter, r *http.Request) (seriesQuery, bool) {
	page, err := parsePage(r)
	if err != nil {
		h.sendError(w, r, validationMessage(err), http.StatusBadRequest)
		return seriesQuery{}, false
	}

	query := seriesQuery{
		ID:     mux.Vars(r)["id"],
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
		Format: formatParam(r),
		Page:   page.Page,
		Limit:  page.Limit,
	}
	if err := h.validate.Struct(query); err != nil {
		h.sendError(w, r, validationMessage(err), http.StatusBadRequest)
		return seriesQuery{}, false
	}
	if query.From != "" && query.To != "" && query.From > query.To {
		h.sendError(w, r, "from must not be after to", http.StatusBadRequest)
		return seriesQuery{}, false
	}
	return query, true
}

func (q seriesQuery) page() pageQuery {
	return pageQuery{Page: q.Page, Limit: q.Limit}
}

// filter pages JSON responses only. A CSV download carries every row in range.
func (q seriesQuery) filter() repository.SummaryFilter {
	filter := repository.SummaryFilter{ReportID: q.ID}
	if q.Format != "csv" {
		filter.Limit = q.Limit
		filter.Offset = (q.Page - 1) * q.Limit
	}
	if q.From != "" {
		from := q.From
		filter.From = &from
	}
	if q.To != "" {
		to := q.To
		filter.To = &to
	}
	return filter
}

func formatParam(r *http.Request) string {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		return "json"
	}
	return format
}

// parsePage reads page and limit, defaulting to the first page of 100
func parsePage(r *http.Request) (pageQuery, error) {
	page := pageQuery{Page: 1, Limit: defaultPageLimit}

	if s := r.URL.Query().Get("page"); s != "" {
		p, err := strconv.Atoi(s)
		if err != nil {
			return page, fmt.Errorf("invalid page %q", s)
		}
		page.Page = p
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil {
			return page, fmt.Errorf("invalid limit %q", s)
		}
		page.Limit = l
	}
	return page, nil
}

func paginated(data interface{}, total int, page pageQuery) PaginatedResponse {
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: (total + page.Limit - 1) / page.Limit,
	}
}

// validationMessage turns the first validator failure into a short message
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "datetime":
		return fmt.Sprintf("invalid %s format, expected YYYY-MM-DD", field)
	case "oneof":
		return fmt.Sprintf("invalid %s, expected one of: %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("invalid %s, must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("invalid %s, must be at most %s", field, fe.Param())
	default:
		return "invalid " + field
	}
}

// handleServiceError maps service errors onto HTTP statuses
func (h *SummaryHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		noData    *aggregation.NoDataError
		ambiguous *aggregation.AmbiguousRegionError
		invalid   *measures.InvalidMeasureError
		badField  *models.ValidationError
		notFound  *repository.NotFoundError
	)

	endpoint := endpointOf(r)
	switch {
	case errors.As(err, &noData), errors.As(err, &ambiguous), errors.As(err, &invalid), errors.As(err, &badField):
		h.metrics.RecordAPIError("unprocessable", endpoint)
		h.sendError(w, r, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, services.ErrMalformedExport):
		h.metrics.RecordAPIError("bad_request", endpoint)
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
	case errors.As(err, &notFound):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrPersistenceDisabled):
		h.metrics.RecordAPIError("unavailable", endpoint)
		h.sendError(w, r, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"method":   r.Method,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, "internal server error", http.StatusInternalServerError)
	}
}

func endpointOf(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// sendJSON sends a JSON response
func (h *SummaryHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendCSV streams a CSV attachment
func (h *SummaryHandler) sendCSV(w http.ResponseWriter, r *http.Request, filename string, write func(io.Writer) error) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := write(w); err != nil {
		h.logger.Error(r.Context(), "[API_CSV_ERROR] Failed to write CSV", logging.Fields{
			"filename": filename,
		}, err)
	}
}

// sendError sends an error response
func (h *SummaryHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpointOf(r), r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all summary API routes
func (h *SummaryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/checkins/summary", h.Summarise).Methods("POST")
	router.HandleFunc("/api/reports", h.ListReports).Methods("GET")
	router.HandleFunc("/api/reports/{id}", h.GetReport).Methods("GET")
	router.HandleFunc("/api/reports/{id}/weekly", h.GetWeekly).Methods("GET")
	router.HandleFunc("/api/reports/{id}/daily", h.GetDaily).Methods("GET")
	router.HandleFunc("/api/reports/{id}/styles", h.GetStyles).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
