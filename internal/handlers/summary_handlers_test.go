package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/config"
	"checkin-platform/internal/measures"
	"checkin-platform/internal/models"
	"checkin-platform/internal/repository"
	"checkin-platform/internal/services"
	"checkin-platform/internal/testutils"
	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

const (
	reportID = "6f1c3a2e-5b4d-4e8f-9a7b-1c2d3e4f5a6b"

	exportBody = `[
  {"created_at": "2023-01-02 18:00:00", "comment": "Cracking [pint]", "serving_type": "Draft",
   "beer_abv": 5.0, "rating_score": 4, "beer_name": "Landlord", "beer_type": "Bitter - Best",
   "brewery_name": "Timothy Taylor", "venue_country": "England"},
  {"created_at": "2023-01-02 20:15:00", "comment": "", "serving_type": "bottle",
   "beer_abv": 6.0, "rating_score": 0, "beer_name": "Jaipur", "beer_type": "IPA - English",
   "brewery_name": "Thornbridge", "venue_country": "England"}
]`
)

type testServer struct {
	router    *mux.Router
	collector *metrics.Collector
}

func newTestServer(t *testing.T, repo repository.SummaryRepository, maxBodyBytes int64) *testServer {
	t.Helper()

	logger := logging.NewNopLogger()
	collector := metrics.NewCollector("test", prometheus.NewRegistry())

	agg, err := aggregation.NewAggregator(aggregation.Config{Measures: measures.DefaultConfig()}, logger)
	require.NoError(t, err)
	loader := services.NewExportLoader(config.IngestConfig{}, logger, collector)

	var deps services.Dependencies
	if repo != nil {
		deps.Repository = repo
	}
	svc := services.NewSummaryService(agg, loader, deps, 1, logger, collector)

	router := mux.NewRouter()
	NewSummaryHandler(svc, maxBodyBytes, logger, collector).RegisterRoutes(router)
	router.HandleFunc("/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/docs", SwaggerUI).Methods("GET")

	return &testServer{router: router, collector: collector}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, rec.Code, resp.Code)
	return resp
}

func TestSummarise(t *testing.T) {
	srv := newTestServer(t, nil, 0)

	rec := srv.do(http.MethodPost, "/api/checkins/summary?owner=someone", exportBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Report    models.Report          `json:"report"`
		Weekly    []models.WeeklySummary `json:"weekly"`
		Estimated models.Estimate        `json:"estimated"`
		Legend    []string               `json:"legend"`
		Persisted bool                   `json:"persisted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "someone", body.Report.Owner)
	assert.Equal(t, "eur", body.Report.InitialRegion)
	require.Len(t, body.Weekly, 1)
	assert.Equal(t, "2023-W01", body.Weekly[0].Week)
	assert.Equal(t, 2, body.Weekly[0].Drinks)
	assert.InDelta(t, 898.0, body.Weekly[0].BeverageMl, 1e-9)
	assert.Equal(t, models.EstimateGuessed, body.Estimated)
	assert.Len(t, body.Legend, 2)
	assert.False(t, body.Persisted)

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.collector.APIRequestsTotal.WithLabelValues("/api/checkins/summary", "POST", "200")))
}

func TestSummarise_RegionOverride(t *testing.T) {
	srv := newTestServer(t, nil, 0)
	body := `[{"created_at": "2023-07-04 12:00:00", "comment": "[pint]"}]`

	rec := srv.do(http.MethodPost, "/api/checkins/summary", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "region")

	rec = srv.do(http.MethodPost, "/api/checkins/summary?region=usa", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"beverage_ml":473`)

	rec = srv.do(http.MethodPost, "/api/checkins/summary?region=mars", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummarise_Errors(t *testing.T) {
	srv := newTestServer(t, nil, 64)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"not json", "hello", http.StatusBadRequest},
		{"object not array", `{"a": 1}`, http.StatusBadRequest},
		{"empty export", "[]", http.StatusUnprocessableEntity},
		{"no usable dates", `[{"created_at": "yesterday"}]`, http.StatusUnprocessableEntity},
		{"bad number", `[{"created_at": "2023-01-02", "beer_abv": "strong"}]`, http.StatusUnprocessableEntity},
		{"too large", "[" + strings.Repeat(" ", 100) + "]", http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/api/checkins/summary?region=eur", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, http.StatusText(tt.code), resp.Error)
		})
	}
}

func TestSummarise_InvalidMeasure(t *testing.T) {
	srv := newTestServer(t, nil, 0)

	rec := srv.do(http.MethodPost, "/api/checkins/summary?region=eur",
		`[{"created_at": "2023-01-02 18:00:00", "comment": "[500]", "beer_abv": 5}]`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "Did you miss out a unit?")
}

func TestReports_PersistenceDisabled(t *testing.T) {
	srv := newTestServer(t, nil, 0)

	rec := srv.do(http.MethodGet, "/api/reports", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	decodeError(t, rec)
}

func TestGetReport(t *testing.T) {
	repo := &testutils.MockSummaryRepository{}
	repo.On("GetReport", mock.Anything, reportID).Return(&models.Report{ID: reportID, Checkins: 2}, nil)
	missing := "00000000-0000-4000-8000-000000000000"
	repo.On("GetReport", mock.Anything, missing).Return(nil, &repository.NotFoundError{Resource: "report", ID: missing})

	srv := newTestServer(t, repo, 0)

	rec := srv.do(http.MethodGet, "/api/reports/"+reportID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Checkins)

	rec = srv.do(http.MethodGet, "/api/reports/"+missing, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	decodeError(t, rec)
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.collector.APIErrorsTotal.WithLabelValues("not_found", "/api/reports/{id}")))

	rec = srv.do(http.MethodGet, "/api/reports/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListReports(t *testing.T) {
	repo := &testutils.MockSummaryRepository{}
	owner := "someone"
	filter := repository.ReportFilter{Owner: &owner, Limit: 10, Offset: 10}
	repo.On("ListReports", mock.Anything, filter).Return([]*models.Report{{ID: reportID}}, 11, nil)

	srv := newTestServer(t, repo, 0)

	rec := srv.do(http.MethodGet, "/api/reports?owner=someone&page=2&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PaginatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 11, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 2, resp.TotalPages)

	rec = srv.do(http.MethodGet, "/api/reports?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid limit, must be at most 1000", decodeError(t, rec).Message)

	rec = srv.do(http.MethodGet, "/api/reports?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetWeekly(t *testing.T) {
	weeks := []models.WeeklySummary{
		{Week: "2023-W01", Commencing: "2023-01-02", DryDays: 6, Totals: models.Totals{Drinks: 2, Rated: 1, RatingTotal: 4, BeverageMl: 898, AlcoholMl: 48.2, Units: 4.82, Estimated: models.EstimateGuessed}},
	}
	from := "2023-01-01"
	filter := repository.SummaryFilter{ReportID: reportID, From: &from, Limit: 100}

	repo := &testutils.MockSummaryRepository{}
	repo.On("GetReport", mock.Anything, reportID).Return(&models.Report{ID: reportID}, nil)
	repo.On("GetWeeklySummaries", mock.Anything, filter).Return(weeks, 1, nil)
	csvFilter := repository.SummaryFilter{ReportID: reportID, From: &from}
	repo.On("GetWeeklySummaries", mock.Anything, csvFilter).Return(weeks, 1, nil)

	srv := newTestServer(t, repo, 0)

	rec := srv.do(http.MethodGet, "/api/reports/"+reportID+"/weekly?from=2023-01-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data  []models.WeeklySummary `json:"data"`
		Total int                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, weeks, resp.Data)

	rec = srv.do(http.MethodGet, "/api/reports/"+reportID+"/weekly?from=2023-01-01&format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), reportID+"-weekly.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, "week,commencing,drinks,average_score,beverage_ml,alcohol_ml,units,estimated,dry_days", lines[0])
	assert.Equal(t, "2023-W01,2023-01-02,2,4.00,898.0,48.2,4.8,*,6", lines[1])
}

func TestGetDaily_CSVIsNotPaged(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	days := make([]models.DailySummary, 150)
	for i := range days {
		days[i] = models.DailySummary{
			Date:   start.AddDate(0, 0, i).Format("2006-01-02"),
			Totals: models.Totals{Drinks: 1, BeverageMl: 568},
		}
	}

	repo := &testutils.MockSummaryRepository{}
	repo.On("GetReport", mock.Anything, reportID).Return(&models.Report{ID: reportID}, nil)
	repo.On("GetDailySummaries", mock.Anything, repository.SummaryFilter{ReportID: reportID}).Return(days, len(days), nil)

	srv := newTestServer(t, repo, 0)

	rec := srv.do(http.MethodGet, "/api/reports/"+reportID+"/daily?format=csv&page=2&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 151)
	assert.True(t, strings.HasPrefix(lines[1], "2023-01-01,1,"))
	assert.True(t, strings.HasPrefix(lines[150], "2023-05-30,1,"))
	repo.AssertExpectations(t)
}

func TestGetDaily_InvalidQuery(t *testing.T) {
	srv := newTestServer(t, &testutils.MockSummaryRepository{}, 0)

	tests := []struct {
		query   string
		message string
	}{
		{"?from=02/01/2023", "invalid from format, expected YYYY-MM-DD"},
		{"?format=xml", "invalid format, expected one of: json csv"},
		{"?page=0", "invalid page, must be at least 1"},
		{"?from=2023-02-01&to=2023-01-01", "from must not be after to"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := srv.do(http.MethodGet, "/api/reports/"+reportID+"/daily"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec).Message)
		})
	}
}

func TestGetStyles(t *testing.T) {
	repo := &testutils.MockSummaryRepository{}
	repo.On("GetReport", mock.Anything, reportID).Return(&models.Report{ID: reportID}, nil)
	repo.On("GetStyleSummaries", mock.Anything, reportID).Return([]models.StyleSummary{
		{Style: "IPA", Checkins: 3, Rated: 2, RatingTotal: 7},
	}, nil)

	srv := newTestServer(t, repo, 0)

	rec := srv.do(http.MethodGet, "/api/reports/"+reportID+"/styles?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "style,checkins,rated,average_score\nIPA,3,2,3.50\n", rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, nil, 0)
	rec := srv.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	repo := &testutils.MockSummaryRepository{}
	repo.On("HealthCheck", mock.Anything).Return(assert.AnError)
	srv = newTestServer(t, repo, 0)
	rec = srv.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}

func TestDocs(t *testing.T) {
	srv := newTestServer(t, nil, 0)

	rec := srv.do(http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var spec map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Equal(t, "3.0.0", spec["openapi"])
	paths := spec["paths"].(map[string]interface{})
	for _, path := range []string{"/api/checkins/summary", "/api/reports", "/api/reports/{id}", "/api/reports/{id}/weekly", "/api/reports/{id}/daily"} {
		assert.Contains(t, paths, path)
	}

	rec = srv.do(http.MethodGet, "/docs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/openapi.json")
}
