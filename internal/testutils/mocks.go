// Package testutils holds testify mocks of the service collaborators.
package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/models"
	"checkin-platform/internal/repository"
)

type MockSummaryRepository struct {
	mock.Mock
}

func (m *MockSummaryRepository) CreateReport(ctx context.Context, report *models.Report, result *aggregation.Result) error {
	args := m.Called(ctx, report, result)
	return args.Error(0)
}

func (m *MockSummaryRepository) GetReport(ctx context.Context, id string) (*models.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockSummaryRepository) ListReports(ctx context.Context, filter repository.ReportFilter) ([]*models.Report, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Report), args.Int(1), args.Error(2)
}

func (m *MockSummaryRepository) GetDailySummaries(ctx context.Context, filter repository.SummaryFilter) ([]models.DailySummary, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.DailySummary), args.Int(1), args.Error(2)
}

func (m *MockSummaryRepository) GetWeeklySummaries(ctx context.Context, filter repository.SummaryFilter) ([]models.WeeklySummary, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.WeeklySummary), args.Int(1), args.Error(2)
}

func (m *MockSummaryRepository) GetStyleSummaries(ctx context.Context, reportID string) ([]models.StyleSummary, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StyleSummary), args.Error(1)
}

func (m *MockSummaryRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Upload(ctx context.Context, owner, filename string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, owner, filename, data, contentType)
	return args.String(0), args.Error(1)
}

type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockResultCache) Set(ctx context.Context, key string, payload []byte) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendDigest(ctx context.Context, report *models.Report, weeks []models.WeeklySummary) error {
	args := m.Called(ctx, report, weeks)
	return args.Error(0)
}
