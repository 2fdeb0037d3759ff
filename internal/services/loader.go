package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"checkin-platform/internal/config"
	"checkin-platform/internal/models"
	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

// ErrMalformedExport is returned when an export is not a JSON array of checkins
var ErrMalformedExport = errors.New("malformed checkin export")

// ExportTooLargeError is returned when an export exceeds the configured size
type ExportTooLargeError struct {
	Source string
	Limit  int64
}

func (e *ExportTooLargeError) Error() string {
	return fmt.Sprintf("export %s is larger than %d bytes", e.Source, e.Limit)
}

// IsTransient returns whether the error is transient
func (e *ExportTooLargeError) IsTransient() bool {
	return false
}

// ExportLoader reads checkin exports from local files or http(s) URLs
type ExportLoader struct {
	client        *http.Client
	maxRetries    int
	maxBytes      int64
	retryInterval time.Duration
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector
}

// NewExportLoader creates a loader from the ingest settings
func NewExportLoader(cfg config.IngestConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ExportLoader {
	return &ExportLoader{
		client:        &http.Client{Timeout: cfg.FetchTimeout},
		maxRetries:    cfg.MaxRetries,
		maxBytes:      cfg.MaxExportBytes,
		retryInterval: 500 * time.Millisecond,
		logger:        logger,
		metrics:       metricsCollector,
	}
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load returns the raw bytes of source
func (l *ExportLoader) Load(ctx context.Context, source string) ([]byte, error) {
	if !isURL(source) {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open export: %w", err)
		}
		defer f.Close()
		return l.readLimited(source, f)
	}

	timer := l.metrics.NewTimer(l.metrics.ExportFetchDuration)
	defer timer.ObserveDuration()

	var data []byte
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		data, err = l.fetch(ctx, source)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.retryInterval
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(l.maxRetries)), ctx),
		func(err error, wait time.Duration) {
			l.logger.Warn(ctx, "[EXPORT_FETCH_RETRY] Export fetch failed, retrying", logging.Fields{
				"source":  source,
				"attempt": attempt,
				"wait":    wait.String(),
				"error":   err.Error(),
			})
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch export %s: %w", source, err)
	}

	l.logger.Info(ctx, "[EXPORT_FETCHED] Export downloaded", logging.Fields{
		"source":   source,
		"bytes":    len(data),
		"attempts": attempt,
	})
	return data, nil
}

// fetch does one GET. Client errors other than 429 are not retried.
func (l *ExportLoader) fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("status code error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}

	data, err := l.readLimited(source, resp.Body)
	var tooLarge *ExportTooLargeError
	if errors.As(err, &tooLarge) {
		return nil, backoff.Permanent(err)
	}
	return data, err
}

func (l *ExportLoader) readLimited(source string, r io.Reader) ([]byte, error) {
	if l.maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read export: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, &ExportTooLargeError{Source: source, Limit: l.maxBytes}
	}
	return data, nil
}

// DecodeExport parses a JSON array of checkins
func DecodeExport(data []byte) ([]models.Checkin, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformedExport)
	}

	var checkins []models.Checkin
	if err := json.Unmarshal(trimmed, &checkins); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedExport, err)
	}
	return checkins, nil
}
