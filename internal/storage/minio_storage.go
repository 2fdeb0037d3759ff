// Package storage keeps generated report workbooks in S3-compatible object
// storage.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

// ownerPathLength is how many hex characters of the owner hash form the
// object prefix
const ownerPathLength = 20

// objectClient is the part of *minio.Client the store uses
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
}

// Options configures a MinioArtifactStore
type Options struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
	OwnerSecret   string
}

// MinioArtifactStore uploads report artifacts under a per-owner prefix that
// cannot be guessed without the owner secret
type MinioArtifactStore struct {
	client        objectClient
	bucket        string
	region        string
	publicBaseURL string
	ownerSecret   string
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector
}

// NewMinioArtifactStore connects to the endpoint and checks the credentials
func NewMinioArtifactStore(opts Options, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*MinioArtifactStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("failed to list Minio buckets: %w", err)
	}

	logger.Info(ctx, "[STORAGE_INIT] Artifact storage initialized", logging.Fields{
		"endpoint": opts.Endpoint,
		"bucket":   opts.Bucket,
	})

	return newStore(client, opts, logger, metricsCollector), nil
}

func newStore(client objectClient, opts Options, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *MinioArtifactStore {
	return &MinioArtifactStore{
		client:        client,
		bucket:        opts.Bucket,
		region:        opts.Region,
		publicBaseURL: opts.PublicBaseURL,
		ownerSecret:   opts.OwnerSecret,
		logger:        logger,
		metrics:       metricsCollector,
	}
}

// OwnerPath is the first 20 hex characters of sha256(secret + "/" + owner),
// with owner lower-cased
func OwnerPath(secret, owner string) string {
	sum := sha256.Sum256([]byte(secret + "/" + strings.ToLower(owner)))
	return hex.EncodeToString(sum[:])[:ownerPathLength]
}

// ObjectKey returns the key an owner's file is stored under
func (s *MinioArtifactStore) ObjectKey(owner, filename string) string {
	return OwnerPath(s.ownerSecret, owner) + "/" + filename
}

// Upload stores data and returns its public URL, or the object key when no
// public base URL is configured
func (s *MinioArtifactStore) Upload(ctx context.Context, owner, filename string, data []byte, contentType string) (string, error) {
	key := s.ObjectKey(owner, filename)

	if err := s.ensureBucket(ctx); err != nil {
		s.metrics.RecordUpload("error")
		return "", err
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.metrics.RecordUpload("error")
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	s.metrics.RecordUpload("success")
	s.logger.Debug(ctx, "[STORAGE_UPLOAD] Artifact uploaded", logging.Fields{
		"bucket": s.bucket,
		"key":    key,
		"bytes":  len(data),
	})

	if s.publicBaseURL == "" {
		return key, nil
	}
	return strings.TrimRight(s.publicBaseURL, "/") + "/" + key, nil
}

func (s *MinioArtifactStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	s.logger.Info(ctx, "[STORAGE_BUCKET] Created bucket", logging.Fields{
		"bucket": s.bucket,
	})
	return nil
}

// HealthCheck lists buckets to confirm the endpoint is reachable
func (s *MinioArtifactStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx)
	return err
}
