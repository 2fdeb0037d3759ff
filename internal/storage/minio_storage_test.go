package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

type fakeClient struct {
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		buckets: map[string]bool{},
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

func (f *fakeClient) BucketExists(_ context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeClient) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeClient) PutObject(_ context.Context, bucket, key string, reader io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+key] = data
	f.types[bucket+"/"+key] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) ListBuckets(context.Context) ([]minio.BucketInfo, error) {
	return nil, nil
}

func TestOwnerPath(t *testing.T) {
	path := OwnerPath("s3cret", "Someone@Example.com")
	assert.Len(t, path, 20)
	assert.Regexp(t, "^[0-9a-f]{20}$", path)

	// owner is case-insensitive, secret is not
	assert.Equal(t, path, OwnerPath("s3cret", "someone@example.com"))
	assert.NotEqual(t, path, OwnerPath("other", "someone@example.com"))
	assert.NotEqual(t, path, OwnerPath("s3cret", "someone.else@example.com"))
}

func TestMinioArtifactStore_Upload(t *testing.T) {
	client := newFakeClient()
	store := newStore(client, Options{
		Bucket:        "reports",
		PublicBaseURL: "https://files.example.com/reports/",
		OwnerSecret:   "s3cret",
	}, logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))

	url, err := store.Upload(context.Background(), "someone@example.com", "summary.xlsx", []byte("xlsx"), "application/octet-stream")
	require.NoError(t, err)

	key := OwnerPath("s3cret", "someone@example.com") + "/summary.xlsx"
	assert.Equal(t, "https://files.example.com/reports/"+key, url)
	assert.True(t, client.buckets["reports"])
	assert.Equal(t, []byte("xlsx"), client.objects["reports/"+key])
	assert.Equal(t, "application/octet-stream", client.types["reports/"+key])
}

func TestMinioArtifactStore_UploadWithoutPublicURL(t *testing.T) {
	client := newFakeClient()
	client.buckets["reports"] = true
	store := newStore(client, Options{Bucket: "reports", OwnerSecret: "x"},
		logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))

	key, err := store.Upload(context.Background(), "owner", "a.xlsx", []byte("1"), "")
	require.NoError(t, err)
	assert.Equal(t, store.ObjectKey("owner", "a.xlsx"), key)
}

func TestMinioArtifactStore_UploadError(t *testing.T) {
	client := newFakeClient()
	client.putErr = errors.New("access denied")
	store := newStore(client, Options{Bucket: "reports", OwnerSecret: "x"},
		logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))

	_, err := store.Upload(context.Background(), "owner", "a.xlsx", []byte("1"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
