package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

// fakeRedis implements the commands the cache uses over a map
type fakeRedis struct {
	redis.Cmdable
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch v, ok := f.data[key]; {
	case f.getErr != nil:
		cmd.SetErr(f.getErr)
	case ok:
		cmd.SetVal(v)
	default:
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	for _, k := range keys {
		delete(f.data, k)
	}
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func newTestCache(t *testing.T, client redis.Cmdable) (*RedisResultCache, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollector("test", prometheus.NewRegistry())
	return NewRedisResultCacheFromClient(client, time.Hour, logging.NewNopLogger(), collector), collector
}

func TestKey(t *testing.T) {
	assert.Equal(t, "checkin-summary:abc123", Key("abc123"))
}

func TestRedisResultCache_RoundTrip(t *testing.T) {
	client := newFakeRedis()
	c, collector := newTestCache(t, client)
	ctx := context.Background()

	data, ok, err := c.Get(ctx, "hash")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)

	require.NoError(t, c.Set(ctx, "hash", []byte(`{"checkins":2}`)))
	assert.Equal(t, time.Hour, client.ttls["checkin-summary:hash"])

	data, ok, err = c.Get(ctx, "hash")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"checkins":2}`, string(data))

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheLookupsTotal.WithLabelValues("miss")))

	require.NoError(t, c.Delete(ctx, "hash"))
	_, ok, err = c.Get(ctx, "hash")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisResultCache_GetError(t *testing.T) {
	client := newFakeRedis()
	client.getErr = errors.New("connection refused")
	c, collector := newTestCache(t, client)

	_, ok, err := c.Get(context.Background(), "hash")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheLookupsTotal.WithLabelValues("error")))
}

func TestRedisResultCache_CloseWithoutOwnedClient(t *testing.T) {
	c, _ := newTestCache(t, newFakeRedis())
	assert.NoError(t, c.Close())
}
