package metrics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCollectorWriteAndReadBack(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	c := NewCollector("alert-core", client)
	c.RecordReceived()
	c.RecordProcessed(5 * time.Millisecond)
	c.RecordError()
	c.IncrementCustom("alerts_created")
	c.IncrementCustom("alerts_created")
	c.writeMetrics(ctx)

	r := NewReader(client)
	got, err := r.GetServiceMetrics(ctx, "alert-core")
	require.NoError(t, err)

	assert.Equal(t, "alert-core", got.ServiceName)
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, uint64(1), got.MessagesReceived)
	assert.Equal(t, uint64(1), got.MessagesProcessed)
	assert.Equal(t, uint64(1), got.ProcessingErrors)
	assert.Equal(t, uint64(2), got.CustomCounters["alerts_created"])
}

func TestReaderMissingService(t *testing.T) {
	_, client := newTestRedis(t)

	r := NewReader(client)
	_, err := r.GetServiceMetrics(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestReaderMarksStaleMetricsUnhealthy(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	c := NewCollector("alert-core", client)
	c.startedAt = time.Now().UTC().Add(-time.Hour)
	c.writeMetrics(ctx)

	// Rewrite the snapshot with an old LastUpdated to simulate a stalled
	// reporter whose key has not expired yet.
	r := NewReader(client)
	got, err := r.GetServiceMetrics(ctx, "alert-core")
	require.NoError(t, err)
	got.LastUpdated = time.Now().UTC().Add(-2 * MetricsTTL)
	data, err := json.Marshal(got)
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, MetricsKeyPrefix+"alert-core", data, MetricsTTL).Err())

	stale, err := r.GetServiceMetrics(ctx, "alert-core")
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", stale.Status)
}
