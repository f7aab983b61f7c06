package escalation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
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

func TestLoadPolicy(t *testing.T) {
	mr, client := newTestRedis(t)

	policy := &Policy{
		SchemaVersion: 1,
		Steps: []Step{
			{Delay: Duration(90 * time.Second), SeverityFloor: alert.SeverityHigh, RecipientTier: 2},
			{Delay: Duration(300 * time.Second), SeverityFloor: alert.SeverityCritical, RecipientTier: 0},
		},
	}
	data, err := json.Marshal(policy)
	require.NoError(t, err)
	mr.Set(PolicyKey, string(data))

	loaded, err := NewLoader(client).LoadPolicy(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, 90*time.Second, loaded.Steps[0].Delay.Value())
	assert.Equal(t, alert.SeverityHigh, loaded.Steps[0].SeverityFloor)
	assert.Equal(t, 0, loaded.Steps[1].RecipientTier)
}

func TestLoadPolicyMissing(t *testing.T) {
	_, client := newTestRedis(t)

	_, err := NewLoader(client).LoadPolicy(context.Background())
	assert.Error(t, err)
}

func TestLoadPolicyEmptySteps(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Set(PolicyKey, `{"schema_version":1,"steps":[]}`)

	_, err := NewLoader(client).LoadPolicy(context.Background())
	assert.Error(t, err)
}

func TestGetVersion(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := NewLoader(client)

	version, err := loader.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), version, "missing version should read as 0")

	mr.Set(VersionKey, "7")
	version, err = loader.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), version)
}

func TestReloaderSwapsOnVersionChange(t *testing.T) {
	mr, client := newTestRedis(t)

	holder := NewHolder(DefaultPolicy())
	reloader := NewReloader(NewLoader(client), holder, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, reloader.Start(ctx))
	assert.Len(t, holder.Current().Steps, len(DefaultPolicy().Steps), "default policy stays until one is published")

	updated := &Policy{
		SchemaVersion: 1,
		Steps: []Step{
			{Delay: Duration(time.Minute), SeverityFloor: alert.SeverityCritical, RecipientTier: 0},
		},
	}
	data, err := json.Marshal(updated)
	require.NoError(t, err)
	mr.Set(PolicyKey, string(data))
	mr.Set(VersionKey, "2")

	require.NoError(t, reloader.ReloadNow(ctx))
	require.Len(t, holder.Current().Steps, 1)
	assert.Equal(t, alert.SeverityCritical, holder.Current().Steps[0].SeverityFloor)

	// Same version again is a no-op.
	require.NoError(t, reloader.ReloadNow(ctx))
	assert.Len(t, holder.Current().Steps, 1)
}

func TestStepAt(t *testing.T) {
	policy := DefaultPolicy()

	_, ok := policy.StepAt(0)
	assert.True(t, ok)
	_, ok = policy.StepAt(len(policy.Steps))
	assert.False(t, ok, "level past the last step has no further escalation")
	_, ok = policy.StepAt(-1)
	assert.False(t, ok)
}
