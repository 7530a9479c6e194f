package alerts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Get(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte(`{"alerts":[]}`)
	require.NoError(t, m.Set(ctx, value))
	value[0] = 'X' // caller mutation must not leak into the store

	got, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"alerts":[]}`, string(got))
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "alerts.json")
	f := NewFileStore(path)

	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, f.Set(ctx, []byte(`{"alerts":[{"id":"one"}]}`)))
	require.NoError(t, f.Set(ctx, []byte(`{"alerts":[{"id":"two"}]}`)))

	got, err := f.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"alerts":[{"id":"two"}]}`, string(got))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".alerts-cache-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files must not be left behind")
}

func TestRedisStoreUnavailableIsTreatedAsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	store := NewRedisStore(client, "wedding-alerts-cache")

	_, err := store.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)

	s := NewSynchronizer(Options{URL: "", Cache: store, Static: staticAlerts})
	assert.Equal(t, staticAlerts, s.Fetch(context.Background()).Alerts)

	s = NewSynchronizer(Options{URL: "http://127.0.0.1:1/alerts", Cache: store, Static: staticAlerts})
	res := s.Fetch(context.Background())
	assert.False(t, res.FromCache)
	assert.Equal(t, staticAlerts, res.Alerts)
}
