package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/redis"
	"github.com/quangdang46/talent-passport/shared/testutil"
)

// exerciseStore runs the behaviour every KeyValueStore must share
func exerciseStore(t *testing.T, store domain.KeyValueStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "session", []byte(`{"address":"0xabc"}`), 0))
	got, err := store.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, `{"address":"0xabc"}`, string(got))

	require.NoError(t, store.Set(ctx, "session", []byte("overwritten"), 0))
	got, err = store.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "overwritten", string(got))

	require.NoError(t, store.Set(ctx, "pending", []byte("p"), time.Minute))
	require.NoError(t, store.Delete(ctx, "session", "pending", "never-set"))

	_, err = store.Get(ctx, "session")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	_, err = store.Get(ctx, "pending")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	assert.NoError(t, store.Delete(ctx))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	exerciseStore(t, store)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "captured_token", []byte("tok"), 20*time.Millisecond))
	time.Sleep(60 * time.Millisecond)

	_, err := store.Get(ctx, "captured_token")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func newTestBBolt(t *testing.T) *BBoltStore {
	t.Helper()
	store, err := NewBBoltStore(filepath.Join(t.TempDir(), "nested", "passport.db"), "zklogin", logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBBoltStore(t *testing.T) {
	exerciseStore(t, newTestBBolt(t))
}

func TestBBoltStore_Expiry(t *testing.T) {
	store := newTestBBolt(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "pending", []byte("p"), time.Minute))
	_, err := store.Get(ctx, "pending")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "pending")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	// the expired entry is gone even after the clock moves back
	now = now.Add(-time.Hour)
	_, err = store.Get(ctx, "pending")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestBBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passport.db")
	ctx := context.Background()

	store, err := NewBBoltStore(path, "zklogin", logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "session", []byte("persisted"), 0))
	require.NoError(t, store.Close())

	reopened, err := NewBBoltStore(path, "zklogin", logging.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}

func TestRedisStore(t *testing.T) {
	url := testutil.RequireRedis(t)

	client, err := redis.NewFromURL(context.Background(), url)
	require.NoError(t, err)

	store := NewRedisStore(client, "test-profile")
	defer store.Close()

	exerciseStore(t, store)

	// keys are namespaced per profile
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "session", []byte("v"), time.Minute))
	raw, err := client.Get(ctx, redis.ZkLoginKey("test-profile", "session"))
	require.NoError(t, err)
	assert.Equal(t, "v", raw)
}
