package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafdoctor/internal/domain/kv"
)

// Runs only against a real server: LEAFDOCTOR_TEST_REDIS_ADDR=localhost:6379 go test ./...
func TestKVStore_Integration(t *testing.T) {
	addr := os.Getenv("LEAFDOCTOR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEAFDOCTOR_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	store, err := Connect(ctx, addr, "", 0)
	require.NoError(t, err)
	defer store.Close()

	key := "test_" + uuid.NewString()
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Put(ctx, key, []byte("[]")))
	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}
