package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Claim(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.Claim(ctx, "report:inv-1:base:aave:usdc:0", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "first claim should win")

	ok, err = store.Claim(ctx, "report:inv-1:base:aave:usdc:0", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replay should be rejected")
}

func TestMemoryStore_ClaimDistinctKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.Claim(ctx, "report:inv-1:base:aave:usdc:0", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "report:inv-1:base:aave:usdc:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "distinct index should claim independently")
}

func TestMemoryStore_ClaimExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.Claim(ctx, "report:inv-2:base:aave:usdc:0", time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	ok, err = store.Claim(ctx, "report:inv-2:base:aave:usdc:0", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired claim should be reclaimable")
}
