package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	val, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)

	require.NoError(t, s.Delete(ctx, "k"))
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_MissingKey(t *testing.T) {
	s := NewMemoryStore()
	_, found, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}
