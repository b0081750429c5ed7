package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisChallenges(t *testing.T) (*RedisChallenges, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisChallenges(rdb), mr
}

func TestRedisChallenges_SingleUse(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisChallenges(t)
	caller, _ := keypair(t, 1)

	require.NoError(t, store.SetNonce(ctx, caller, "n-1"))
	assert.Equal(t, NonceTTL, mr.TTL("nonce:"+caller.String()))

	nonce, err := store.TakeNonce(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, "n-1", nonce)
	assert.False(t, mr.Exists("nonce:"+caller.String()))

	_, err = store.TakeNonce(ctx, caller)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestRedisChallenges_LatestNonceWins(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisChallenges(t)
	caller, _ := keypair(t, 2)

	require.NoError(t, store.SetNonce(ctx, caller, "first"))
	require.NoError(t, store.SetNonce(ctx, caller, "second"))

	nonce, err := store.TakeNonce(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, "second", nonce)
}

func TestRedisChallenges_Expiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisChallenges(t)
	caller, _ := keypair(t, 3)

	require.NoError(t, store.SetNonce(ctx, caller, "n-1"))
	mr.FastForward(NonceTTL + 1)

	_, err := store.TakeNonce(ctx, caller)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestRedisChallenges_Unavailable(t *testing.T) {
	store, mr := newRedisChallenges(t)
	caller, _ := keypair(t, 4)
	mr.Close()

	_, err := store.TakeNonce(context.Background(), caller)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrChallengeExpired)
}
