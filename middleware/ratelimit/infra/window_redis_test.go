package infra

import (
	"context"
	"testing"
	"time"

	"tryon-gateway/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNewRedisWindowStore_RejectsInvalidPolicy(t *testing.T) {
	_, rdb := newTestRedis(t)

	_, err := NewRedisWindowStore(rdb, domain.Policy{Limit: 0, Window: time.Minute})
	assert.Error(t, err)

	_, err = NewRedisWindowStore(nil, twoPerFiveMinutes())
	assert.Error(t, err)
}

func TestRedisWindowStore_TwoAdmittedThirdRejectedWithHint(t *testing.T) {
	_, rdb := newTestRedis(t)
	s, err := NewRedisWindowStore(rdb, twoPerFiveMinutes(), WithWindowPrefix("test:window:"))
	require.NoError(t, err)
	ctx := context.Background()

	d1, err := s.Admit(ctx, "10.0.0.1", t0)
	require.NoError(t, err)
	assert.True(t, d1.Allowed)
	assert.Equal(t, 1, d1.Remaining)

	d2, err := s.Admit(ctx, "10.0.0.1", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, d2.Allowed)
	assert.Equal(t, 0, d2.Remaining)

	d3, err := s.Admit(ctx, "10.0.0.1", t0.Add(3*time.Minute))
	require.NoError(t, err)
	assert.False(t, d3.Allowed)
	assert.Equal(t, 2*time.Minute, d3.RetryAfter)

	d4, err := s.Admit(ctx, "10.0.0.1", t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, d4.Allowed, "first admission left the window")
}

func TestRedisWindowStore_SkewedReplicaClockDoesNotReopenWindow(t *testing.T) {
	_, rdb := newTestRedis(t)
	s, err := NewRedisWindowStore(rdb, domain.Policy{Limit: 2, Window: 10 * time.Second})
	require.NoError(t, err)
	ctx := context.Background()
	at := func(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

	for _, sec := range []int{100, 101, 200, 102} {
		d, err := s.Admit(ctx, "k", at(sec))
		require.NoError(t, err)
		assert.True(t, d.Allowed, "t=%d", sec)
	}

	d, err := s.Admit(ctx, "k", at(201))
	require.NoError(t, err)
	assert.False(t, d.Allowed, "admission from the late clock still occupies the window")
	assert.Equal(t, 9*time.Second, d.RetryAfter)
}

func TestRedisWindowStore_SetsKeyTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s, err := NewRedisWindowStore(rdb, twoPerFiveMinutes())
	require.NoError(t, err)

	_, err = s.Admit(context.Background(), "k", t0)
	require.NoError(t, err)

	key := "ratelimit:window:k"
	require.True(t, mr.Exists(key))
	assert.Equal(t, 5*time.Minute, mr.TTL(key))

	mr.FastForward(5*time.Minute + time.Second)
	assert.False(t, mr.Exists(key), "idle client is purged by redis")
}

func TestRedisWindowStore_ErrorWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s, err := NewRedisWindowStore(rdb, twoPerFiveMinutes())
	require.NoError(t, err)

	mr.Close()
	_, err = s.Admit(context.Background(), "k", t0)
	assert.Error(t, err)
}
