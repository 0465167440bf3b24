package infra

import (
	"context"
	"strings"
	"time"

	"tryon-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores em hashes do Redis:
//
//	<prefix>:total           allowed|denied
//	<prefix>:outcome         ok|invalid_image|rate_limited|...
//	<prefix>:<bucket>:<ts>   allowed|denied|outcome:<kind>   (expira em ttl)
//	<prefix>:route           "POST /vton/:allowed" ...
//	<prefix>:key:<k>         allowed|denied                  (opcional, expira em ttl)
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total e outcome são cumulativos e não expiram.
	ttl time.Duration

	bucket string // "minute" (padrão), "hour" ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "tryon:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) bucketKey(at time.Time) string {
	switch s.bucket {
	case "minute":
		return s.prefix + ":minute:" + at.UTC().Format("200601021504")
	case "hour":
		return s.prefix + ":hour:" + at.UTC().Format("2006010215")
	default:
		return ""
	}
}

func (s *RedisStatsStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}
	outcome := strings.TrimSpace(ev.Outcome)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)
	if outcome != "" {
		pipe.HIncrBy(ctx, s.prefix+":outcome", outcome, 1)
	}

	if bk := s.bucketKey(at); bk != "" {
		pipe.HIncrBy(ctx, bk, field, 1)
		if outcome != "" {
			pipe.HIncrBy(ctx, bk, "outcome:"+outcome, 1)
		}
		s.expire(ctx, pipe, bk)
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		kk := s.prefix + ":key:" + k
		pipe.HIncrBy(ctx, kk, field, 1)
		s.expire(ctx, pipe, kk)
	}

	_, err := pipe.Exec(ctx)
	return err
}
