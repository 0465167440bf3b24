package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tryon-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1] = zset da chave (score = instante da admissão em ms)
// ARGV[1] = now_ms (nunca anterior à admissão mais recente da chave)
// ARGV[2] = window_ms
// ARGV[3] = limit
// ARGV[4] = member único para esta admissão
//
// Retorna {allowed, remaining, retry_ms}.
const slidingWindowScript = `
local zkey      = KEYS[1]
local now       = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit     = tonumber(ARGV[3])
local member    = ARGV[4]

-- réplicas com relógio atrasado não voltam no tempo da chave
local newest = redis.call("ZRANGE", zkey, -1, -1, "WITHSCORES")
if newest and #newest >= 2 then
  local last = tonumber(newest[2])
  if last > now then now = last end
end

redis.call("ZREMRANGEBYSCORE", zkey, "-inf", now - window_ms)

local count = tonumber(redis.call("ZCARD", zkey))
if count < limit then
  redis.call("ZADD", zkey, now, member)
  redis.call("PEXPIRE", zkey, window_ms)
  return {1, limit - count - 1, 0}
end

local oldest = redis.call("ZRANGE", zkey, 0, 0, "WITHSCORES")
local oldestScore = now
if oldest and #oldest >= 2 then
  oldestScore = tonumber(oldest[2])
end
local retry = (oldestScore + window_ms) - now
if retry < 0 then retry = 0 end
return {0, 0, retry}
`

var slidingWindow = redis.NewScript(slidingWindowScript)

// RedisWindowStore é a janela deslizante compartilhada entre réplicas.
//
// O script Lua roda de forma atômica no Redis, o que serializa as checagens
// de uma mesma chave entre todas as instâncias. O PEXPIRE faz o Redis descartar
// clientes inativos sozinho.
type RedisWindowStore struct {
	rdb    redis.UniversalClient
	policy domain.Policy
	prefix string
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisWindowStore(rdb redis.UniversalClient, policy domain.Policy, opts ...RedisWindowOption) (*RedisWindowStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	if !policy.Valid() {
		return nil, errors.New("invalid window policy")
	}
	s := &RedisWindowStore{
		rdb:    rdb,
		policy: policy,
		prefix: "ratelimit:window",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisWindowStore) Policy() domain.Policy { return s.policy }

func (s *RedisWindowStore) key(k domain.Key) string {
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

// Admit implementa domain.WindowStore.
func (s *RedisWindowStore) Admit(ctx context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	args := []any{
		now.UnixMilli(),
		s.policy.Window.Milliseconds(),
		s.policy.Limit,
		uuid.NewString(),
	}

	res, err := slidingWindow.Run(ctx, s.rdb, []string{s.key(key)}, args...).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("sliding window script: %w", err)
	}
	if len(res) != 3 {
		return domain.Decision{}, fmt.Errorf("sliding window script: unexpected reply %v", res)
	}

	return domain.Decision{
		Allowed:    res[0] == 1,
		Limit:      s.policy.Limit,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
