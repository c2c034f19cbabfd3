package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// compareAndSetScript swaps KEYS[1] from ARGV[1] to ARGV[2] keeping its TTL.
const compareAndSetScript = `
local current = redis.call("GET", KEYS[1])
if not current or current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
return 1
`

var compareAndSetLua = redis.NewScript(compareAndSetScript)

type Redis struct {
	redis redis.UniversalClient
}

func NewRedis(r redis.UniversalClient) *Redis {
	return &Redis{redis: r}
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.redis.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %s: %w", key, err)
	}

	return b, true, nil
}

func (s *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	exp := ttl
	if ttl <= KeepTTL {
		exp = redis.KeepTTL
	}

	if err := s.redis.Set(ctx, key, value, exp).Err(); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}

	return nil
}

func (s *Redis) CompareAndPut(ctx context.Context, key string, old, value []byte) (bool, error) {
	n, err := compareAndSetLua.Run(ctx, s.redis, []string{key}, old, value).Int()
	if err != nil {
		return false, fmt.Errorf("store: compare and set %s: %w", key, err)
	}

	return n == 1, nil
}
