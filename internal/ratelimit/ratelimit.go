package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Result - итог проверки лимита
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// Limiter ограничивает число действий по ключу за окно
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

type Config struct {
	Limit  int
	Window time.Duration
}

// RedisLimiter - счетчик с фиксированным окном в Redis, общий для всех инстансов
type RedisLimiter struct {
	client *goredis.Client
	config Config
}

// allowScript атомарно увеличивает счетчик, пока он ниже лимита
var allowScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if current == 0 then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	end
	return {0, 0, ttl}
`)

func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisLimiter(client *goredis.Client, config Config) *RedisLimiter {
	return &RedisLimiter{client: client, config: config}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)
	raw, err := allowScript.Run(ctx, r.client, []string{redisKey}, r.config.Limit, int(r.config.Window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	ttl, _ := values[2].(int64)

	return &Result{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     r.config.Limit,
	}, nil
}
