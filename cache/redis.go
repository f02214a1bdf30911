package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/schema"
)

// redisAnswers stores complete query results in redis so multiple replicas
// share one response cache. Redis failures degrade to recomputation, never to
// query failure.
type redisAnswers struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisAnswers creates a redis-backed response cache.
func NewRedisAnswers(cfg *config.RedisConfig, ttl time.Duration) Answers {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisAnswers{rdb: rdb, ttl: ttl, prefix: "govrag:answer:"}
}

func (r *redisAnswers) GetOrCompute(ctx context.Context, key string, fn ComputeFunc) (*schema.Answer, error) {
	full := r.prefix + key
	if data, err := r.rdb.Get(ctx, full).Bytes(); err == nil {
		var ans schema.Answer
		if err := json.Unmarshal(data, &ans); err == nil {
			return &ans, nil
		}
		logger.Warnf("cache: corrupt redis entry for %s, recomputing", full)
	} else if err != redis.Nil {
		logger.Warnf("cache: redis get failed: %v", err)
	}

	ans, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(ans); err == nil {
		if err := r.rdb.Set(ctx, full, data, r.ttl).Err(); err != nil {
			logger.Warnf("cache: redis set failed: %v", err)
		}
	}
	return ans, nil
}
