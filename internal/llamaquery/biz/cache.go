package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
	"github.com/overlordausritter/beastgpt/pkg/utils/json"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 成功响应的 Redis 缓存。只做加速，从不作为数据来源。
type QueryCache struct {
	redis  goredis.UniversalClient
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis goredis.UniversalClient, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       10 * time.Minute,
			KeyPrefix: "llamaquery:",
		}
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

func (c *QueryCache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// cacheKey 基于策略和查询生成缓存键（SHA256）。
func (c *QueryCache) cacheKey(strategy, query string) string {
	hash := sha256.Sum256([]byte(strategy + "\x00" + query))
	return c.config.KeyPrefix + strategy + ":" + hex.EncodeToString(hash[:])
}

// Get 读取缓存。未命中或缓存不可用时返回 nil, nil。
func (c *QueryCache) Get(ctx context.Context, strategy, query string) (*model.QueryResponse, error) {
	if !c.enabled() {
		return nil, nil
	}

	key := c.cacheKey(strategy, query)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			logger.Debugw("cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var resp model.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warnw("failed to unmarshal cached response", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Debugw("cache hit", "key", key, "results", len(resp.Results))
	return &resp, nil
}

// Set 写入缓存。流式响应不缓存。
func (c *QueryCache) Set(ctx context.Context, strategy, query string, resp *model.QueryResponse) error {
	if !c.enabled() || resp == nil || resp.Streamed {
		return nil
	}

	key := c.cacheKey(strategy, query)
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", key)
		return err
	}
	return nil
}

// Clear 清除所有查询缓存，返回删除的键数量。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	if !c.enabled() {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}
