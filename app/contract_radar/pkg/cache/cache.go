package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

// Cache 分段分析结果缓存，相同模型下相同文本不重复调用
type Cache interface {
	Get(ctx context.Context, key string) (*model.AnalysisRecord, bool, error)
	Set(ctx context.Context, key string, rec *model.AnalysisRecord) error
}

// Key 由模型名和分段文本生成缓存键
func Key(modelName, text string) string {
	sum := sha256.Sum256([]byte(modelName + "\x00" + text))
	return "contract_radar:segment:" + hex.EncodeToString(sum[:])
}

// kv *redis.Client 中本包用到的部分
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache 基于 Redis 的缓存实现
type RedisCache struct {
	client kv
	ttl    time.Duration
	closer func() error
}

// NewRedisCache 连接 Redis 并校验可用性
func NewRedisCache(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	c := New(client, time.Duration(cfg.TTL)*time.Second)
	c.closer = client.Close
	return c, nil
}

// New 使用已有客户端创建缓存
func New(client kv, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Close 关闭由 NewRedisCache 创建的连接，外部传入的客户端由调用方负责
func (c *RedisCache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Get 读取缓存，未命中时返回 false
func (c *RedisCache) Get(ctx context.Context, key string) (*model.AnalysisRecord, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rec model.AnalysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("decode cached record: %w", err)
	}
	return &rec, true, nil
}

// Set 写入缓存，错误记录不缓存
func (c *RedisCache) Set(ctx context.Context, key string, rec *model.AnalysisRecord) error {
	if rec == nil || rec.Error {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
