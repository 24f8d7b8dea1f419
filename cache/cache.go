// Package cache 缓存渲染结果。键由输入内容哈希得到，相同输入直接返回已渲染的字节。
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ByLCY/certify/config"
)

// Cache 是键值字节缓存。Get 未命中时返回 (nil, false, nil)。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New 按配置创建缓存实现。
func New(cfg config.Cache) (Cache, error) {
	switch cfg.Kind {
	case config.CacheNone, "":
		return NewNullCache(), nil
	case config.CacheFile:
		c, err := NewFileCache(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("创建文件缓存失败: %w", err)
		}
		return c, nil
	case config.CacheRedis:
		c, err := NewRedisCache(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("创建 redis 缓存失败: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("未知缓存类型 %q", cfg.Kind)
	}
}
