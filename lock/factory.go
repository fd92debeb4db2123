package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"profitcal/config"
	"profitcal/logger"
)

// NewLock 根据配置创建锁实现。type 为 none 时返回空实现。
func NewLock(cfg *config.LockConfig) (DistributedLock, error) {
	switch cfg.Type {
	case "", "none":
		return NewNopLock(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPass,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}

		logger.Info("✅ Redis 写锁已启用: %s", cfg.RedisAddr)
		return NewRedisLock(client, "profitcal:lock:"), nil

	default:
		return nil, fmt.Errorf("不支持的锁类型: %s", cfg.Type)
	}
}
