package lock

import (
	"context"
	"time"
)

// DistributedLock 分布式写锁接口。多实例部署时用来串行化
// 文档的读改写周期；单实例模式使用空实现。
type DistributedLock interface {
	// Lock 获取锁，阻塞直到成功或 ctx 取消
	Lock(ctx context.Context, key string, ttl time.Duration) error

	// TryLock 尝试获取锁，立即返回是否成功
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock 释放锁
	Unlock(ctx context.Context, key string) error

	// Close 关闭连接
	Close() error
}

// NopLock 空实现。保持文档存储原生的“最后写入获胜”语义。
type NopLock struct{}

func NewNopLock() *NopLock {
	return &NopLock{}
}

func (n *NopLock) Lock(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (n *NopLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (n *NopLock) Unlock(ctx context.Context, key string) error {
	return nil
}

func (n *NopLock) Close() error {
	return nil
}
