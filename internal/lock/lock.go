package lock

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/util"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockBusy 锁已被其他实例持有
var ErrLockBusy = stderrors.New("lock is held by another worker")

// Locker 分布式互斥锁，返回的 unlock 可安全重复调用
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

type redisLocker struct {
	rs *redsync.Redsync
}

// NewRedisLocker 基于 redsync 的锁
func NewRedisLocker(rdb *redis.Client) Locker {
	return &redisLocker{rs: redsync.New(goredis.NewPool(rdb))}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1), // 只尝试一次，失败说明正在处理
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrLockBusy, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := mutex.UnlockContext(context.Background()); err != nil {
				util.Logger.Warn("释放分布式锁失败", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// memoryLocker 单实例部署（未配置 Redis）时使用
type memoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryLocker() Locker {
	return &memoryLocker{held: make(map[string]time.Time), nowFn: time.Now}
}

func (l *memoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if expiry, ok := l.held[key]; ok && now.Before(expiry) {
		return nil, ErrLockBusy
	}
	expiry := now.Add(ttl)
	l.held[key] = expiry

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// 过期后被他人重新持有时不能误删
			if l.held[key] == expiry {
				delete(l.held, key)
			}
		})
	}, nil
}
