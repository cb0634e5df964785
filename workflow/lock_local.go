package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewLocalWorkflowLock 进程内的锁, 单实例部署和测试使用
func NewLocalWorkflowLock() WorkflowLock {
	return &localWorkflowLock{
		holders: make(map[string]*localLockHolder),
	}
}

type localWorkflowLock struct {
	mu      sync.Mutex
	holders map[string]*localLockHolder
}

type localLockHolder struct {
	token    string
	expireAt time.Time
}

func (l *localWorkflowLock) NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(context.Context) error) error {
	if _, ok := ctx.Value(ctxLockKey(key)).(string); ok {
		// 已经持有锁，直接执行
		return f(ctx)
	}
	token := uuid.NewString()
	if !l.acquire(key, token, maxLockTimeDuration) {
		return errors.WithMessagef(ErrLockFailed, "[localWorkflowLock.NonBlockingSynchronized] key %s has been locked", key)
	}
	defer l.release(ctx, key, token)
	return f(context.WithValue(ctx, ctxLockKey(key), token))
}

func (l *localWorkflowLock) acquire(key string, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if holder, ok := l.holders[key]; ok && now.Before(holder.expireAt) {
		return false
	}
	// 不存在或者已经过期, 直接覆盖
	l.holders[key] = &localLockHolder{token: token, expireAt: now.Add(ttl)}
	return true
}

func (l *localWorkflowLock) release(ctx context.Context, key string, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, ok := l.holders[key]
	if !ok || holder.token != token {
		// 超时后被其他调用方拿走了
		slog.WarnContext(ctx, "[localWorkflowLock.release] lock expired before release", "key", key)
		return
	}
	delete(l.holders, key)
}
