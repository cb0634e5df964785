package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

// NewRedisWorkflowLock 多实例部署时使用, 所有实例共享同一个redis
func NewRedisWorkflowLock(redisClient redis.Cmdable) WorkflowLock {
	return &redisWorkflowLock{redisClient: redisClient}
}

type redisWorkflowLock struct {
	redisClient redis.Cmdable
}

func (d *redisWorkflowLock) NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(context.Context) error) error {
	if _, ok := ctx.Value(ctxLockKey(key)).(string); ok {
		// 之前成功上锁了,继续执行即可
		return f(ctx)
	}
	token := uuid.NewString()
	isLock, err := d.redisClient.SetNX(ctx, key, token, maxLockTimeDuration).Result()
	if err != nil {
		return errors.WithMessagef(ErrLockFailed, "[redisWorkflowLock.NonBlockingSynchronized] key %s, err: %v", key, err)
	}
	if !isLock {
		return errors.WithMessagef(ErrLockFailed, "[redisWorkflowLock.NonBlockingSynchronized] key %s has been locked", key)
	}
	defer d.release(key, token)
	return f(context.WithValue(ctx, ctxLockKey(key), token))
}

func (d *redisWorkflowLock) release(key string, token string) {
	// ctx 可能已经被cancel, 释放锁用新的context
	ctx := context.Background()
	reply, err := d.redisClient.Eval(ctx, releaseScript, []string{key}, token).Int64()
	if err != nil {
		slog.ErrorContext(ctx, "[redisWorkflowLock.release] release key failed", "key", key, "err", err)
		return
	}
	if reply != 1 {
		slog.WarnContext(ctx, "[redisWorkflowLock.release] lock expired before release", "key", key)
	}
}
