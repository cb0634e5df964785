package workflow

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrLockFailed 锁被其他调用方持有, 不等待直接返回
	ErrLockFailed = errors.New("lock failed")
)

const (
	lockKeyPrefix = "itemflow:lock:"
	// defaultLockDuration 管理操作的最长持锁时间
	defaultLockDuration = 10 * time.Second
)

type WorkflowLock interface {
	// NonBlockingSynchronized
	//  @Description:  1.非阻塞同步块,如果没有拿到锁，立刻返回 ErrLockFailed
	//                 2.同一个ctx链路上可以重入
	//  @param key 锁的key, 用 DescriptionLockKey 等函数生成
	//  @param maxLockTimeDuration 锁最大的时间, 超时自动释放
	//  @param f 具体执行函数的闭包
	NonBlockingSynchronized(ctx context.Context, key string, maxLockTimeDuration time.Duration, f func(context.Context) error) error
}

// DescriptionLockKey 一个项目的工作流描述的所有修改串行执行
// 系统默认描述和项目描述使用不同的命名空间
func DescriptionLockKey(projectID string) string {
	if projectID == defaultWorkflowProjectID {
		return lockKeyPrefix + "description:system"
	}
	return lockKeyPrefix + "description:project:" + projectID
}

// OwnerLockKey 同一个用户的过滤器收藏变更串行执行
func OwnerLockKey(ownerID string) string {
	return lockKeyPrefix + "owner:" + ownerID
}

// ctxLockKey 记录当前ctx已经持有的锁, 用于重入
type ctxLockKey string
