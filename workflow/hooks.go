package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// TransitionEvent 一次已经提交的迁移
type TransitionEvent struct {
	Item                  *Item // 迁移之后的item
	FromNodeID            string
	ToNode                *WorkflowNodeDescription
	PreviousResponsibleID string
	OccurredAt            int64
}

// TransitionHook 迁移提交后调用, 需要外部实现(通知等)
type TransitionHook interface {
	/**
	 * @description: 迁移提交之后执行
	 * @return error 只记录日志, 不会返回给迁移的调用方, 迁移也不会回滚
	 */
	AfterTransition(ctx context.Context, event *TransitionEvent) error
}

type TransitionHookFunc func(ctx context.Context, event *TransitionEvent) error

func (f TransitionHookFunc) AfterTransition(ctx context.Context, event *TransitionEvent) error {
	return f(ctx, event)
}

type transitionHooks struct {
	mu    sync.RWMutex
	hooks []TransitionHook
}

func (h *transitionHooks) register(hook TransitionHook) {
	if hook == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

func (h *transitionHooks) fire(ctx context.Context, event *TransitionEvent) {
	h.mu.RLock()
	hooks := append([]TransitionHook{}, h.hooks...)
	h.mu.RUnlock()
	for _, hook := range hooks {
		runHook(ctx, hook, event)
	}
}

func runHook(ctx context.Context, hook TransitionHook, event *TransitionEvent) {
	defer func() {
		// panic 捕捉一下, 不影响其他hook
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, fmt.Sprintf("transition hook panic: %v, itemID: %s, stack: %s", r, event.Item.ID, string(debug.Stack())))
		}
	}()
	if err := hook.AfterTransition(ctx, event); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("transition hook failed, itemID: %s, toNode: %s, err: %v", event.Item.ID, event.ToNode.Title, err))
	}
}
