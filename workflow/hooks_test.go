package workflow

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestTransitionHooks(t *testing.T) {
	hooks := &transitionHooks{}
	event := &TransitionEvent{
		Item:   &Item{ID: "i1"},
		ToNode: &WorkflowNodeDescription{ID: "a", Title: "A"},
	}
	calls := make([]string, 0)
	hooks.register(TransitionHookFunc(func(ctx context.Context, e *TransitionEvent) error {
		calls = append(calls, "first")
		return errors.New("notify failed")
	}))
	hooks.register(nil)
	hooks.register(TransitionHookFunc(func(ctx context.Context, e *TransitionEvent) error {
		calls = append(calls, "panic")
		panic("boom")
	}))
	hooks.register(TransitionHookFunc(func(ctx context.Context, e *TransitionEvent) error {
		calls = append(calls, "last")
		assert.Equal(t, "i1", e.Item.ID)
		return nil
	}))

	// 前面的hook失败或者panic不影响后面的
	assert.NotPanics(t, func() { hooks.fire(context.Background(), event) })
	assert.Equal(t, []string{"first", "panic", "last"}, calls)
}
