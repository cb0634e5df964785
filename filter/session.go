package filter

import (
	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
)

// Mode 会话模式, 决定可以看到哪些项目
type Mode string

const (
	// AnonymousMode 只能看到公开项目
	AnonymousMode Mode = "anonymous"
	// AuthenticatedMode 公开项目, 以及用户或者用户所在的组是成员的项目
	AuthenticatedMode Mode = "authenticated"
)

type SessionContext struct {
	Mode   Mode
	UserID string
}

func AnonymousContext() SessionContext {
	return SessionContext{Mode: AnonymousMode}
}

func AuthenticatedContext(userID string) SessionContext {
	return SessionContext{Mode: AuthenticatedMode, UserID: userID}
}

func (c SessionContext) Validate() error {
	switch c.Mode {
	case AnonymousMode:
		if c.UserID != "" {
			return errors.WithMessage(workflow.ErrParamInvalid, "anonymous session with user id")
		}
		return nil
	case AuthenticatedMode:
		if c.UserID == "" {
			return errors.WithMessage(workflow.ErrParamInvalid, "authenticated session without user id")
		}
		return nil
	}
	return errors.WithMessagef(workflow.ErrParamInvalid, "unknown session mode %q", c.Mode)
}

// NewSpec 按会话创建一个还没有保存的过滤器, 匿名会话没有owner
func (c SessionContext) NewSpec() *Spec {
	return &Spec{OwnerID: c.UserID}
}
