package workflow

import "github.com/pkg/errors"

var (
	ErrParamInvalid                = errors.New("param invalid")
	ErrWorkflowDescriptionNotFound = errors.New("workflow description not found")
	ErrNodeNotFound                = errors.New("workflow node description not found")
	ErrLinkNotFound                = errors.New("workflow link description not found")
	ErrItemNotFound                = errors.New("item not found")
	ErrProjectNotFound             = errors.New("project not found")
	ErrPrincipalNotFound           = errors.New("principal not found")

	// 校验类冲突,调用方修正输入后可以重试
	ErrDuplicateTitle            = errors.New("duplicate title")
	ErrInvalidTransition         = errors.New("invalid transition")
	ErrUnauthorizedResponsible   = errors.New("unauthorized responsible")
	ErrUnknownAssignmentStrategy = errors.New("unknown assignment strategy")
	// 一致性冲突: 存储中的版本已经前进,调用方需要重新加载后再试,内部不会自动重试
	ErrConcurrentModification = errors.New("concurrent modification")
	// 引用冲突: 节点上还有item,拒绝删除
	ErrNodeInUse = errors.New("workflow node description in use")
)

// IsValidationError 校验类错误,调用方修改输入即可恢复
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	causeErr := errors.Cause(err)
	return errors.Is(causeErr, ErrDuplicateTitle) ||
		errors.Is(causeErr, ErrInvalidTransition) ||
		errors.Is(causeErr, ErrUnauthorizedResponsible) ||
		errors.Is(causeErr, ErrUnknownAssignmentStrategy) ||
		errors.Is(causeErr, ErrParamInvalid)
}

// IsItemLevelError 单个item的失败,批量迁移时收集而不是中断
// 基础设施错误(数据库不可用,超时等)不在其中
func IsItemLevelError(err error) bool {
	if err == nil {
		return false
	}
	if IsValidationError(err) {
		return true
	}
	causeErr := errors.Cause(err)
	return errors.Is(causeErr, ErrConcurrentModification) ||
		errors.Is(causeErr, ErrItemNotFound) ||
		errors.Is(causeErr, ErrNodeNotFound) ||
		errors.Is(causeErr, ErrPrincipalNotFound)
}

type ItemState = string

const (
	// 没有当前节点,还没有发生过迁移
	ItemStateCreated ItemState = "created"
	ItemStateOpen    ItemState = "open"
	// 被外部操作阻塞,不接受任何迁移
	ItemStateBlocked ItemState = "blocked"
	ItemStateClosed  ItemState = "closed"
)

func IsKnownItemState(state ItemState) bool {
	switch state {
	case ItemStateCreated, ItemStateOpen, ItemStateBlocked, ItemStateClosed:
		return true
	}
	return false
}

func GetItemStateText(state ItemState) string {
	switch state {
	case ItemStateCreated:
		return "已创建"
	case ItemStateOpen:
		return "处理中"
	case ItemStateBlocked:
		return "阻塞"
	case ItemStateClosed:
		return "已关闭"
	}
	return "未知"
}

type PrincipalKind = string

const (
	PrincipalKindUser  PrincipalKind = "user"
	PrincipalKindGroup PrincipalKind = "group"
)

// defaultWorkflowProjectID 系统默认工作流描述的project id,项目没有自己的描述时使用
const defaultWorkflowProjectID = ""
