package workflow

import (
	"github.com/pkg/errors"
)

// AssignmentStrategy 负责人分配策略, 每个项目有且只有一个
// 只在项目保存时解析一次, 下游不再解析字符串
type AssignmentStrategy string

const (
	CreatorAssignment       AssignmentStrategy = "creator"
	ProjectLeaderAssignment AssignmentStrategy = "project_leader"
	UserSelectedAssignment  AssignmentStrategy = "user_selected"
)

func (s AssignmentStrategy) IsValid() bool {
	switch s {
	case CreatorAssignment, ProjectLeaderAssignment, UserSelectedAssignment:
		return true
	}
	return false
}

func (s AssignmentStrategy) String() string {
	return string(s)
}

// ParseAssignmentStrategy 未知的策略直接失败, 不回退到默认值
func ParseAssignmentStrategy(raw string) (AssignmentStrategy, error) {
	s := AssignmentStrategy(raw)
	if !s.IsValid() {
		return "", errors.WithMessagef(ErrUnknownAssignmentStrategy, "strategy: %q", raw)
	}
	return s, nil
}

// ResponsibleDecision 策略计算出来的下一个负责人
type ResponsibleDecision struct {
	ResponsibleID string
	// Forced 为true时负责人由策略决定, 调用方传入的值被忽略, 也不需要节点授权
	Forced bool
	// Required 为false时不需要负责人(目标节点是终止节点), 保留当前负责人
	Required bool
}

// ResolveResponsible 计算迁移后的负责人
//   - item第一次离开CREATED时, creator/project_leader 策略强制指定负责人
//   - user_selected 策略使用调用方选择的负责人, 目标是终止节点时不需要负责人
//   - 非第一次迁移, 所有策略都使用调用方选择的负责人
func ResolveResponsible(strategy AssignmentStrategy, item *Item, project *Project, candidateID string, target *WorkflowNodeDescription) (*ResponsibleDecision, error) {
	if item == nil || project == nil || target == nil {
		return nil, errors.WithMessage(ErrParamInvalid, "ResolveResponsible: nil item, project or target")
	}
	if item.State == ItemStateCreated || !item.HasCurrentNode() {
		switch strategy {
		case CreatorAssignment:
			return &ResponsibleDecision{ResponsibleID: item.CreatorID, Forced: true, Required: true}, nil
		case ProjectLeaderAssignment:
			return &ResponsibleDecision{ResponsibleID: project.LeaderID, Forced: true, Required: true}, nil
		case UserSelectedAssignment:
		default:
			return nil, errors.WithMessagef(ErrUnknownAssignmentStrategy, "project: %s, strategy: %q", project.ID, strategy)
		}
	}
	if target.IsFinal {
		// 终止节点不需要下一个负责人, 授权计算跳过
		responsibleID := candidateID
		if responsibleID == "" {
			responsibleID = item.ResponsibleID
		}
		return &ResponsibleDecision{ResponsibleID: responsibleID, Required: false}, nil
	}
	return &ResponsibleDecision{ResponsibleID: candidateID, Required: true}, nil
}

// ResponsibleSelectable 调用方选择的负责人是否会被采用
func ResponsibleSelectable(strategy AssignmentStrategy, item *Item, target *WorkflowNodeDescription) bool {
	if item == nil || target == nil {
		return false
	}
	if target.IsFinal {
		return false
	}
	if !item.HasCurrentNode() && strategy != UserSelectedAssignment {
		return false
	}
	return true
}
