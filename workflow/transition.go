package workflow

import (
	"context"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// TransitionValidator 计算item可以去的下一个节点, 校验一次迁移请求
// 每次调用都重新加载工作流描述, 不缓存结果
type TransitionValidator struct {
	workflowRepo  WorkflowRepo
	projectRepo   ProjectRepo
	principalRepo PrincipalRepo
}

func NewTransitionValidator(workflowRepo WorkflowRepo, projectRepo ProjectRepo, principalRepo PrincipalRepo) *TransitionValidator {
	return &TransitionValidator{workflowRepo: workflowRepo, projectRepo: projectRepo, principalRepo: principalRepo}
}

// FindNextNodes 当前节点出发, 并且对item类型可用的link的终点
// 没有结果不是错误, 表示没有可以继续的迁移
func (v *TransitionValidator) FindNextNodes(ctx context.Context, item *Item) ([]*WorkflowNodeDescription, error) {
	if item == nil {
		return nil, errors.WithMessage(ErrParamInvalid, "FindNextNodes: nil item")
	}
	description, err := loadWorkflowDescription(ctx, v.workflowRepo, item.ProjectID)
	if err != nil {
		if errors.Is(err, ErrWorkflowDescriptionNotFound) {
			return make([]*WorkflowNodeDescription, 0), nil
		}
		return nil, errors.WithMessagef(err, "FindNextNodes failed, itemID: %s", item.ID)
	}
	return NextNodes(description, item), nil
}

// NextNodes 纯计算, 不访问存储
//   - BLOCKED 的item没有下一个节点
//   - 终点已经被删除的link(悬空)忽略
//   - 没有当前节点时从开始位置出发, 描述的初始节点也可以进入
//   - 结果按标题排序, 去重
func NextNodes(description *WorkflowDescription, item *Item) []*WorkflowNodeDescription {
	ret := make([]*WorkflowNodeDescription, 0)
	if description == nil || item == nil || item.State == ItemStateBlocked {
		return ret
	}
	seen := make(map[string]struct{})
	add := func(nodeID string) {
		if _, ok := seen[nodeID]; ok {
			return
		}
		node, ok := description.FindNode(nodeID)
		if !ok {
			return
		}
		seen[nodeID] = struct{}{}
		ret = append(ret, node)
	}
	if !item.HasCurrentNode() && description.InitialNodeID != "" {
		add(description.InitialNodeID)
	}
	for _, link := range description.Links {
		if link.InitialNodeID != item.CurrentNodeID {
			continue
		}
		if !link.AppliesTo(item.ItemType) {
			continue
		}
		if !link.IsStartLink() {
			// 起点被删除的link不可用
			if _, ok := description.FindNode(link.InitialNodeID); !ok {
				continue
			}
		}
		add(link.FinalNodeID)
	}
	slices.SortFunc(ret, func(a, b *WorkflowNodeDescription) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return ret
}

// ValidateTransition 没有副作用, 相同输入多次调用结果一致, 和提交迁移使用同一套规则
//   - 目标不在下一个节点中: ErrInvalidTransition
//   - 负责人不是目标节点授权的用户, 也不属于授权的用户组: ErrUnauthorizedResponsible
//   - 目标是终止节点, 或者策略强制指定负责人时不校验负责人
func (v *TransitionValidator) ValidateTransition(ctx context.Context, item *Item, targetNodeID string, responsibleID string) error {
	if item == nil {
		return errors.WithMessage(ErrParamInvalid, "ValidateTransition: nil item")
	}
	_, _, err := v.resolve(ctx, item, targetNodeID, responsibleID)
	return err
}

// resolve 计算迁移的目标节点和负责人, candidateID 是调用方选择的负责人
func (v *TransitionValidator) resolve(ctx context.Context, item *Item, targetNodeID string, candidateID string) (*WorkflowNodeDescription, *ResponsibleDecision, error) {
	project, err := v.projectRepo.FindProject(ctx, item.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	description, err := loadWorkflowDescription(ctx, v.workflowRepo, item.ProjectID)
	if err != nil {
		if errors.Is(err, ErrWorkflowDescriptionNotFound) {
			return nil, nil, errors.WithMessagef(ErrInvalidTransition, "project %s has no workflow description", item.ProjectID)
		}
		return nil, nil, errors.WithMessagef(err, "load workflow description failed, itemID: %s", item.ID)
	}
	target, err := v.validateTarget(description, item, targetNodeID)
	if err != nil {
		return nil, nil, err
	}
	decision, err := ResolveResponsible(project.AssignmentStrategy, item, project, candidateID, target)
	if err != nil {
		return nil, nil, err
	}
	if decision.Required && !decision.Forced {
		if err := v.checkAuthorized(ctx, target, decision.ResponsibleID); err != nil {
			return nil, nil, err
		}
	}
	return target, decision, nil
}

func (v *TransitionValidator) validateTarget(description *WorkflowDescription, item *Item, targetNodeID string) (*WorkflowNodeDescription, error) {
	if item.State == ItemStateBlocked {
		return nil, errors.WithMessagef(ErrInvalidTransition, "item %s is blocked", item.ID)
	}
	for _, node := range NextNodes(description, item) {
		if node.ID == targetNodeID {
			return node, nil
		}
	}
	return nil, errors.WithMessagef(ErrInvalidTransition, "item %s can not move from %q to %q", item.ID, item.CurrentNodeID, targetNodeID)
}

// checkAuthorized 负责人直接被授权, 或者属于某个被授权的用户组
func (v *TransitionValidator) checkAuthorized(ctx context.Context, node *WorkflowNodeDescription, responsibleID string) error {
	if responsibleID == "" {
		return errors.WithMessagef(ErrUnauthorizedResponsible, "node %s requires a responsible", node.Title)
	}
	if node.IsAuthorized(responsibleID) {
		return nil
	}
	groupIDs, err := v.principalRepo.GroupIDsOfUser(ctx, responsibleID)
	if err != nil {
		return errors.WithMessagef(err, "GroupIDsOfUser failed, principalID: %s", responsibleID)
	}
	for _, groupID := range groupIDs {
		if node.IsAuthorized(groupID) {
			return nil
		}
	}
	return errors.WithMessagef(ErrUnauthorizedResponsible, "%s is not authorized on node %s", responsibleID, node.Title)
}

// loadWorkflowDescription 项目没有自己的描述时使用系统默认的
func loadWorkflowDescription(ctx context.Context, repo WorkflowRepo, projectID string) (*WorkflowDescription, error) {
	description, err := repo.FindWorkflowDescription(ctx, projectID)
	if err == nil {
		return description, nil
	}
	if !errors.Is(err, ErrWorkflowDescriptionNotFound) || projectID == defaultWorkflowProjectID {
		return nil, err
	}
	return repo.FindWorkflowDescription(ctx, defaultWorkflowProjectID)
}
