package workflow

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

type AddNodeParams struct {
	ProjectID     string   `json:"project_id"` // 为空表示系统默认描述
	Title         string   `json:"title" validate:"required,max=255"`
	IsFinal       bool     `json:"is_final"`
	AuthorizedIDs []string `json:"authorized_ids" validate:"dive,required"`
}

type EditNodeParams struct {
	ProjectID     string   `json:"project_id"`
	NodeID        string   `json:"node_id" validate:"required"`
	Title         string   `json:"title" validate:"required,max=255"`
	IsFinal       bool     `json:"is_final"`
	AuthorizedIDs []string `json:"authorized_ids" validate:"dive,required"`
}

type AddLinkParams struct {
	ProjectID     string   `json:"project_id"`
	Title         string   `json:"title" validate:"required,max=255"`
	InitialNodeID string   `json:"initial_node_id"` // 为空表示从开始位置出发
	FinalNodeID   string   `json:"final_node_id" validate:"required"`
	ItemTypes     []string `json:"item_types" validate:"dive,required"`
}

type HasPathParams struct {
	ProjectID  string `json:"project_id"`
	FromNodeID string `json:"from_node_id"` // 为空表示开始位置
	ToNodeID   string `json:"to_node_id" validate:"required"`
	ItemType   string `json:"item_type" validate:"required"`
}

// WorkflowGraphServiceImpl 节点和link的管理
// 同一个描述的写操作通过 WorkflowLock 串行, 拿不到锁直接返回 ErrLockFailed
type WorkflowGraphServiceImpl struct {
	repo WorkflowRepo
	lock WorkflowLock
}

func (s *WorkflowGraphServiceImpl) FindWorkflowDescription(ctx context.Context, projectID string) (*WorkflowDescription, error) {
	description, err := loadWorkflowDescription(ctx, s.repo, projectID)
	if err != nil {
		return nil, errors.WithMessagef(err, "FindWorkflowDescription failed, projectID: %q", projectID)
	}
	return description, nil
}

func (s *WorkflowGraphServiceImpl) AddNode(ctx context.Context, params *AddNodeParams) (*WorkflowNodeDescription, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "AddNode failed, params: %v, err: %v", params, err)
	}
	var ret *WorkflowNodeDescription
	err := s.withDescription(ctx, params.ProjectID, func(ctx context.Context, description *WorkflowDescription) error {
		if _, ok := description.FindNodeByTitle(params.Title); ok {
			return errors.WithMessagef(ErrDuplicateTitle, "node title %q already exists", params.Title)
		}
		node, err := s.repo.SaveNode(ctx, &WorkflowNodeDescription{
			WorkflowDescriptionID: description.ID,
			Title:                 params.Title,
			IsFinal:               params.IsFinal,
			AuthorizedIDs:         UniqueStr(params.AuthorizedIDs),
		})
		if err != nil {
			return err
		}
		ret = node
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "AddNode failed, title: %s", params.Title)
	}
	return ret, nil
}

// EditNode 改名时同样检查标题唯一, 保持原标题不算冲突
// 节点上还有item时不能修改是否终止节点, 返回 ErrNodeInUse
func (s *WorkflowGraphServiceImpl) EditNode(ctx context.Context, params *EditNodeParams) (*WorkflowNodeDescription, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "EditNode failed, params: %v, err: %v", params, err)
	}
	var ret *WorkflowNodeDescription
	err := s.withDescription(ctx, params.ProjectID, func(ctx context.Context, description *WorkflowDescription) error {
		node, ok := description.FindNode(params.NodeID)
		if !ok {
			return errors.WithMessagef(ErrNodeNotFound, "nodeID: %s", params.NodeID)
		}
		if other, ok := description.FindNodeByTitle(params.Title); ok && other.ID != node.ID {
			return errors.WithMessagef(ErrDuplicateTitle, "node title %q already exists", params.Title)
		}
		if node.IsFinal != params.IsFinal && node.ReferenceCount > 0 {
			// 节点上item的状态由是否终止节点决定
			return errors.WithMessagef(ErrNodeInUse, "node %s has %d items, can not change final flag", node.Title, node.ReferenceCount)
		}
		node.Title = params.Title
		node.IsFinal = params.IsFinal
		node.AuthorizedIDs = UniqueStr(params.AuthorizedIDs)
		saved, err := s.repo.SaveNode(ctx, node)
		if err != nil {
			return err
		}
		ret = saved
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "EditNode failed, nodeID: %s", params.NodeID)
	}
	return ret, nil
}

// DeleteNode 节点上还有item时返回 ErrNodeInUse, 指向它的link保留
func (s *WorkflowGraphServiceImpl) DeleteNode(ctx context.Context, projectID string, nodeID string) error {
	err := s.withDescription(ctx, projectID, func(ctx context.Context, description *WorkflowDescription) error {
		if _, ok := description.FindNode(nodeID); !ok {
			return errors.WithMessagef(ErrNodeNotFound, "nodeID: %s", nodeID)
		}
		if err := s.repo.DeleteNode(ctx, nodeID); err != nil {
			return err
		}
		if description.InitialNodeID == nodeID {
			return s.repo.UpdateInitialNode(ctx, description.ID, "")
		}
		return nil
	})
	if err != nil {
		return errors.WithMessagef(err, "DeleteNode failed, nodeID: %s", nodeID)
	}
	return nil
}

func (s *WorkflowGraphServiceImpl) AddLink(ctx context.Context, params *AddLinkParams) (*WorkflowLinkDescription, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "AddLink failed, params: %v, err: %v", params, err)
	}
	var ret *WorkflowLinkDescription
	err := s.withDescription(ctx, params.ProjectID, func(ctx context.Context, description *WorkflowDescription) error {
		if description.hasLinkTitle(params.Title) {
			return errors.WithMessagef(ErrDuplicateTitle, "link title %q already exists", params.Title)
		}
		if params.InitialNodeID != "" {
			if _, ok := description.FindNode(params.InitialNodeID); !ok {
				return errors.WithMessagef(ErrNodeNotFound, "initial nodeID: %s", params.InitialNodeID)
			}
		}
		if _, ok := description.FindNode(params.FinalNodeID); !ok {
			return errors.WithMessagef(ErrNodeNotFound, "final nodeID: %s", params.FinalNodeID)
		}
		link, err := s.repo.SaveLink(ctx, &WorkflowLinkDescription{
			WorkflowDescriptionID: description.ID,
			Title:                 params.Title,
			InitialNodeID:         params.InitialNodeID,
			FinalNodeID:           params.FinalNodeID,
			ItemTypes:             UniqueStr(params.ItemTypes),
		})
		if err != nil {
			return err
		}
		ret = link
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "AddLink failed, title: %s", params.Title)
	}
	return ret, nil
}

// DeleteLink 总是允许, 不影响两端的节点
func (s *WorkflowGraphServiceImpl) DeleteLink(ctx context.Context, projectID string, linkID string) error {
	err := s.withDescription(ctx, projectID, func(ctx context.Context, description *WorkflowDescription) error {
		if _, ok := description.FindLink(linkID); !ok {
			return errors.WithMessagef(ErrLinkNotFound, "linkID: %s", linkID)
		}
		return s.repo.DeleteLink(ctx, linkID)
	})
	if err != nil {
		return errors.WithMessagef(err, "DeleteLink failed, linkID: %s", linkID)
	}
	return nil
}

// SetInitialNode 设置CREATED状态的item可以直接进入的节点, nodeID为空表示取消
func (s *WorkflowGraphServiceImpl) SetInitialNode(ctx context.Context, projectID string, nodeID string) error {
	err := s.withDescription(ctx, projectID, func(ctx context.Context, description *WorkflowDescription) error {
		if nodeID != "" {
			if _, ok := description.FindNode(nodeID); !ok {
				return errors.WithMessagef(ErrNodeNotFound, "nodeID: %s", nodeID)
			}
		}
		return s.repo.UpdateInitialNode(ctx, description.ID, nodeID)
	})
	if err != nil {
		return errors.WithMessagef(err, "SetInitialNode failed, nodeID: %s", nodeID)
	}
	return nil
}

// RemoveItemType 项目删除item类型时, 从所有link中去掉这个类型
func (s *WorkflowGraphServiceImpl) RemoveItemType(ctx context.Context, projectID string, itemType string) error {
	err := s.withDescription(ctx, projectID, func(ctx context.Context, description *WorkflowDescription) error {
		for _, link := range description.Links {
			itemTypes, removed := removeStr(link.ItemTypes, itemType)
			if !removed {
				continue
			}
			link.ItemTypes = itemTypes
			if _, err := s.repo.SaveLink(ctx, link); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.WithMessagef(err, "RemoveItemType failed, itemType: %s", itemType)
	}
	return nil
}

// RemovePrincipal 删除用户或用户组时, 从所有节点的授权中去掉
func (s *WorkflowGraphServiceImpl) RemovePrincipal(ctx context.Context, principalID string) error {
	count, err := s.repo.DeleteAuthorizationsOf(ctx, principalID)
	if err != nil {
		return errors.WithMessagef(err, "RemovePrincipal failed, principalID: %s", principalID)
	}
	if count > 0 {
		slog.InfoContext(ctx, "principal removed from node authorizations", "principal_id", principalID, "count", count)
	}
	return nil
}

// HasPath 只走对itemType可用的link, from为空表示开始位置
func (s *WorkflowGraphServiceImpl) HasPath(ctx context.Context, params *HasPathParams) (bool, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return false, errors.Wrapf(ErrParamInvalid, "HasPath failed, params: %v, err: %v", params, err)
	}
	description, err := loadWorkflowDescription(ctx, s.repo, params.ProjectID)
	if err != nil {
		return false, errors.WithMessagef(err, "HasPath failed, projectID: %q", params.ProjectID)
	}
	return PathExists(description, params.FromNodeID, params.ToNodeID, params.ItemType), nil
}

// PathExists 深度优先遍历, 已访问的节点不再访问, 所以环不会死循环
func PathExists(description *WorkflowDescription, fromNodeID string, toNodeID string, itemType string) bool {
	if description == nil {
		return false
	}
	if _, ok := description.FindNode(toNodeID); !ok {
		return false
	}
	visited := make(map[string]bool)
	return visitPath(description, fromNodeID, toNodeID, itemType, visited)
}

func visitPath(description *WorkflowDescription, current string, target string, itemType string, visited map[string]bool) bool {
	if current == target {
		return true
	}
	if visited[current] {
		return false
	}
	visited[current] = true
	if current == "" && description.InitialNodeID != "" {
		if visitPath(description, description.InitialNodeID, target, itemType, visited) {
			return true
		}
	}
	for _, link := range description.Links {
		if link.InitialNodeID != current || !link.AppliesTo(itemType) {
			continue
		}
		if _, ok := description.FindNode(link.FinalNodeID); !ok {
			// 悬空的link
			continue
		}
		if visitPath(description, link.FinalNodeID, target, itemType, visited) {
			return true
		}
	}
	return false
}

// EnsureProjectWorkflow 项目还没有自己的描述时, 复制一份系统默认描述
// 复制出来的节点和link都是新的id, 引用计数从0开始
func (s *WorkflowGraphServiceImpl) EnsureProjectWorkflow(ctx context.Context, projectID string) (*WorkflowDescription, error) {
	var ret *WorkflowDescription
	err := s.lock.NonBlockingSynchronized(ctx, DescriptionLockKey(projectID), defaultLockDuration, func(ctx context.Context) error {
		return s.repo.Transaction(ctx, func(ctx context.Context) error {
			description, err := s.ensureDescription(ctx, projectID)
			if err != nil {
				return err
			}
			ret = description
			return nil
		})
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "EnsureProjectWorkflow failed, projectID: %q", projectID)
	}
	return ret, nil
}

// withDescription 加锁, 开事务, 加载(必要时创建)项目自己的描述
func (s *WorkflowGraphServiceImpl) withDescription(ctx context.Context, projectID string, fn func(ctx context.Context, description *WorkflowDescription) error) error {
	return s.lock.NonBlockingSynchronized(ctx, DescriptionLockKey(projectID), defaultLockDuration, func(ctx context.Context) error {
		return s.repo.Transaction(ctx, func(ctx context.Context) error {
			description, err := s.ensureDescription(ctx, projectID)
			if err != nil {
				return err
			}
			return fn(ctx, description)
		})
	})
}

func (s *WorkflowGraphServiceImpl) ensureDescription(ctx context.Context, projectID string) (*WorkflowDescription, error) {
	description, err := s.repo.FindWorkflowDescription(ctx, projectID)
	if err == nil {
		return description, nil
	}
	if !errors.Is(err, ErrWorkflowDescriptionNotFound) {
		return nil, err
	}
	if projectID == defaultWorkflowProjectID {
		return s.repo.CreateWorkflowDescription(ctx, &WorkflowDescription{
			ProjectID: defaultWorkflowProjectID,
			Title:     "default",
		})
	}
	defaultDescription, err := s.repo.FindWorkflowDescription(ctx, defaultWorkflowProjectID)
	if err != nil {
		if !errors.Is(err, ErrWorkflowDescriptionNotFound) {
			return nil, err
		}
		return s.repo.CreateWorkflowDescription(ctx, &WorkflowDescription{ProjectID: projectID, Title: projectID})
	}
	return s.cloneDescription(ctx, defaultDescription, projectID)
}

func (s *WorkflowGraphServiceImpl) cloneDescription(ctx context.Context, source *WorkflowDescription, projectID string) (*WorkflowDescription, error) {
	description, err := s.repo.CreateWorkflowDescription(ctx, &WorkflowDescription{
		ProjectID: projectID,
		Title:     source.Title,
	})
	if err != nil {
		return nil, err
	}
	nodeIDMap := make(map[string]string, len(source.Nodes))
	for _, node := range source.Nodes {
		saved, err := s.repo.SaveNode(ctx, &WorkflowNodeDescription{
			WorkflowDescriptionID: description.ID,
			Title:                 node.Title,
			IsFinal:               node.IsFinal,
			AuthorizedIDs:         append([]string{}, node.AuthorizedIDs...),
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "clone node %s failed", node.Title)
		}
		nodeIDMap[node.ID] = saved.ID
		description.Nodes = append(description.Nodes, saved)
	}
	for _, link := range source.Links {
		finalNodeID, ok := nodeIDMap[link.FinalNodeID]
		if !ok {
			// 悬空的link不复制
			continue
		}
		initialNodeID := ""
		if !link.IsStartLink() {
			if initialNodeID, ok = nodeIDMap[link.InitialNodeID]; !ok {
				continue
			}
		}
		saved, err := s.repo.SaveLink(ctx, &WorkflowLinkDescription{
			WorkflowDescriptionID: description.ID,
			Title:                 link.Title,
			InitialNodeID:         initialNodeID,
			FinalNodeID:           finalNodeID,
			ItemTypes:             append([]string{}, link.ItemTypes...),
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "clone link %s failed", link.Title)
		}
		description.Links = append(description.Links, saved)
	}
	if initialNodeID, ok := nodeIDMap[source.InitialNodeID]; ok {
		if err := s.repo.UpdateInitialNode(ctx, description.ID, initialNodeID); err != nil {
			return nil, err
		}
		description.InitialNodeID = initialNodeID
		description.Version++
	}
	return description, nil
}
