package workflow

import (
	"context"
	"slices"

	"github.com/pkg/errors"
)

type CreateItemParams struct {
	ProjectID   string `json:"project_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
	ItemType    string `json:"item_type" validate:"required"`
	CreatorID   string `json:"creator_id" validate:"required"`
}

type MoveItemParams struct {
	ItemID          string `json:"item_id" validate:"required"`
	TargetNodeID    string `json:"target_node_id" validate:"required"`
	ResponsibleID   string `json:"responsible_id"` // 策略强制指定或者目标是终止节点时可以为空
	ExpectedVersion int64  `json:"expected_version" validate:"gt=0"`
}

type TakeItemParams struct {
	ItemID          string `json:"item_id" validate:"required"`
	UserID          string `json:"user_id" validate:"required"`
	ExpectedVersion int64  `json:"expected_version" validate:"gt=0"`
}

type ChangeItemStateParams struct {
	ItemID          string `json:"item_id" validate:"required"`
	ExpectedVersion int64  `json:"expected_version" validate:"gt=0"`
}

// ItemServiceImpl item的创建和迁移, 迁移只能通过校验
type ItemServiceImpl struct {
	itemRepo     ItemRepo
	workflowRepo WorkflowRepo
	projectRepo  ProjectRepo
	validator    *TransitionValidator
	hooks        *transitionHooks
}

func (s *ItemServiceImpl) RegisterTransitionHook(hook TransitionHook) {
	s.hooks.register(hook)
}

func (s *ItemServiceImpl) FindItem(ctx context.Context, itemID string) (*Item, error) {
	return s.itemRepo.FindItem(ctx, itemID)
}

func (s *ItemServiceImpl) FindItemBySeq(ctx context.Context, projectID string, seq int64) (*Item, error) {
	return s.itemRepo.FindItemBySeq(ctx, projectID, seq)
}

func (s *ItemServiceImpl) QueryItems(ctx context.Context, params *QueryItemParams) ([]*Item, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "QueryItems failed, params: %v, err: %v", params, err)
	}
	items, err := s.itemRepo.QueryItems(ctx, params)
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryItems failed, params: %v", params)
	}
	return items, nil
}

func (s *ItemServiceImpl) CountItems(ctx context.Context, params *QueryItemParams) (int64, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return 0, errors.Wrapf(ErrParamInvalid, "CountItems failed, params: %v, err: %v", params, err)
	}
	count, err := s.itemRepo.CountItems(ctx, params)
	if err != nil {
		return 0, errors.WithMessagef(err, "CountItems failed, params: %v", params)
	}
	return count, nil
}

func (s *ItemServiceImpl) FindNextNodes(ctx context.Context, item *Item) ([]*WorkflowNodeDescription, error) {
	return s.validator.FindNextNodes(ctx, item)
}

func (s *ItemServiceImpl) ValidateTransition(ctx context.Context, item *Item, targetNodeID string, responsibleID string) error {
	return s.validator.ValidateTransition(ctx, item, targetNodeID, responsibleID)
}

// CreateItem 分配项目内序号, 状态CREATED, 负责人是创建人
func (s *ItemServiceImpl) CreateItem(ctx context.Context, params *CreateItemParams) (*Item, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "CreateItem failed, params: %v, err: %v", params, err)
	}
	var ret *Item
	err := s.itemRepo.Transaction(ctx, func(ctx context.Context) error {
		project, err := s.projectRepo.FindProject(ctx, params.ProjectID)
		if err != nil {
			return err
		}
		if !project.HasItemType(params.ItemType) {
			return errors.WithMessagef(ErrParamInvalid, "project %s has no item type %q", project.ID, params.ItemType)
		}
		seq, err := s.projectRepo.NextItemSeq(ctx, project.ID)
		if err != nil {
			return err
		}
		item, err := s.itemRepo.CreateItem(ctx, &Item{
			ProjectID:     project.ID,
			Seq:           seq,
			Title:         params.Title,
			Description:   params.Description,
			ItemType:      params.ItemType,
			State:         ItemStateCreated,
			ResponsibleID: params.CreatorID,
			CreatorID:     params.CreatorID,
		})
		if err != nil {
			return err
		}
		ret = item
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "CreateItem failed, projectID: %s", params.ProjectID)
	}
	return ret, nil
}

// MoveItem 校验并提交一次迁移, 节点/状态/负责人/引用计数/历史在同一个事务中修改
// 版本不一致返回 ErrConcurrentModification, 不会自动重试
func (s *ItemServiceImpl) MoveItem(ctx context.Context, params *MoveItemParams) (*Item, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "MoveItem failed, params: %v, err: %v", params, err)
	}
	var event *TransitionEvent
	err := s.itemRepo.Transaction(ctx, func(ctx context.Context) error {
		item, err := s.itemRepo.FindItem(ctx, params.ItemID)
		if err != nil {
			return err
		}
		if item.Version != params.ExpectedVersion {
			return errors.WithMessagef(ErrConcurrentModification, "itemID: %s, expected version %d, stored %d", item.ID, params.ExpectedVersion, item.Version)
		}
		event, err = s.commitMove(ctx, item, params.TargetNodeID, params.ResponsibleID)
		return err
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "MoveItem failed, itemID: %s", params.ItemID)
	}
	s.hooks.fire(ctx, event)
	return event.Item, nil
}

// commitMove 调用方负责事务和版本检查
func (s *ItemServiceImpl) commitMove(ctx context.Context, item *Item, targetNodeID string, candidateID string) (*TransitionEvent, error) {
	target, decision, err := s.validator.resolve(ctx, item, targetNodeID, candidateID)
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	event := &TransitionEvent{
		FromNodeID:            item.CurrentNodeID,
		ToNode:                target,
		PreviousResponsibleID: item.ResponsibleID,
		OccurredAt:            now,
	}
	expectedVersion := item.Version
	item.CurrentNodeID = target.ID
	item.ResponsibleID = decision.ResponsibleID
	item.State = ItemStateOpen
	if target.IsFinal {
		item.State = ItemStateClosed
	}
	saved, err := s.itemRepo.SaveItem(ctx, item, expectedVersion)
	if err != nil {
		return nil, err
	}
	if event.FromNodeID != target.ID {
		if err := s.workflowRepo.AdjustNodeReferences(ctx, event.FromNodeID, -1); err != nil {
			return nil, err
		}
		if err := s.workflowRepo.AdjustNodeReferences(ctx, target.ID, 1); err != nil {
			return nil, err
		}
	}
	if err := s.itemRepo.CloseHistory(ctx, item.ID, now); err != nil {
		return nil, err
	}
	if err := s.itemRepo.AppendHistory(ctx, &ItemNodeHistory{
		ItemID:        item.ID,
		NodeID:        target.ID,
		NodeTitle:     target.Title,
		ResponsibleID: item.ResponsibleID,
		EnteredAt:     now,
	}); err != nil {
		return nil, err
	}
	event.Item = saved
	return event, nil
}

// TakeItem 用户把当前节点上的item拿过来自己负责, 需要被当前节点授权
func (s *ItemServiceImpl) TakeItem(ctx context.Context, params *TakeItemParams) (*Item, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "TakeItem failed, params: %v, err: %v", params, err)
	}
	var ret *Item
	err := s.itemRepo.Transaction(ctx, func(ctx context.Context) error {
		item, err := s.itemRepo.FindItem(ctx, params.ItemID)
		if err != nil {
			return err
		}
		if item.State != ItemStateOpen || !item.HasCurrentNode() {
			return errors.WithMessagef(ErrInvalidTransition, "item %s in state %s can not be taken", item.ID, item.State)
		}
		description, err := loadWorkflowDescription(ctx, s.workflowRepo, item.ProjectID)
		if err != nil {
			return err
		}
		node, ok := description.FindNode(item.CurrentNodeID)
		if !ok {
			return errors.WithMessagef(ErrNodeNotFound, "nodeID: %s", item.CurrentNodeID)
		}
		if err := s.validator.checkAuthorized(ctx, node, params.UserID); err != nil {
			return err
		}
		item.ResponsibleID = params.UserID
		saved, err := s.itemRepo.SaveItem(ctx, item, params.ExpectedVersion)
		if err != nil {
			return err
		}
		now := nowMillis()
		if err := s.itemRepo.CloseHistory(ctx, item.ID, now); err != nil {
			return err
		}
		if err := s.itemRepo.AppendHistory(ctx, &ItemNodeHistory{
			ItemID:        item.ID,
			NodeID:        node.ID,
			NodeTitle:     node.Title,
			ResponsibleID: params.UserID,
			EnteredAt:     now,
		}); err != nil {
			return err
		}
		ret = saved
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "TakeItem failed, itemID: %s", params.ItemID)
	}
	return ret, nil
}

// BlockItem 阻塞后不接受任何迁移, 已关闭的item不能阻塞
func (s *ItemServiceImpl) BlockItem(ctx context.Context, params *ChangeItemStateParams) (*Item, error) {
	return s.changeState(ctx, params, []ItemState{ItemStateCreated, ItemStateOpen}, func(item *Item) {
		item.State = ItemStateBlocked
	})
}

// UnblockItem 有当前节点时回到OPEN, 否则回到CREATED
func (s *ItemServiceImpl) UnblockItem(ctx context.Context, params *ChangeItemStateParams) (*Item, error) {
	return s.changeState(ctx, params, []ItemState{ItemStateBlocked}, func(item *Item) {
		item.State = ItemStateCreated
		if item.HasCurrentNode() {
			item.State = ItemStateOpen
		}
	})
}

func (s *ItemServiceImpl) changeState(ctx context.Context, params *ChangeItemStateParams, allowed []ItemState, mutate func(item *Item)) (*Item, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "changeState failed, params: %v, err: %v", params, err)
	}
	item, err := s.itemRepo.FindItem(ctx, params.ItemID)
	if err != nil {
		return nil, errors.WithMessagef(err, "changeState failed, itemID: %s", params.ItemID)
	}
	if !slices.Contains(allowed, item.State) {
		return nil, errors.WithMessagef(ErrInvalidTransition, "item %s in state %s", item.ID, item.State)
	}
	mutate(item)
	saved, err := s.itemRepo.SaveItem(ctx, item, params.ExpectedVersion)
	if err != nil {
		return nil, errors.WithMessagef(err, "changeState failed, itemID: %s", params.ItemID)
	}
	return saved, nil
}

func (s *ItemServiceImpl) ItemHistory(ctx context.Context, itemID string) ([]*ItemNodeHistory, error) {
	if _, err := s.itemRepo.FindItem(ctx, itemID); err != nil {
		return nil, errors.WithMessagef(err, "ItemHistory failed, itemID: %s", itemID)
	}
	return s.itemRepo.QueryHistory(ctx, itemID)
}
