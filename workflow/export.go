package workflow

import "context"

type WorkflowGraphService interface {
	/**
	 * @description: 查询项目的工作流描述, 项目没有自己的描述时返回系统默认描述
	 * @param projectID string 为空表示系统默认描述
	 * @return *WorkflowDescription, error 都不存在时返回 ErrWorkflowDescriptionNotFound
	 */
	FindWorkflowDescription(ctx context.Context, projectID string) (*WorkflowDescription, error)
	/**
	 * @description: 添加节点, 同一个描述中节点标题完全相同时返回 ErrDuplicateTitle
	 *				 项目还没有自己的描述时先复制一份默认描述
	 */
	AddNode(ctx context.Context, params *AddNodeParams) (*WorkflowNodeDescription, error)
	EditNode(ctx context.Context, params *EditNodeParams) (*WorkflowNodeDescription, error)
	/**
	 * @description: 删除节点, 引用计数>0时返回 ErrNodeInUse 并且不做任何修改
	 *				 指向这个节点的link不会被删除, 但是不再可用
	 */
	DeleteNode(ctx context.Context, projectID string, nodeID string) error
	/**
	 * @description: 添加link, link之间标题完全相同时返回 ErrDuplicateTitle
	 */
	AddLink(ctx context.Context, params *AddLinkParams) (*WorkflowLinkDescription, error)
	DeleteLink(ctx context.Context, projectID string, linkID string) error
	SetInitialNode(ctx context.Context, projectID string, nodeID string) error
	RemoveItemType(ctx context.Context, projectID string, itemType string) error
	RemovePrincipal(ctx context.Context, principalID string) error
	HasPath(ctx context.Context, params *HasPathParams) (bool, error)
	EnsureProjectWorkflow(ctx context.Context, projectID string) (*WorkflowDescription, error)
	/**
	 * @description: 按配置文件创建工作流描述, 项目已经有描述时失败
	 */
	ImportWorkflowConfig(ctx context.Context, projectID string, config *WorkflowConfig) (*WorkflowDescription, error)
}

type ItemService interface {
	FindItem(ctx context.Context, itemID string) (*Item, error)
	FindItemBySeq(ctx context.Context, projectID string, seq int64) (*Item, error)
	QueryItems(ctx context.Context, params *QueryItemParams) ([]*Item, error)
	CountItems(ctx context.Context, params *QueryItemParams) (int64, error)
	CreateItem(ctx context.Context, params *CreateItemParams) (*Item, error)
	/**
	 * @description: item可以去的下一个节点, 空结果表示没有可以继续的迁移
	 */
	FindNextNodes(ctx context.Context, item *Item) ([]*WorkflowNodeDescription, error)
	/**
	 * @description: 只校验不修改, 返回 nil / ErrInvalidTransition / ErrUnauthorizedResponsible
	 */
	ValidateTransition(ctx context.Context, item *Item, targetNodeID string, responsibleID string) error
	/**
	 * @description: 迁移item, 负责人由项目的分配策略决定
	 *				 params.ExpectedVersion 为调用方读到的版本, 版本已经前进时返回 ErrConcurrentModification
	 */
	MoveItem(ctx context.Context, params *MoveItemParams) (*Item, error)
	/**
	 * @description: 批量迁移, 单个item的失败收集到结果中, 只有基础设施错误会返回error
	 *				 params.Seqs 为项目内的序号, 不是item的全局id
	 */
	MoveMany(ctx context.Context, params *MoveManyParams) (*MoveManyResult, error)
	TakeItem(ctx context.Context, params *TakeItemParams) (*Item, error)
	BlockItem(ctx context.Context, params *ChangeItemStateParams) (*Item, error)
	UnblockItem(ctx context.Context, params *ChangeItemStateParams) (*Item, error)
	ItemHistory(ctx context.Context, itemID string) ([]*ItemNodeHistory, error)
	/**
	 * @description: 注册迁移提交后的回调, hook的错误只记录日志
	 */
	RegisterTransitionHook(hook TransitionHook)
}

type ProjectService interface {
	FindProject(ctx context.Context, projectID string) (*Project, error)
	/**
	 * @description: 保存项目, 未知的分配策略返回 ErrUnknownAssignmentStrategy
	 *				 params.ExpectedVersion 为0表示新建, 新建时同时复制默认工作流描述
	 */
	SaveProject(ctx context.Context, params *SaveProjectParams) (*Project, error)
	RemoveItemType(ctx context.Context, projectID string, itemType string, expectedVersion int64) (*Project, error)
	SavePrincipal(ctx context.Context, params *SavePrincipalParams) (*Principal, error)
	AddGroupMember(ctx context.Context, groupID string, userID string) error
	FindPrincipal(ctx context.Context, principalID string) (*Principal, error)
	GroupIDsOfUser(ctx context.Context, userID string) ([]string, error)
	VisibleProjectIDs(ctx context.Context, userID string) ([]string, error)
}

func NewWorkflowGraphService(repo WorkflowRepo, lock WorkflowLock) WorkflowGraphService {
	return &WorkflowGraphServiceImpl{repo: repo, lock: lock}
}

func NewItemService(itemRepo ItemRepo, workflowRepo WorkflowRepo, projectRepo ProjectRepo, principalRepo PrincipalRepo) ItemService {
	return &ItemServiceImpl{
		itemRepo:     itemRepo,
		workflowRepo: workflowRepo,
		projectRepo:  projectRepo,
		validator:    NewTransitionValidator(workflowRepo, projectRepo, principalRepo),
		hooks:        &transitionHooks{},
	}
}

func NewProjectService(projectRepo ProjectRepo, principalRepo PrincipalRepo, workflowRepo WorkflowRepo, lock WorkflowLock) ProjectService {
	return &ProjectServiceImpl{
		projectRepo:   projectRepo,
		principalRepo: principalRepo,
		graph:         &WorkflowGraphServiceImpl{repo: workflowRepo, lock: lock},
	}
}
