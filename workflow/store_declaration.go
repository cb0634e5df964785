package workflow

import (
	"context"
)

type WorkflowRepo interface {
	// FindWorkflowDescription projectID为空时返回系统默认的描述, 不存在返回 ErrWorkflowDescriptionNotFound
	FindWorkflowDescription(ctx context.Context, projectID string) (*WorkflowDescription, error)
	CreateWorkflowDescription(ctx context.Context, description *WorkflowDescription) (*WorkflowDescription, error)
	UpdateInitialNode(ctx context.Context, workflowDescriptionID string, nodeID string) error
	SaveNode(ctx context.Context, node *WorkflowNodeDescription) (*WorkflowNodeDescription, error)
	SaveLink(ctx context.Context, link *WorkflowLinkDescription) (*WorkflowLinkDescription, error)
	// DeleteNode 引用计数>0 时返回 ErrNodeInUse, 不做任何删除
	DeleteNode(ctx context.Context, nodeID string) error
	DeleteLink(ctx context.Context, linkID string) error
	// AdjustNodeReferences 节点引用计数加减delta
	AdjustNodeReferences(ctx context.Context, nodeID string, delta int64) error
	// DeleteAuthorizationsOf 从所有节点的授权中删除这个用户/用户组, 返回删除的条数
	DeleteAuthorizationsOf(ctx context.Context, principalID string) (int64, error)
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ItemRepo interface {
	FindItem(ctx context.Context, itemID string) (*Item, error)
	FindItemBySeq(ctx context.Context, projectID string, seq int64) (*Item, error)
	QueryItems(ctx context.Context, param *QueryItemParams) ([]*Item, error)
	CountItems(ctx context.Context, param *QueryItemParams) (int64, error)
	CreateItem(ctx context.Context, item *Item) (*Item, error)
	// SaveItem 版本不等于expectedVersion时返回 ErrConcurrentModification, 成功后版本+1
	SaveItem(ctx context.Context, item *Item, expectedVersion int64) (*Item, error)
	AppendHistory(ctx context.Context, history *ItemNodeHistory) error
	CloseHistory(ctx context.Context, itemID string, leftAt int64) error
	QueryHistory(ctx context.Context, itemID string) ([]*ItemNodeHistory, error)
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProjectRepo interface {
	FindProject(ctx context.Context, projectID string) (*Project, error)
	// SaveProject expectedVersion为0表示新建
	SaveProject(ctx context.Context, project *Project, expectedVersion int64) (*Project, error)
	// NextItemSeq 分配项目内的下一个item序号
	NextItemSeq(ctx context.Context, projectID string) (int64, error)
	// QueryVisibleProjectIDs 公开项目, 以及memberIDs中任意一个是成员的项目
	QueryVisibleProjectIDs(ctx context.Context, memberIDs []string) ([]string, error)
}

type PrincipalRepo interface {
	FindPrincipal(ctx context.Context, principalID string) (*Principal, error)
	// GroupIDsOfUser 用户所属的用户组, 用户组自身返回空
	GroupIDsOfUser(ctx context.Context, userID string) ([]string, error)
	SavePrincipal(ctx context.Context, principal *Principal) (*Principal, error)
	AddGroupMember(ctx context.Context, groupID string, userID string) error
}

// QueryItemParams item查询参数, 排序和分页交给存储层
type QueryItemParams struct {
	Criteria   *ItemCriteria `json:"criteria"`
	OrderBy    string        `json:"order_by" validate:"omitempty,oneof=seq created_at updated_at title"`
	OrderByAsc *bool         `json:"order_by_asc"`
	Page       *Pager        `json:"page"`
}

type Pager struct {
	IsNoLimit *bool `json:"is_no_limit"`
	Page      int64 `json:"page"`
	Size      int64 `json:"size"`
}

// ItemCriteria 存储层执行的过滤条件, 语义与过滤器的内存谓词一致
//   - 集合为空: 该维度不限制(取反也不限制)
//   - 集合非空: IN, 取反时 NOT IN
//   - Text 不区分大小写匹配 title/description
//   - VisibleProjectIDs 非nil时总是生效且不可取反(会话可见的项目范围)
type ItemCriteria struct {
	ProjectIDs        []string `json:"project_ids"`
	NegateProject     bool     `json:"negate_project"`
	States            []string `json:"states"`
	NegateState       bool     `json:"negate_state"`
	ResponsibleIDs    []string `json:"responsible_ids"`
	NegateResponsible bool     `json:"negate_responsible"`
	ItemTypes         []string `json:"item_types"`
	NegateItemType    bool     `json:"negate_item_type"`
	NodeIDs           []string `json:"node_ids"`
	NegateNode        bool     `json:"negate_node"`
	Text              string   `json:"text"`
	ItemSeq           int64    `json:"item_seq"`
	VisibleProjectIDs []string `json:"visible_project_ids"`
}
