package workflow

import "slices"

// Principal 用户或者用户组,都可以成为item的负责人
type Principal struct {
	ID      string
	Name    string
	Kind    PrincipalKind
	Version int64
}

func (p *Principal) IsGroup() bool {
	return p != nil && p.Kind == PrincipalKindGroup
}

// Project 项目entity, 只包含工作流和过滤需要的字段
type Project struct {
	ID                 string
	Name               string
	IsPublic           bool
	LeaderID           string
	AssignmentStrategy AssignmentStrategy
	ItemTypes          []string
	MemberIDs          []string // 成员,可以是用户也可以是用户组
	NextItemSeq        int64
	Version            int64
}

func (p *Project) HasItemType(itemType string) bool {
	return slices.Contains(p.ItemTypes, itemType)
}

// WorkflowNodeDescription 工作流节点描述,item可以停留的一个状态
type WorkflowNodeDescription struct {
	ID                    string
	WorkflowDescriptionID string
	Title                 string
	IsFinal               bool
	AuthorizedIDs         []string // 授权的用户和用户组
	ReferenceCount        int64    // 当前停留在该节点的item数量, >0 时不能删除
	Version               int64
}

func (n *WorkflowNodeDescription) IsAuthorized(principalID string) bool {
	return slices.Contains(n.AuthorizedIDs, principalID)
}

// WorkflowLinkDescription 有向边, 按item类型限定可用范围
// InitialNodeID 为空表示从开始位置出发(item还没有当前节点)
type WorkflowLinkDescription struct {
	ID                    string
	WorkflowDescriptionID string
	Title                 string
	InitialNodeID         string
	FinalNodeID           string
	ItemTypes             []string
}

func (l *WorkflowLinkDescription) IsStartLink() bool {
	return l.InitialNodeID == ""
}

func (l *WorkflowLinkDescription) AppliesTo(itemType string) bool {
	return slices.Contains(l.ItemTypes, itemType)
}

// WorkflowDescription 一个项目一份,另外有一份系统默认的(ProjectID为空)
type WorkflowDescription struct {
	ID            string
	ProjectID     string
	Title         string
	InitialNodeID string // 可选, CREATED状态的item可以直接进入的节点
	Nodes         []*WorkflowNodeDescription
	Links         []*WorkflowLinkDescription
	Version       int64
}

func (d *WorkflowDescription) IsDefault() bool {
	return d.ProjectID == defaultWorkflowProjectID
}

func (d *WorkflowDescription) FindNode(nodeID string) (*WorkflowNodeDescription, bool) {
	for _, node := range d.Nodes {
		if node.ID == nodeID {
			return node, true
		}
	}
	return nil, false
}

func (d *WorkflowDescription) FindNodeByTitle(title string) (*WorkflowNodeDescription, bool) {
	for _, node := range d.Nodes {
		if node.Title == title {
			return node, true
		}
	}
	return nil, false
}

func (d *WorkflowDescription) FindLink(linkID string) (*WorkflowLinkDescription, bool) {
	for _, link := range d.Links {
		if link.ID == linkID {
			return link, true
		}
	}
	return nil, false
}

func (d *WorkflowDescription) hasLinkTitle(title string) bool {
	for _, link := range d.Links {
		if link.Title == title {
			return true
		}
	}
	return false
}

// Item 外部entity, 只能通过校验过的迁移修改
type Item struct {
	ID            string
	ProjectID     string
	Seq           int64 // 项目内的序号,批量迁移按这个序号定位
	Title         string
	Description   string
	ItemType      string
	State         ItemState
	CurrentNodeID string // 为空表示还在CREATED
	ResponsibleID string
	CreatorID     string
	Version       int64
	CreatedAt     int64
	UpdatedAt     int64
}

func (i *Item) HasCurrentNode() bool {
	return i.CurrentNodeID != ""
}

// ItemNodeHistory item在某个节点上的停留记录
type ItemNodeHistory struct {
	ID            int64
	ItemID        string
	NodeID        string
	NodeTitle     string
	ResponsibleID string
	EnteredAt     int64
	LeftAt        int64 // 0 表示还在这个节点上
}
