package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type WorkflowDescriptionPo struct {
	ID            string `gorm:"column:id;primaryKey"`
	ProjectID     string `gorm:"column:project_id;uniqueIndex"` // 空字符串是系统默认描述
	Title         string `gorm:"column:title"`
	InitialNodeID string `gorm:"column:initial_node_id"`
	Version       int64  `gorm:"column:version"`
	CreatedAt     int64  `gorm:"column:created_at"`
	UpdatedAt     int64  `gorm:"column:updated_at"`
}

func (WorkflowDescriptionPo) TableName() string {
	return "workflow_description"
}

type WorkflowNodePo struct {
	ID                    string `gorm:"column:id;primaryKey"`
	WorkflowDescriptionID string `gorm:"column:workflow_description_id;uniqueIndex:idx_node_title"`
	Title                 string `gorm:"column:title;uniqueIndex:idx_node_title"`
	IsFinal               bool   `gorm:"column:is_final"`
	ReferenceCount        int64  `gorm:"column:reference_count"`
	Version               int64  `gorm:"column:version"`
	CreatedAt             int64  `gorm:"column:created_at"`
	UpdatedAt             int64  `gorm:"column:updated_at"`
}

func (WorkflowNodePo) TableName() string {
	return "workflow_node"
}

type WorkflowNodeAuthorizationPo struct {
	NodeID      string `gorm:"column:node_id;primaryKey"`
	PrincipalID string `gorm:"column:principal_id;primaryKey"`
}

func (WorkflowNodeAuthorizationPo) TableName() string {
	return "workflow_node_authorization"
}

type WorkflowLinkPo struct {
	ID                    string `gorm:"column:id;primaryKey"`
	WorkflowDescriptionID string `gorm:"column:workflow_description_id;uniqueIndex:idx_link_title"`
	Title                 string `gorm:"column:title;uniqueIndex:idx_link_title"`
	InitialNodeID         string `gorm:"column:initial_node_id;index"`
	FinalNodeID           string `gorm:"column:final_node_id"`
	CreatedAt             int64  `gorm:"column:created_at"`
	UpdatedAt             int64  `gorm:"column:updated_at"`
}

func (WorkflowLinkPo) TableName() string {
	return "workflow_link"
}

type WorkflowLinkItemTypePo struct {
	LinkID   string `gorm:"column:link_id;primaryKey"`
	ItemType string `gorm:"column:item_type;primaryKey"`
}

func (WorkflowLinkItemTypePo) TableName() string {
	return "workflow_link_item_type"
}

// AllModels 需要迁移的表, 调用方 db.AutoMigrate(workflow.AllModels()...)
func AllModels() []any {
	return []any{
		&WorkflowDescriptionPo{},
		&WorkflowNodePo{},
		&WorkflowNodeAuthorizationPo{},
		&WorkflowLinkPo{},
		&WorkflowLinkItemTypePo{},
		&ItemPo{},
		&ItemNodeHistoryPo{},
		&ProjectPo{},
		&ProjectItemTypePo{},
		&ProjectMemberPo{},
		&PrincipalPo{},
		&GroupMemberPo{},
	}
}

// gormRepo 所有存储契约的gorm实现, 共用同一个事务上下文
type gormRepo struct {
	db *gorm.DB
}

func NewWorkflowRepo(db *gorm.DB) WorkflowRepo {
	return &gormRepo{db: db}
}

func NewItemRepo(db *gorm.DB) ItemRepo {
	return &gormRepo{db: db}
}

func NewProjectRepo(db *gorm.DB) ProjectRepo {
	return &gormRepo{db: db}
}

func NewPrincipalRepo(db *gorm.DB) PrincipalRepo {
	return &gormRepo{db: db}
}

func newID() string {
	return uuid.NewString()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func (r *gormRepo) FindWorkflowDescription(ctx context.Context, projectID string) (*WorkflowDescription, error) {
	db := r.GetDBWithContext(ctx)
	po := &WorkflowDescriptionPo{}
	if err := db.Where("project_id = ?", projectID).First(po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithMessagef(ErrWorkflowDescriptionNotFound, "projectID: %q", projectID)
		}
		return nil, errors.WithMessage(err, "FindWorkflowDescription failed")
	}
	ret := &WorkflowDescription{
		ID:            po.ID,
		ProjectID:     po.ProjectID,
		Title:         po.Title,
		InitialNodeID: po.InitialNodeID,
		Version:       po.Version,
		Nodes:         make([]*WorkflowNodeDescription, 0),
		Links:         make([]*WorkflowLinkDescription, 0),
	}

	nodePos := make([]*WorkflowNodePo, 0)
	if err := db.Where("workflow_description_id = ?", po.ID).Order("created_at asc, id asc").Find(&nodePos).Error; err != nil {
		return nil, errors.WithMessage(err, "query workflow nodes failed")
	}
	nodeIDs := make([]string, 0, len(nodePos))
	nodeMap := make(map[string]*WorkflowNodeDescription, len(nodePos))
	for _, nodePo := range nodePos {
		node := nodeFromPo(nodePo)
		ret.Nodes = append(ret.Nodes, node)
		nodeMap[node.ID] = node
		nodeIDs = append(nodeIDs, node.ID)
	}
	if len(nodeIDs) > 0 {
		authPos := make([]*WorkflowNodeAuthorizationPo, 0)
		if err := db.Where("node_id IN ?", nodeIDs).Order("principal_id asc").Find(&authPos).Error; err != nil {
			return nil, errors.WithMessage(err, "query workflow node authorizations failed")
		}
		for _, authPo := range authPos {
			if node, ok := nodeMap[authPo.NodeID]; ok {
				node.AuthorizedIDs = append(node.AuthorizedIDs, authPo.PrincipalID)
			}
		}
	}

	linkPos := make([]*WorkflowLinkPo, 0)
	if err := db.Where("workflow_description_id = ?", po.ID).Order("created_at asc, id asc").Find(&linkPos).Error; err != nil {
		return nil, errors.WithMessage(err, "query workflow links failed")
	}
	linkIDs := make([]string, 0, len(linkPos))
	linkMap := make(map[string]*WorkflowLinkDescription, len(linkPos))
	for _, linkPo := range linkPos {
		link := &WorkflowLinkDescription{
			ID:                    linkPo.ID,
			WorkflowDescriptionID: linkPo.WorkflowDescriptionID,
			Title:                 linkPo.Title,
			InitialNodeID:         linkPo.InitialNodeID,
			FinalNodeID:           linkPo.FinalNodeID,
			ItemTypes:             make([]string, 0),
		}
		ret.Links = append(ret.Links, link)
		linkMap[link.ID] = link
		linkIDs = append(linkIDs, link.ID)
	}
	if len(linkIDs) > 0 {
		typePos := make([]*WorkflowLinkItemTypePo, 0)
		if err := db.Where("link_id IN ?", linkIDs).Order("item_type asc").Find(&typePos).Error; err != nil {
			return nil, errors.WithMessage(err, "query workflow link item types failed")
		}
		for _, typePo := range typePos {
			if link, ok := linkMap[typePo.LinkID]; ok {
				link.ItemTypes = append(link.ItemTypes, typePo.ItemType)
			}
		}
	}
	return ret, nil
}

func nodeFromPo(po *WorkflowNodePo) *WorkflowNodeDescription {
	return &WorkflowNodeDescription{
		ID:                    po.ID,
		WorkflowDescriptionID: po.WorkflowDescriptionID,
		Title:                 po.Title,
		IsFinal:               po.IsFinal,
		ReferenceCount:        po.ReferenceCount,
		Version:               po.Version,
		AuthorizedIDs:         make([]string, 0),
	}
}

func (r *gormRepo) CreateWorkflowDescription(ctx context.Context, description *WorkflowDescription) (*WorkflowDescription, error) {
	if description == nil {
		return nil, fmt.Errorf("nil WorkflowDescription")
	}
	if description.ID == "" {
		description.ID = newID()
	}
	description.Version = 1
	po := &WorkflowDescriptionPo{
		ID:            description.ID,
		ProjectID:     description.ProjectID,
		Title:         description.Title,
		InitialNodeID: description.InitialNodeID,
		Version:       description.Version,
		CreatedAt:     nowMillis(),
		UpdatedAt:     nowMillis(),
	}
	if err := r.GetDBWithContext(ctx).Create(po).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateWorkflowDescription failed")
	}
	return description, nil
}

func (r *gormRepo) UpdateInitialNode(ctx context.Context, workflowDescriptionID string, nodeID string) error {
	result := r.GetDBWithContext(ctx).Model(&WorkflowDescriptionPo{}).
		Where("id = ?", workflowDescriptionID).
		Updates(map[string]any{
			"initial_node_id": nodeID,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      nowMillis(),
		})
	if result.Error != nil {
		return errors.WithMessage(result.Error, "UpdateInitialNode failed")
	}
	if result.RowsAffected == 0 {
		return errors.WithMessagef(ErrWorkflowDescriptionNotFound, "id: %s", workflowDescriptionID)
	}
	return nil
}

func (r *gormRepo) SaveNode(ctx context.Context, node *WorkflowNodeDescription) (*WorkflowNodeDescription, error) {
	if node == nil {
		return nil, fmt.Errorf("nil WorkflowNodeDescription")
	}
	err := r.Transaction(ctx, func(ctx context.Context) error {
		db := r.GetDBWithContext(ctx)
		if node.ID == "" {
			node.ID = newID()
			node.Version = 1
			po := &WorkflowNodePo{
				ID:                    node.ID,
				WorkflowDescriptionID: node.WorkflowDescriptionID,
				Title:                 node.Title,
				IsFinal:               node.IsFinal,
				ReferenceCount:        node.ReferenceCount,
				Version:               node.Version,
				CreatedAt:             nowMillis(),
				UpdatedAt:             nowMillis(),
			}
			if err := db.Create(po).Error; err != nil {
				return errors.WithMessage(err, "create workflow node failed")
			}
		} else {
			result := db.Model(&WorkflowNodePo{}).Where("id = ?", node.ID).Updates(map[string]any{
				"title":      node.Title,
				"is_final":   node.IsFinal,
				"version":    gorm.Expr("version + 1"),
				"updated_at": nowMillis(),
			})
			if result.Error != nil {
				return errors.WithMessage(result.Error, "update workflow node failed")
			}
			if result.RowsAffected == 0 {
				return errors.WithMessagef(ErrNodeNotFound, "nodeID: %s", node.ID)
			}
			node.Version++
			if err := db.Where("node_id = ?", node.ID).Delete(&WorkflowNodeAuthorizationPo{}).Error; err != nil {
				return errors.WithMessage(err, "clear workflow node authorizations failed")
			}
		}
		authorizedIDs := UniqueStr(node.AuthorizedIDs)
		if len(authorizedIDs) == 0 {
			return nil
		}
		authPos := make([]*WorkflowNodeAuthorizationPo, 0, len(authorizedIDs))
		for _, principalID := range authorizedIDs {
			authPos = append(authPos, &WorkflowNodeAuthorizationPo{NodeID: node.ID, PrincipalID: principalID})
		}
		if err := db.Create(&authPos).Error; err != nil {
			return errors.WithMessage(err, "create workflow node authorizations failed")
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "SaveNode failed, title: %s", node.Title)
	}
	return node, nil
}

func (r *gormRepo) SaveLink(ctx context.Context, link *WorkflowLinkDescription) (*WorkflowLinkDescription, error) {
	if link == nil {
		return nil, fmt.Errorf("nil WorkflowLinkDescription")
	}
	err := r.Transaction(ctx, func(ctx context.Context) error {
		db := r.GetDBWithContext(ctx)
		if link.ID == "" {
			link.ID = newID()
			po := &WorkflowLinkPo{
				ID:                    link.ID,
				WorkflowDescriptionID: link.WorkflowDescriptionID,
				Title:                 link.Title,
				InitialNodeID:         link.InitialNodeID,
				FinalNodeID:           link.FinalNodeID,
				CreatedAt:             nowMillis(),
				UpdatedAt:             nowMillis(),
			}
			if err := db.Create(po).Error; err != nil {
				return errors.WithMessage(err, "create workflow link failed")
			}
		} else {
			result := db.Model(&WorkflowLinkPo{}).Where("id = ?", link.ID).Updates(map[string]any{
				"title":           link.Title,
				"initial_node_id": link.InitialNodeID,
				"final_node_id":   link.FinalNodeID,
				"updated_at":      nowMillis(),
			})
			if result.Error != nil {
				return errors.WithMessage(result.Error, "update workflow link failed")
			}
			if result.RowsAffected == 0 {
				return errors.WithMessagef(ErrLinkNotFound, "linkID: %s", link.ID)
			}
			if err := db.Where("link_id = ?", link.ID).Delete(&WorkflowLinkItemTypePo{}).Error; err != nil {
				return errors.WithMessage(err, "clear workflow link item types failed")
			}
		}
		itemTypes := UniqueStr(link.ItemTypes)
		if len(itemTypes) == 0 {
			return nil
		}
		typePos := make([]*WorkflowLinkItemTypePo, 0, len(itemTypes))
		for _, itemType := range itemTypes {
			typePos = append(typePos, &WorkflowLinkItemTypePo{LinkID: link.ID, ItemType: itemType})
		}
		if err := db.Create(&typePos).Error; err != nil {
			return errors.WithMessage(err, "create workflow link item types failed")
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "SaveLink failed, title: %s", link.Title)
	}
	return link, nil
}

func (r *gormRepo) DeleteNode(ctx context.Context, nodeID string) error {
	return r.Transaction(ctx, func(ctx context.Context) error {
		db := r.GetDBWithContext(ctx)
		// 只删除引用计数为0的节点, 指向它的link保留(悬空后不可用)
		result := db.Where("id = ? AND reference_count <= 0", nodeID).Delete(&WorkflowNodePo{})
		if result.Error != nil {
			return errors.WithMessage(result.Error, "DeleteNode failed")
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := db.Model(&WorkflowNodePo{}).Where("id = ?", nodeID).Count(&count).Error; err != nil {
				return errors.WithMessage(err, "DeleteNode count failed")
			}
			if count == 0 {
				return errors.WithMessagef(ErrNodeNotFound, "nodeID: %s", nodeID)
			}
			return errors.WithMessagef(ErrNodeInUse, "nodeID: %s", nodeID)
		}
		if err := db.Where("node_id = ?", nodeID).Delete(&WorkflowNodeAuthorizationPo{}).Error; err != nil {
			return errors.WithMessage(err, "delete workflow node authorizations failed")
		}
		return nil
	})
}

func (r *gormRepo) DeleteLink(ctx context.Context, linkID string) error {
	return r.Transaction(ctx, func(ctx context.Context) error {
		db := r.GetDBWithContext(ctx)
		result := db.Where("id = ?", linkID).Delete(&WorkflowLinkPo{})
		if result.Error != nil {
			return errors.WithMessage(result.Error, "DeleteLink failed")
		}
		if result.RowsAffected == 0 {
			return errors.WithMessagef(ErrLinkNotFound, "linkID: %s", linkID)
		}
		if err := db.Where("link_id = ?", linkID).Delete(&WorkflowLinkItemTypePo{}).Error; err != nil {
			return errors.WithMessage(err, "delete workflow link item types failed")
		}
		return nil
	})
}

func (r *gormRepo) AdjustNodeReferences(ctx context.Context, nodeID string, delta int64) error {
	if nodeID == "" || delta == 0 {
		return nil
	}
	result := r.GetDBWithContext(ctx).Model(&WorkflowNodePo{}).
		Where("id = ?", nodeID).
		Updates(map[string]any{
			"reference_count": gorm.Expr("reference_count + ?", delta),
			"updated_at":      nowMillis(),
		})
	if result.Error != nil {
		return errors.WithMessage(result.Error, "AdjustNodeReferences failed")
	}
	if result.RowsAffected == 0 {
		return errors.WithMessagef(ErrNodeNotFound, "nodeID: %s", nodeID)
	}
	return nil
}

func (r *gormRepo) DeleteAuthorizationsOf(ctx context.Context, principalID string) (int64, error) {
	result := r.GetDBWithContext(ctx).Where("principal_id = ?", principalID).Delete(&WorkflowNodeAuthorizationPo{})
	if result.Error != nil {
		return 0, errors.WithMessagef(result.Error, "DeleteAuthorizationsOf failed, principalID: %s", principalID)
	}
	return result.RowsAffected, nil
}

type contextKey string

const (
	transactionContextKey contextKey = "transaction"
)

func (r *gormRepo) GetDBWithContext(ctx context.Context) *gorm.DB {
	return DBFromContext(ctx, r.db)
}

func (r *gormRepo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return Transaction(ctx, r.db, fn)
}

// DBFromContext ctx中有事务时返回事务, 其他包的gorm存储也用它来共用同一个事务
func DBFromContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	tx := ctx.Value(transactionContextKey)
	if tx == nil {
		// 没有事务，直接返回db即可
		return db.WithContext(ctx)
	}
	return tx.(*gorm.DB)
}

// Transaction 已经在事务中时直接复用外层事务
func Transaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(transactionContextKey) != nil {
		return fn(ctx)
	}
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.WithMessage(tx.Error, "begin transaction failed")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit().Error
		}
	}()
	err = fn(context.WithValue(ctx, transactionContextKey, tx))
	return err
}
