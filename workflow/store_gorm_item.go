package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ItemPo struct {
	ID                string `gorm:"column:id;primaryKey"`
	ProjectID         string `gorm:"column:project_id;uniqueIndex:idx_item_project_seq"`
	Seq               int64  `gorm:"column:seq;uniqueIndex:idx_item_project_seq"`
	Title             string `gorm:"column:title"`
	Description       string `gorm:"column:description"`
	// TitleFolded DescriptionFolded 经过 FoldText 的标题和描述, 文本过滤只查这两列
	TitleFolded       string `gorm:"column:title_folded"`
	DescriptionFolded string `gorm:"column:description_folded"`
	ItemType          string `gorm:"column:item_type;index"`
	State             string `gorm:"column:state;index"`
	CurrentNodeID     string `gorm:"column:current_node_id;index"`
	ResponsibleID     string `gorm:"column:responsible_id;index"`
	CreatorID         string `gorm:"column:creator_id"`
	Version           int64  `gorm:"column:version"`
	CreatedAt         int64  `gorm:"column:created_at"`
	UpdatedAt         int64  `gorm:"column:updated_at"`
}

func (ItemPo) TableName() string {
	return "item"
}

type ItemNodeHistoryPo struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ItemID        string `gorm:"column:item_id;index"`
	NodeID        string `gorm:"column:node_id"`
	NodeTitle     string `gorm:"column:node_title"`
	ResponsibleID string `gorm:"column:responsible_id"`
	EnteredAt     int64  `gorm:"column:entered_at"`
	LeftAt        int64  `gorm:"column:left_at"`
}

func (ItemNodeHistoryPo) TableName() string {
	return "item_node_history"
}

func itemFromPo(po *ItemPo) *Item {
	return &Item{
		ID:            po.ID,
		ProjectID:     po.ProjectID,
		Seq:           po.Seq,
		Title:         po.Title,
		Description:   po.Description,
		ItemType:      po.ItemType,
		State:         po.State,
		CurrentNodeID: po.CurrentNodeID,
		ResponsibleID: po.ResponsibleID,
		CreatorID:     po.CreatorID,
		Version:       po.Version,
		CreatedAt:     po.CreatedAt,
		UpdatedAt:     po.UpdatedAt,
	}
}

func (r *gormRepo) FindItem(ctx context.Context, itemID string) (*Item, error) {
	po := &ItemPo{}
	if err := r.GetDBWithContext(ctx).Where("id = ?", itemID).First(po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithMessagef(ErrItemNotFound, "itemID: %s", itemID)
		}
		return nil, errors.WithMessage(err, "FindItem failed")
	}
	return itemFromPo(po), nil
}

func (r *gormRepo) FindItemBySeq(ctx context.Context, projectID string, seq int64) (*Item, error) {
	po := &ItemPo{}
	if err := r.GetDBWithContext(ctx).Where("project_id = ? AND seq = ?", projectID, seq).First(po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithMessagef(ErrItemNotFound, "projectID: %s, seq: %d", projectID, seq)
		}
		return nil, errors.WithMessage(err, "FindItemBySeq failed")
	}
	return itemFromPo(po), nil
}

var itemOrderColumns = map[string]struct{}{
	"seq":        {},
	"created_at": {},
	"updated_at": {},
	"title":      {},
}

func (r *gormRepo) QueryItems(ctx context.Context, param *QueryItemParams) ([]*Item, error) {
	if param == nil {
		return nil, fmt.Errorf("nil QueryItemParams")
	}
	db := r.buildQueryItemsDB(ctx, param)
	orderBy := "seq"
	if _, ok := itemOrderColumns[param.OrderBy]; ok {
		orderBy = param.OrderBy
	}
	if param.OrderByAsc != nil && !*param.OrderByAsc {
		db = db.Order(orderBy + " desc").Order("id desc")
	} else {
		db = db.Order(orderBy + " asc").Order("id asc")
	}
	if param.Page == nil || param.Page.IsNoLimit == nil || !*param.Page.IsNoLimit {
		page, size := int64(1), int64(100)
		if param.Page != nil {
			if param.Page.Page > 0 {
				page = param.Page.Page
			}
			if param.Page.Size > 0 {
				size = param.Page.Size
			}
		}
		db = db.Offset(int((page - 1) * size)).Limit(int(size))
	}
	pos := make([]*ItemPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryItems failed")
	}
	ret := make([]*Item, 0, len(pos))
	for _, po := range pos {
		ret = append(ret, itemFromPo(po))
	}
	return ret, nil
}

func (r *gormRepo) CountItems(ctx context.Context, param *QueryItemParams) (int64, error) {
	if param == nil {
		return 0, fmt.Errorf("nil QueryItemParams")
	}
	var count int64
	if err := r.buildQueryItemsDB(ctx, param).Count(&count).Error; err != nil {
		return 0, errors.WithMessage(err, "CountItems failed")
	}
	return count, nil
}

func (r *gormRepo) buildQueryItemsDB(ctx context.Context, param *QueryItemParams) *gorm.DB {
	db := r.GetDBWithContext(ctx).Model(&ItemPo{})
	if param.Criteria == nil {
		return db
	}
	c := param.Criteria
	db = whereInSet(db, "project_id", c.ProjectIDs, c.NegateProject)
	db = whereInSet(db, "state", c.States, c.NegateState)
	db = whereInSet(db, "responsible_id", c.ResponsibleIDs, c.NegateResponsible)
	db = whereInSet(db, "item_type", c.ItemTypes, c.NegateItemType)
	db = whereInSet(db, "current_node_id", c.NodeIDs, c.NegateNode)
	if c.Text != "" {
		// 两边都用 FoldText 转换, 和内存中的过滤结果一致
		pattern := "%" + escapeLike(FoldText(c.Text)) + "%"
		db = db.Where(`(title_folded LIKE ? ESCAPE '\' OR description_folded LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if c.ItemSeq > 0 {
		db = db.Where("seq = ?", c.ItemSeq)
	}
	if c.VisibleProjectIDs != nil {
		if len(c.VisibleProjectIDs) == 0 {
			// 没有可见项目, 什么都查不到
			db = db.Where("1 = 0")
		} else {
			db = db.Where("project_id IN ?", c.VisibleProjectIDs)
		}
	}
	return db
}

// whereInSet 空集合不加条件, 取反也一样
func whereInSet(db *gorm.DB, column string, values []string, negate bool) *gorm.DB {
	if len(values) == 0 {
		return db
	}
	if negate {
		return db.Where(column+" NOT IN ?", values)
	}
	return db.Where(column+" IN ?", values)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *gormRepo) CreateItem(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, fmt.Errorf("nil Item")
	}
	if item.ID == "" {
		item.ID = newID()
	}
	now := nowMillis()
	item.Version = 1
	item.CreatedAt = now
	item.UpdatedAt = now
	po := &ItemPo{
		ID:                item.ID,
		ProjectID:         item.ProjectID,
		Seq:               item.Seq,
		Title:             item.Title,
		Description:       item.Description,
		TitleFolded:       FoldText(item.Title),
		DescriptionFolded: FoldText(item.Description),
		ItemType:          item.ItemType,
		State:             item.State,
		CurrentNodeID:     item.CurrentNodeID,
		ResponsibleID:     item.ResponsibleID,
		CreatorID:         item.CreatorID,
		Version:           item.Version,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
	if err := r.GetDBWithContext(ctx).Create(po).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateItem failed")
	}
	return item, nil
}

func (r *gormRepo) SaveItem(ctx context.Context, item *Item, expectedVersion int64) (*Item, error) {
	if item == nil {
		return nil, fmt.Errorf("nil Item")
	}
	db := r.GetDBWithContext(ctx)
	now := nowMillis()
	result := db.Model(&ItemPo{}).
		Where("id = ? AND version = ?", item.ID, expectedVersion).
		Updates(map[string]any{
			"title":              item.Title,
			"description":        item.Description,
			"title_folded":       FoldText(item.Title),
			"description_folded": FoldText(item.Description),
			"item_type":          item.ItemType,
			"state":              item.State,
			"current_node_id":    item.CurrentNodeID,
			"responsible_id":     item.ResponsibleID,
			"version":            expectedVersion + 1,
			"updated_at":         now,
		})
	if result.Error != nil {
		return nil, errors.WithMessage(result.Error, "SaveItem failed")
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&ItemPo{}).Where("id = ?", item.ID).Count(&count).Error; err != nil {
			return nil, errors.WithMessage(err, "SaveItem count failed")
		}
		if count == 0 {
			return nil, errors.WithMessagef(ErrItemNotFound, "itemID: %s", item.ID)
		}
		return nil, errors.WithMessagef(ErrConcurrentModification, "itemID: %s, expectedVersion: %d", item.ID, expectedVersion)
	}
	item.Version = expectedVersion + 1
	item.UpdatedAt = now
	return item, nil
}

func (r *gormRepo) AppendHistory(ctx context.Context, history *ItemNodeHistory) error {
	if history == nil {
		return fmt.Errorf("nil ItemNodeHistory")
	}
	po := &ItemNodeHistoryPo{
		ItemID:        history.ItemID,
		NodeID:        history.NodeID,
		NodeTitle:     history.NodeTitle,
		ResponsibleID: history.ResponsibleID,
		EnteredAt:     history.EnteredAt,
		LeftAt:        history.LeftAt,
	}
	if err := r.GetDBWithContext(ctx).Create(po).Error; err != nil {
		return errors.WithMessage(err, "AppendHistory failed")
	}
	history.ID = po.ID
	return nil
}

// CloseHistory 关闭item当前还没有离开的历史记录, 没有记录时什么都不做
func (r *gormRepo) CloseHistory(ctx context.Context, itemID string, leftAt int64) error {
	err := r.GetDBWithContext(ctx).Model(&ItemNodeHistoryPo{}).
		Where("item_id = ? AND left_at = 0", itemID).
		Update("left_at", leftAt).Error
	if err != nil {
		return errors.WithMessage(err, "CloseHistory failed")
	}
	return nil
}

func (r *gormRepo) QueryHistory(ctx context.Context, itemID string) ([]*ItemNodeHistory, error) {
	pos := make([]*ItemNodeHistoryPo, 0)
	if err := r.GetDBWithContext(ctx).Where("item_id = ?", itemID).Order("id asc").Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryHistory failed")
	}
	ret := make([]*ItemNodeHistory, 0, len(pos))
	for _, po := range pos {
		ret = append(ret, &ItemNodeHistory{
			ID:            po.ID,
			ItemID:        po.ItemID,
			NodeID:        po.NodeID,
			NodeTitle:     po.NodeTitle,
			ResponsibleID: po.ResponsibleID,
			EnteredAt:     po.EnteredAt,
			LeftAt:        po.LeftAt,
		})
	}
	return ret, nil
}
