package workflow

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ProjectPo struct {
	ID                 string `gorm:"column:id;primaryKey"`
	Name               string `gorm:"column:name"`
	IsPublic           bool   `gorm:"column:is_public;index"`
	LeaderID           string `gorm:"column:leader_id"`
	AssignmentStrategy string `gorm:"column:assignment_strategy"`
	NextItemSeq        int64  `gorm:"column:next_item_seq"`
	Version            int64  `gorm:"column:version"`
	CreatedAt          int64  `gorm:"column:created_at"`
	UpdatedAt          int64  `gorm:"column:updated_at"`
}

func (ProjectPo) TableName() string {
	return "project"
}

type ProjectItemTypePo struct {
	ProjectID string `gorm:"column:project_id;primaryKey"`
	ItemType  string `gorm:"column:item_type;primaryKey"`
}

func (ProjectItemTypePo) TableName() string {
	return "project_item_type"
}

type ProjectMemberPo struct {
	ProjectID   string `gorm:"column:project_id;primaryKey"`
	PrincipalID string `gorm:"column:principal_id;primaryKey;index"`
}

func (ProjectMemberPo) TableName() string {
	return "project_member"
}

type PrincipalPo struct {
	ID        string `gorm:"column:id;primaryKey"`
	Name      string `gorm:"column:name"`
	Kind      string `gorm:"column:kind"`
	Version   int64  `gorm:"column:version"`
	CreatedAt int64  `gorm:"column:created_at"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (PrincipalPo) TableName() string {
	return "principal"
}

type GroupMemberPo struct {
	GroupID string `gorm:"column:group_id;primaryKey"`
	UserID  string `gorm:"column:user_id;primaryKey;index"`
}

func (GroupMemberPo) TableName() string {
	return "group_member"
}

func (r *gormRepo) FindProject(ctx context.Context, projectID string) (*Project, error) {
	db := r.GetDBWithContext(ctx)
	po := &ProjectPo{}
	if err := db.Where("id = ?", projectID).First(po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithMessagef(ErrProjectNotFound, "projectID: %s", projectID)
		}
		return nil, errors.WithMessage(err, "FindProject failed")
	}
	project := &Project{
		ID:                 po.ID,
		Name:               po.Name,
		IsPublic:           po.IsPublic,
		LeaderID:           po.LeaderID,
		AssignmentStrategy: AssignmentStrategy(po.AssignmentStrategy),
		NextItemSeq:        po.NextItemSeq,
		Version:            po.Version,
		ItemTypes:          make([]string, 0),
		MemberIDs:          make([]string, 0),
	}
	if err := db.Model(&ProjectItemTypePo{}).Where("project_id = ?", projectID).Order("item_type asc").Pluck("item_type", &project.ItemTypes).Error; err != nil {
		return nil, errors.WithMessage(err, "query project item types failed")
	}
	if err := db.Model(&ProjectMemberPo{}).Where("project_id = ?", projectID).Order("principal_id asc").Pluck("principal_id", &project.MemberIDs).Error; err != nil {
		return nil, errors.WithMessage(err, "query project members failed")
	}
	return project, nil
}

func (r *gormRepo) SaveProject(ctx context.Context, project *Project, expectedVersion int64) (*Project, error) {
	if project == nil {
		return nil, fmt.Errorf("nil Project")
	}
	err := r.Transaction(ctx, func(ctx context.Context) error {
		db := r.GetDBWithContext(ctx)
		now := nowMillis()
		if expectedVersion == 0 {
			if project.ID == "" {
				project.ID = newID()
			}
			po := &ProjectPo{
				ID:                 project.ID,
				Name:               project.Name,
				IsPublic:           project.IsPublic,
				LeaderID:           project.LeaderID,
				AssignmentStrategy: project.AssignmentStrategy.String(),
				Version:            1,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := db.Create(po).Error; err != nil {
				return errors.WithMessage(err, "create project failed")
			}
			project.Version = 1
		} else {
			// next_item_seq 由 NextItemSeq 单独维护, 这里不覆盖
			result := db.Model(&ProjectPo{}).
				Where("id = ? AND version = ?", project.ID, expectedVersion).
				Updates(map[string]any{
					"name":                project.Name,
					"is_public":           project.IsPublic,
					"leader_id":           project.LeaderID,
					"assignment_strategy": project.AssignmentStrategy.String(),
					"version":             expectedVersion + 1,
					"updated_at":          now,
				})
			if result.Error != nil {
				return errors.WithMessage(result.Error, "update project failed")
			}
			if result.RowsAffected == 0 {
				var count int64
				if err := db.Model(&ProjectPo{}).Where("id = ?", project.ID).Count(&count).Error; err != nil {
					return errors.WithMessage(err, "count project failed")
				}
				if count == 0 {
					return errors.WithMessagef(ErrProjectNotFound, "projectID: %s", project.ID)
				}
				return errors.WithMessagef(ErrConcurrentModification, "projectID: %s, expectedVersion: %d", project.ID, expectedVersion)
			}
			project.Version = expectedVersion + 1
			if err := db.Where("project_id = ?", project.ID).Delete(&ProjectItemTypePo{}).Error; err != nil {
				return errors.WithMessage(err, "clear project item types failed")
			}
			if err := db.Where("project_id = ?", project.ID).Delete(&ProjectMemberPo{}).Error; err != nil {
				return errors.WithMessage(err, "clear project members failed")
			}
		}
		itemTypes := UniqueStr(project.ItemTypes)
		if len(itemTypes) > 0 {
			typePos := make([]*ProjectItemTypePo, 0, len(itemTypes))
			for _, itemType := range itemTypes {
				typePos = append(typePos, &ProjectItemTypePo{ProjectID: project.ID, ItemType: itemType})
			}
			if err := db.Create(&typePos).Error; err != nil {
				return errors.WithMessage(err, "create project item types failed")
			}
		}
		memberIDs := UniqueStr(project.MemberIDs)
		if len(memberIDs) > 0 {
			memberPos := make([]*ProjectMemberPo, 0, len(memberIDs))
			for _, memberID := range memberIDs {
				memberPos = append(memberPos, &ProjectMemberPo{ProjectID: project.ID, PrincipalID: memberID})
			}
			if err := db.Create(&memberPos).Error; err != nil {
				return errors.WithMessage(err, "create project members failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "SaveProject failed, name: %s", project.Name)
	}
	return project, nil
}

func (r *gormRepo) NextItemSeq(ctx context.Context, projectID string) (int64, error) {
	var seq int64
	err := r.Transaction(ctx, func(ctx context.Context) error {
		db := r.GetDBWithContext(ctx)
		result := db.Model(&ProjectPo{}).Where("id = ?", projectID).
			Update("next_item_seq", gorm.Expr("next_item_seq + 1"))
		if result.Error != nil {
			return errors.WithMessage(result.Error, "increase next_item_seq failed")
		}
		if result.RowsAffected == 0 {
			return errors.WithMessagef(ErrProjectNotFound, "projectID: %s", projectID)
		}
		po := &ProjectPo{}
		if err := db.Select("next_item_seq").Where("id = ?", projectID).First(po).Error; err != nil {
			return errors.WithMessage(err, "query next_item_seq failed")
		}
		seq = po.NextItemSeq
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *gormRepo) QueryVisibleProjectIDs(ctx context.Context, memberIDs []string) ([]string, error) {
	db := r.GetDBWithContext(ctx)
	query := db.Model(&ProjectPo{}).Where("is_public = ?", true)
	if len(memberIDs) > 0 {
		subQuery := r.GetDBWithContext(ctx).Model(&ProjectMemberPo{}).Select("project_id").Where("principal_id IN ?", memberIDs)
		query = query.Or("id IN (?)", subQuery)
	}
	ids := make([]string, 0)
	if err := query.Order("id asc").Pluck("id", &ids).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryVisibleProjectIDs failed")
	}
	return ids, nil
}

func (r *gormRepo) FindPrincipal(ctx context.Context, principalID string) (*Principal, error) {
	po := &PrincipalPo{}
	if err := r.GetDBWithContext(ctx).Where("id = ?", principalID).First(po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithMessagef(ErrPrincipalNotFound, "principalID: %s", principalID)
		}
		return nil, errors.WithMessage(err, "FindPrincipal failed")
	}
	return &Principal{ID: po.ID, Name: po.Name, Kind: po.Kind, Version: po.Version}, nil
}

func (r *gormRepo) GroupIDsOfUser(ctx context.Context, userID string) ([]string, error) {
	ids := make([]string, 0)
	err := r.GetDBWithContext(ctx).Model(&GroupMemberPo{}).
		Where("user_id = ?", userID).
		Order("group_id asc").
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, errors.WithMessage(err, "GroupIDsOfUser failed")
	}
	return ids, nil
}

func (r *gormRepo) SavePrincipal(ctx context.Context, principal *Principal) (*Principal, error) {
	if principal == nil {
		return nil, fmt.Errorf("nil Principal")
	}
	db := r.GetDBWithContext(ctx)
	now := nowMillis()
	if principal.ID == "" {
		principal.ID = newID()
	}
	if principal.Version == 0 {
		po := &PrincipalPo{
			ID:        principal.ID,
			Name:      principal.Name,
			Kind:      principal.Kind,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Create(po).Error; err != nil {
			return nil, errors.WithMessage(err, "create principal failed")
		}
		principal.Version = 1
		return principal, nil
	}
	result := db.Model(&PrincipalPo{}).
		Where("id = ? AND version = ?", principal.ID, principal.Version).
		Updates(map[string]any{
			"name":       principal.Name,
			"kind":       principal.Kind,
			"version":    principal.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, errors.WithMessage(result.Error, "update principal failed")
	}
	if result.RowsAffected == 0 {
		return nil, errors.WithMessagef(ErrConcurrentModification, "principalID: %s, version: %d", principal.ID, principal.Version)
	}
	principal.Version++
	return principal, nil
}

func (r *gormRepo) AddGroupMember(ctx context.Context, groupID string, userID string) error {
	po := &GroupMemberPo{GroupID: groupID, UserID: userID}
	// 重复添加忽略
	if err := r.GetDBWithContext(ctx).Where(po).FirstOrCreate(po).Error; err != nil {
		return errors.WithMessagef(err, "AddGroupMember failed, groupID: %s, userID: %s", groupID, userID)
	}
	return nil
}
