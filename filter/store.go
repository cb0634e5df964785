package filter

import (
	"context"
	"fmt"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Repo interface {
	// SaveFilterSpec expectedVersion为0表示新建, 版本不一致返回 workflow.ErrConcurrentModification
	SaveFilterSpec(ctx context.Context, spec *Spec, expectedVersion int64) (*Spec, error)
	DeleteFilterSpec(ctx context.Context, id string) error
	// DeleteFilterSpecsOfOwner owner被删除时删除他所有的过滤器
	DeleteFilterSpecsOfOwner(ctx context.Context, ownerID string) (int64, error)
	FindFilterSpec(ctx context.Context, id string) (*Spec, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*Spec, error)
	FindByOwnerAndName(ctx context.Context, ownerID string, name string) (*Spec, error)
	FindFavoriteFilterSpecs(ctx context.Context, ownerID string) ([]*Spec, error)
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type FilterSpecPo struct {
	ID        string `gorm:"column:id;primaryKey"`
	OwnerID   string `gorm:"column:owner_id;index:idx_filter_owner"`
	Name      string `gorm:"column:name"`
	Favorite  bool   `gorm:"column:favorite"`
	Criteria  []byte `gorm:"column:criteria"` // cbor
	Version   int64  `gorm:"column:version"`
	CreatedAt int64  `gorm:"column:created_at"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (FilterSpecPo) TableName() string {
	return "filter_spec"
}

func AllModels() []any {
	return []any{&FilterSpecPo{}}
}

type gormRepo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repo {
	return &gormRepo{db: db}
}

func (r *gormRepo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return workflow.Transaction(ctx, r.db, fn)
}

func (r *gormRepo) getDB(ctx context.Context) *gorm.DB {
	return workflow.DBFromContext(ctx, r.db)
}

func specFromPo(po *FilterSpecPo) (*Spec, error) {
	criteria, err := unmarshalCriteria(po.Criteria)
	if err != nil {
		return nil, errors.WithMessagef(err, "decode filter criteria failed, id: %s", po.ID)
	}
	spec := &Spec{
		ID:       po.ID,
		OwnerID:  po.OwnerID,
		Name:     po.Name,
		Favorite: po.Favorite,
		Version:  po.Version,
	}
	spec.applyCriteria(criteria)
	return spec, nil
}

func specsFromPos(pos []*FilterSpecPo) ([]*Spec, error) {
	ret := make([]*Spec, 0, len(pos))
	for _, po := range pos {
		spec, err := specFromPo(po)
		if err != nil {
			return nil, err
		}
		ret = append(ret, spec)
	}
	return ret, nil
}

func (r *gormRepo) SaveFilterSpec(ctx context.Context, spec *Spec, expectedVersion int64) (*Spec, error) {
	if spec == nil {
		return nil, fmt.Errorf("nil Spec")
	}
	criteria, err := marshalCriteria(spec.criteria())
	if err != nil {
		return nil, errors.WithMessage(err, "encode filter criteria failed")
	}
	db := r.getDB(ctx)
	now := nowMillis()
	if expectedVersion == 0 {
		if spec.ID == "" {
			spec.ID = uuid.NewString()
		}
		po := &FilterSpecPo{
			ID:        spec.ID,
			OwnerID:   spec.OwnerID,
			Name:      spec.Name,
			Favorite:  spec.Favorite,
			Criteria:  criteria,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Create(po).Error; err != nil {
			return nil, errors.WithMessage(err, "create filter spec failed")
		}
		spec.Version = 1
		return spec, nil
	}
	result := db.Model(&FilterSpecPo{}).
		Where("id = ? AND version = ?", spec.ID, expectedVersion).
		Updates(map[string]any{
			"name":       spec.Name,
			"favorite":   spec.Favorite,
			"criteria":   criteria,
			"version":    expectedVersion + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, errors.WithMessage(result.Error, "update filter spec failed")
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindFilterSpec(ctx, spec.ID); err != nil {
			return nil, err
		}
		return nil, errors.WithMessagef(workflow.ErrConcurrentModification, "filter id: %s, expectedVersion: %d", spec.ID, expectedVersion)
	}
	spec.Version = expectedVersion + 1
	return spec, nil
}

func (r *gormRepo) DeleteFilterSpec(ctx context.Context, id string) error {
	result := r.getDB(ctx).Where("id = ?", id).Delete(&FilterSpecPo{})
	if result.Error != nil {
		return errors.WithMessage(result.Error, "DeleteFilterSpec failed")
	}
	if result.RowsAffected == 0 {
		return errors.WithMessagef(ErrFilterNotFound, "id: %s", id)
	}
	return nil
}

func (r *gormRepo) DeleteFilterSpecsOfOwner(ctx context.Context, ownerID string) (int64, error) {
	result := r.getDB(ctx).Where("owner_id = ?", ownerID).Delete(&FilterSpecPo{})
	if result.Error != nil {
		return 0, errors.WithMessage(result.Error, "DeleteFilterSpecsOfOwner failed")
	}
	return result.RowsAffected, nil
}

func (r *gormRepo) FindFilterSpec(ctx context.Context, id string) (*Spec, error) {
	po := &FilterSpecPo{}
	if err := r.getDB(ctx).Where("id = ?", id).First(po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithMessagef(ErrFilterNotFound, "id: %s", id)
		}
		return nil, errors.WithMessage(err, "FindFilterSpec failed")
	}
	return specFromPo(po)
}

func (r *gormRepo) FindByOwner(ctx context.Context, ownerID string) ([]*Spec, error) {
	pos := make([]*FilterSpecPo, 0)
	if err := r.getDB(ctx).Where("owner_id = ?", ownerID).Order("name asc").Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "FindByOwner failed")
	}
	return specsFromPos(pos)
}

func (r *gormRepo) FindByOwnerAndName(ctx context.Context, ownerID string, name string) (*Spec, error) {
	po := &FilterSpecPo{}
	if err := r.getDB(ctx).Where("owner_id = ? AND name = ?", ownerID, name).First(po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithMessagef(ErrFilterNotFound, "owner: %s, name: %s", ownerID, name)
		}
		return nil, errors.WithMessage(err, "FindByOwnerAndName failed")
	}
	return specFromPo(po)
}

func (r *gormRepo) FindFavoriteFilterSpecs(ctx context.Context, ownerID string) ([]*Spec, error) {
	pos := make([]*FilterSpecPo, 0)
	err := r.getDB(ctx).
		Where("owner_id = ? AND favorite = ?", ownerID, true).
		Order("name asc").
		Find(&pos).Error
	if err != nil {
		return nil, errors.WithMessage(err, "FindFavoriteFilterSpecs failed")
	}
	return specsFromPos(pos)
}
