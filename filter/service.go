package filter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validatorUtil = validator.New()

const ownerLockDuration = 5 * time.Second

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

type ServiceOption func(s *Service)

// WithFavoriteLimit 修改收藏上限, <=0 时使用默认值
func WithFavoriteLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.favoriteLimit = limit
		}
	}
}

// Service 过滤器的保存和收藏管理, 同一个owner的写操作通过锁串行
type Service struct {
	repo          Repo
	lock          workflow.WorkflowLock
	favoriteLimit int
}

func NewService(repo Repo, lock workflow.WorkflowLock, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, lock: lock, favoriteLimit: DefaultFavoriteLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) FavoriteLimit() int {
	return s.favoriteLimit
}

type saveParams struct {
	OwnerID string `validate:"required"`
	Name    string `validate:"required,max=255"`
}

// Save 把只用一次的过滤器保存到owner名下, 返回新的记录, 不修改传入的spec
//   - spec已经保存过: workflow.ErrParamInvalid
//   - owner下已经有同名的过滤器: ErrDuplicateFilterName
//   - 标记了收藏并且已经达到上限: ErrFavoriteLimitExceeded
func (s *Service) Save(ctx context.Context, spec *Spec) (*Spec, error) {
	if spec == nil {
		return nil, errors.WithMessage(workflow.ErrParamInvalid, "Save: nil spec")
	}
	if spec.IsSaved() {
		return nil, errors.WithMessagef(workflow.ErrParamInvalid, "filter %s already saved", spec.ID)
	}
	if err := validatorUtil.Struct(&saveParams{OwnerID: spec.OwnerID, Name: spec.Name}); err != nil {
		return nil, errors.Wrapf(workflow.ErrParamInvalid, "Save failed, err: %v", err)
	}
	toSave := spec.Clone()
	toSave.Version = 0
	var ret *Spec
	err := s.withOwner(ctx, spec.OwnerID, func(ctx context.Context) error {
		if err := s.checkNameFree(ctx, toSave.OwnerID, toSave.Name, ""); err != nil {
			return err
		}
		if toSave.Favorite {
			if err := s.checkFavoriteRoom(ctx, toSave.OwnerID); err != nil {
				return err
			}
		}
		saved, err := s.repo.SaveFilterSpec(ctx, toSave, 0)
		if err != nil {
			return err
		}
		ret = saved
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Save failed, owner: %s, name: %s", spec.OwnerID, spec.Name)
	}
	return ret, nil
}

// Update 修改已经保存的过滤器, spec.Version 是调用方读到的版本
func (s *Service) Update(ctx context.Context, spec *Spec) (*Spec, error) {
	if spec == nil || !spec.IsSaved() {
		return nil, errors.WithMessage(workflow.ErrParamInvalid, "Update: filter not saved")
	}
	if err := validatorUtil.Struct(&saveParams{OwnerID: spec.OwnerID, Name: spec.Name}); err != nil {
		return nil, errors.Wrapf(workflow.ErrParamInvalid, "Update failed, err: %v", err)
	}
	var ret *Spec
	err := s.withOwner(ctx, spec.OwnerID, func(ctx context.Context) error {
		stored, err := s.repo.FindFilterSpec(ctx, spec.ID)
		if err != nil {
			return err
		}
		if stored.OwnerID != spec.OwnerID {
			return errors.WithMessagef(workflow.ErrParamInvalid, "filter %s belongs to another owner", spec.ID)
		}
		if err := s.checkNameFree(ctx, spec.OwnerID, spec.Name, spec.ID); err != nil {
			return err
		}
		if spec.Favorite && !stored.Favorite {
			if err := s.checkFavoriteRoom(ctx, spec.OwnerID); err != nil {
				return err
			}
		}
		saved, err := s.repo.SaveFilterSpec(ctx, spec.Clone(), spec.Version)
		if err != nil {
			return err
		}
		ret = saved
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Update failed, id: %s", spec.ID)
	}
	return ret, nil
}

// SetFavorite 收藏或取消收藏, 达到上限时返回 ErrFavoriteLimitExceeded 并且不做任何修改
func (s *Service) SetFavorite(ctx context.Context, ownerID string, id string, favorite bool) (*Spec, error) {
	var ret *Spec
	err := s.withOwner(ctx, ownerID, func(ctx context.Context) error {
		stored, err := s.repo.FindFilterSpec(ctx, id)
		if err != nil {
			return err
		}
		if stored.OwnerID != ownerID {
			return errors.WithMessagef(workflow.ErrParamInvalid, "filter %s belongs to another owner", id)
		}
		if stored.Favorite == favorite {
			ret = stored
			return nil
		}
		if favorite {
			if err := s.checkFavoriteRoom(ctx, ownerID); err != nil {
				return err
			}
		}
		stored.Favorite = favorite
		saved, err := s.repo.SaveFilterSpec(ctx, stored, stored.Version)
		if err != nil {
			return err
		}
		ret = saved
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "SetFavorite failed, id: %s", id)
	}
	return ret, nil
}

func (s *Service) Delete(ctx context.Context, ownerID string, id string) error {
	err := s.withOwner(ctx, ownerID, func(ctx context.Context) error {
		stored, err := s.repo.FindFilterSpec(ctx, id)
		if err != nil {
			return err
		}
		if stored.OwnerID != ownerID {
			return errors.WithMessagef(workflow.ErrParamInvalid, "filter %s belongs to another owner", id)
		}
		return s.repo.DeleteFilterSpec(ctx, id)
	})
	if err != nil {
		return errors.WithMessagef(err, "Delete failed, id: %s", id)
	}
	return nil
}

// DeleteOfOwner owner被删除时调用
func (s *Service) DeleteOfOwner(ctx context.Context, ownerID string) error {
	return s.withOwner(ctx, ownerID, func(ctx context.Context) error {
		count, err := s.repo.DeleteFilterSpecsOfOwner(ctx, ownerID)
		if err != nil {
			return errors.WithMessagef(err, "DeleteOfOwner failed, owner: %s", ownerID)
		}
		slog.InfoContext(ctx, fmt.Sprintf("filter specs of owner %s deleted, count: %d", ownerID, count))
		return nil
	})
}

func (s *Service) Find(ctx context.Context, id string) (*Spec, error) {
	return s.repo.FindFilterSpec(ctx, id)
}

func (s *Service) FindByOwner(ctx context.Context, ownerID string) ([]*Spec, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

func (s *Service) FindFavorites(ctx context.Context, ownerID string) ([]*Spec, error) {
	return s.repo.FindFavoriteFilterSpecs(ctx, ownerID)
}

func (s *Service) withOwner(ctx context.Context, ownerID string, fn func(ctx context.Context) error) error {
	if ownerID == "" {
		return errors.WithMessage(workflow.ErrParamInvalid, "anonymous filters can not be stored")
	}
	return s.lock.NonBlockingSynchronized(ctx, workflow.OwnerLockKey(ownerID), ownerLockDuration, func(ctx context.Context) error {
		return s.repo.Transaction(ctx, fn)
	})
}

// checkNameFree exceptID 是更新时自己的id
func (s *Service) checkNameFree(ctx context.Context, ownerID string, name string, exceptID string) error {
	existing, err := s.repo.FindByOwnerAndName(ctx, ownerID, name)
	if err != nil {
		if errors.Is(err, ErrFilterNotFound) {
			return nil
		}
		return err
	}
	if existing.ID == exceptID {
		return nil
	}
	return errors.WithMessagef(ErrDuplicateFilterName, "owner %s already has filter %q", ownerID, name)
}

func (s *Service) checkFavoriteRoom(ctx context.Context, ownerID string) error {
	favorites, err := s.repo.FindFavoriteFilterSpecs(ctx, ownerID)
	if err != nil {
		return err
	}
	if len(favorites) >= s.favoriteLimit {
		return errors.WithMessagef(ErrFavoriteLimitExceeded, "owner %s already has %d favorites", ownerID, len(favorites))
	}
	return nil
}
