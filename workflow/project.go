package workflow

import (
	"context"

	"github.com/pkg/errors"
)

type SaveProjectParams struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name" validate:"required,max=255"`
	IsPublic           bool     `json:"is_public"`
	LeaderID           string   `json:"leader_id" validate:"required"`
	AssignmentStrategy string   `json:"assignment_strategy" validate:"required"`
	ItemTypes          []string `json:"item_types" validate:"dive,required"`
	MemberIDs          []string `json:"member_ids" validate:"dive,required"`
	ExpectedVersion    int64    `json:"expected_version" validate:"gte=0"` // 0 表示新建
}

type SavePrincipalParams struct {
	ID      string `json:"id"`
	Name    string `json:"name" validate:"required,max=255"`
	Kind    string `json:"kind" validate:"required,oneof=user group"`
	Version int64  `json:"version" validate:"gte=0"` // 0 表示新建
}

// ProjectServiceImpl 项目和用户的维护, 只包含工作流需要的部分
type ProjectServiceImpl struct {
	projectRepo   ProjectRepo
	principalRepo PrincipalRepo
	graph         *WorkflowGraphServiceImpl
}

func (s *ProjectServiceImpl) FindProject(ctx context.Context, projectID string) (*Project, error) {
	return s.projectRepo.FindProject(ctx, projectID)
}

// SaveProject 分配策略在这里解析一次, 未知的策略直接失败
// 新建项目时复制一份默认工作流描述
func (s *ProjectServiceImpl) SaveProject(ctx context.Context, params *SaveProjectParams) (*Project, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "SaveProject failed, params: %v, err: %v", params, err)
	}
	strategy, err := ParseAssignmentStrategy(params.AssignmentStrategy)
	if err != nil {
		return nil, errors.WithMessagef(err, "SaveProject failed, name: %s", params.Name)
	}
	project := &Project{
		ID:                 params.ID,
		Name:               params.Name,
		IsPublic:           params.IsPublic,
		LeaderID:           params.LeaderID,
		AssignmentStrategy: strategy,
		ItemTypes:          UniqueStr(params.ItemTypes),
		MemberIDs:          UniqueStr(params.MemberIDs),
	}
	var ret *Project
	err = s.graph.repo.Transaction(ctx, func(ctx context.Context) error {
		saved, err := s.projectRepo.SaveProject(ctx, project, params.ExpectedVersion)
		if err != nil {
			return err
		}
		if params.ExpectedVersion == 0 {
			if _, err := s.graph.EnsureProjectWorkflow(ctx, saved.ID); err != nil {
				return err
			}
		}
		ret = saved
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "SaveProject failed, name: %s", params.Name)
	}
	return ret, nil
}

// RemoveItemType 项目去掉一个item类型, 同时从工作流的link中去掉
func (s *ProjectServiceImpl) RemoveItemType(ctx context.Context, projectID string, itemType string, expectedVersion int64) (*Project, error) {
	var ret *Project
	err := s.graph.repo.Transaction(ctx, func(ctx context.Context) error {
		project, err := s.projectRepo.FindProject(ctx, projectID)
		if err != nil {
			return err
		}
		itemTypes, removed := removeStr(project.ItemTypes, itemType)
		if !removed {
			return errors.WithMessagef(ErrParamInvalid, "project %s has no item type %q", projectID, itemType)
		}
		project.ItemTypes = itemTypes
		saved, err := s.projectRepo.SaveProject(ctx, project, expectedVersion)
		if err != nil {
			return err
		}
		if err := s.graph.RemoveItemType(ctx, projectID, itemType); err != nil {
			return err
		}
		ret = saved
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "RemoveItemType failed, projectID: %s", projectID)
	}
	return ret, nil
}

func (s *ProjectServiceImpl) SavePrincipal(ctx context.Context, params *SavePrincipalParams) (*Principal, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "SavePrincipal failed, params: %v, err: %v", params, err)
	}
	principal, err := s.principalRepo.SavePrincipal(ctx, &Principal{
		ID:      params.ID,
		Name:    params.Name,
		Kind:    params.Kind,
		Version: params.Version,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "SavePrincipal failed, name: %s", params.Name)
	}
	return principal, nil
}

// AddGroupMember 只有用户可以加入用户组
func (s *ProjectServiceImpl) AddGroupMember(ctx context.Context, groupID string, userID string) error {
	group, err := s.principalRepo.FindPrincipal(ctx, groupID)
	if err != nil {
		return errors.WithMessagef(err, "AddGroupMember failed, groupID: %s", groupID)
	}
	if !group.IsGroup() {
		return errors.WithMessagef(ErrParamInvalid, "%s is not a group", groupID)
	}
	user, err := s.principalRepo.FindPrincipal(ctx, userID)
	if err != nil {
		return errors.WithMessagef(err, "AddGroupMember failed, userID: %s", userID)
	}
	if user.IsGroup() {
		return errors.WithMessagef(ErrParamInvalid, "%s is a group", userID)
	}
	return s.principalRepo.AddGroupMember(ctx, groupID, userID)
}

func (s *ProjectServiceImpl) FindPrincipal(ctx context.Context, principalID string) (*Principal, error) {
	return s.principalRepo.FindPrincipal(ctx, principalID)
}

func (s *ProjectServiceImpl) GroupIDsOfUser(ctx context.Context, userID string) ([]string, error) {
	return s.principalRepo.GroupIDsOfUser(ctx, userID)
}

// VisibleProjectIDs 匿名用户只能看到公开项目, 登录用户还能看到自己或所在用户组是成员的项目
func (s *ProjectServiceImpl) VisibleProjectIDs(ctx context.Context, userID string) ([]string, error) {
	memberIDs := make([]string, 0)
	if userID != "" {
		groupIDs, err := s.principalRepo.GroupIDsOfUser(ctx, userID)
		if err != nil {
			return nil, errors.WithMessagef(err, "VisibleProjectIDs failed, userID: %s", userID)
		}
		memberIDs = append(memberIDs, userID)
		memberIDs = append(memberIDs, groupIDs...)
	}
	ids, err := s.projectRepo.QueryVisibleProjectIDs(ctx, memberIDs)
	if err != nil {
		return nil, errors.WithMessagef(err, "VisibleProjectIDs failed, userID: %s", userID)
	}
	return ids, nil
}
