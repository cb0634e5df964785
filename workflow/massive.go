package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

type MoveManyParams struct {
	ProjectID     string  `json:"project_id" validate:"required"`
	TargetNodeID  string  `json:"target_node_id" validate:"required"`
	ResponsibleID string  `json:"responsible_id"`
	Seqs          []int64 `json:"seqs" validate:"dive,gt=0"`
}

// MoveManyResult Unmoved 保持输入的顺序, Failures 是每个没有移动的序号对应的原因
type MoveManyResult struct {
	Moved    []int64
	Unmoved  []int64
	Failures map[int64]error
}

// MoveMany 批量迁移, 每个item单独事务
//   - 单个item的失败(找不到, 非法迁移, 未授权, 并发修改)收集到 Unmoved, 继续下一个
//   - 基础设施错误中断剩下的批次并返回, 已经提交的item不回滚
func (s *ItemServiceImpl) MoveMany(ctx context.Context, params *MoveManyParams) (*MoveManyResult, error) {
	if err := validatorUtil.Struct(params); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "MoveMany failed, params: %v, err: %v", params, err)
	}
	ret := &MoveManyResult{
		Moved:    make([]int64, 0, len(params.Seqs)),
		Unmoved:  make([]int64, 0),
		Failures: make(map[int64]error),
	}
	events := make([]*TransitionEvent, 0, len(params.Seqs))
	defer func() {
		// 已经提交的迁移, 即使批次中断也要通知
		for _, event := range events {
			s.hooks.fire(ctx, event)
		}
	}()
	for _, seq := range params.Seqs {
		var event *TransitionEvent
		err := s.itemRepo.Transaction(ctx, func(ctx context.Context) error {
			item, err := s.itemRepo.FindItemBySeq(ctx, params.ProjectID, seq)
			if err != nil {
				return err
			}
			event, err = s.commitMove(ctx, item, params.TargetNodeID, params.ResponsibleID)
			return err
		})
		if err == nil {
			ret.Moved = append(ret.Moved, seq)
			events = append(events, event)
			continue
		}
		if !IsItemLevelError(err) {
			return nil, errors.WithMessagef(err, "MoveMany aborted at seq %d, projectID: %s", seq, params.ProjectID)
		}
		slog.WarnContext(ctx, fmt.Sprintf("MoveMany skip item, projectID: %s, seq: %d, err: %v", params.ProjectID, seq, err))
		ret.Unmoved = append(ret.Unmoved, seq)
		ret.Failures[seq] = err
	}
	return ret, nil
}
