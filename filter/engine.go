package filter

import (
	"context"
	"strings"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
)

// Predicate 内存中判断一个item是否被选中
type Predicate func(item *workflow.Item) bool

// Compile 所有维度的结果取AND
func Compile(spec *Spec) Predicate {
	if spec == nil {
		return func(*workflow.Item) bool { return true }
	}
	s := spec.Clone()
	text := workflow.FoldText(s.Text)
	return func(item *workflow.Item) bool {
		if item == nil {
			return false
		}
		return s.Project.Match(item.ProjectID) &&
			s.State.Match(item.State) &&
			s.Responsible.Match(item.ResponsibleID) &&
			s.ItemType.Match(item.ItemType) &&
			s.Node.Match(item.CurrentNodeID) &&
			matchText(text, item) &&
			(s.ItemSeq <= 0 || item.Seq == s.ItemSeq)
	}
}

// matchText text已经经过 workflow.FoldText, 空字符串恒为true
func matchText(text string, item *workflow.Item) bool {
	if text == "" {
		return true
	}
	return strings.Contains(workflow.FoldText(item.Title), text) ||
		strings.Contains(workflow.FoldText(item.Description), text)
}

// ToItemCriteria 交给item存储执行的条件, 和 Compile 语义一致
func ToItemCriteria(spec *Spec) *workflow.ItemCriteria {
	ret := &workflow.ItemCriteria{}
	if spec == nil {
		return ret
	}
	ret.ProjectIDs, ret.NegateProject = componentCriteria(spec.Project)
	ret.States, ret.NegateState = componentCriteria(spec.State)
	ret.ResponsibleIDs, ret.NegateResponsible = componentCriteria(spec.Responsible)
	ret.ItemTypes, ret.NegateItemType = componentCriteria(spec.ItemType)
	ret.NodeIDs, ret.NegateNode = componentCriteria(spec.Node)
	ret.Text = spec.Text
	if spec.ItemSeq > 0 {
		ret.ItemSeq = spec.ItemSeq
	}
	return ret
}

func componentCriteria(c Component) ([]string, bool) {
	if c.IsEmpty() {
		// 空集合取反也不限制
		return nil, false
	}
	return append([]string{}, c.Values...), c.Negate
}

// Filter 对已经加载到内存的item执行过滤, 保持原来的顺序
func Filter(items []*workflow.Item, spec *Spec) []*workflow.Item {
	predicate := Compile(spec)
	ret := make([]*workflow.Item, 0, len(items))
	for _, item := range items {
		if predicate(item) {
			ret = append(ret, item)
		}
	}
	return ret
}

type ItemQuerier interface {
	QueryItems(ctx context.Context, params *workflow.QueryItemParams) ([]*workflow.Item, error)
	CountItems(ctx context.Context, params *workflow.QueryItemParams) (int64, error)
}

type ProjectVisibility interface {
	VisibleProjectIDs(ctx context.Context, userID string) ([]string, error)
}

type SelectParams struct {
	Spec       *Spec
	OrderBy    string          `validate:"omitempty,oneof=seq created_at updated_at title"`
	OrderByAsc *bool
	Page       *workflow.Pager
}

// Engine 在会话可见的项目范围内执行过滤器
type Engine struct {
	items      ItemQuerier
	visibility ProjectVisibility
}

func NewEngine(items ItemQuerier, visibility ProjectVisibility) *Engine {
	return &Engine{items: items, visibility: visibility}
}

// Select 返回当前页的item和总数, 可见项目的限制总是生效, 不受取反影响
func (e *Engine) Select(ctx context.Context, session SessionContext, params *SelectParams) ([]*workflow.Item, int64, error) {
	if params == nil {
		return nil, 0, errors.WithMessage(workflow.ErrParamInvalid, "Select: nil params")
	}
	if err := validatorUtil.Struct(params); err != nil {
		return nil, 0, errors.Wrapf(workflow.ErrParamInvalid, "Select failed, err: %v", err)
	}
	criteria, err := e.Criteria(ctx, session, params.Spec)
	if err != nil {
		return nil, 0, err
	}
	queryParams := &workflow.QueryItemParams{
		Criteria:   criteria,
		OrderBy:    params.OrderBy,
		OrderByAsc: params.OrderByAsc,
		Page:       params.Page,
	}
	count, err := e.items.CountItems(ctx, queryParams)
	if err != nil {
		return nil, 0, errors.WithMessage(err, "Select count failed")
	}
	if count == 0 {
		return make([]*workflow.Item, 0), 0, nil
	}
	items, err := e.items.QueryItems(ctx, queryParams)
	if err != nil {
		return nil, 0, errors.WithMessage(err, "Select query failed")
	}
	return items, count, nil
}

// Criteria 过滤条件加上会话的可见项目
func (e *Engine) Criteria(ctx context.Context, session SessionContext, spec *Spec) (*workflow.ItemCriteria, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	visible, err := e.visibility.VisibleProjectIDs(ctx, session.UserID)
	if err != nil {
		return nil, errors.WithMessagef(err, "VisibleProjectIDs failed, mode: %s", session.Mode)
	}
	criteria := ToItemCriteria(spec)
	criteria.VisibleProjectIDs = visible
	return criteria, nil
}
