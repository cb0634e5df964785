package filter

import (
	"slices"

	"github.com/blingmoon/itemflow/workflow"
)

// Component 一个维度的过滤条件
// 没有选择任何值时不限制, 即使Negate为true也不限制
type Component struct {
	Values []string `json:"values" cbor:"1,keyasint,omitempty"`
	Negate bool     `json:"negate" cbor:"2,keyasint,omitempty"`
}

func NewComponent(negate bool, values ...string) Component {
	if len(values) == 0 {
		return Component{Negate: negate}
	}
	return Component{Values: workflow.UniqueStr(values), Negate: negate}
}

func (c Component) IsEmpty() bool {
	return len(c.Values) == 0
}

// Match 维度结果: 空集合恒为true, 否则 value∈Values, 取反时结果取反
func (c Component) Match(value string) bool {
	if c.IsEmpty() {
		return true
	}
	matched := slices.Contains(c.Values, value)
	if c.Negate {
		return !matched
	}
	return matched
}

func (c Component) clone() Component {
	return Component{Values: slices.Clone(c.Values), Negate: c.Negate}
}

// Spec 一个过滤器, ID为空表示还没有保存(只用一次)
// 每个人最多 DefaultFavoriteLimit 个收藏
type Spec struct {
	ID       string `json:"id" cbor:"1,keyasint,omitempty"`
	OwnerID  string `json:"owner_id" cbor:"2,keyasint,omitempty"` // 为空表示匿名
	Name     string `json:"name" cbor:"3,keyasint,omitempty"`
	Favorite bool   `json:"favorite" cbor:"4,keyasint,omitempty"`
	Version  int64  `json:"version" cbor:"5,keyasint,omitempty"`

	Project     Component `json:"project" cbor:"10,keyasint"`
	State       Component `json:"state" cbor:"11,keyasint"`
	Responsible Component `json:"responsible" cbor:"12,keyasint"`
	ItemType    Component `json:"item_type" cbor:"13,keyasint"`
	Node        Component `json:"node" cbor:"14,keyasint"`
	// Text 不区分大小写匹配标题和描述, 不能取反
	Text string `json:"text" cbor:"15,keyasint,omitempty"`
	// ItemSeq 项目内的item序号, 0表示不限制, 不能取反
	ItemSeq int64 `json:"item_seq" cbor:"16,keyasint,omitempty"`
}

func (s *Spec) IsSaved() bool {
	return s != nil && s.ID != ""
}

// Clone 深拷贝, 保存和更新不会修改调用方持有的Spec
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}
	ret := *s
	ret.Project = s.Project.clone()
	ret.State = s.State.clone()
	ret.Responsible = s.Responsible.clone()
	ret.ItemType = s.ItemType.clone()
	ret.Node = s.Node.clone()
	return &ret
}

// Criteria 只包含过滤条件的部分, 存储时序列化成一个blob
type Criteria struct {
	Project     Component `cbor:"1,keyasint"`
	State       Component `cbor:"2,keyasint"`
	Responsible Component `cbor:"3,keyasint"`
	ItemType    Component `cbor:"4,keyasint"`
	Node        Component `cbor:"5,keyasint"`
	Text        string    `cbor:"6,keyasint,omitempty"`
	ItemSeq     int64     `cbor:"7,keyasint,omitempty"`
}

func (s *Spec) criteria() *Criteria {
	return &Criteria{
		Project:     s.Project,
		State:       s.State,
		Responsible: s.Responsible,
		ItemType:    s.ItemType,
		Node:        s.Node,
		Text:        s.Text,
		ItemSeq:     s.ItemSeq,
	}
}

func (s *Spec) applyCriteria(c *Criteria) {
	s.Project = c.Project
	s.State = c.State
	s.Responsible = c.Responsible
	s.ItemType = c.ItemType
	s.Node = c.Node
	s.Text = c.Text
	s.ItemSeq = c.ItemSeq
}

// SelectedNodes 重新展示已保存的过滤器时, 按节点id精确匹配选中的节点
func SelectedNodes(spec *Spec, nodes []*workflow.WorkflowNodeDescription) []*workflow.WorkflowNodeDescription {
	ret := make([]*workflow.WorkflowNodeDescription, 0)
	if spec == nil {
		return ret
	}
	for _, node := range nodes {
		if slices.Contains(spec.Node.Values, node.ID) {
			ret = append(ret, node)
		}
	}
	return ret
}
