package filter

import (
	"testing"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentMatch(t *testing.T) {
	cases := []struct {
		name      string
		component Component
		value     string
		want      bool
	}{
		{"空集合不限制", NewComponent(false), "x", true},
		{"空集合取反也不限制", NewComponent(true), "x", true},
		{"包含", NewComponent(false, "a", "b"), "a", true},
		{"不包含", NewComponent(false, "a", "b"), "c", false},
		{"取反后包含", NewComponent(true, "a", "b"), "a", false},
		{"取反后不包含", NewComponent(true, "a", "b"), "c", true},
		{"空值", NewComponent(false, "a"), "", false},
		{"取反后空值", NewComponent(true, "a"), "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.component.Match(c.value))
		})
	}

	t.Run("去重", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, NewComponent(false, "a", "b", "a").Values)
		assert.Nil(t, NewComponent(true).Values)
	})
}

func TestCompile(t *testing.T) {
	items := []*workflow.Item{
		{ID: "1", ProjectID: "p1", Seq: 1, Title: "Login crash", ItemType: "bug", State: workflow.ItemStateOpen, CurrentNodeID: "n1", ResponsibleID: "bob"},
		{ID: "2", ProjectID: "p1", Seq: 2, Title: "Write docs", Description: "CRASH course", ItemType: "task", State: workflow.ItemStateCreated, ResponsibleID: "carol"},
		{ID: "3", ProjectID: "p2", Seq: 1, Title: "Slow page", ItemType: "bug", State: workflow.ItemStateClosed, CurrentNodeID: "n2", ResponsibleID: "bob"},
	}
	ids := func(items []*workflow.Item) []string {
		ret := make([]string, 0, len(items))
		for _, item := range items {
			ret = append(ret, item.ID)
		}
		return ret
	}

	cases := []struct {
		name string
		spec *Spec
		want []string
	}{
		{"空过滤器", &Spec{}, []string{"1", "2", "3"}},
		{"nil过滤器", nil, []string{"1", "2", "3"}},
		{"项目", &Spec{Project: NewComponent(false, "p1")}, []string{"1", "2"}},
		{"项目取反", &Spec{Project: NewComponent(true, "p1")}, []string{"3"}},
		{"状态和类型取AND", &Spec{State: NewComponent(true, workflow.ItemStateClosed), ItemType: NewComponent(false, "bug")}, []string{"1"}},
		{"负责人", &Spec{Responsible: NewComponent(false, "bob")}, []string{"1", "3"}},
		{"节点取反包括没有节点的item", &Spec{Node: NewComponent(true, "n1")}, []string{"2", "3"}},
		{"文本匹配描述", &Spec{Text: "crash"}, []string{"1", "2"}},
		{"序号", &Spec{ItemSeq: 1}, []string{"1", "3"}},
		{"序号和项目", &Spec{ItemSeq: 1, Project: NewComponent(false, "p2")}, []string{"3"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ids(Filter(items, c.spec)))
		})
	}

	t.Run("编译后修改spec不影响结果", func(t *testing.T) {
		spec := &Spec{Project: NewComponent(false, "p1")}
		predicate := Compile(spec)
		spec.Project.Values[0] = "p2"
		assert.True(t, predicate(items[0]))
		assert.False(t, predicate(nil))
	})
}

func TestToItemCriteria(t *testing.T) {
	spec := &Spec{
		Project:  NewComponent(true, "p1"),
		State:    NewComponent(true),
		ItemType: NewComponent(false, "bug"),
		Text:     "Crash",
		ItemSeq:  3,
	}
	criteria := ToItemCriteria(spec)
	assert.Equal(t, []string{"p1"}, criteria.ProjectIDs)
	assert.True(t, criteria.NegateProject)
	// 空集合取反不下发条件
	assert.Nil(t, criteria.States)
	assert.False(t, criteria.NegateState)
	assert.Equal(t, []string{"bug"}, criteria.ItemTypes)
	assert.False(t, criteria.NegateItemType)
	assert.Equal(t, "Crash", criteria.Text)
	assert.Equal(t, int64(3), criteria.ItemSeq)
	assert.Nil(t, criteria.VisibleProjectIDs)

	criteria.ProjectIDs[0] = "changed"
	assert.Equal(t, "p1", spec.Project.Values[0])

	assert.NotNil(t, ToItemCriteria(nil))
}

func TestSpecClone(t *testing.T) {
	spec := &Spec{ID: "f1", Name: "mine", Node: NewComponent(false, "n1", "n2")}
	clone := spec.Clone()
	require.Equal(t, spec, clone)
	clone.Node.Values[0] = "other"
	assert.Equal(t, "n1", spec.Node.Values[0])
	assert.Nil(t, (*Spec)(nil).Clone())
	assert.True(t, spec.IsSaved())
	assert.False(t, (&Spec{}).IsSaved())
}

func TestSelectedNodes(t *testing.T) {
	nodes := []*workflow.WorkflowNodeDescription{
		{ID: "n1", Title: "Open"},
		{ID: "n2", Title: "Open"},
		{ID: "n3", Title: "Closed"},
	}
	spec := &Spec{Node: NewComponent(false, "n2", "deleted")}
	selected := SelectedNodes(spec, nodes)
	require.Len(t, selected, 1)
	assert.Equal(t, "n2", selected[0].ID)
	assert.Empty(t, SelectedNodes(nil, nodes))
}
