package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// testDescription
//
//	start -> A -> B -> C(final)
//	         A -> C        (只对bug可用)
//	         D -> B        (D 已经被删除)
func testDescription() *WorkflowDescription {
	return &WorkflowDescription{
		ID: "wd",
		Nodes: []*WorkflowNodeDescription{
			{ID: "a", Title: "A", AuthorizedIDs: []string{"u1"}},
			{ID: "b", Title: "B", AuthorizedIDs: []string{"g1"}},
			{ID: "c", Title: "C", IsFinal: true},
		},
		Links: []*WorkflowLinkDescription{
			{ID: "l1", Title: "start", FinalNodeID: "a", ItemTypes: []string{"bug", "task"}},
			{ID: "l2", Title: "next", InitialNodeID: "a", FinalNodeID: "b", ItemTypes: []string{"bug", "task"}},
			{ID: "l3", Title: "finish", InitialNodeID: "b", FinalNodeID: "c", ItemTypes: []string{"bug", "task"}},
			{ID: "l4", Title: "shortcut", InitialNodeID: "a", FinalNodeID: "c", ItemTypes: []string{"bug"}},
			{ID: "l5", Title: "orphan", InitialNodeID: "d", FinalNodeID: "b", ItemTypes: []string{"bug"}},
			{ID: "l6", Title: "dangling", InitialNodeID: "b", FinalNodeID: "x", ItemTypes: []string{"bug"}},
		},
	}
}

func titles(nodes []*WorkflowNodeDescription) []string {
	ret := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ret = append(ret, node.Title)
	}
	return ret
}

func TestNextNodes(t *testing.T) {
	description := testDescription()

	t.Run("CREATED从开始位置出发", func(t *testing.T) {
		item := &Item{ItemType: "bug", State: ItemStateCreated}
		assert.Equal(t, []string{"A"}, titles(NextNodes(description, item)))
	})

	t.Run("按item类型限定", func(t *testing.T) {
		bug := &Item{ItemType: "bug", State: ItemStateOpen, CurrentNodeID: "a"}
		task := &Item{ItemType: "task", State: ItemStateOpen, CurrentNodeID: "a"}
		assert.Equal(t, []string{"B", "C"}, titles(NextNodes(description, bug)))
		assert.Equal(t, []string{"B"}, titles(NextNodes(description, task)))
	})

	t.Run("没有link的类型", func(t *testing.T) {
		item := &Item{ItemType: "feature", State: ItemStateCreated}
		next := NextNodes(description, item)
		assert.NotNil(t, next)
		assert.Empty(t, next)
	})

	t.Run("悬空的link忽略", func(t *testing.T) {
		item := &Item{ItemType: "bug", State: ItemStateOpen, CurrentNodeID: "b"}
		assert.Equal(t, []string{"C"}, titles(NextNodes(description, item)))
		orphan := &Item{ItemType: "bug", State: ItemStateOpen, CurrentNodeID: "d"}
		assert.Empty(t, NextNodes(description, orphan))
	})

	t.Run("BLOCKED没有下一个节点", func(t *testing.T) {
		item := &Item{ItemType: "bug", State: ItemStateBlocked, CurrentNodeID: "a"}
		assert.Empty(t, NextNodes(description, item))
	})

	t.Run("初始节点", func(t *testing.T) {
		withInitial := testDescription()
		withInitial.InitialNodeID = "b"
		item := &Item{ItemType: "feature", State: ItemStateCreated}
		assert.Equal(t, []string{"B"}, titles(NextNodes(withInitial, item)))
		bug := &Item{ItemType: "bug", State: ItemStateCreated}
		assert.Equal(t, []string{"A", "B"}, titles(NextNodes(withInitial, bug)))
	})

	t.Run("多次调用结果一致", func(t *testing.T) {
		item := &Item{ItemType: "bug", State: ItemStateOpen, CurrentNodeID: "a"}
		first := NextNodes(description, item)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, NextNodes(description, item))
		}
	})

	t.Run("重复的link去重", func(t *testing.T) {
		duplicated := testDescription()
		duplicated.Links = append(duplicated.Links, &WorkflowLinkDescription{
			ID: "l7", Title: "again", InitialNodeID: "a", FinalNodeID: "b", ItemTypes: []string{"bug"},
		})
		item := &Item{ItemType: "bug", State: ItemStateOpen, CurrentNodeID: "a"}
		assert.Equal(t, []string{"B", "C"}, titles(NextNodes(duplicated, item)))
	})

	t.Run("空描述", func(t *testing.T) {
		assert.Empty(t, NextNodes(nil, &Item{}))
		assert.Empty(t, NextNodes(description, nil))
	})
}

func TestPathExists(t *testing.T) {
	description := testDescription()
	// 加一个环 C -> A
	description.Links = append(description.Links, &WorkflowLinkDescription{
		ID: "l8", Title: "reopen", InitialNodeID: "c", FinalNodeID: "a", ItemTypes: []string{"task"},
	})

	cases := []struct {
		name     string
		from     string
		to       string
		itemType string
		want     bool
	}{
		{"开始位置到终点", "", "c", "task", true},
		{"相邻节点", "a", "b", "task", true},
		{"环上回到起点", "c", "b", "task", true},
		{"类型不可用", "c", "b", "bug", false},
		{"目标不存在", "a", "x", "bug", false},
		{"起点不在图中", "d", "c", "task", false},
		{"到自己", "b", "b", "task", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, PathExists(description, c.from, c.to, c.itemType))
		})
	}
}
