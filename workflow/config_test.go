package workflow

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkflowConfig(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		config, err := ParseWorkflowConfig([]byte(`
title: simple
initial_node: Open
nodes:
  - title: Open
    authorized: [devs]
  - title: Closed
    is_final: true
links:
  - title: close
    from: Open
    to: Closed
    item_types: [bug]
`))
		require.NoError(t, err)
		assert.Equal(t, "simple", config.Title)
		assert.Equal(t, "Open", config.InitialNode)
		require.Len(t, config.Nodes, 2)
		assert.Equal(t, []string{"devs"}, config.Nodes[0].Authorized)
		assert.True(t, config.Nodes[1].IsFinal)
		require.Len(t, config.Links, 1)
		assert.Equal(t, []string{"bug"}, config.Links[0].ItemTypes)
	})

	t.Run("json", func(t *testing.T) {
		config, err := ParseWorkflowConfig([]byte(`{
			"title": "simple",
			"nodes": [{"title": "Open"}],
			"links": [{"title": "start", "to": "Open", "item_types": ["task"]}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, "", config.Links[0].From)
	})

	cases := []struct {
		name string
		data string
		want error
	}{
		{"格式错误", "title: [", ErrParamInvalid},
		{"缺少标题", "nodes: [{title: A}]", ErrParamInvalid},
		{"节点标题重复", "title: t\nnodes: [{title: A}, {title: A}]", ErrDuplicateTitle},
		{"link标题重复", "title: t\nnodes: [{title: A}]\nlinks: [{title: l, to: A}, {title: l, to: A}]", ErrDuplicateTitle},
		{"link终点不存在", "title: t\nnodes: [{title: A}]\nlinks: [{title: l, to: B}]", ErrNodeNotFound},
		{"link起点不存在", "title: t\nnodes: [{title: A}]\nlinks: [{title: l, from: B, to: A}]", ErrNodeNotFound},
		{"初始节点不存在", "title: t\ninitial_node: B\nnodes: [{title: A}]", ErrNodeNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseWorkflowConfig([]byte(c.data))
			assert.True(t, errors.Is(err, c.want), "got %v", err)
		})
	}
}

func TestUniqueStr(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, UniqueStr([]string{"b", "a", "b"}))
	assert.NotNil(t, UniqueStr(nil))
	ret, removed := removeStr([]string{"a", "b"}, "a")
	assert.True(t, removed)
	assert.Equal(t, []string{"b"}, ret)
	_, removed = removeStr([]string{"a"}, "c")
	assert.False(t, removed)
}
