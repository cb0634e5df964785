package workflow

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignmentStrategy(t *testing.T) {
	for _, raw := range []string{"creator", "project_leader", "user_selected"} {
		s, err := ParseAssignmentStrategy(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, s.String())
	}
	_, err := ParseAssignmentStrategy("Creator")
	assert.True(t, errors.Is(err, ErrUnknownAssignmentStrategy))
	_, err = ParseAssignmentStrategy("")
	assert.True(t, errors.Is(err, ErrUnknownAssignmentStrategy))
}

func TestResolveResponsible(t *testing.T) {
	project := &Project{ID: "p", LeaderID: "leader"}
	created := &Item{State: ItemStateCreated, CreatorID: "creator", ResponsibleID: "creator"}
	open := &Item{State: ItemStateOpen, CurrentNodeID: "a", CreatorID: "creator", ResponsibleID: "someone"}
	normal := &WorkflowNodeDescription{ID: "b", Title: "B"}
	final := &WorkflowNodeDescription{ID: "c", Title: "C", IsFinal: true}

	cases := []struct {
		name     string
		strategy AssignmentStrategy
		item     *Item
		target   *WorkflowNodeDescription
		want     ResponsibleDecision
	}{
		{"creator第一次迁移", CreatorAssignment, created, normal, ResponsibleDecision{ResponsibleID: "creator", Forced: true, Required: true}},
		{"leader第一次迁移", ProjectLeaderAssignment, created, normal, ResponsibleDecision{ResponsibleID: "leader", Forced: true, Required: true}},
		{"user_selected第一次迁移", UserSelectedAssignment, created, normal, ResponsibleDecision{ResponsibleID: "picked", Required: true}},
		{"creator之后的迁移", CreatorAssignment, open, normal, ResponsibleDecision{ResponsibleID: "picked", Required: true}},
		{"终止节点不需要负责人", UserSelectedAssignment, open, final, ResponsibleDecision{ResponsibleID: "picked"}},
		{"creator第一次就进入终止节点", CreatorAssignment, created, final, ResponsibleDecision{ResponsibleID: "creator", Forced: true, Required: true}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			decision, err := ResolveResponsible(c.strategy, c.item, project, "picked", c.target)
			require.NoError(t, err)
			assert.Equal(t, c.want, *decision)
		})
	}

	t.Run("终止节点没有选择时保留当前负责人", func(t *testing.T) {
		decision, err := ResolveResponsible(UserSelectedAssignment, open, project, "", final)
		require.NoError(t, err)
		assert.Equal(t, "someone", decision.ResponsibleID)
		assert.False(t, decision.Required)
	})

	t.Run("未知策略", func(t *testing.T) {
		_, err := ResolveResponsible(AssignmentStrategy("random"), created, project, "picked", normal)
		assert.True(t, errors.Is(err, ErrUnknownAssignmentStrategy))
	})

	t.Run("参数为空", func(t *testing.T) {
		_, err := ResolveResponsible(CreatorAssignment, nil, project, "", normal)
		assert.True(t, errors.Is(err, ErrParamInvalid))
	})

	t.Run("可选择负责人", func(t *testing.T) {
		assert.False(t, ResponsibleSelectable(CreatorAssignment, created, normal))
		assert.True(t, ResponsibleSelectable(UserSelectedAssignment, created, normal))
		assert.True(t, ResponsibleSelectable(CreatorAssignment, open, normal))
		assert.False(t, ResponsibleSelectable(UserSelectedAssignment, open, final))
	})
}

func TestErrorClassification(t *testing.T) {
	wrapped := errors.WithMessage(errors.WithMessagef(ErrInvalidTransition, "item %s", "x"), "MoveItem failed")
	if !IsValidationError(wrapped) {
		t.Errorf("Expected validation error, got %v", wrapped)
	}
	if !IsItemLevelError(errors.WithMessage(ErrConcurrentModification, "x")) {
		t.Errorf("Expected item level error")
	}
	if IsValidationError(ErrConcurrentModification) {
		t.Errorf("ErrConcurrentModification is not a validation error")
	}
	if IsItemLevelError(errors.New("database is locked")) {
		t.Errorf("infrastructure errors are not item level")
	}
	if IsItemLevelError(nil) || IsValidationError(nil) {
		t.Errorf("nil is not an error")
	}
}
