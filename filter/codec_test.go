package filter

import (
	"testing"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	spec := &Spec{
		ID:          "f1",
		OwnerID:     "alice",
		Name:        "mine",
		Favorite:    true,
		Version:     4,
		Project:     NewComponent(true, "p1", "p2"),
		State:       NewComponent(false, workflow.ItemStateOpen),
		Responsible: NewComponent(true),
		Text:        "crash",
		ItemSeq:     12,
	}

	token, err := EncodeToken(spec)
	require.NoError(t, err)
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")

	t.Run("只保留过滤条件和owner", func(t *testing.T) {
		decoded, err := DecodeToken(token)
		require.NoError(t, err)
		want := &Spec{
			OwnerID:     "alice",
			Project:     spec.Project,
			State:       spec.State,
			Responsible: spec.Responsible,
			Text:        "crash",
			ItemSeq:     12,
		}
		assert.Equal(t, want, decoded)
	})

	t.Run("相同的条件得到相同的token", func(t *testing.T) {
		other := spec.Clone()
		other.ID = "f2"
		other.Name = "another"
		again, err := EncodeToken(other)
		require.NoError(t, err)
		assert.Equal(t, token, again)
	})

	t.Run("非法token", func(t *testing.T) {
		_, err := DecodeToken("!!!")
		assert.True(t, errors.Is(err, workflow.ErrParamInvalid))
		_, err = DecodeToken("AAAA")
		assert.True(t, errors.Is(err, workflow.ErrParamInvalid))
		_, err = EncodeToken(nil)
		assert.True(t, errors.Is(err, workflow.ErrParamInvalid))
	})
}

func TestCriteriaBlob(t *testing.T) {
	spec := &Spec{Node: NewComponent(true, "n1"), Text: "x"}
	data, err := marshalCriteria(spec.criteria())
	require.NoError(t, err)
	criteria, err := unmarshalCriteria(data)
	require.NoError(t, err)
	restored := &Spec{}
	restored.applyCriteria(criteria)
	assert.Equal(t, spec, restored)

	empty, err := unmarshalCriteria(nil)
	require.NoError(t, err)
	assert.Equal(t, &Criteria{}, empty)
}
