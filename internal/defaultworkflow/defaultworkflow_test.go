package defaultworkflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	config, err := Config("developers")
	require.NoError(t, err)

	assert.Equal(t, "default", config.Title)
	assert.Equal(t, "Open", config.InitialNode)
	require.Len(t, config.Nodes, 4)
	for _, node := range config.Nodes {
		if node.IsFinal {
			assert.Empty(t, node.Authorized, node.Title)
			continue
		}
		assert.Equal(t, []string{"developers"}, node.Authorized, node.Title)
	}
	assert.Len(t, config.Links, 5)
}
