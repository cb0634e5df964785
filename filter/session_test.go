package filter

import (
	"testing"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSessionContext(t *testing.T) {
	assert.NoError(t, AnonymousContext().Validate())
	assert.NoError(t, AuthenticatedContext("alice").Validate())

	for _, session := range []SessionContext{
		AuthenticatedContext(""),
		{Mode: AnonymousMode, UserID: "alice"},
		{Mode: "admin", UserID: "alice"},
		{},
	} {
		err := session.Validate()
		assert.True(t, errors.Is(err, workflow.ErrParamInvalid), "session %+v", session)
	}

	assert.Equal(t, "", AnonymousContext().NewSpec().OwnerID)
	assert.Equal(t, "alice", AuthenticatedContext("alice").NewSpec().OwnerID)
}
