package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTraceHasNoParent(t *testing.T) {
	tr := NewTrace()
	assert.NotEmpty(t, tr.TraceID)
	assert.Nil(t, tr.ParentCallID)
}

func TestChildTraceInheritsTraceIDAndSetsParent(t *testing.T) {
	parent := NewTrace()
	child := parent.Child("call-123")

	assert.Equal(t, parent.TraceID, child.TraceID)
	require.NotNil(t, child.ParentCallID)
	assert.Equal(t, "call-123", *child.ParentCallID)
}

func TestChildOfChildSharesOriginalTraceID(t *testing.T) {
	root := NewTrace()
	mid := root.Child("call-1")
	leaf := mid.Child("call-2")

	assert.Equal(t, root.TraceID, leaf.TraceID)
	require.NotNil(t, leaf.ParentCallID)
	assert.Equal(t, "call-2", *leaf.ParentCallID)
}
