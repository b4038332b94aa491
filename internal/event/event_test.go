package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupIDAcceptsNumberAndString(t *testing.T) {
	var a, b Group
	require.NoError(t, json.Unmarshal([]byte(`{"group_id":42,"level":"error"}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"group_id":" 42 "}`), &b))
	assert.Equal(t, ID("42"), a.GroupID)
	assert.Equal(t, a.GroupID, b.GroupID)
}

func TestGroupIDRejectsObjects(t *testing.T) {
	var g Group
	assert.Error(t, json.Unmarshal([]byte(`{"group_id":{"x":1}}`), &g))
}
