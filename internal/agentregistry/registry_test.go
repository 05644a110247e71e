package agentregistry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/agentplatform/internal/classblob"
	"github.com/nodeforge/agentplatform/internal/classreg"
	"github.com/nodeforge/agentplatform/pkg/echoagent"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	classes := classreg.New()
	echoagent.Register(classes)
	return New(classes)
}

func TestCreateIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	blob, err := classblob.Encode(classblob.Blob{ClassName: echoagent.EchoClassName})
	require.NoError(t, err)
	decoded, err := classblob.Decode(blob)
	require.NoError(t, err)

	require.NoError(t, r.Create("a1", &decoded))
	require.True(t, r.Exists("a1"))

	// Second create on the same id is a no-op, not an error.
	require.NoError(t, r.Create("a1", &decoded))
}

func TestCreateUnknownClassFails(t *testing.T) {
	r := newTestRegistry(t)
	blob := classblob.Blob{ClassName: "DoesNotExist"}

	err := r.Create("a1", &blob)
	assert.ErrorIs(t, err, classreg.ErrUnknownClass)
	assert.False(t, r.Exists("a1"))
}

func TestDeleteMissingIsNoop(t *testing.T) {
	r := newTestRegistry(t)
	r.Delete("nope") // must not panic
}

func TestCloneUsesInitSettings(t *testing.T) {
	r := newTestRegistry(t)
	blob := classblob.Blob{
		ClassName: echoagent.EchoClassName,
		Kwargs:    map[string]json.RawMessage{"name": json.RawMessage(`"bot"`)},
	}
	require.NoError(t, r.Create("a1", &blob))

	newID, err := r.Clone("a1")
	require.NoError(t, err)
	assert.NotEqual(t, "a1", newID)
	assert.True(t, r.Exists(newID))

	// The clone is rebuilt from the source's recorded constructor kwargs.
	clone, ok := r.Get(newID)
	require.True(t, ok)
	assert.Equal(t, "bot", clone.Name())

	// Deleting the clone must not affect the original.
	r.Delete(newID)
	assert.True(t, r.Exists("a1"))
	assert.False(t, r.Exists(newID))
}

func TestCloneMissingSourceFails(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Clone("ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}
