package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripConcreteMsg(t *testing.T) {
	codec := NewCodec()
	taskID := int64(42)
	content, _ := json.Marshal("hi")
	original := &Msg{
		Name:    "u",
		Role:    "user",
		Content: content,
		TaskID:  &taskID,
	}

	data, err := codec.Encode(original)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, original.Name, decoded.Name)
	assert.Equal(t, original.Role, decoded.Role)
	assert.JSONEq(t, string(original.Content), string(decoded.Content))
	require.NotNil(t, decoded.TaskID)
	assert.Equal(t, *original.TaskID, *decoded.TaskID)
	assert.False(t, decoded.IsPlaceholder())
}

func TestRoundTripUnresolvedPlaceholder(t *testing.T) {
	codec := NewCodec()
	ph := NewPlaceholder("bot", "localhost", 9090, "agent-1", 7)

	data, err := codec.Encode(ph)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)

	require.True(t, decoded.IsPlaceholder())
	require.NotNil(t, decoded.Placeholder)
	assert.Equal(t, "localhost", decoded.Placeholder.Host)
	assert.Equal(t, 9090, decoded.Placeholder.Port)
	assert.Equal(t, "agent-1", decoded.Placeholder.AgentID)
	assert.Equal(t, int64(7), decoded.Placeholder.TaskID)
}

func TestRoundTripResolvedPlaceholder(t *testing.T) {
	codec := NewCodec()
	ph := NewPlaceholder("bot", "localhost", 9090, "agent-1", 7)
	content, _ := json.Marshal("final content")
	ph.ResolveFrom(&Msg{Name: "bot", Role: "assistant", Content: content})

	require.False(t, ph.IsPlaceholder())

	data, err := codec.Encode(ph)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)

	assert.False(t, decoded.IsPlaceholder(), "resolved placeholders decode as non-pending")
	assert.True(t, decoded.Resolved)
	assert.JSONEq(t, string(content), string(decoded.Content))
}

func TestDecodeSliceMixedTypes(t *testing.T) {
	codec := NewCodec()
	c1, _ := json.Marshal("a")
	msgs := []*Msg{
		New("alice", "user", c1),
		NewPlaceholder("bob", "localhost", 9090, "agent-2", 3),
	}

	data, err := codec.EncodeSlice(msgs)
	require.NoError(t, err)

	decoded, err := codec.DecodeSlice(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.False(t, decoded[0].IsPlaceholder())
	assert.True(t, decoded[1].IsPlaceholder())
}

func TestErrorMsgTag(t *testing.T) {
	m := NewError("agent-1", "boom: traceback...")
	assert.True(t, m.IsError())
	assert.Equal(t, "ERROR", m.Name)
}
