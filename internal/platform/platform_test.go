package platform

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/agentplatform/internal/agentproto"
	"github.com/nodeforge/agentplatform/internal/agentregistry"
	"github.com/nodeforge/agentplatform/internal/classblob"
	"github.com/nodeforge/agentplatform/internal/classreg"
	"github.com/nodeforge/agentplatform/internal/message"
	"github.com/nodeforge/agentplatform/internal/resultpool"
	"github.com/nodeforge/agentplatform/pkg/echoagent"
)

func newTestPlatform(t *testing.T) *AgentPlatform {
	t.Helper()
	classes := classreg.New()
	echoagent.Register(classes)
	registry := agentregistry.New(classes)
	pool := resultpool.New(16, time.Minute)
	return New(Config{}, registry, classes, pool, nil, nil, nil)
}

func createEcho(t *testing.T, p *AgentPlatform, agentID string) {
	t.Helper()
	blob, err := classblob.Encode(classblob.Blob{ClassName: echoagent.EchoClassName})
	require.NoError(t, err)
	_, err = p.CallFunc(context.Background(), &agentproto.RpcMsg{
		TargetFunc: "_create_agent",
		AgentID:    agentID,
		Value:      blob,
	})
	require.NoError(t, err)
}

func TestCallFuncUnsupportedMethod(t *testing.T) {
	p := newTestPlatform(t)
	_, err := p.CallFunc(context.Background(), &agentproto.RpcMsg{TargetFunc: "_bogus"})
	require.Error(t, err)
}

func TestCallFuncMissingAgent(t *testing.T) {
	p := newTestPlatform(t)
	_, err := p.CallFunc(context.Background(), &agentproto.RpcMsg{TargetFunc: "_reply", AgentID: "ghost"})
	require.Error(t, err)
}

func TestReplyThenGetHappyPath(t *testing.T) {
	p := newTestPlatform(t)
	createEcho(t, p, "a1")

	codec := message.NewCodec()
	input := message.New("user", "user", json.RawMessage(`"hello"`))
	value, err := codec.Encode(input)
	require.NoError(t, err)

	resp, err := p.CallFunc(context.Background(), &agentproto.RpcMsg{
		TargetFunc: "_reply",
		AgentID:    "a1",
		Value:      value,
	})
	require.NoError(t, err)

	ack, err := codec.Decode(resp.Value)
	require.NoError(t, err)
	require.NotNil(t, ack.TaskID)

	getPayload, err := json.Marshal(struct {
		TaskID int64 `json:"task_id"`
	}{*ack.TaskID})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.Eventually(t, func() bool {
		resp, err := p.CallFunc(ctx, &agentproto.RpcMsg{TargetFunc: "_get", Value: getPayload})
		if err != nil {
			return false
		}
		result, err := codec.Decode(resp.Value)
		if err != nil || result == nil {
			return false
		}
		return string(result.Content) == `"hello"`
	}, time.Second, 5*time.Millisecond)
}

func TestReplyOnBoomProducesErrorResult(t *testing.T) {
	p := newTestPlatform(t)
	blob, err := classblob.Encode(classblob.Blob{ClassName: echoagent.BoomClassName})
	require.NoError(t, err)
	_, err = p.CallFunc(context.Background(), &agentproto.RpcMsg{
		TargetFunc: "_create_agent", AgentID: "b1", Value: blob,
	})
	require.NoError(t, err)

	codec := message.NewCodec()
	value, err := codec.Encode(message.New("user", "user", nil))
	require.NoError(t, err)

	resp, err := p.CallFunc(context.Background(), &agentproto.RpcMsg{TargetFunc: "_reply", AgentID: "b1", Value: value})
	require.NoError(t, err)
	ack, err := codec.Decode(resp.Value)
	require.NoError(t, err)

	getPayload, err := json.Marshal(struct {
		TaskID int64 `json:"task_id"`
	}{*ack.TaskID})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		resp, err := p.CallFunc(context.Background(), &agentproto.RpcMsg{TargetFunc: "_get", Value: getPayload})
		if err != nil {
			return false
		}
		result, err := codec.Decode(resp.Value)
		return err == nil && result != nil && result.IsError()
	}, time.Second, 5*time.Millisecond)
}

func TestCloneAgentProducesIndependentInstance(t *testing.T) {
	p := newTestPlatform(t)
	createEcho(t, p, "a1")

	resp, err := p.CallFunc(context.Background(), &agentproto.RpcMsg{TargetFunc: "_clone_agent", AgentID: "a1"})
	require.NoError(t, err)
	newID := string(resp.Value)
	assert.NotEqual(t, "a1", newID)

	_, err = p.CallFunc(context.Background(), &agentproto.RpcMsg{TargetFunc: "_delete_agent", AgentID: newID})
	require.NoError(t, err)

	_, err = p.CallFunc(context.Background(), &agentproto.RpcMsg{TargetFunc: "_reply", AgentID: "a1"})
	assert.NoError(t, err)
}

func TestObserveResolvesNothingForConcreteMessages(t *testing.T) {
	p := newTestPlatform(t)
	createEcho(t, p, "a1")

	codec := message.NewCodec()
	value, err := codec.EncodeSlice([]*message.Msg{message.New("user", "user", json.RawMessage(`"hi"`))})
	require.NoError(t, err)

	_, err = p.CallFunc(context.Background(), &agentproto.RpcMsg{TargetFunc: "_observe", AgentID: "a1", Value: value})
	require.NoError(t, err)
}
