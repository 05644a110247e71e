package rpcagent

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nodeforge/agentplatform/internal/agentproto"
	"github.com/nodeforge/agentplatform/internal/classblob"
	"github.com/nodeforge/agentplatform/internal/message"
)

// RpcAgentClient is a thin, connection-owning wrapper around the six
// call_func operations a single AgentPlatform server exposes. RpcAgent
// builds on top of it to present a local-object-shaped API.
type RpcAgentClient struct {
	host string
	port int

	conn   *grpc.ClientConn
	client agentproto.AgentServiceClient
	codec  message.Codec
}

// Dial connects to an AgentPlatform server at host:port.
func Dial(host string, port int, opts ...grpc.DialOption) (*RpcAgentClient, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	dialOpts := append([]grpc.DialOption{
		agentproto.ClientCodecOption(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("rpcagent: dial %s: %w", addr, err)
	}

	return &RpcAgentClient{
		host:   host,
		port:   port,
		conn:   conn,
		client: agentproto.NewAgentServiceClient(conn),
		codec:  message.NewCodec(),
	}, nil
}

// Close tears down the underlying gRPC connection.
func (c *RpcAgentClient) Close() error { return c.conn.Close() }

// Host returns the server's advertised host, for building
// PlaceholderLocator values.
func (c *RpcAgentClient) Host() string { return c.host }

// Port returns the server's advertised port.
func (c *RpcAgentClient) Port() int { return c.port }

// CreateAgent asks the server to construct a new agent instance under
// agentID from blob. A nil blob is valid only if agentID already exists on
// the server.
func (c *RpcAgentClient) CreateAgent(ctx context.Context, agentID string, blob *classblob.Blob) error {
	var value []byte
	if blob != nil {
		encoded, err := classblob.Encode(*blob)
		if err != nil {
			return err
		}
		value = encoded
	}
	_, err := c.client.CallFunc(ctx, &agentproto.RpcMsg{
		TargetFunc: "_create_agent",
		AgentID:    agentID,
		Value:      value,
	})
	return err
}

// DeleteAgent asks the server to drop agentID's instance.
func (c *RpcAgentClient) DeleteAgent(ctx context.Context, agentID string) error {
	_, err := c.client.CallFunc(ctx, &agentproto.RpcMsg{TargetFunc: "_delete_agent", AgentID: agentID})
	return err
}

// CloneAgent asks the server to construct a sibling instance of agentID and
// returns the new id.
func (c *RpcAgentClient) CloneAgent(ctx context.Context, agentID string) (string, error) {
	resp, err := c.client.CallFunc(ctx, &agentproto.RpcMsg{TargetFunc: "_clone_agent", AgentID: agentID})
	if err != nil {
		return "", err
	}
	return string(resp.Value), nil
}

// Reply submits input to agentID's Reply and returns immediately with a Msg
// carrying only a task_id: the caller wraps it into a PlaceholderMessage.
func (c *RpcAgentClient) Reply(ctx context.Context, agentID string, input *message.Msg) (*message.Msg, error) {
	value, err := c.codec.Encode(input)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.CallFunc(ctx, &agentproto.RpcMsg{
		TargetFunc: "_reply",
		AgentID:    agentID,
		Value:      value,
	})
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(resp.Value)
}

// Observe delivers a batch of messages to agentID's Observe. Any
// placeholders in inputs are resolved server-side before Observe runs.
func (c *RpcAgentClient) Observe(ctx context.Context, agentID string, inputs []*message.Msg) error {
	value, err := c.codec.EncodeSlice(inputs)
	if err != nil {
		return err
	}
	_, err = c.client.CallFunc(ctx, &agentproto.RpcMsg{
		TargetFunc: "_observe",
		AgentID:    agentID,
		Value:      value,
	})
	return err
}

// Get blocks until taskID resolves, expires, or ctx is cancelled.
func (c *RpcAgentClient) Get(ctx context.Context, taskID int64) (*message.Msg, error) {
	payload, err := json.Marshal(struct {
		TaskID int64 `json:"task_id"`
	}{taskID})
	if err != nil {
		return nil, err
	}
	resp, err := c.client.CallFunc(ctx, &agentproto.RpcMsg{TargetFunc: "_get", Value: payload})
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(resp.Value)
}

// Resolve implements internal/platform.Resolver for a locator known to
// point at this same server.
func (c *RpcAgentClient) Resolve(ctx context.Context, loc *message.PlaceholderLocator) (*message.Msg, error) {
	return c.Get(ctx, loc.TaskID)
}
