// Package rpcagent is the client half of the platform: RpcAgentClient talks
// call_func RPCs to one server, Dialer resolves PlaceholderMessage values
// that may point at any server reachable on the network, and RpcAgent is
// the local stand-in object applications hold in place of a live agent
// instance (it forwards Reply/Observe/CloneInstances to the remote
// instance instead of running any business logic itself).
package rpcagent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nodeforge/agentplatform/internal/agentproto"
	"github.com/nodeforge/agentplatform/internal/message"
)

// Dialer lazily dials and caches a connection per (host, port), and
// implements internal/platform.Resolver so an AgentPlatform server can
// resolve a PlaceholderMessage that points at a peer server.
type Dialer struct {
	extraOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[string]agentproto.AgentServiceClient
}

// NewDialer builds a Dialer. extraOpts are appended to every dial (e.g.
// TLS transport credentials in place of the insecure default).
func NewDialer(extraOpts ...grpc.DialOption) *Dialer {
	return &Dialer{
		extraOpts: extraOpts,
		conns:     make(map[string]agentproto.AgentServiceClient),
	}
}

func (d *Dialer) clientFor(host string, port int) (agentproto.AgentServiceClient, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.conns[addr]; ok {
		return c, nil
	}

	opts := append([]grpc.DialOption{
		agentproto.ClientCodecOption(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, d.extraOpts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("rpcagent: dial %s: %w", addr, err)
	}

	client := agentproto.NewAgentServiceClient(conn)
	d.conns[addr] = client
	return client, nil
}

// Resolve fetches the concrete Msg a PlaceholderLocator points at by
// calling _get against the locator's origin server.
func (d *Dialer) Resolve(ctx context.Context, loc *message.PlaceholderLocator) (*message.Msg, error) {
	client, err := d.clientFor(loc.Host, loc.Port)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(struct {
		TaskID int64 `json:"task_id"`
	}{loc.TaskID})
	if err != nil {
		return nil, fmt.Errorf("rpcagent: encode _get payload: %w", err)
	}

	resp, err := client.CallFunc(ctx, &agentproto.RpcMsg{TargetFunc: "_get", Value: payload})
	if err != nil {
		return nil, fmt.Errorf("rpcagent: resolve task %d at %s:%d: %w", loc.TaskID, loc.Host, loc.Port, err)
	}

	codec := message.NewCodec()
	result, err := codec.Decode(resp.Value)
	if err != nil {
		return nil, fmt.Errorf("rpcagent: decode resolved result: %w", err)
	}
	return result, nil
}
