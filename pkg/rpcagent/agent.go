package rpcagent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/nodeforge/agentplatform/internal/agentproto"
	"github.com/nodeforge/agentplatform/internal/agentregistry"
	"github.com/nodeforge/agentplatform/internal/classblob"
	"github.com/nodeforge/agentplatform/internal/classreg"
	"github.com/nodeforge/agentplatform/internal/launcher"
	"github.com/nodeforge/agentplatform/internal/message"
	"github.com/nodeforge/agentplatform/internal/platform"
	"github.com/nodeforge/agentplatform/internal/resultpool"
)

// Config parameterizes Launch. Either point at a pre-existing server
// (Host/Port, LaunchServer false) or have Launch boot one locally
// (LaunchServer true, Classes required to resolve ClassName).
type Config struct {
	ClassName string
	Args      []json.RawMessage
	Kwargs    map[string]json.RawMessage

	Host         string
	Port         int // 0 under LaunchServer auto-selects a port
	LaunchServer bool
	SharedSecret string
	Classes      *classreg.Registry // required when LaunchServer is true
	Dialer       *Dialer            // resolver for cross-server placeholders; created if nil
	Logger       *zap.Logger
}

// RpcAgent is the local stand-in for a remote agent instance: it forwards
// Reply/Observe/CloneInstances to the server over RPC rather than running
// any business logic of its own. If it launched the server it talks to, it
// also owns that server's shutdown.
type RpcAgent struct {
	cfg     Config
	agentID string

	client *RpcAgentClient
	dialer *Dialer

	// sharedClient is true for clones, which borrow the connection of the
	// RpcAgent they were cloned from and must not close it.
	sharedClient bool

	ownedLauncher *launcher.Launcher
	cancelServer  context.CancelFunc
}

// Launch builds a new remote agent instance: optionally boots an embedded
// server, dials it (or an existing one named by cfg.Host/Port), and calls
// _create_agent with a fresh agent_id.
func Launch(ctx context.Context, cfg Config) (*RpcAgent, error) {
	if cfg.Dialer == nil {
		cfg.Dialer = NewDialer()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	a := &RpcAgent{
		cfg:     cfg,
		agentID: uuid.NewString(),
		dialer:  cfg.Dialer,
	}

	host, port := cfg.Host, cfg.Port
	if cfg.LaunchServer {
		if cfg.Classes == nil {
			return nil, fmt.Errorf("rpcagent: LaunchServer requires Classes")
		}
		l, err := launcher.New(host, cfg.Port, cfg.SharedSecret, cfg.Logger)
		if err != nil {
			return nil, err
		}

		registry := agentregistry.New(cfg.Classes)
		pool := resultpool.New(0, 0)
		plat := platform.New(
			platform.Config{Host: l.Host(), SharedSecret: cfg.SharedSecret},
			registry, cfg.Classes, pool, cfg.Dialer, nil, cfg.Logger,
		)

		serveCtx, cancel := context.WithCancel(ctx)
		a.cancelServer = cancel
		a.ownedLauncher = l

		go func() {
			reg := launcher.RegistrarFunc(func(s *grpc.Server) {
				agentproto.RegisterAgentServiceServer(s, plat)
			})
			if err := l.Serve(serveCtx, reg); err != nil {
				cfg.Logger.Error("embedded agent platform server exited", zap.Error(err))
			}
		}()

		if !waitForListen(l.Host(), l.Port(), 2*time.Second) {
			cancel()
			return nil, fmt.Errorf("rpcagent: embedded server at %s:%d did not come up in time", l.Host(), l.Port())
		}
		host, port = l.Host(), l.Port()
	}

	client, err := Dial(host, port, dialOptsFromSecret(cfg.SharedSecret)...)
	if err != nil {
		if a.cancelServer != nil {
			a.cancelServer()
		}
		return nil, err
	}
	a.client = client

	blob := &classblob.Blob{ClassName: cfg.ClassName, Args: cfg.Args, Kwargs: cfg.Kwargs}
	if err := client.CreateAgent(ctx, a.agentID, blob); err != nil {
		_ = client.Close()
		if a.cancelServer != nil {
			a.cancelServer()
		}
		return nil, err
	}

	return a, nil
}

// AgentID returns the id assigned to the remote instance.
func (a *RpcAgent) AgentID() string { return a.agentID }

// Host returns the remote server's advertised host.
func (a *RpcAgent) Host() string { return a.client.Host() }

// Port returns the remote server's advertised port.
func (a *RpcAgent) Port() int { return a.client.Port() }

// Reply submits input to the remote instance and returns a Placeholder for
// the eventual result.
func (a *RpcAgent) Reply(ctx context.Context, input *message.Msg) (*Placeholder, error) {
	ack, err := a.client.Reply(ctx, a.agentID, input)
	if err != nil {
		return nil, err
	}
	if ack.TaskID == nil {
		return nil, fmt.Errorf("rpcagent: server ack for agent %q carried no task_id", a.agentID)
	}
	locatorMsg := message.NewPlaceholder(ack.Name, a.client.Host(), a.client.Port(), a.agentID, *ack.TaskID)
	return NewPlaceholder(locatorMsg, a.dialer), nil
}

// Observe delivers inputs to the remote instance's Observe.
func (a *RpcAgent) Observe(ctx context.Context, inputs []*message.Msg) error {
	return a.client.Observe(ctx, a.agentID, inputs)
}

// CloneInstances asks the server for n sibling instances built from this
// agent's recorded constructor arguments, and returns local stand-ins for
// them sharing this RpcAgent's connection. None of the clones own the
// server: Stop on a clone only deletes its remote instance.
//
// When includeSelf is true, this RpcAgent is included as the first element
// of the result and only n-1 new instances are created on the server; n
// must be at least 1 in that case. When includeSelf is false, all n
// elements are freshly cloned instances.
func (a *RpcAgent) CloneInstances(ctx context.Context, n int, includeSelf bool) ([]*RpcAgent, error) {
	if n <= 0 {
		return nil, fmt.Errorf("rpcagent: CloneInstances requires n > 0, got %d", n)
	}

	toClone := n
	result := make([]*RpcAgent, 0, n)
	if includeSelf {
		result = append(result, a)
		toClone = n - 1
	}

	for i := 0; i < toClone; i++ {
		clone, err := a.cloneOne(ctx)
		if err != nil {
			return nil, err
		}
		result = append(result, clone)
	}
	return result, nil
}

// cloneOne asks the server for a single sibling instance.
func (a *RpcAgent) cloneOne(ctx context.Context) (*RpcAgent, error) {
	newID, err := a.client.CloneAgent(ctx, a.agentID)
	if err != nil {
		return nil, err
	}
	return &RpcAgent{
		cfg:          a.cfg,
		agentID:      newID,
		client:       a.client,
		dialer:       a.dialer,
		sharedClient: true,
	}, nil
}

// Stop deletes the remote instance, closes the connection unless this is a
// clone sharing another RpcAgent's connection, and — if this RpcAgent
// launched its own server — shuts that server down too.
func (a *RpcAgent) Stop(ctx context.Context) error {
	deleteErr := a.client.DeleteAgent(ctx, a.agentID)
	var closeErr error
	if !a.sharedClient {
		closeErr = a.client.Close()
	}

	if a.cancelServer != nil {
		a.cancelServer()
		a.ownedLauncher.WaitUntilTerminate()
	}

	if deleteErr != nil {
		return deleteErr
	}
	return closeErr
}

func waitForListen(host string, port int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if launcher.CheckPort(host, port) {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

type secretPerRPCCreds struct{ secret string }

func (c secretPerRPCCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"agent-secret": c.secret}, nil
}

func (secretPerRPCCreds) RequireTransportSecurity() bool { return false }

func dialOptsFromSecret(secret string) []grpc.DialOption {
	if secret == "" {
		return nil
	}
	return []grpc.DialOption{grpc.WithPerRPCCredentials(secretPerRPCCreds{secret: secret})}
}
