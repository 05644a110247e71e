// Package platform implements the AgentPlatform RPC service: the servicer
// that dispatches call_func requests to the registry, the result pool, and
// the per-task worker goroutines that run an agent's Reply off the RPC
// path.
package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nodeforge/agentplatform/internal/agentproto"
	"github.com/nodeforge/agentplatform/internal/agentregistry"
	"github.com/nodeforge/agentplatform/internal/classreg"
	"github.com/nodeforge/agentplatform/internal/message"
	"github.com/nodeforge/agentplatform/internal/obsws"
	"github.com/nodeforge/agentplatform/internal/resultpool"
)

// Resolver resolves a PlaceholderMessage by fetching the concrete Msg from
// its origin server. Implemented by pkg/rpcagent.RpcAgentClient; kept as a
// narrow local interface to avoid internal/platform importing the public
// client package.
type Resolver interface {
	Resolve(ctx context.Context, loc *message.PlaceholderLocator) (*message.Msg, error)
}

// Metrics is the narrow set of instrumentation hooks AgentPlatform calls
// into. internal/obsmetrics provides the Prometheus-backed implementation;
// nil is a valid no-op (see noopMetrics below).
type Metrics interface {
	TaskSubmitted()
	TaskCompleted(d time.Duration, failed bool)
	ObserveResultPoolSize(n int)
	ObserveAgentCount(n int)
}

// EventPublisher fans a live event out to connected observability
// dashboards. internal/obsws.Hub implements it; nil is a valid no-op.
type EventPublisher interface {
	Publish(evt obsws.Event)
}

// Config configures an AgentPlatform instance.
type Config struct {
	Host         string
	LocalMode    bool
	MaxPoolSize  int
	MaxTaskAge   time.Duration
	SharedSecret string // optional gRPC metadata auth token, teacher-style
}

// AgentPlatform is the RPC servicer: it implements
// agentproto.AgentServiceServer and owns the agent registry, the result
// pool, and the monotonic task_id counter.
type AgentPlatform struct {
	cfg Config

	registry *agentregistry.Registry
	classes  *classreg.Registry
	pool     *resultpool.Pool
	codec    message.Codec
	resolver Resolver
	metrics  Metrics
	events   EventPublisher
	logger   *zap.Logger

	taskIDMu      sync.Mutex
	taskIDCounter int64

	handlers map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, req *agentproto.RpcMsg) (*agentproto.RpcMsg, error)

// New constructs an AgentPlatform. resolver and metrics may be nil;
// metrics defaults to a no-op, resolver defaults to one that always fails
// placeholder resolution (a server with no way to dial peers still serves
// every handler, but any placeholder input to _observe/_reply fails to
// resolve, even one pointing at this same server).
func New(
	cfg Config,
	registry *agentregistry.Registry,
	classes *classreg.Registry,
	pool *resultpool.Pool,
	resolver Resolver,
	metrics Metrics,
	logger *zap.Logger,
) *AgentPlatform {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if resolver == nil {
		resolver = unresolvableResolver{}
	}

	p := &AgentPlatform{
		cfg:      cfg,
		registry: registry,
		classes:  classes,
		pool:     pool,
		codec:    message.NewCodec(),
		resolver: resolver,
		metrics:  metrics,
		events:   noopEvents{},
		logger:   logger.Named("platform"),
	}
	p.handlers = map[string]handlerFunc{
		"_create_agent": p.handleCreateAgent,
		"_delete_agent": p.handleDeleteAgent,
		"_clone_agent":  p.handleCloneAgent,
		"_reply":        p.handleReply,
		"_get":          p.handleGet,
		"_observe":      p.handleObserve,
	}
	return p
}

// nextTaskID returns the next task id. Allocation is totally ordered per
// server: callers never observe the same id twice or out of order.
func (p *AgentPlatform) nextTaskID() int64 {
	p.taskIDMu.Lock()
	defer p.taskIDMu.Unlock()
	p.taskIDCounter++
	return p.taskIDCounter
}

// CallFunc implements agentproto.AgentServiceServer. It dispatches
// target_func to the registered handler. Unknown methods and missing
// agents both fail with INVALID_ARGUMENT before the handler ever runs.
func (p *AgentPlatform) CallFunc(ctx context.Context, req *agentproto.RpcMsg) (*agentproto.RpcMsg, error) {
	handler, ok := p.handlers[req.TargetFunc]
	if !ok {
		p.logger.Error("unsupported method", zap.String("target_func", req.TargetFunc))
		return nil, status.Errorf(codes.InvalidArgument, "Unsupported method %s", req.TargetFunc)
	}

	if req.TargetFunc != "_create_agent" && req.TargetFunc != "_get" {
		if !p.registry.Exists(req.AgentID) {
			return nil, status.Errorf(codes.InvalidArgument, "Agent [%s] not exists", req.AgentID)
		}
	}

	return handler(ctx, req)
}

// Pool exposes the result pool for the Prometheus gauge collector and the
// janitor sweep goroutine.
func (p *AgentPlatform) Pool() *resultpool.Pool { return p.pool }

// SetEventPublisher wires a live event feed (internal/obsws.Hub) after
// construction. Optional: an AgentPlatform with no publisher set simply
// doesn't emit events.
func (p *AgentPlatform) SetEventPublisher(pub EventPublisher) {
	if pub == nil {
		pub = noopEvents{}
	}
	p.events = pub
}

type noopEvents struct{}

func (noopEvents) Publish(obsws.Event) {}

type noopMetrics struct{}

func (noopMetrics) TaskSubmitted()                    {}
func (noopMetrics) TaskCompleted(time.Duration, bool) {}
func (noopMetrics) ObserveResultPoolSize(int)         {}
func (noopMetrics) ObserveAgentCount(int)              {}

type unresolvableResolver struct{}

func (unresolvableResolver) Resolve(_ context.Context, loc *message.PlaceholderLocator) (*message.Msg, error) {
	return nil, fmt.Errorf("platform: no resolver configured to resolve placeholder for agent %q", loc.AgentID)
}
