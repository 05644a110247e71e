package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nodeforge/agentplatform/internal/agentproto"
	"github.com/nodeforge/agentplatform/internal/classblob"
	"github.com/nodeforge/agentplatform/internal/message"
	"github.com/nodeforge/agentplatform/internal/obsws"
	"github.com/nodeforge/agentplatform/internal/resultpool"
	"github.com/nodeforge/agentplatform/pkg/agent"
)

func (p *AgentPlatform) handleCreateAgent(_ context.Context, req *agentproto.RpcMsg) (*agentproto.RpcMsg, error) {
	var blob *classblob.Blob
	if len(req.Value) > 0 {
		decoded, err := classblob.Decode(req.Value)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		blob = &decoded
	}

	if err := p.registry.Create(req.AgentID, blob); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p.metrics.ObserveAgentCount(p.registry.Len())
	p.events.Publish(obsws.Event{
		Type:    obsws.EventAgentCreated,
		Topic:   obsws.AgentTopic(req.AgentID),
		Payload: map[string]string{"agent_id": req.AgentID},
	})
	return &agentproto.RpcMsg{}, nil
}

func (p *AgentPlatform) handleDeleteAgent(_ context.Context, req *agentproto.RpcMsg) (*agentproto.RpcMsg, error) {
	p.registry.Delete(req.AgentID)
	p.metrics.ObserveAgentCount(p.registry.Len())
	p.events.Publish(obsws.Event{
		Type:    obsws.EventAgentDeleted,
		Topic:   obsws.AgentTopic(req.AgentID),
		Payload: map[string]string{"agent_id": req.AgentID},
	})
	return &agentproto.RpcMsg{}, nil
}

func (p *AgentPlatform) handleCloneAgent(_ context.Context, req *agentproto.RpcMsg) (*agentproto.RpcMsg, error) {
	newID, err := p.registry.Clone(req.AgentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p.metrics.ObserveAgentCount(p.registry.Len())
	return &agentproto.RpcMsg{Value: []byte(newID)}, nil
}

// handleReply submits the input to a goroutine and returns immediately with
// a Msg carrying only a task_id: the caller turns this into a
// PlaceholderMessage client-side. The handler never blocks on the agent's
// Reply call.
func (p *AgentPlatform) handleReply(_ context.Context, req *agentproto.RpcMsg) (*agentproto.RpcMsg, error) {
	input, err := p.codec.Decode(req.Value)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	a, ok := p.registry.Get(req.AgentID)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "Agent [%s] not exists", req.AgentID)
	}

	taskID := p.nextTaskID()
	p.pool.Submit(taskID)
	p.metrics.TaskSubmitted()
	p.metrics.ObserveResultPoolSize(p.pool.Len())

	go p.processReply(taskID, req.AgentID, a, input)

	ack := message.New(a.Name(), "", nil)
	ack.TaskID = &taskID
	value, err := p.codec.Encode(ack)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &agentproto.RpcMsg{Value: value}, nil
}

// processReply runs on its own goroutine, decoupled from the RPC's
// context, so that a client that never calls _get still lets the reply run
// to completion and land in the result pool.
func (p *AgentPlatform) processReply(taskID int64, agentID string, a agent.Agent, input *message.Msg) {
	start := time.Now()
	ctx := context.Background()
	result := p.safeReply(ctx, agentID, a, input)
	p.pool.Complete(taskID, result)
	p.metrics.TaskCompleted(time.Since(start), result.IsError())
	p.metrics.ObserveResultPoolSize(p.pool.Len())
	p.events.Publish(obsws.Event{
		Type:  obsws.EventTaskDone,
		Topic: obsws.TasksTopic,
		Payload: map[string]any{
			"agent_id": agentID,
			"task_id":  taskID,
			"failed":   result.IsError(),
		},
	})
}

// safeReply resolves an unresolved placeholder input, calls the agent's
// Reply, and converts both resolution failures and Reply panics into an
// ERROR Msg rather than letting either take down the worker goroutine.
func (p *AgentPlatform) safeReply(ctx context.Context, agentID string, a agent.Agent, input *message.Msg) (result *message.Msg) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			p.logger.Error("agent reply panicked",
				zap.String("agent_id", agentID),
				zap.Any("panic", r),
				zap.String("stack", stack),
			)
			result = message.NewError(agentID, fmt.Sprintf("panic: %v\n%s", r, stack))
		}
	}()

	if input.IsPlaceholder() {
		resolved, err := p.resolver.Resolve(ctx, input.Placeholder)
		if err != nil {
			return message.NewError(agentID, fmt.Sprintf("failed to resolve placeholder: %v", err))
		}
		input.ResolveFrom(resolved)
	}

	reply, err := a.Reply(ctx, input)
	if err != nil {
		return message.NewError(agentID, err.Error())
	}
	return reply
}

func (p *AgentPlatform) handleGet(ctx context.Context, req *agentproto.RpcMsg) (*agentproto.RpcMsg, error) {
	var payload struct {
		TaskID int64 `json:"task_id"`
	}
	if err := json.Unmarshal(req.Value, &payload); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := p.pool.Get(ctx, payload.TaskID)
	if err != nil {
		if errors.Is(err, resultpool.ErrTaskExpired) {
			result = message.NewError(req.AgentID, err.Error())
		} else {
			return nil, status.FromContextError(err).Err()
		}
	}

	value, err := p.codec.Encode(result)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &agentproto.RpcMsg{Value: value}, nil
}

// handleObserve resolves any placeholders in the batch before delivering it
// to the agent's Observe. This is deliberately asymmetric with _reply,
// which resolves lazily inside the worker goroutine: _observe resolves
// eagerly, synchronously, before the call returns, since Observe has no
// task_id of its own to defer behind.
func (p *AgentPlatform) handleObserve(ctx context.Context, req *agentproto.RpcMsg) (*agentproto.RpcMsg, error) {
	inputs, err := p.codec.DecodeSlice(req.Value)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	a, ok := p.registry.Get(req.AgentID)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "Agent [%s] not exists", req.AgentID)
	}

	for _, in := range inputs {
		if !in.IsPlaceholder() {
			continue
		}
		resolved, err := p.resolver.Resolve(ctx, in.Placeholder)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "failed to resolve placeholder: %v", err)
		}
		in.ResolveFrom(resolved)
	}

	if err := a.Observe(ctx, inputs); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &agentproto.RpcMsg{}, nil
}
