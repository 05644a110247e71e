package rpcagent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nodeforge/agentplatform/internal/message"
)

// Resolver fetches the concrete Msg a PlaceholderLocator points at.
// *Dialer and *RpcAgentClient both satisfy it.
type Resolver interface {
	Resolve(ctx context.Context, loc *message.PlaceholderLocator) (*message.Msg, error)
}

// Placeholder wraps a PlaceholderMessage returned by RpcAgent.Reply. It
// resolves at most once: the first accessor call blocks on the RPC round
// trip, every later call (concurrent or sequential) returns the cached
// result or error.
type Placeholder struct {
	once     sync.Once
	msg      *message.Msg
	resolver Resolver
	err      error
}

// NewPlaceholder wraps msg (which must be a PlaceholderMessage, i.e.
// msg.IsPlaceholder() or already resolved) for lazy resolution via
// resolver.
func NewPlaceholder(msg *message.Msg, resolver Resolver) *Placeholder {
	return &Placeholder{msg: msg, resolver: resolver}
}

func (p *Placeholder) resolve(ctx context.Context) error {
	p.once.Do(func() {
		if !p.msg.IsPlaceholder() {
			return
		}
		resolved, err := p.resolver.Resolve(ctx, p.msg.Placeholder)
		if err != nil {
			p.err = err
			return
		}
		p.msg.ResolveFrom(resolved)
	})
	return p.err
}

// Msg blocks until resolution and returns the now-concrete Msg.
func (p *Placeholder) Msg(ctx context.Context) (*message.Msg, error) {
	if err := p.resolve(ctx); err != nil {
		return nil, err
	}
	return p.msg, nil
}

// Content resolves and returns the reply's content field.
func (p *Placeholder) Content(ctx context.Context) (json.RawMessage, error) {
	m, err := p.Msg(ctx)
	if err != nil {
		return nil, err
	}
	return m.Content, nil
}

// URL resolves and returns the reply's url field, if any.
func (p *Placeholder) URL(ctx context.Context) (*string, error) {
	m, err := p.Msg(ctx)
	if err != nil {
		return nil, err
	}
	return m.URL, nil
}

// IsError resolves and reports whether the reply carries the ERROR status.
func (p *Placeholder) IsError(ctx context.Context) (bool, error) {
	m, err := p.Msg(ctx)
	if err != nil {
		return false, err
	}
	return m.IsError(), nil
}
