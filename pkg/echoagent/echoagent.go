// Package echoagent provides two reference Agent implementations used by
// this module's own tests and as a minimal worked example for integrators:
// Echo, which returns its input content verbatim, and Boom, which always
// fails, exercising the failed-reply error path.
//
// Neither is wired into the default class registry automatically — callers
// register what they need via Register(classreg *classreg.Registry).
package echoagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nodeforge/agentplatform/internal/classreg"
	"github.com/nodeforge/agentplatform/internal/message"
	"github.com/nodeforge/agentplatform/pkg/agent"
)

// EchoClassName is the class_name Echo is registered under.
const EchoClassName = "Echo"

// BoomClassName is the class_name Boom is registered under.
const BoomClassName = "Boom"

// Echo replies with exactly the content it was given.
type Echo struct {
	agent.Base
}

// NewEcho builds an Echo agent. It is also usable directly as an
// agent.Constructor via Register.
func NewEcho(name string, init agent.InitSettings) *Echo {
	return &Echo{Base: agent.NewBase(name, EchoClassName, init)}
}

// Reply returns a new Msg under this agent's name and the "assistant" role,
// carrying input's content, or no content if input is nil.
func (e *Echo) Reply(_ context.Context, input *message.Msg) (*message.Msg, error) {
	if input == nil {
		return message.New(e.Name(), "assistant", nil), nil
	}
	return message.New(e.Name(), "assistant", input.Content), nil
}

// Observe is a no-op for Echo.
func (e *Echo) Observe(_ context.Context, _ []*message.Msg) error { return nil }

// Boom always fails, to exercise the server's error-capture path.
type Boom struct {
	agent.Base
}

// NewBoom builds a Boom agent.
func NewBoom(name string, init agent.InitSettings) *Boom {
	return &Boom{Base: agent.NewBase(name, BoomClassName, init)}
}

// Reply always returns an error.
func (b *Boom) Reply(_ context.Context, _ *message.Msg) (*message.Msg, error) {
	return nil, fmt.Errorf("boom: agent %q deliberately fails", b.AgentID())
}

// Observe always fails too.
func (b *Boom) Observe(_ context.Context, _ []*message.Msg) error {
	return fmt.Errorf("boom: agent %q deliberately fails", b.AgentID())
}

// constructFromKwargs extracts the single constructor kwarg both Echo and
// Boom accept: the speaker label to reply with.
func constructFromKwargs(kwargs map[string]json.RawMessage) (string, error) {
	raw, ok := kwargs["name"]
	if !ok {
		return "agent", nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", fmt.Errorf("echoagent: decode name kwarg: %w", err)
	}
	return name, nil
}

// Register binds Echo and Boom into the given class registry under
// EchoClassName/BoomClassName.
func Register(reg *classreg.Registry) {
	reg.MustRegister(EchoClassName, func(_ []json.RawMessage, kwargs map[string]json.RawMessage) (agent.Agent, error) {
		name, err := constructFromKwargs(kwargs)
		if err != nil {
			return nil, err
		}
		return NewEcho(name, agent.InitSettings{Kwargs: kwargs}), nil
	})
	reg.MustRegister(BoomClassName, func(_ []json.RawMessage, kwargs map[string]json.RawMessage) (agent.Agent, error) {
		name, err := constructFromKwargs(kwargs)
		if err != nil {
			return nil, err
		}
		return NewBoom(name, agent.InitSettings{Kwargs: kwargs}), nil
	})
}
