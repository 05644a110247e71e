// Package agent defines the collaborator contract any class plugged into
// AgentPlatform must satisfy. The concrete business logic of Reply/Observe
// is deliberately out of scope of this package — it only fixes the
// interface and the bookkeeping (InitSettings, agent_id) every
// implementation needs for clone/create to work.
package agent

import (
	"context"
	"encoding/json"

	"github.com/nodeforge/agentplatform/internal/message"
)

// InitSettings captures the constructor arguments an agent was built with,
// recorded at construction time so Registry.Clone can build an identical
// fresh instance.
type InitSettings struct {
	Args   []json.RawMessage
	Kwargs map[string]json.RawMessage
}

// Agent is the capability set AgentPlatform treats polymorphically. Any
// type plugged into the class registry must implement it.
type Agent interface {
	// Reply produces a response to input. input is nil when the caller
	// passed no message.
	Reply(ctx context.Context, input *message.Msg) (*message.Msg, error)

	// Observe delivers a batch of messages for the agent to absorb without
	// producing a reply.
	Observe(ctx context.Context, inputs []*message.Msg) error

	// Name returns the agent's speaker label.
	Name() string

	// AgentID returns this instance's unique id within its server.
	AgentID() string

	// ClassName returns the name this agent's type is registered under in
	// the class registry. Clone uses it to reconstruct a sibling instance.
	ClassName() string

	// SetAgentID forcibly sets the agent id. Called once by the registry
	// immediately after construction.
	SetAgentID(id string)

	// InitSettings returns the constructor arguments captured at
	// construction, used by Registry.Clone.
	InitSettings() InitSettings
}

// Constructor builds a new Agent instance from constructor blob args and
// kwargs. Registered per class name in a classreg.Registry.
type Constructor func(args []json.RawMessage, kwargs map[string]json.RawMessage) (Agent, error)

// Base is an embeddable helper that implements the bookkeeping portion of
// Agent (name, agent_id, init settings). Concrete agents embed Base and
// only need to implement Reply and Observe.
type Base struct {
	name      string
	className string
	agentID   string
	init      InitSettings
}

// NewBase constructs the embeddable bookkeeping state. Concrete
// constructors call this first, then assign the result into their own
// struct's embedded Base field.
func NewBase(name, className string, init InitSettings) Base {
	return Base{name: name, className: className, init: init}
}

func (b *Base) Name() string               { return b.name }
func (b *Base) ClassName() string          { return b.className }
func (b *Base) AgentID() string            { return b.agentID }
func (b *Base) SetAgentID(id string)       { b.agentID = id }
func (b *Base) InitSettings() InitSettings { return b.init }
