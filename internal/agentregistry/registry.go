// Package agentregistry is the per-server mapping from agent_id to live
// agent instance. All create/clone/delete operations are serialized behind
// a single mutex.
package agentregistry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nodeforge/agentplatform/internal/classblob"
	"github.com/nodeforge/agentplatform/internal/classreg"
	"github.com/nodeforge/agentplatform/pkg/agent"
)

// ErrAgentNotFound is returned by Clone when the source agent_id has no
// live instance.
var ErrAgentNotFound = errors.New("agentregistry: agent not found")

// Registry is the concurrency-safe agent_id -> agent.Agent map.
type Registry struct {
	classes *classreg.Registry

	mu     sync.Mutex
	agents map[string]agent.Agent
}

// New creates an empty Registry backed by the given class registry.
func New(classes *classreg.Registry) *Registry {
	if classes == nil {
		classes = classreg.Default
	}
	return &Registry{
		classes: classes,
		agents:  make(map[string]agent.Agent),
	}
}

// Exists reports whether agentID currently maps to a live instance.
func (r *Registry) Exists(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.agents[agentID]
	return ok
}

// Len returns the number of live agent instances, for the connected-agent
// gauge.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents)
}

// Get returns the live instance for agentID, if any. The returned Agent is
// not protected from a concurrent Delete: an in-flight Reply started before
// a Delete is allowed to run to completion against the instance it already
// has a handle to.
func (r *Registry) Get(agentID string) (agent.Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	return a, ok
}

// Create constructs a new agent instance for agentID from the decoded
// constructor blob and inserts it. If agentID already has a live instance,
// Create is a no-op.
//
// blob may be the zero Blob (empty class_name) only when agentID already
// exists; constructing a brand-new agent always requires a class name.
func (r *Registry) Create(agentID string, blob *classblob.Blob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agentID]; exists {
		return nil
	}
	if blob == nil {
		return fmt.Errorf("agentregistry: create %q: no constructor blob for new agent", agentID)
	}

	inst, err := r.classes.Construct(blob.ClassName, blob.Args, blob.Kwargs)
	if err != nil {
		return fmt.Errorf("agentregistry: create %q: %w", agentID, err)
	}
	inst.SetAgentID(agentID)
	r.agents[agentID] = inst
	return nil
}

// Delete removes agentID's instance, if present. Deleting a missing
// agent_id is a no-op.
func (r *Registry) Delete(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}

// Clone constructs a fresh instance from srcAgentID's recorded
// InitSettings, assigns it a freshly generated agent_id, inserts it, and
// returns the new id. Fails with ErrAgentNotFound if srcAgentID is absent.
func (r *Registry) Clone(srcAgentID string) (string, error) {
	r.mu.Lock()
	src, ok := r.agents[srcAgentID]
	if !ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrAgentNotFound, srcAgentID)
	}
	init := src.InitSettings()
	className := src.ClassName()
	r.mu.Unlock()

	inst, err := r.classes.Construct(className, init.Args, init.Kwargs)
	if err != nil {
		return "", fmt.Errorf("agentregistry: clone %q: %w", srcAgentID, err)
	}

	newID := uuid.NewString()
	inst.SetAgentID(newID)

	r.mu.Lock()
	r.agents[newID] = inst
	r.mu.Unlock()

	return newID, nil
}
