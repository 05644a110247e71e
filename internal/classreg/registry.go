// Package classreg is the process-wide mapping from agent class names to
// constructor functions, populated at startup by each agent-implementation
// package. Remote CreateAgent calls name a class by string; this registry
// is what turns that string back into a constructor call, with no
// reflection involved.
package classreg

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nodeforge/agentplatform/pkg/agent"
)

// ErrUnknownClass is returned by Lookup/Construct when class_name was never
// registered.
var ErrUnknownClass = errors.New("classreg: unknown agent class")

// ErrAlreadyRegistered is returned by Register when class_name is already
// bound to a constructor.
var ErrAlreadyRegistered = errors.New("classreg: class already registered")

// Registry is a concurrency-safe class-name -> constructor map.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]agent.Constructor
}

// New creates an empty class registry.
func New() *Registry {
	return &Registry{ctors: make(map[string]agent.Constructor)}
}

// Register binds className to ctor. Registering the same class name twice
// is rejected — this mirrors a compile-time duplicate-symbol error in
// languages with a static class registry and catches copy-paste mistakes
// early rather than silently shadowing the first registration.
func (r *Registry) Register(className string, ctor agent.Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[className]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, className)
	}
	r.ctors[className] = ctor
	return nil
}

// MustRegister is Register but panics on error, for use in package-level
// init() calls.
func (r *Registry) MustRegister(className string, ctor agent.Constructor) {
	if err := r.Register(className, ctor); err != nil {
		panic(err)
	}
}

// Lookup returns the constructor for className, if registered.
func (r *Registry) Lookup(className string) (agent.Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.ctors[className]
	return ctor, ok
}

// Construct builds a new Agent instance for className using the given
// constructor args/kwargs, or ErrUnknownClass if className isn't
// registered.
func (r *Registry) Construct(
	className string,
	args []json.RawMessage,
	kwargs map[string]json.RawMessage,
) (agent.Agent, error) {
	ctor, ok := r.Lookup(className)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, className)
	}
	inst, err := ctor(args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("classreg: construct %q: %w", className, err)
	}
	return inst, nil
}

// Default is the process-wide registry used by AgentPlatform servers that
// don't supply their own.
var Default = New()
