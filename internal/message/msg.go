// Package message defines the domain message exchanged between agents and
// the wire encoding used to carry it across the RPC boundary.
//
// Msg is a tagged variant: a concrete message, or a PlaceholderMessage that
// stands in for a not-yet-resolved reply. Go has no sum types, so the two
// variants are folded into one struct with a nil-able Placeholder field —
// every call site that cares has to check IsPlaceholder() explicitly rather
// than relying on interface dispatch.
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status tags a Msg that carries a failure instead of a normal reply.
type Status string

// StatusError marks a Msg produced when an agent's Reply failed.
const StatusError Status = "ERROR"

// RoleAssistant is the default role assigned to a Msg when none is given.
const RoleAssistant = "assistant"

// PlaceholderLocator identifies the task a PlaceholderMessage will resolve
// against: the origin RpcAgentClient's (host, port, agent_id) plus the
// task_id allocated by that server's _reply handler.
type PlaceholderLocator struct {
	Host    string
	Port    int
	AgentID string
	TaskID  int64
}

// Msg is a value object: speaker label, role, opaque content, optional
// resource reference, and implementation metadata. A non-nil Placeholder
// means this Msg is a PlaceholderMessage; Resolved distinguishes an
// unresolved locator from a resolved one that has since been filled in with
// concrete fields copied from the real reply.
type Msg struct {
	Name      string
	Role      string
	Content   json.RawMessage
	URL       *string
	Timestamp time.Time
	ID        string
	TaskID    *int64
	Status    Status

	Placeholder *PlaceholderLocator
	Resolved    bool
}

// New builds a concrete Msg, defaulting Role to "assistant" when empty.
func New(name, role string, content json.RawMessage) *Msg {
	if role == "" {
		role = RoleAssistant
	}
	return &Msg{
		Name:      name,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewError builds the ERROR-tagged Msg the worker pool stores in the result
// pool when an agent's Reply fails.
func NewError(agentID, detail string) *Msg {
	content, _ := json.Marshal(detail)
	return &Msg{
		Name:      "ERROR",
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Status:    StatusError,
	}
}

// NewPlaceholder builds an unresolved PlaceholderMessage locator for the
// given origin client and task id.
func NewPlaceholder(name, host string, port int, agentID string, taskID int64) *Msg {
	return &Msg{
		Name: name,
		Role: RoleAssistant,
		Placeholder: &PlaceholderLocator{
			Host:    host,
			Port:    port,
			AgentID: agentID,
			TaskID:  taskID,
		},
	}
}

// IsPlaceholder reports whether m is a PlaceholderMessage that has not yet
// been resolved.
func (m *Msg) IsPlaceholder() bool {
	return m != nil && m.Placeholder != nil && !m.Resolved
}

// IsError reports whether m carries the ERROR status tag.
func (m *Msg) IsError() bool {
	return m != nil && m.Status == StatusError
}

// ResolveFrom copies the concrete fields of a resolved reply into an
// unresolved placeholder, in place, and marks it resolved. It is a no-op
// (idempotent) if m is not a placeholder or is already resolved.
func (m *Msg) ResolveFrom(resolved *Msg) {
	if m.Placeholder == nil || m.Resolved {
		return
	}
	m.Name = resolved.Name
	m.Role = resolved.Role
	m.Content = resolved.Content
	m.URL = resolved.URL
	m.Timestamp = resolved.Timestamp
	m.ID = resolved.ID
	m.TaskID = resolved.TaskID
	m.Status = resolved.Status
	m.Resolved = true
}

// wireMsg is the self-describing JSON envelope. "__type" distinguishes a
// concrete Msg from a PlaceholderMessage; an unresolved placeholder only
// carries the locator fields, a resolved one carries everything.
type wireMsg struct {
	Type      string          `json:"__type"`
	Name      string          `json:"name,omitempty"`
	Role      string          `json:"role,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	URL       *string         `json:"url,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	ID        string          `json:"id,omitempty"`
	TaskID    *int64          `json:"task_id,omitempty"`
	Status    string          `json:"__status,omitempty"`

	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	AgentID  string `json:"agent_id,omitempty"`
	Resolved bool   `json:"resolved,omitempty"`
}

// MarshalJSON implements a round-trippable encoding: an unresolved
// placeholder serializes only its locator and the resolved flag; everything
// else serializes its concrete fields.
func (m Msg) MarshalJSON() ([]byte, error) {
	if m.Placeholder != nil {
		w := wireMsg{
			Type:     "placeholder",
			Host:     m.Placeholder.Host,
			Port:     m.Placeholder.Port,
			AgentID:  m.Placeholder.AgentID,
			TaskID:   &m.Placeholder.TaskID,
			Resolved: m.Resolved,
		}
		if m.Resolved {
			w.Name = m.Name
			w.Role = m.Role
			w.Content = m.Content
			w.URL = m.URL
			if !m.Timestamp.IsZero() {
				w.Timestamp = &m.Timestamp
			}
			w.ID = m.ID
			w.TaskID = m.TaskID
			w.Status = string(m.Status)
		}
		return json.Marshal(w)
	}

	w := wireMsg{
		Type:    "msg",
		Name:    m.Name,
		Role:    m.Role,
		Content: m.Content,
		URL:     m.URL,
		ID:      m.ID,
		TaskID:  m.TaskID,
		Status:  string(m.Status),
	}
	if !m.Timestamp.IsZero() {
		w.Timestamp = &m.Timestamp
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements the inverse of MarshalJSON.
func (m *Msg) UnmarshalJSON(data []byte) error {
	var w wireMsg
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("message: decode: %w", err)
	}

	*m = Msg{
		Name:    w.Name,
		Role:    w.Role,
		Content: w.Content,
		URL:     w.URL,
		ID:      w.ID,
		TaskID:  w.TaskID,
		Status:  Status(w.Status),
	}
	if w.Timestamp != nil {
		m.Timestamp = *w.Timestamp
	}

	switch w.Type {
	case "placeholder":
		taskID := int64(0)
		if w.TaskID != nil {
			taskID = *w.TaskID
		}
		m.Placeholder = &PlaceholderLocator{
			Host:    w.Host,
			Port:    w.Port,
			AgentID: w.AgentID,
			TaskID:  taskID,
		}
		m.Resolved = w.Resolved
	case "msg", "":
		// concrete message, nothing further to do
	default:
		return fmt.Errorf("message: unknown __type %q", w.Type)
	}
	return nil
}
