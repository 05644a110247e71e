// Package obsws is the optional read-only websocket event feed for
// AgentPlatform: agent creation/deletion and task completion events pushed
// to subscribed operators' dashboards. No agent data flows through it that
// isn't already visible via _get; it exists purely for live observability.
package obsws

// EventType identifies the kind of event carried by an Event.
type EventType string

const (
	// EventAgentCreated fires on every successful _create_agent call,
	// including one for an agent_id that already exists (a no-op create).
	EventAgentCreated EventType = "agent.created"
	// EventAgentDeleted fires when _delete_agent removes an instance.
	EventAgentDeleted EventType = "agent.deleted"
	// EventTaskDone fires when a worker goroutine completes (or fails) a
	// reply task.
	EventTaskDone EventType = "task.done"
)

// Event is the envelope pushed to every client subscribed to Topic.
type Event struct {
	Type    EventType `json:"type"`
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
}

// AgentTopic is the per-agent topic events about agentID are published on.
func AgentTopic(agentID string) string { return "agent:" + agentID }

// TasksTopic is the single topic every task.done event is published on.
const TasksTopic = "tasks"
