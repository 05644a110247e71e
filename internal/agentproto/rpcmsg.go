// Package agentproto defines the single RPC envelope AgentPlatform speaks
// and the gRPC service stub that carries it.
//
// There's no .proto/protoc-gen-go pipeline here. This package hand-writes
// the same ServiceDesc/client-stub shape protoc-gen-go-grpc would produce
// — ordinary exported google.golang.org/grpc API, no codegen required —
// and pairs it with a small JSON encoding.Codec so RpcMsg can be a plain
// Go struct instead of a protoreflect-backed proto.Message.
package agentproto

// RpcMsg is the wire envelope for every call_func RPC: target_func names
// the handler, agent_id addresses the registry entry (or is empty where
// not applicable), and value carries the handler-specific payload, opaque
// at this layer.
type RpcMsg struct {
	TargetFunc string `json:"target_func"`
	AgentID    string `json:"agent_id"`
	Value      []byte `json:"value,omitempty"`
}
