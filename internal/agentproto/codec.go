package agentproto

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the wire codec name this package registers with
// google.golang.org/grpc/encoding, and the value servers/clients must pass
// to grpc.ForceServerCodec / grpc.ForceCodec.
const CodecName = "agentplatform-json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over plain
// JSON, so RpcMsg (and any other Go struct this package might carry in the
// future) doesn't need to implement protoreflect's proto.Message.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("agentproto: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("agentproto: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
