package message

import (
	"encoding/json"
	"fmt"
)

// Codec encodes and decodes Msg values and Msg slices for the RpcMsg.value
// wire field, using a self-describing JSON encoding.
type Codec struct{}

// NewCodec returns the default Msg codec.
func NewCodec() Codec { return Codec{} }

// Encode serializes a single Msg. A nil Msg encodes to an empty byte slice,
// matching the wire table's "may be empty for null" request value.
func (Codec) Encode(m *Msg) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("message: encode: %w", err)
	}
	return data, nil
}

// Decode deserializes a single Msg. Empty input decodes to a nil Msg.
func (Codec) Decode(data []byte) (*Msg, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m Msg
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("message: decode: %w", err)
	}
	return &m, nil
}

// EncodeSlice serializes a Msg slice for _observe requests. Each element
// carries its own type tag.
func (Codec) EncodeSlice(msgs []*Msg) ([]byte, error) {
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("message: encode slice: %w", err)
	}
	return data, nil
}

// DecodeSlice deserializes a Msg slice.
func (Codec) DecodeSlice(data []byte) ([]*Msg, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var msgs []*Msg
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("message: decode slice: %w", err)
	}
	return msgs, nil
}
