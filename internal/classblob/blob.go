// Package classblob implements the agent constructor blob used by
// _create_agent: a restricted, versioned encoding of
// {class_name, args, kwargs}. The encoding is JSON restricted to documented
// types; arbitrary Go values are not supported.
package classblob

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the current blob encoding version. Decoding a blob with a
// different version is rejected.
const Version = 1

// ErrMalformedBlob is returned when a blob fails to decode: wrong version,
// invalid JSON, or a missing class_name.
var ErrMalformedBlob = errors.New("classblob: malformed constructor blob")

// Blob is the decoded form of an agent constructor blob.
type Blob struct {
	ClassName string
	Args      []json.RawMessage
	Kwargs    map[string]json.RawMessage
}

type wireBlob struct {
	V         int                        `json:"v"`
	ClassName string                     `json:"class_name"`
	Args      []json.RawMessage          `json:"args,omitempty"`
	Kwargs    map[string]json.RawMessage `json:"kwargs,omitempty"`
}

// Encode serializes a Blob into the versioned wire format.
func Encode(b Blob) ([]byte, error) {
	if b.ClassName == "" {
		return nil, fmt.Errorf("%w: empty class_name", ErrMalformedBlob)
	}
	data, err := json.Marshal(wireBlob{
		V:         Version,
		ClassName: b.ClassName,
		Args:      b.Args,
		Kwargs:    b.Kwargs,
	})
	if err != nil {
		return nil, fmt.Errorf("classblob: encode: %w", err)
	}
	return data, nil
}

// Decode parses a constructor blob. It rejects unknown versions and
// malformed JSON with ErrMalformedBlob.
func Decode(data []byte) (Blob, error) {
	var w wireBlob
	if err := json.Unmarshal(data, &w); err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	if w.V != Version {
		return Blob{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedBlob, w.V)
	}
	if w.ClassName == "" {
		return Blob{}, fmt.Errorf("%w: missing class_name", ErrMalformedBlob)
	}
	return Blob{
		ClassName: w.ClassName,
		Args:      w.Args,
		Kwargs:    w.Kwargs,
	}, nil
}
