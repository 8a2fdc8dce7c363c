// Package chatpb defines the wire messages and service descriptors for the
// chat cluster's gRPC surface. No protoc toolchain is available in this
// repository, so messages are plain Go structs marshaled by a small JSON
// codec registered under the grpc-go codec name "proto" (overriding the
// default encoding, which grpc-go explicitly supports via
// encoding.RegisterCodec). The ServiceDesc/StreamDesc values below are
// hand-declared the way protoc-gen-go-grpc would emit them.
package chatpb

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName intentionally matches grpc-go's built-in codec name so that
// every call site (client and server) that does not explicitly request a
// different codec gets JSON framing transparently.
const codecName = "proto"

// jsonCodec implements encoding.Codec, the original v1 codec interface that
// encoding.RegisterCodec accepts; newer grpc-go also defines encoding.CodecV2,
// which this type does not implement.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("chatpb: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("chatpb: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
