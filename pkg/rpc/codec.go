// Package rpc implements the management service's modern RPC surface:
// node, target, pool, buddy-group, and quota administration, plus a
// topology-change subscription stream. It runs on top of
// google.golang.org/grpc for transport, stream multiplexing, and TLS
// negotiation, but swaps grpc's usual protobuf wire codec for a JSON one
// (jsonCodec below) so the service methods can be hand-registered as a
// grpc.ServiceDesc without a protoc code generation step.
package rpc

import (
	"encoding/json"
)

// jsonCodec implements grpc's encoding.Codec (Marshal/Unmarshal/Name) over
// plain JSON-tagged Go structs instead of protobuf messages. It is wired
// in as the server's codec via grpc.ForceServerCodec so it applies to
// every method regardless of what content-subtype a client negotiates.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return "json" }

// Empty is the request or response for RPCs with nothing to carry.
type Empty struct{}
