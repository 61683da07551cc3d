package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements grpc's encoding.Codec using encoding/json instead
// of protobuf wire encoding. It is registered under the name "proto",
// deliberately replacing grpc's built-in default codec for this binary,
// so that calls made with no explicit content-subtype (the normal case)
// use it automatically on both client and server.
//
// This exists because generating real protoc-compiled message types
// requires running protoc, which this build environment cannot do (see
// DESIGN.md). grpc's transport, TLS, and streaming machinery — the
// actual dependency being exercised here — is untouched; only the wire
// format for message bodies changes.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "proto"
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
