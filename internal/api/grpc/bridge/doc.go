// Package bridge implements the gRPC transport of the bridge service.
//
// The service is registered with a hand-written grpc.ServiceDesc whose
// requests and responses are google.protobuf.Struct messages, so clients
// in any language can talk to it with the well-known types alone.
package bridge
