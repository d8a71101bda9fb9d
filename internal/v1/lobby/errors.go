package lobby

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// The RPC-boundary error taxonomy (§7) is expressed as grpc/codes +
// grpc/status values, the same packages the teacher uses on its SFU client
// and health-check client — a transport-agnostic *status.Status any real
// RPC/WebSocket front end can translate to its own wire error.
var (
	errNotFound          = status.Error(codes.NotFound, "session not found")
	errResourceExhausted = status.Error(codes.ResourceExhausted, "session is full")
	errInvalidSignal     = status.Error(codes.InvalidArgument, "signal has no payload")
	errInternal          = status.Error(codes.Internal, "internal error")
)
