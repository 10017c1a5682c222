package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// RPCStart is emitted when a Compiler RPC begins.
// Client is set for outgoing calls; Target is empty on the server side.
type RPCStart struct {
	Method string
	Target string
	Client bool
}

// RPCFinish is emitted after a Compiler RPC completes.
type RPCFinish struct {
	Method   string
	Target   string
	Client   bool
	Code     codes.Code
	Err      error
	Duration time.Duration
}
