package bus

import (
	"context"
	"encoding/json"
)

// Transport delivers a message to the counterpart execution context and
// returns the payload the counterpart produced for it.
//
// A non-nil error means the transport layer itself failed (the receiving
// context is gone, the connection dropped). A nil error with an empty
// payload means delivery succeeded but the counterpart produced nothing.
type Transport interface {
	Deliver(ctx context.Context, msg Message) (json.RawMessage, error)
}

// Target is one addressable broadcast destination.
type Target struct {
	Name      string
	Transport Transport
}

// TargetResolver enumerates the current broadcast target set.
type TargetResolver interface {
	Targets(ctx context.Context) ([]Target, error)
}

// StaticResolver is a TargetResolver over a fixed target list.
type StaticResolver []Target

// Targets returns the fixed target set.
func (r StaticResolver) Targets(context.Context) ([]Target, error) {
	return []Target(r), nil
}
