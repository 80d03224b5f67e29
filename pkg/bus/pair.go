package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

type pairEndpoint struct {
	peer *Bus
}

func (e *pairEndpoint) Deliver(ctx context.Context, msg Message) (json.RawMessage, error) {
	if e.peer == nil || !e.peer.Valid() {
		return nil, errors.New("peer context is gone")
	}

	return e.peer.Dispatch(ctx, msg)
}

// NewPair wires two in-process bus endpoints back to back, each delivering
// straight into the other's dispatch. This is the single-process analogue of
// two isolated contexts sharing one transport channel.
func NewPair(nameA, nameB string, log *slog.Logger) (*Bus, *Bus) {
	endpointA := &pairEndpoint{}
	endpointB := &pairEndpoint{}

	a := New(nameA, endpointA, log)
	b := New(nameB, endpointB, log)
	endpointA.peer = b
	endpointB.peer = a

	return a, b
}
