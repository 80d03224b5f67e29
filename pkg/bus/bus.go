package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultRequestTimeout bounds a request when the caller does not pick one.
const DefaultRequestTimeout = 15 * time.Second

var (
	// ErrTimeout means no response arrived within the request deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrTransport means the underlying transport reported delivery failure.
	ErrTransport = errors.New("transport failure")
	// ErrNoResponse means the transport completed but produced no payload.
	ErrNoResponse = errors.New("no response payload")
	// ErrDuplicateRequest means the request id is already in flight.
	ErrDuplicateRequest = errors.New("request id already pending")
)

// Handler processes one inbound message and returns the response payload.
// Returning an error makes the bus deliver a structured ErrorPayload to the
// sender instead of failing the round trip.
type Handler func(ctx context.Context, msg Message) (json.RawMessage, error)

type outcome struct {
	payload json.RawMessage
	err     error
}

// Bus is one execution context's end of the message-passing layer.
//
// Outbound requests go through the attached Transport and settle exactly
// once: with the counterpart's response, a timeout, a transport failure, or
// an empty-payload completion. Inbound messages are dispatched to the single
// registered handler.
type Bus struct {
	name      string
	transport Transport
	log       *slog.Logger
	timeout   time.Duration

	mu      sync.RWMutex
	handler Handler
	pending map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a bus endpoint for the named execution context. The transport
// may be nil for contexts that only receive.
func New(name string, transport Transport, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}

	return &Bus{
		name:      name,
		transport: transport,
		log:       log.With("component", "bus", "context", name),
		timeout:   DefaultRequestTimeout,
		pending:   make(map[string]struct{}),
		done:      make(chan struct{}),
	}
}

// SendRequest sends msg to the counterpart context and waits for its
// response, bounded by the default timeout.
func (b *Bus) SendRequest(ctx context.Context, msg Message) (Response, error) {
	return b.SendRequestTimeout(ctx, msg, b.timeout)
}

// SendRequestTimeout is SendRequest with an explicit deadline.
func (b *Bus) SendRequestTimeout(ctx context.Context, msg Message, timeout time.Duration) (Response, error) {
	return b.sendVia(ctx, b.transport, msg, timeout)
}

func (b *Bus) sendVia(ctx context.Context, transport Transport, msg Message, timeout time.Duration) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if transport == nil {
		return Response{}, fmt.Errorf("%w: context %q has no transport", ErrTransport, b.name)
	}
	if msg.RequestID == "" {
		return Response{}, errors.New("request id is required")
	}

	b.mu.Lock()
	select {
	case <-b.done:
		b.mu.Unlock()
		return Response{}, fmt.Errorf("%w: context %q is closed", ErrTransport, b.name)
	default:
	}
	if _, exists := b.pending[msg.RequestID]; exists {
		b.mu.Unlock()
		return Response{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, msg.RequestID)
	}
	b.pending[msg.RequestID] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, msg.RequestID)
		b.mu.Unlock()
	}()

	// Buffered so a late delivery never blocks the transport goroutine.
	resultCh := make(chan outcome, 1)
	go func() {
		payload, err := transport.Deliver(ctx, msg)
		resultCh <- outcome{payload: payload, err: err}
	}()

	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-resultCh:
		if out.err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrTransport, out.err)
		}
		if len(out.payload) == 0 {
			return Response{}, fmt.Errorf("%w: request %s completed empty", ErrNoResponse, msg.RequestID)
		}
		return Response{RequestID: msg.RequestID, Payload: out.payload}, nil
	case <-timer.C:
		b.discardLate(msg, resultCh)
		return Response{}, fmt.Errorf("%w: request %s after %s", ErrTimeout, msg.RequestID, timeout)
	case <-ctx.Done():
		b.discardLate(msg, resultCh)
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
	case <-b.done:
		return Response{}, fmt.Errorf("%w: context %q is closed", ErrTransport, b.name)
	}
}

// discardLate drains the eventual transport outcome once the waiter has
// settled, so a late response is dropped instead of delivered.
func (b *Bus) discardLate(msg Message, resultCh <-chan outcome) {
	go func() {
		out := <-resultCh
		if out.err == nil && len(out.payload) > 0 {
			b.log.Debug("Discarded late response",
				"action", msg.Action,
				"request_id", msg.RequestID,
			)
		}
	}()
}

// RegisterHandler installs the single inbound handler for this context,
// replacing any previous registration. The swap takes effect from the next
// inbound dispatch; an in-flight dispatch keeps the handler it snapshotted.
func (b *Bus) RegisterHandler(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// RemoveHandler uninstalls the inbound handler. No-op when none is set.
func (b *Bus) RemoveHandler() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = nil
}

// Dispatch routes one inbound message to the registered handler and returns
// the payload to hand back to the sender. Handler failures are converted to
// a structured ErrorPayload so the sender still receives a reply.
func (b *Bus) Dispatch(ctx context.Context, msg Message) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()

	if handler == nil {
		return nil, fmt.Errorf("no handler registered in context %q", b.name)
	}

	payload, err := handler(ctx, msg)
	if err != nil {
		b.log.Warn("Handler failed", "action", msg.Action, "request_id", msg.RequestID, "error", err)
		structured, marshalErr := json.Marshal(ErrorPayload{Error: err.Error()})
		if marshalErr != nil {
			return nil, marshalErr
		}
		return structured, nil
	}

	return payload, nil
}

// Broadcast fans msg out to every resolved target concurrently and joins
// the successful responses. A failing target is logged and excluded; only a
// resolver failure fails the whole call. Each target gets its own fresh
// correlation id.
func (b *Bus) Broadcast(ctx context.Context, msg Message, resolver TargetResolver) ([]Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if resolver == nil {
		return nil, errors.New("target resolver is required")
	}

	targets, err := resolver.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast targets: %w", err)
	}

	var (
		respMu    sync.Mutex
		responses = make([]Response, 0, len(targets))
		group     errgroup.Group
	)

	for _, target := range targets {
		target := target
		group.Go(func() error {
			req := msg
			req.RequestID = uuid.NewString()

			resp, sendErr := b.sendVia(ctx, target.Transport, req, b.timeout)
			if sendErr != nil {
				b.log.Warn("Broadcast target failed",
					"target", target.Name,
					"action", msg.Action,
					"error", sendErr,
				)
				return nil
			}

			respMu.Lock()
			responses = append(responses, resp)
			respMu.Unlock()
			return nil
		})
	}

	// Per-target failures are absorbed above, so Wait cannot fail.
	_ = group.Wait()

	return responses, nil
}

// Valid reports whether this context's bus endpoint is still live.
func (b *Bus) Valid() bool {
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// Close tears the endpoint down. Pending requests settle with a transport
// failure; further sends are rejected.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}
