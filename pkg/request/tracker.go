package request

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ezlo-protocol/ezlo-go/pkg/log"
	"github.com/ezlo-protocol/ezlo-go/pkg/wire"
)

// Request errors.
var (
	// ErrTimeout indicates the hub did not reply within the deadline.
	ErrTimeout = errors.New("request timeout")

	// ErrAborted indicates the connection went down with the request
	// still pending.
	ErrAborted = errors.New("request aborted")
)

// DefaultTimeout is the reply deadline when the caller does not
// specify one.
const DefaultTimeout = 15 * time.Second

// Sender transmits an encoded frame to the hub.
type Sender interface {
	Send(data []byte) error
}

// settlement carries the outcome of a pending request to its waiter.
type settlement struct {
	envelope *wire.Envelope
	err      error
}

type pending struct {
	method string
	sent   time.Time
	done   chan settlement
}

// Tracker sends requests and matches replies by ID. Each pending
// request settles exactly once.
type Tracker struct {
	sender  Sender
	ids     *idGenerator
	timeout time.Duration

	logger log.Logger
	connID string

	mu      sync.Mutex
	pending map[string]*pending
}

// NewTracker creates a tracker that transmits via sender. A zero
// timeout selects DefaultTimeout. Logger may be nil.
func NewTracker(sender Sender, timeout time.Duration, logger log.Logger) *Tracker {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Tracker{
		sender:  sender,
		ids:     newIDGenerator(),
		timeout: timeout,
		logger:  logger,
		pending: make(map[string]*pending),
	}
}

// SetConnectionID tags protocol log events with the given connection.
func (t *Tracker) SetConnectionID(id string) {
	t.mu.Lock()
	t.connID = id
	t.mu.Unlock()
}

// Pending returns the number of requests awaiting a reply.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Call sends a request and blocks until the reply arrives, the
// timeout elapses, the context is done, or the tracker is aborted.
// A hub-reported error is returned as a *wire.Error with the reply
// envelope alongside it.
func (t *Tracker) Call(ctx context.Context, spec wire.MethodSpec, params any) (*wire.Envelope, error) {
	return t.CallTimeout(ctx, spec, params, t.timeout)
}

// CallTimeout is Call with an explicit reply deadline.
func (t *Tracker) CallTimeout(ctx context.Context, spec wire.MethodSpec, params any, timeout time.Duration) (*wire.Envelope, error) {
	if timeout <= 0 {
		timeout = t.timeout
	}

	req := wire.Request{
		API:    spec.API,
		ID:     t.ids.Next(),
		Method: spec.Method,
		Params: params,
	}
	data, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", spec.Method, err)
	}

	p := &pending{
		method: spec.Method,
		sent:   time.Now(),
		done:   make(chan settlement, 1),
	}
	t.mu.Lock()
	t.pending[req.ID] = p
	connID := t.connID
	t.mu.Unlock()

	t.logMessage(connID, log.DirectionOut, log.MessageEvent{
		Type:      log.MessageTypeRequest,
		RequestID: req.ID,
		Method:    spec.Method,
	})

	if err := t.sender.Send(data); err != nil {
		t.remove(req.ID)
		return nil, fmt.Errorf("send %s: %w", spec.Method, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s := <-p.done:
		return s.envelope, s.err
	case <-timer.C:
		t.remove(req.ID)
		return nil, fmt.Errorf("%s: %w after %s", spec.Method, ErrTimeout, timeout)
	case <-ctx.Done():
		t.remove(req.ID)
		return nil, fmt.Errorf("%s: %w", spec.Method, ctx.Err())
	}
}

// HandleReply settles the pending request matching the envelope's ID.
// It reports whether the envelope was consumed; unmatched replies
// (late arrivals after timeout, or IDs this tracker never issued) are
// left to the caller.
func (t *Tracker) HandleReply(env *wire.Envelope) bool {
	t.mu.Lock()
	p, ok := t.pending[env.ID]
	if ok {
		delete(t.pending, env.ID)
	}
	connID := t.connID
	t.mu.Unlock()
	if !ok {
		return false
	}

	rt := time.Since(p.sent)
	ev := log.MessageEvent{
		Type:      log.MessageTypeReply,
		RequestID: env.ID,
		Method:    p.method,
		RoundTrip: &rt,
	}

	s := settlement{envelope: env}
	if env.Error != nil {
		code := env.Error.Code
		ev.ErrorCode = &code
		s.err = env.Error
	}
	t.logMessage(connID, log.DirectionIn, ev)

	p.done <- s
	return true
}

// AbortAll settles every pending request with the given error,
// or ErrAborted when err is nil. Used on connection loss and stop.
func (t *Tracker) AbortAll(err error) {
	if err == nil {
		err = ErrAborted
	}

	t.mu.Lock()
	aborted := t.pending
	t.pending = make(map[string]*pending)
	t.mu.Unlock()

	for _, p := range aborted {
		p.done <- settlement{err: fmt.Errorf("%s: %w", p.method, err)}
	}
}

func (t *Tracker) remove(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

func (t *Tracker) logMessage(connID string, dir log.Direction, msg log.MessageEvent) {
	t.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Message:      &msg,
	})
}
