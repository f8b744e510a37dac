package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSessionClosed completes the requests still outstanding when the
// transport session they were sent on ends.
var ErrSessionClosed = errors.New("session: closed before reply")

// Call is one outstanding request. It completes when a record of the same
// topic arrives and never times out on its own.
type Call struct {
	Kind  Kind
	done  chan struct{}
	reply Inbound
	err   error
}

func newCall(kind Kind) *Call {
	return &Call{Kind: kind, done: make(chan struct{})}
}

func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the reply arrives or ctx ends. Abandoning the wait does
// not remove the request; a later reply still completes it.
func (c *Call) Wait(ctx context.Context) (Inbound, error) {
	select {
	case <-c.done:
		return c.reply, c.err
	case <-ctx.Done():
		return Inbound{}, ctx.Err()
	}
}

// Outbox batches pending commands for one socket session and correlates
// replies with the requests waiting on them.
type Outbox struct {
	mu       sync.Mutex
	order    []Kind
	pending  map[Kind][]byte
	inflight map[Kind]*Call
	waiters  map[Kind][]*Call
}

func NewOutbox() *Outbox {
	return &Outbox{
		pending:  make(map[Kind][]byte),
		inflight: make(map[Kind]*Call),
		waiters:  make(map[Kind][]*Call),
	}
}

// Get queues a read of kind. While one is outstanding, later callers join it.
func (o *Outbox) Get(kind Kind) (*Call, error) {
	if !kind.IsGet() {
		return nil, fmt.Errorf("%w: %s is not a get", ErrInvalidKind, kind)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if call, ok := o.inflight[kind]; ok {
		return call, nil
	}
	call := newCall(kind)
	o.inflight[kind] = call
	o.queue(kind, nil)
	return call, nil
}

// Set queues a write of kind, superseding a pending get of the same topic.
// A second Set before Flush replaces the payload in place.
func (o *Outbox) Set(kind Kind, payload []byte) (*Call, error) {
	if !kind.IsSet() {
		return nil, fmt.Errorf("%w: %s is not a set", ErrInvalidKind, kind)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unqueue(kind.Topic())
	o.queue(kind, append([]byte(nil), payload...))
	call := newCall(kind)
	o.waiters[kind.Topic()] = append(o.waiters[kind.Topic()], call)
	return call, nil
}

func (o *Outbox) queue(kind Kind, payload []byte) {
	if _, ok := o.pending[kind]; !ok {
		o.order = append(o.order, kind)
	}
	o.pending[kind] = payload
}

func (o *Outbox) unqueue(kind Kind) {
	if _, ok := o.pending[kind]; !ok {
		return
	}
	delete(o.pending, kind)
	for i, k := range o.order {
		if k == kind {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// Flush serializes the pending set in insertion order and clears it in the
// same critical section. It returns nil when nothing is pending.
func (o *Outbox) Flush() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.order) == 0 {
		return nil
	}
	cmds := make([]Command, 0, len(o.order))
	for _, k := range o.order {
		cmds = append(cmds, Command{Kind: k, Payload: o.pending[k]})
	}
	o.order = o.order[:0]
	o.pending = make(map[Kind][]byte)
	return EncodeCommands(cmds...)
}

// Resolve completes every request whose topic matches the record and
// returns how many were completed.
func (o *Outbox) Resolve(in Inbound) int {
	topic := in.Kind.Topic()
	o.mu.Lock()
	var calls []*Call
	if call, ok := o.inflight[topic]; ok {
		calls = append(calls, call)
		delete(o.inflight, topic)
	}
	calls = append(calls, o.waiters[topic]...)
	delete(o.waiters, topic)
	o.mu.Unlock()

	for _, call := range calls {
		call.reply = in
		close(call.done)
	}
	return len(calls)
}

// Abort ends the session: queued commands are discarded and every
// outstanding request completes with err, so the next session's gets are
// queued afresh instead of joining calls nobody will answer.
func (o *Outbox) Abort(err error) int {
	if err == nil {
		err = ErrSessionClosed
	}
	o.mu.Lock()
	calls := make([]*Call, 0, len(o.inflight))
	for _, call := range o.inflight {
		calls = append(calls, call)
	}
	for _, w := range o.waiters {
		calls = append(calls, w...)
	}
	o.order = o.order[:0]
	o.pending = make(map[Kind][]byte)
	o.inflight = make(map[Kind]*Call)
	o.waiters = make(map[Kind][]*Call)
	o.mu.Unlock()

	for _, call := range calls {
		call.err = err
		close(call.done)
	}
	return len(calls)
}

// Outstanding reports how many requests still wait for a reply.
func (o *Outbox) Outstanding() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.inflight)
	for _, w := range o.waiters {
		n += len(w)
	}
	return n
}
