// Package relay forwards published device events to downstream sinks without
// blocking the decoding path.
package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/observability"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

// Sink receives events one at a time from the relay worker.
type Sink interface {
	Name() string
	Write(ctx context.Context, e event.Event) error
	Close() error
}

// ErrSkip tells the relay a sink deliberately ignored an event.
var ErrSkip = errors.New("relay: skipped")

type Options struct {
	Buffer int
	// Types limits forwarding to the listed event types; empty forwards all.
	Types   []event.Type
	Backoff session.BackoffConfig
	Timeout time.Duration
}

func DefaultOptions() Options {
	b := session.DefaultConfig().Backoff
	return Options{Buffer: 1024, Backoff: b, Timeout: 5 * time.Second}
}

type Relay struct {
	opts  Options
	sinks []Sink
	types map[event.Type]bool
	queue chan event.Event

	dropped   atomic.Uint64
	delivered atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(opts Options, sinks ...Sink) *Relay {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultOptions().Buffer
	}
	r := &Relay{
		opts:  opts,
		sinks: sinks,
		queue: make(chan event.Event, opts.Buffer),
		done:  make(chan struct{}),
	}
	if len(opts.Types) > 0 {
		r.types = make(map[event.Type]bool, len(opts.Types))
		for _, t := range opts.Types {
			r.types[t] = true
		}
	}
	return r
}

// Attach subscribes the relay to every event on bus.
func (r *Relay) Attach(bus *event.Bus) func() {
	return bus.SubscribeAll(r.Enqueue)
}

// Enqueue queues e for the sinks. A full queue drops e.
func (r *Relay) Enqueue(e event.Event) {
	if r.types != nil && !r.types[e.Type] {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
		observability.RecordRelayWrite("queue", "dropped", 0)
	}
}

func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}

// Delivered counts events written to at least one sink.
func (r *Relay) Delivered() uint64 {
	return r.delivered.Load()
}

// Start runs the worker until ctx ends or Stop is called.
func (r *Relay) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		go r.run(ctx)
	})
}

func (r *Relay) run(ctx context.Context) {
	defer close(r.done)
	log.Info().Msgf("relay.Relay.run sinks=%d buffer=%d", len(r.sinks), cap(r.queue))
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-r.queue:
			r.deliver(ctx, e)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, e event.Event) {
	ok := false
	for _, s := range r.sinks {
		start := time.Now()
		skipped := false
		err := session.Retry(ctx, r.opts.Backoff, func(ctx context.Context) error {
			if r.opts.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
				defer cancel()
			}
			err := s.Write(ctx, e)
			if errors.Is(err, ErrSkip) {
				skipped = true
				return nil
			}
			return err
		})
		switch {
		case skipped:
			observability.RecordRelayWrite(s.Name(), "skipped", time.Since(start))
		case err != nil:
			observability.RecordRelayWrite(s.Name(), "error", time.Since(start))
			log.Warn().Err(err).Msgf("relay.Relay.deliver sink=%s type=%s device=%s", s.Name(), e.Type, e.Device)
		default:
			ok = true
			observability.RecordRelayWrite(s.Name(), "ok", time.Since(start))
		}
	}
	if ok {
		r.delivered.Add(1)
	}
}

// Stop ends the worker and closes every sink. Queued events are discarded.
func (r *Relay) Stop() error {
	var errs []error
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
		for _, s := range r.sinks {
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
