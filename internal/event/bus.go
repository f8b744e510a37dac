package event

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Handler receives published events synchronously on the publisher's
// goroutine. Handlers must not block.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events by type. The zero value is not usable; use NewBus.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	byType map[Type][]subscription
	all    []subscription
	now    func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		byType: make(map[Type][]subscription),
		now:    time.Now,
	}
}

// Subscribe registers h for one event type and returns its cancel func.
func (b *Bus) Subscribe(t Type, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[t] = append(b.byType[t], subscription{id: id, handler: h})
	return func() { b.remove(t, id) }
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})
	return func() { b.remove("", id) }
}

// Once registers h for the next event of type t only.
func (b *Bus) Once(t Type, h Handler) func() {
	var once sync.Once
	var cancel func()
	var mu sync.Mutex
	mu.Lock()
	cancel = b.Subscribe(t, func(e Event) {
		once.Do(func() {
			mu.Lock()
			c := cancel
			mu.Unlock()
			c()
			h(e)
		})
	})
	mu.Unlock()
	return cancel
}

func (b *Bus) remove(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.all
	if t != "" {
		list = b.byType[t]
	}
	for i, s := range list {
		if s.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if t == "" {
		b.all = list
	} else {
		b.byType[t] = list
	}
}

// Publish stamps e.At when unset and calls every matching handler in
// subscription order. A panicking handler is logged and skipped.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.byType[e.Type])+len(b.all))
	for _, s := range b.byType[e.Type] {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.all {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		dispatch(h, e)
	}
}

func dispatch(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("event.Bus.Publish handler panic type=%s device=%s: %v", e.Type, e.Device, r)
		}
	}()
	h(e)
}
