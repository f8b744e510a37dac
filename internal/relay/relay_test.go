package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/geom"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/danmuck/stridelink/internal/testutil/testlog"
	"github.com/segmentio/kafka-go"
)

type recordSink struct {
	mu       sync.Mutex
	failures int
	got      []event.Event
	written  chan event.Event
	closed   bool
}

func newRecordSink(failures int) *recordSink {
	return &recordSink{failures: failures, written: make(chan event.Event, 16)}
}

func (s *recordSink) Name() string { return "record" }

func (s *recordSink) Write(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("unavailable")
	}
	s.got = append(s.got, e)
	s.written <- e
	return nil
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func fastOptions() Options {
	return Options{
		Buffer:  8,
		Backoff: session.BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 3},
		Timeout: time.Second,
	}
}

func waitWritten(t *testing.T, s *recordSink) event.Event {
	t.Helper()
	select {
	case e := <-s.written:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("event not written")
	}
	return event.Event{}
}

func TestRelayForwardsInOrder(t *testing.T) {
	testlog.Start(t)
	sink := newRecordSink(0)
	r := New(fastOptions(), sink)
	bus := event.NewBus()
	r.Attach(bus)
	r.Start(context.Background())

	bus.Publish(event.Event{Type: event.Mass, Device: "left", Value: 0.5})
	bus.Publish(event.Event{Type: event.HeelToToe, Device: "left", Value: 0.25})
	first, second := waitWritten(t, sink), waitWritten(t, sink)
	if first.Type != event.Mass || second.Type != event.HeelToToe {
		t.Fatalf("order: %s then %s", first.Type, second.Type)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !sink.closed {
		t.Fatalf("sink not closed")
	}
	if r.Delivered() != 2 {
		t.Fatalf("delivered=%d", r.Delivered())
	}
}

func TestRelayRetriesFailedWrites(t *testing.T) {
	testlog.Start(t)
	sink := newRecordSink(2)
	r := New(fastOptions(), sink)
	r.Start(context.Background())
	defer r.Stop()

	r.Enqueue(event.Event{Type: event.Weight, Device: "left", Value: float32(70)})
	if e := waitWritten(t, sink); e.Type != event.Weight {
		t.Fatalf("type=%s", e.Type)
	}
}

func TestRelayDropsWhenFull(t *testing.T) {
	testlog.Start(t)
	opts := fastOptions()
	opts.Buffer = 2
	r := New(opts, newRecordSink(0))
	for i := 0; i < 5; i++ {
		r.Enqueue(event.Event{Type: event.Mass})
	}
	if r.Dropped() != 3 {
		t.Fatalf("dropped=%d", r.Dropped())
	}
}

func TestRelayTypeFilter(t *testing.T) {
	testlog.Start(t)
	opts := fastOptions()
	opts.Types = []event.Type{event.PairPressure}
	sink := newRecordSink(0)
	r := New(opts, sink)
	r.Start(context.Background())
	defer r.Stop()

	r.Enqueue(event.Event{Type: event.Mass})
	r.Enqueue(event.Event{Type: event.PairPressure})
	if e := waitWritten(t, sink); e.Type != event.PairPressure {
		t.Fatalf("type=%s", e.Type)
	}
	select {
	case e := <-sink.written:
		t.Fatalf("unexpected %s", e.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTopic(t *testing.T) {
	testlog.Start(t)
	e := event.Event{Type: event.CenterOfMass, Device: "lab/left"}
	if got := topic("stride/", "/", e); got != "stride/lab_left/centerOfMass" {
		t.Fatalf("mqtt topic=%s", got)
	}
	e.Device = "a.b"
	if got := topic("", ".", e); got != "a_b.centerOfMass" {
		t.Fatalf("nats subject=%s", got)
	}
}

func TestFields(t *testing.T) {
	testlog.Start(t)
	q := fields(event.Event{Type: event.Quaternion, Value: protocol.MotionSample{
		DataType:   protocol.MotionQuaternion,
		Quaternion: geom.Quaternion{W: 1},
	}})
	if q["w"] != 1.0 {
		t.Fatalf("quaternion fields=%v", q)
	}
	p := protocol.PressureSample{Sum: 32, Channels: []protocol.Channel{{Value: 16}, {Value: 16}}}
	if f := fields(event.Event{Type: event.PressureSingleByte, Value: p}); f != nil {
		t.Fatalf("form event should not duplicate pressure: %v", f)
	}
	f := fields(event.Event{Type: event.Pressure, Value: p})
	if f["sum"] != int64(32) || f["ch1"] != int64(16) {
		t.Fatalf("pressure fields=%v", f)
	}
	if f := fields(event.Event{Type: event.Name, Value: "left"}); f != nil {
		t.Fatalf("string value produced fields: %v", f)
	}
}

type fakeKafka struct {
	msgs []kafka.Message
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error { return nil }

func TestKafkaKeysByDevice(t *testing.T) {
	testlog.Start(t)
	w := &fakeKafka{}
	k := &Kafka{w: w}
	if err := k.Write(context.Background(), event.Event{Type: event.Mass, Device: "right", Value: 0.4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "right" {
		t.Fatalf("messages=%+v", w.msgs)
	}
	var m Message
	if err := json.Unmarshal(w.msgs[0].Value, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.ID == "" || m.Type != event.Mass || string(w.msgs[0].Headers[0].Value) != m.ID {
		t.Fatalf("message=%+v headers=%+v", m, w.msgs[0].Headers)
	}
}
