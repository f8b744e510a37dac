package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/testutil/testlog"
)

// queued lists the kinds waiting for the next Flush, in insertion order.
func (o *Outbox) queued() []Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Kind(nil), o.order...)
}

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 5}
	calls := 0
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}

	calls = 0
	boom := errors.New("boom")
	cfg.MaxAttempts = 2
	if err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return boom
	}); !errors.Is(err, boom) || calls != 2 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestOutboxFlushInsertionOrder(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox()
	for _, k := range []Kind{GetDebug, GetType, GetName, GetSensorDataConfigurations} {
		if _, err := o.Get(k); err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
	}
	got := o.Flush()
	want := []byte{byte(GetDebug), byte(GetType), byte(GetName), byte(GetSensorDataConfigurations)}
	if !bytes.Equal(got, want) {
		t.Fatalf("flush got=%v want=%v", got, want)
	}
	if again := o.Flush(); again != nil {
		t.Fatalf("second flush should be empty, got %v", again)
	}
	if o.Outstanding() != 4 {
		t.Fatalf("outstanding=%d", o.Outstanding())
	}
}

func TestOutboxJoinsInflightGet(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox()
	a, _ := o.Get(GetName)
	o.Flush()
	b, _ := o.Get(GetName)
	if a != b {
		t.Fatalf("second get should join the in-flight call")
	}
	if p := o.queued(); len(p) != 0 {
		t.Fatalf("joined get must not re-queue, pending=%v", p)
	}
	if n := o.Resolve(Inbound{Kind: GetName, Name: "left"}); n != 1 {
		t.Fatalf("resolved=%d", n)
	}
	reply, err := b.Wait(context.Background())
	if err != nil || reply.Name != "left" {
		t.Fatalf("reply=%+v err=%v", reply, err)
	}
	c, _ := o.Get(GetName)
	if c == a {
		t.Fatalf("get after reply should start a new call")
	}
}

func TestOutboxSetSupersedesGet(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox()
	get, _ := o.Get(GetDebug)
	o.Get(GetType)
	set, _ := o.Set(SetDebug, DebugPayload(true))
	o.Set(SetDebug, DebugPayload(false))

	got := o.Flush()
	want := []byte{byte(GetType), byte(SetDebug), 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("flush got=%v want=%v", got, want)
	}

	if n := o.Resolve(Inbound{Kind: SetDebug, Debug: false}); n != 3 {
		t.Fatalf("resolved=%d", n)
	}
	for _, c := range []*Call{get, set} {
		select {
		case <-c.Done():
		default:
			t.Fatalf("%s call not completed", c.Kind)
		}
	}
}

func TestOutboxWaitAbandonKeepsBookkeeping(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox()
	call, _ := o.Get(GetWeightDataDelay)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := call.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if o.Outstanding() != 1 {
		t.Fatalf("abandoned wait should keep the request")
	}
	o.Resolve(Inbound{Kind: GetWeightDataDelay, WeightDataDelay: 40})
	reply, err := call.Wait(context.Background())
	if err != nil || reply.WeightDataDelay != 40 {
		t.Fatalf("reply=%+v err=%v", reply, err)
	}
}

func TestOutboxRejectsWrongKinds(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox()
	if _, err := o.Get(SetName); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected invalid kind, got %v", err)
	}
	if _, err := o.Set(SensorData, nil); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected invalid kind, got %v", err)
	}
}

func TestDecodeMessagesMixed(t *testing.T) {
	testlog.Start(t)
	frame, err := protocol.NewFrameBuilder(9).Record(protocol.SensorPressure, protocol.MassEntry(0.5)).Bytes()
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	cfg := protocol.DisabledConfiguration()
	cfg[protocol.SensorMotion][uint8(protocol.MotionQuaternion)] = 40
	buf, err := EncodeMessages(
		Inbound{Kind: BatteryLevel, BatteryLevel: 87},
		Inbound{Kind: GetType, Type: protocol.RightInsole},
		Inbound{Kind: GetName, Name: "right shoe"},
		Inbound{Kind: GetSensorDataConfigurations, Configuration: cfg},
		Inbound{Kind: WeightData, Weight: 71.5},
		Inbound{Kind: SensorData, SensorData: frame},
	)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeMessages(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("records=%d", len(got))
	}
	if got[0].BatteryLevel != 87 || got[1].Type != protocol.RightInsole || got[2].Name != "right shoe" {
		t.Fatalf("unexpected records %+v", got[:3])
	}
	if !got[3].Configuration.Equal(cfg) {
		t.Fatalf("configuration=%v", got[3].Configuration.Names())
	}
	if got[4].Weight != 71.5 || !bytes.Equal(got[5].SensorData, frame) {
		t.Fatalf("unexpected tail %+v", got[4:])
	}
}

func TestDecodeMessagesUnknownKindDropsRest(t *testing.T) {
	testlog.Start(t)
	got, err := DecodeMessages([]byte{byte(GetDebug), 1, 99, byte(BatteryLevel), 50})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}
	if len(got) != 1 || !got[0].Debug {
		t.Fatalf("records=%+v", got)
	}
	if _, err := DecodeMessages([]byte{byte(GetName), 5, 'a'}); !errors.Is(err, protocol.ErrTruncatedFrame) {
		t.Fatalf("expected truncated, got %v", err)
	}
}

func TestNamePayloadTruncates(t *testing.T) {
	testlog.Start(t)
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	p := NamePayload(long)
	if p[0] != MaxNameLength || string(p[1:]) != long[:MaxNameLength] {
		t.Fatalf("payload=%q", p)
	}
}

func TestDecodeCommandsRoundTrip(t *testing.T) {
	testlog.Start(t)
	write := protocol.EncodeConfiguration(protocol.SensorConfiguration{
		protocol.SensorMotion: {uint8(protocol.MotionGravity): 40},
	}, protocol.MotionModule)
	cfgPayload, err := ConfigurationPayload(write)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	buf := EncodeCommands(
		Command{Kind: GetDebug},
		Command{Kind: SetName, Payload: NamePayload("mod")},
		Command{Kind: SetSensorDataConfigurations, Payload: cfgPayload},
		Command{Kind: SetWeightDataDelay, Payload: WeightDataDelayPayload(100)},
	)
	cmds, err := DecodeCommands(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cmds) != 4 || cmds[1].Kind != SetName || string(cmds[1].Payload[1:]) != "mod" {
		t.Fatalf("commands=%+v", cmds)
	}
	inner, _, err := SplitConfigurationPayload(cmds[2].Payload)
	if err != nil || !bytes.Equal(inner, write) {
		t.Fatalf("configuration payload=%v err=%v", inner, err)
	}
}

func TestOutboxAbortFailsOutstandingAndRequeues(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox()
	first, _ := o.Get(GetDebug)
	set, _ := o.Set(SetName, NamePayload("x"))
	o.Flush()
	o.Get(GetType)
	if n := o.Abort(nil); n != 3 {
		t.Fatalf("aborted=%d", n)
	}
	if _, err := first.Wait(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected session closed, got %v", err)
	}
	if _, err := set.Wait(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected session closed for set, got %v", err)
	}
	if q := o.queued(); len(q) != 0 || o.Outstanding() != 0 {
		t.Fatalf("abort left queued=%v outstanding=%d", q, o.Outstanding())
	}

	again, _ := o.Get(GetDebug)
	if again == first {
		t.Fatalf("get after abort joined the aborted call")
	}
	if q := o.queued(); len(q) != 1 || q[0] != GetDebug {
		t.Fatalf("get after abort not queued: %v", q)
	}
}
