package devicesim

import (
	"testing"

	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/danmuck/stridelink/internal/testutil/testlog"
)

func configWrite(t *testing.T, cfg protocol.SensorConfiguration, typ protocol.DeviceType) session.Command {
	t.Helper()
	payload, err := session.ConfigurationPayload(protocol.EncodeConfiguration(cfg, typ))
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	return session.Command{Kind: session.SetSensorDataConfigurations, Payload: payload}
}

func TestDeviceAnswersGets(t *testing.T) {
	testlog.Start(t)
	d := NewDevice(Config{Name: "sim", Type: protocol.LeftInsole})
	replies, err := d.Handle(session.EncodeCommands(
		session.Command{Kind: session.GetDebug},
		session.Command{Kind: session.GetType},
		session.Command{Kind: session.GetName},
		session.Command{Kind: session.GetSensorDataConfigurations},
	))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(replies) != 4 {
		t.Fatalf("replies=%d", len(replies))
	}
	if replies[1].Type != protocol.LeftInsole || replies[2].Name != "sim" {
		t.Fatalf("replies=%+v", replies)
	}
	if !replies[3].Configuration.Equal(protocol.DisabledConfiguration()) {
		t.Fatalf("configuration=%v", replies[3].Configuration.Names())
	}
}

func TestDeviceAppliesWritesWithQuantization(t *testing.T) {
	testlog.Start(t)
	d := NewDevice(Config{Name: "sim", Type: protocol.MotionModule})
	replies, err := d.Handle(session.EncodeCommands(
		configWrite(t, protocol.SensorConfiguration{
			protocol.SensorMotion:   {uint8(protocol.MotionAcceleration): 37},
			protocol.SensorPressure: {uint8(protocol.PressureMass): 40},
		}, protocol.LeftInsole),
		session.Command{Kind: session.SetName, Payload: session.NamePayload("renamed")},
		session.Command{Kind: session.SetWeightDataDelay, Payload: session.WeightDataDelayPayload(55)},
	))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	cfg := replies[0].Configuration
	if cfg[protocol.SensorMotion][uint8(protocol.MotionAcceleration)] != 20 {
		t.Fatalf("acceleration=%v", cfg.Names())
	}
	if cfg[protocol.SensorPressure][uint8(protocol.PressureMass)] != 0 {
		t.Fatalf("module must ignore pressure configuration: %v", cfg.Names())
	}
	if replies[1].Kind != session.SetName || replies[1].Name != "renamed" {
		t.Fatalf("name reply=%+v", replies[1])
	}
	if replies[2].WeightDataDelay != 40 {
		t.Fatalf("weight delay=%d", replies[2].WeightDataDelay)
	}
}

func TestStreamerHonorsDelays(t *testing.T) {
	testlog.Start(t)
	d := NewDevice(Config{Type: protocol.RightInsole, WeightDataDelay: 100})
	d.Handle(session.EncodeCommands(configWrite(t, protocol.SensorConfiguration{
		protocol.SensorMotion:   {uint8(protocol.MotionQuaternion): 40},
		protocol.SensorPressure: {uint8(protocol.PressureSingleByte): 20},
	}, protocol.RightInsole)))

	s := NewStreamer(d)
	dec := protocol.NewDecoder(protocol.RightInsole)
	quats, pressures, weights := 0, 0, 0
	for ms := uint32(Tick); ms <= 200; ms += Tick {
		if s.WeightDue(ms) {
			weights++
		}
		buf, ok, err := s.Frame(ms)
		if err != nil {
			t.Fatalf("frame: %v", err)
		}
		if !ok {
			continue
		}
		f, err := dec.DecodeFrame(buf)
		if err != nil {
			t.Fatalf("decode at %d: %v", ms, err)
		}
		for _, r := range f.Records {
			quats += len(r.Motion)
			pressures += len(r.Pressure)
		}
	}
	if pressures != 10 || quats != 5 || weights != 2 {
		t.Fatalf("pressures=%d quats=%d weights=%d", pressures, quats, weights)
	}
}

func TestStreamerIdleWhenDisabled(t *testing.T) {
	testlog.Start(t)
	s := NewStreamer(NewDevice(DefaultConfig()))
	if _, ok, _ := s.Frame(Tick); ok {
		t.Fatalf("disabled device should not stream")
	}
}
