package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/testutil/testlog"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestTemplatesLoadIdentically(t *testing.T) {
	testlog.Start(t)
	for _, format := range []string{"toml", "yaml"} {
		path := filepath.Join(t.TempDir(), "stridelink."+format)
		if err := WriteTemplate(path, format, false); err != nil {
			t.Fatalf("%s template: %v", format, err)
		}
		if err := WriteTemplate(path, format, false); err == nil {
			t.Fatalf("%s template overwrote existing file", format)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("%s load: %v", format, err)
		}
		if len(cfg.Devices) != 2 || cfg.HTTP.Addr != ":8080" {
			t.Fatalf("%s config=%+v", format, cfg)
		}
		left, right := cfg.Pair()
		if left != "left" || right != "right" {
			t.Fatalf("%s pair=%q/%q", format, left, right)
		}
		sensors, err := cfg.Devices[0].Configuration()
		if err != nil {
			t.Fatalf("%s sensors: %v", format, err)
		}
		if sensors[protocol.SensorMotion][uint8(protocol.MotionQuaternion)] != 40 {
			t.Fatalf("%s sensors=%v", format, sensors.Names())
		}
		if got := cfg.Relay.RelayTypes(); len(got) != 4 || got[1] != "pair.pressure" {
			t.Fatalf("%s relay types=%v", format, got)
		}
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeFile(t, "min.toml", "[log]\nlevel = \"debug\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Log.Level != "debug" || cfg.Relay.Buffer != 1024 {
		t.Fatalf("config=%+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(writeFile(t, "bad.toml", "[http]\nport = 9\n")); err == nil || !strings.Contains(err.Error(), "http.port") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
	if _, err := Load(writeFile(t, "bad.yaml", "http:\n  port: 9\n")); err == nil {
		t.Fatalf("expected unknown key error for yaml")
	}
}

func TestValidate(t *testing.T) {
	testlog.Start(t)
	socket := func(name, side string) DeviceConfig {
		return DeviceConfig{Name: name, Transport: TransportSocket, Address: "10.0.0.1", Side: side}
	}
	cases := []struct {
		name    string
		devices []DeviceConfig
		want    string
	}{
		{"empty name", []DeviceConfig{socket(" ", "")}, "name is required"},
		{"duplicate name", []DeviceConfig{socket("a", ""), socket("a", "")}, "duplicate name"},
		{"unknown transport", []DeviceConfig{{Name: "a", Transport: "serial"}}, "unknown transport"},
		{"missing address", []DeviceConfig{{Name: "a", Transport: TransportSocket}}, "address is required"},
		{"unknown side", []DeviceConfig{socket("a", "middle")}, "unknown side"},
		{"duplicate side", []DeviceConfig{socket("a", "left"), socket("b", "LEFT")}, "already taken"},
		{"bad sensor", []DeviceConfig{{Name: "a", Transport: TransportGATT, Sensors: map[string]map[string]float64{"motion": {"spin": 20}}}}, "spin"},
		{"bad layout", []DeviceConfig{{Name: "a", Transport: TransportGATT, Layout: &LayoutConfig{}}}, "width_mm"},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.Devices = tc.devices
		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.want, err)
		}
	}

	ok := DefaultConfig()
	ok.Devices = []DeviceConfig{socket("a", "left"), socket("b", "right"), {Name: "m", Transport: TransportGATT}}
	if err := Validate(ok); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestLayoutBuild(t *testing.T) {
	testlog.Start(t)
	l, err := LayoutConfig{WidthMM: 100, HeightMM: 200, Positions: [][2]float64{{50, 100}, {25, 50}}}.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if l.Channels() != 2 {
		t.Fatalf("channels=%d", l.Channels())
	}
}
