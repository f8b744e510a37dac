package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/stridelink/internal/devicesim"
	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stridelink.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, "[http]\naddr = \":9000\"\n")
	f, err := parseFlags([]string{"-config", path, "-addr", "127.0.0.1:9100", "-log-level", "debug"})
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	cfg, err := loadConfig(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9100" || cfg.Log.Level != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	f.logLevel = "loud"
	if _, err := loadConfig(f); err == nil {
		t.Fatalf("expected unknown level error")
	}
}

func TestAppConfiguresAndDisablesOnShutdown(t *testing.T) {
	testlog.Start(t)
	simDev := devicesim.NewDevice(devicesim.Config{Name: "left", Type: protocol.LeftInsole})
	sim := httptest.NewServer(devicesim.NewServer(simDev).Handler())
	defer sim.Close()

	path := writeConfig(t, fmt.Sprintf(`
[[devices]]
name = "left"
transport = "socket"
address = %q
side = "left"

[devices.sensors.pressure]
pressureSingleByte = 45

[[devices]]
name = "ble"
transport = "gatt"
`, strings.TrimPrefix(sim.URL, "http://")))
	f, _ := parseFlags([]string{"-config", path})
	cfg, err := loadConfig(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	if len(a.links) != 1 || a.agg != nil || a.relay != nil {
		t.Fatalf("links=%d agg=%v relay=%v", len(a.links), a.agg, a.relay)
	}

	a.connect(context.Background(), a.links[0])
	_, simCfg, _ := simDev.Snapshot()
	if got := simCfg[protocol.SensorPressure][uint8(protocol.PressureSingleByte)]; got != 40 {
		t.Fatalf("pressure delay on device=%d", got)
	}

	a.shutdown()
	_, simCfg, _ = simDev.Snapshot()
	if !simCfg.Equal(protocol.DisabledConfiguration()) {
		t.Fatalf("sensors left enabled: %v", simCfg.Names())
	}
	if a.links[0].IsConnected() {
		t.Fatalf("link still connected")
	}
}

func TestAppReconnectsDroppedSession(t *testing.T) {
	testlog.Start(t)
	simDev := devicesim.NewDevice(devicesim.Config{Name: "right", Type: protocol.RightInsole})
	sim := httptest.NewServer(devicesim.NewServer(simDev).Handler())
	defer sim.Close()

	path := writeConfig(t, fmt.Sprintf(`
[http]
addr = "127.0.0.1:0"

[[devices]]
name = "right"
transport = "socket"
address = %q
reconnect = true
`, strings.TrimPrefix(sim.URL, "http://")))
	f, _ := parseFlags([]string{"-config", path})
	cfg, err := loadConfig(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	connected := make(chan struct{}, 4)
	a.bus.Subscribe(event.Connected, func(event.Event) { connected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	wait := func(what string) {
		t.Helper()
		select {
		case <-connected:
		case <-time.After(5 * time.Second):
			t.Fatalf("%s: no connected event", what)
		}
	}
	wait("initial connect")

	// Closing the link under the running app stands in for a dropped socket.
	if err := a.links[0].Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wait("reconnect")
	if !a.links[0].IsConnected() {
		t.Fatalf("link not reconnected")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return")
	}
	time.Sleep(50 * time.Millisecond)
	if a.links[0].IsConnected() {
		t.Fatalf("link reconnected after shutdown")
	}
}
