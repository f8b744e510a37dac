package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/stridelink/internal/device"
	"github.com/danmuck/stridelink/internal/devicesim"
	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/pair"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/danmuck/stridelink/internal/testutil/testlog"
	"github.com/danmuck/stridelink/internal/transport"
	"github.com/danmuck/stridelink/internal/transport/socket"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func connectSim(t *testing.T, name string, typ protocol.DeviceType, bus *event.Bus) transport.Link {
	t.Helper()
	sim := httptest.NewServer(devicesim.NewServer(devicesim.NewDevice(devicesim.Config{Name: name, Type: typ})).Handler())
	t.Cleanup(sim.Close)
	c := socket.New(strings.TrimPrefix(sim.URL, "http://"), device.New(name, bus), session.DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDeviceRoutes(t *testing.T) {
	testlog.Start(t)
	bus := event.NewBus()
	left := connectSim(t, "left", protocol.LeftInsole, bus)
	right := connectSim(t, "right", protocol.RightInsole, bus)
	s := New(":0", nil, []transport.Link{right, left}, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/devices", "")
	var list struct {
		Devices []DeviceView `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode devices: %v", err)
	}
	if len(list.Devices) != 2 || list.Devices[0].Label != "left" || !list.Devices[0].Connected {
		t.Fatalf("devices=%s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/devices/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device status=%d", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/devices/left/configuration", `{"pressure":{"mass":45}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("configure status=%d body=%s", rec.Code, rec.Body.String())
	}
	var applied struct {
		Configuration map[string]map[string]int `json:"configuration"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &applied); err != nil {
		t.Fatalf("decode configuration: %v", err)
	}
	if applied.Configuration["pressure"]["mass"] != 40 {
		t.Fatalf("configuration=%v", applied.Configuration)
	}

	rec = do(t, h, http.MethodGet, "/devices/left", "")
	var one DeviceView
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatalf("decode device: %v", err)
	}
	if one.Configuration["pressure"]["mass"] != 40 {
		t.Fatalf("device configuration=%v", one.Configuration)
	}

	rec = do(t, h, http.MethodPut, "/devices/left/configuration", `{"pressure":{"spin":20}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad configuration status=%d", rec.Code)
	}
}

func TestConfigureDisconnected(t *testing.T) {
	testlog.Start(t)
	l := connectSim(t, "left", protocol.LeftInsole, event.NewBus())
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s := New(":0", nil, []transport.Link{l}, nil)
	rec := do(t, s.Handler(), http.MethodPut, "/devices/left/configuration", `{"motion":{"quaternion":20}}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestPairPressureRoute(t *testing.T) {
	testlog.Start(t)
	s := New(":0", nil, nil, nil)
	if rec := do(t, s.Handler(), http.MethodGet, "/pair/pressure", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status without pair=%d", rec.Code)
	}

	agg := pair.NewAggregator(nil)
	agg.Update(pair.Left, 10, pair.SidePressure{Sum: 30})
	agg.Update(pair.Right, 12, pair.SidePressure{Sum: 10})
	s = New(":0", nil, nil, agg)
	rec := do(t, s.Handler(), http.MethodGet, "/pair/pressure", "")
	var p pair.Pressure
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Sum != 40 || p.Mass.Left != 0.75 || p.Side != pair.Right {
		t.Fatalf("pair=%+v", p)
	}
}

func TestConfigurationRequiresToken(t *testing.T) {
	testlog.Start(t)
	l := connectSim(t, "left", protocol.LeftInsole, event.NewBus())
	s := New(":0", nil, []transport.Link{l}, nil)
	s.SetToken("secret")
	h := s.Handler()

	if rec := do(t, h, http.MethodPut, "/devices/left/configuration", `{"motion":{"quaternion":20}}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token=%d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPut, "/devices/left/configuration", strings.NewReader(`{"motion":{"quaternion":20}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/devices/left", ""); rec.Code != http.StatusOK {
		t.Fatalf("reads should stay open, status=%d", rec.Code)
	}
}
