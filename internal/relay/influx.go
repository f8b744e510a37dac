package relay

import (
	"context"
	"strconv"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/geom"
	"github.com/danmuck/stridelink/internal/pair"
	"github.com/danmuck/stridelink/internal/protocol"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

type InfluxConfig struct {
	URL         string `toml:"url" yaml:"url"`
	Token       string `toml:"token" yaml:"token"`
	Org         string `toml:"org" yaml:"org"`
	Bucket      string `toml:"bucket" yaml:"bucket"`
	Measurement string `toml:"measurement" yaml:"measurement"`
}

// Influx writes numeric events as points tagged by device and event type.
type Influx struct {
	cfg    InfluxConfig
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

func NewInflux(cfg InfluxConfig) *Influx {
	if cfg.Measurement == "" {
		cfg.Measurement = "stride"
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{cfg: cfg, client: client, write: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}
}

func (i *Influx) Name() string { return "influx" }

func (i *Influx) Write(ctx context.Context, e event.Event) error {
	f := fields(e)
	if len(f) == 0 {
		return ErrSkip
	}
	tags := map[string]string{"device": e.Device, "type": string(e.Type)}
	if e.Session != "" {
		tags["session"] = e.Session
	}
	return i.write.WritePoint(ctx, influxdb2.NewPoint(i.cfg.Measurement, tags, f, e.At))
}

func (i *Influx) Close() error {
	i.client.Close()
	return nil
}

// fields flattens an event value into point fields. Values with no numeric
// form return nil.
func fields(e event.Event) map[string]any {
	switch v := e.Value.(type) {
	case protocol.MotionSample:
		switch v.DataType {
		case protocol.MotionQuaternion:
			return quaternionFields(v.Quaternion)
		case protocol.MotionRotationRate:
			return eulerFields(v.Euler)
		}
		return vectorFields(v.Vector)
	case protocol.PressureSample:
		if e.Type != event.Pressure {
			return nil
		}
		out := map[string]any{
			"sum":         int64(v.Sum),
			"mass":        v.Mass,
			"com_x":       v.CenterOfMass.X,
			"com_y":       v.CenterOfMass.Y,
			"heel_to_toe": v.HeelToToe,
		}
		for n, ch := range v.Channels {
			out["ch"+strconv.Itoa(n)] = int64(ch.Value)
		}
		return out
	case pair.Pressure:
		return map[string]any{
			"sum":        int64(v.Sum),
			"mass_left":  v.Mass.Left,
			"mass_right": v.Mass.Right,
			"com_x":      v.CenterOfMass.X,
			"com_y":      v.CenterOfMass.Y,
		}
	case geom.Euler:
		return eulerFields(v)
	case protocol.Point:
		return map[string]any{"x": v.X, "y": v.Y}
	case protocol.Calibration:
		return map[string]any{"fully_calibrated": v.IsFullyCalibrated()}
	case float64:
		return map[string]any{"value": v}
	case float32:
		return map[string]any{"value": float64(v)}
	case uint8:
		return map[string]any{"value": int64(v)}
	case uint16:
		return map[string]any{"value": int64(v)}
	case bool:
		return map[string]any{"value": v}
	}
	return nil
}

func vectorFields(v geom.Vector3) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

func eulerFields(v geom.Euler) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

func quaternionFields(q geom.Quaternion) map[string]any {
	return map[string]any{"x": q.X, "y": q.Y, "z": q.Z, "w": q.W}
}
