package socket

import (
	"context"

	"github.com/danmuck/stridelink/internal/device"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/danmuck/stridelink/internal/transport"
)

func (c *Client) Debug(ctx context.Context) (bool, error) {
	if s := c.dev.Snapshot(); s.Debug != nil && c.IsConnected() {
		return *s.Debug, nil
	}
	in, err := c.get(ctx, session.GetDebug)
	return in.Debug, err
}

func (c *Client) SetDebug(ctx context.Context, debug bool) error {
	_, err := c.set(ctx, session.SetDebug, session.DebugPayload(debug))
	return err
}

func (c *Client) Type(ctx context.Context) (protocol.DeviceType, error) {
	if t, ok := c.dev.Type(); ok && c.IsConnected() {
		return t, nil
	}
	in, err := c.get(ctx, session.GetType)
	return in.Type, err
}

func (c *Client) SetType(ctx context.Context, t protocol.DeviceType) error {
	if !t.Valid() {
		return device.ErrInvalidType
	}
	_, err := c.set(ctx, session.SetType, session.TypePayload(t))
	return err
}

func (c *Client) Name(ctx context.Context) (string, error) {
	if s := c.dev.Snapshot(); s.Name != nil && c.IsConnected() {
		return *s.Name, nil
	}
	in, err := c.get(ctx, session.GetName)
	return in.Name, err
}

func (c *Client) SetName(ctx context.Context, name string) error {
	_, err := c.set(ctx, session.SetName, session.NamePayload(name))
	return err
}

func (c *Client) SensorDataConfigurations(ctx context.Context) (protocol.SensorConfiguration, error) {
	if cfg := c.dev.Configuration(); cfg != nil && c.IsConnected() {
		return cfg, nil
	}
	in, err := c.get(ctx, session.GetSensorDataConfigurations)
	return in.Configuration, err
}

// SetSensorDataConfigurations writes cfg and returns the configuration the
// device reports back.
func (c *Client) SetSensorDataConfigurations(ctx context.Context, cfg protocol.SensorConfiguration) (protocol.SensorConfiguration, error) {
	if !c.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	t, _ := c.dev.Type()
	payload, err := session.ConfigurationPayload(protocol.EncodeConfiguration(cfg, t))
	if err != nil {
		return nil, err
	}
	in, err := c.set(ctx, session.SetSensorDataConfigurations, payload)
	return in.Configuration, err
}

func (c *Client) WeightDataDelay(ctx context.Context) (uint16, error) {
	if s := c.dev.Snapshot(); s.WeightDataDelay != nil && c.IsConnected() {
		return *s.WeightDataDelay, nil
	}
	in, err := c.get(ctx, session.GetWeightDataDelay)
	return in.WeightDataDelay, err
}

func (c *Client) SetWeightDataDelay(ctx context.Context, ms uint16) error {
	_, err := c.set(ctx, session.SetWeightDataDelay, session.WeightDataDelayPayload(ms))
	return err
}
