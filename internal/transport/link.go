// Package transport defines the device link contract shared by the socket
// and GATT transports.
package transport

import (
	"context"

	"github.com/danmuck/stridelink/internal/device"
	"github.com/danmuck/stridelink/internal/protocol"
)

// ErrNotConnected is returned by every command issued on a closed link.
var ErrNotConnected = protocol.ErrNotConnected

// Link is one connected device. Getters return the held value when known
// and otherwise read it from the device. Setters return once the device
// reported the value back.
type Link interface {
	Device() *device.Device
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool

	Debug(ctx context.Context) (bool, error)
	SetDebug(ctx context.Context, debug bool) error
	Type(ctx context.Context) (protocol.DeviceType, error)
	SetType(ctx context.Context, t protocol.DeviceType) error
	Name(ctx context.Context) (string, error)
	SetName(ctx context.Context, name string) error
	SensorDataConfigurations(ctx context.Context) (protocol.SensorConfiguration, error)
	SetSensorDataConfigurations(ctx context.Context, cfg protocol.SensorConfiguration) (protocol.SensorConfiguration, error)
	WeightDataDelay(ctx context.Context) (uint16, error)
	SetWeightDataDelay(ctx context.Context, ms uint16) error
}

// DisableSensors turns every data type of every sensor off.
func DisableSensors(ctx context.Context, l Link) error {
	if !l.IsConnected() {
		return ErrNotConnected
	}
	_, err := l.SetSensorDataConfigurations(ctx, protocol.DisabledConfiguration())
	return err
}
