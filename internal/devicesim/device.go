// Package devicesim simulates a device on the socket link: it answers
// command buffers from its own state and streams sensor data frames at the
// configured delays.
package devicesim

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

// Config seeds a simulated device.
type Config struct {
	Name            string
	Type            protocol.DeviceType
	BatteryLevel    uint8
	WeightDataDelay uint16
	Weight          float32
}

func DefaultConfig() Config {
	return Config{
		Name:         "stridelink-sim",
		Type:         protocol.MotionModule,
		BatteryLevel: 100,
		Weight:       70,
	}
}

// Device is the simulated firmware state.
type Device struct {
	mu              sync.Mutex
	name            string
	typ             protocol.DeviceType
	debug           bool
	battery         uint8
	weight          float32
	weightDataDelay uint16
	config          protocol.SensorConfiguration
}

func NewDevice(cfg Config) *Device {
	return &Device{
		name:            cfg.Name,
		typ:             cfg.Type,
		battery:         cfg.BatteryLevel,
		weight:          cfg.Weight,
		weightDataDelay: cfg.WeightDataDelay,
		config:          protocol.DisabledConfiguration(),
	}
}

// Handle applies one command buffer and returns the reply records.
func (d *Device) Handle(buf []byte) ([]session.Inbound, error) {
	cmds, err := session.DecodeCommands(buf)
	d.mu.Lock()
	defer d.mu.Unlock()
	replies := make([]session.Inbound, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd.Kind.IsSet() {
			if aerr := d.apply(cmd); aerr != nil {
				log.Warn().Err(aerr).Msgf("devicesim.Device.Handle reject kind=%s", cmd.Kind)
			}
		}
		replies = append(replies, d.record(cmd.Kind))
	}
	return replies, err
}

func (d *Device) apply(cmd session.Command) error {
	switch cmd.Kind {
	case session.SetDebug:
		d.debug = cmd.Payload[0] != 0
	case session.SetType:
		t := protocol.DeviceType(cmd.Payload[0])
		if !t.Valid() {
			return fmt.Errorf("devicesim: invalid type %d", cmd.Payload[0])
		}
		d.typ = t
	case session.SetName:
		d.name = string(cmd.Payload[1:])
	case session.SetSensorDataConfigurations:
		inner, _, err := session.SplitConfigurationPayload(cmd.Payload)
		if err != nil {
			return err
		}
		update, err := protocol.DecodeConfigurationUpdate(inner)
		if err != nil {
			return err
		}
		if !d.typ.IsInsole() {
			delete(update, protocol.SensorPressure)
		}
		d.config.Merge(update)
	case session.SetWeightDataDelay:
		q, _ := protocol.QuantizeDelay(int(binary.LittleEndian.Uint16(cmd.Payload)))
		d.weightDataDelay = q
	}
	return nil
}

// record reports the current value for kind. Caller holds d.mu.
func (d *Device) record(kind session.Kind) session.Inbound {
	in := session.Inbound{Kind: kind}
	switch kind.Topic() {
	case session.GetDebug:
		in.Debug = d.debug
	case session.GetType:
		in.Type = d.typ
	case session.GetName:
		in.Name = d.name
	case session.GetSensorDataConfigurations:
		in.Configuration = d.config.Clone()
	case session.GetWeightDataDelay:
		in.WeightDataDelay = d.weightDataDelay
	}
	return in
}

// Snapshot returns the type, configuration and weight delay the streamer uses.
func (d *Device) Snapshot() (protocol.DeviceType, protocol.SensorConfiguration, uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typ, d.config.Clone(), d.weightDataDelay
}

func (d *Device) BatteryRecord() session.Inbound {
	d.mu.Lock()
	defer d.mu.Unlock()
	return session.Inbound{Kind: session.BatteryLevel, BatteryLevel: d.battery}
}

func (d *Device) WeightRecord() session.Inbound {
	d.mu.Lock()
	defer d.mu.Unlock()
	return session.Inbound{Kind: session.WeightData, Weight: d.weight}
}
