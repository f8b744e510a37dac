// Package device holds the per-device state that decoded records are applied
// to, and publishes every change on the event bus.
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/observability"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrInvalidType = errors.New("device: invalid device type")

// Device is the single writer of one device's State. Transports deliver
// records to it one at a time.
type Device struct {
	label string
	bus   *event.Bus

	mu      sync.Mutex
	state   State
	decoder *protocol.Decoder
}

// New creates a device named label. Decoder options (layout, math) apply to
// every session.
func New(label string, bus *event.Bus, opts ...protocol.Option) *Device {
	return &Device{
		label:   label,
		bus:     bus,
		state:   State{Label: label},
		decoder: protocol.NewDecoder(protocol.MotionModule, opts...),
	}
}

func (d *Device) Label() string {
	return d.label
}

// Snapshot returns a copy of the current state.
func (d *Device) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.clone()
}

// Type returns the resolved device type, if known.
func (d *Device) Type() (protocol.DeviceType, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Type == nil {
		return 0, false
	}
	return *d.state.Type, true
}

// Configuration returns the held sensor configuration, nil until first read.
func (d *Device) Configuration() protocol.SensorConfiguration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Configuration.Clone()
}

// BeginSession starts a new transport session: a fresh session id and
// timestamp clock.
func (d *Device) BeginSession() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Session = uuid.NewString()
	d.decoder.Reset()
	return d.state.Session
}

// MarkConnected publishes connected once the initial reads completed.
func (d *Device) MarkConnected() {
	d.mu.Lock()
	d.state.Connected = true
	sessionID := d.state.Session
	d.mu.Unlock()
	log.Info().Msgf("device.Device.MarkConnected device=%s session=%s", d.label, sessionID)
	d.publish(batch{{typ: event.Connected, value: sessionID}})
}

// MarkDisconnected publishes disconnected when a connected session ends. A
// session that never completed its initial reads publishes nothing.
func (d *Device) MarkDisconnected() {
	d.mu.Lock()
	was := d.state.Connected
	d.state.Connected = false
	d.mu.Unlock()
	if !was {
		return
	}
	log.Info().Msgf("device.Device.MarkDisconnected device=%s", d.label)
	d.publish(batch{{typ: event.Disconnected}})
}

// Connected reports the last transport state.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Connected
}

type pending struct {
	typ       event.Type
	timestamp uint32
	value     any
}

type batch []pending

func (d *Device) publish(events batch) {
	if d.bus == nil {
		return
	}
	d.mu.Lock()
	sessionID := d.state.Session
	d.mu.Unlock()
	for _, p := range events {
		observability.RecordEvent(d.label, string(p.typ))
		d.bus.Publish(event.Event{
			Type:      p.typ,
			Device:    d.label,
			Session:   sessionID,
			Timestamp: p.timestamp,
			Value:     p.value,
		})
	}
}

// ApplyRecord applies one socket envelope record.
func (d *Device) ApplyRecord(in session.Inbound) error {
	switch in.Kind {
	case session.BatteryLevel:
		d.ApplyBatteryLevel(in.BatteryLevel)
	case session.GetDebug, session.SetDebug:
		d.ApplyDebug(in.Debug)
	case session.GetType, session.SetType:
		return d.ApplyType(in.Type)
	case session.GetName, session.SetName:
		d.ApplyName(in.Name)
	case session.MotionCalibration:
		d.ApplyCalibration(in.Calibration)
	case session.GetSensorDataConfigurations, session.SetSensorDataConfigurations:
		d.ApplyConfiguration(in.Configuration)
	case session.SensorData:
		return d.ApplySensorData(in.SensorData)
	case session.GetWeightDataDelay, session.SetWeightDataDelay:
		d.ApplyWeightDataDelay(in.WeightDataDelay)
	case session.WeightData:
		d.ApplyWeight(in.Weight)
	default:
		return fmt.Errorf("%w: %s", session.ErrUnknownKind, in.Kind)
	}
	return nil
}

func (d *Device) ApplyBatteryLevel(level uint8) {
	d.mu.Lock()
	d.state.BatteryLevel = ptr(level)
	d.mu.Unlock()
	d.publish(batch{{typ: event.BatteryLevel, value: level}})
}

func (d *Device) ApplyDebug(debug bool) {
	d.mu.Lock()
	d.state.Debug = ptr(debug)
	d.mu.Unlock()
	d.publish(batch{{typ: event.Debug, value: debug}})
}

// ApplyType resolves the device identity and with it the decode placement.
func (d *Device) ApplyType(t protocol.DeviceType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidType, uint8(t))
	}
	d.mu.Lock()
	d.state.Type = ptr(t)
	d.decoder.SetDeviceType(t)
	d.mu.Unlock()
	d.publish(batch{{typ: event.DeviceType, value: t}})
	return nil
}

func (d *Device) ApplyName(name string) {
	d.mu.Lock()
	d.state.Name = ptr(name)
	d.mu.Unlock()
	d.publish(batch{{typ: event.Name, value: name}})
}

// ApplyCalibration replaces the calibration wholesale.
func (d *Device) ApplyCalibration(c protocol.Calibration) {
	d.mu.Lock()
	d.state.Calibration = c
	d.mu.Unlock()
	events := batch{{typ: event.MotionCalibration, value: c}}
	if c.IsFullyCalibrated() {
		events = append(events, pending{typ: event.MotionIsFullyCalibrated, value: c})
	}
	d.publish(events)
}

func (d *Device) ApplyConfiguration(cfg protocol.SensorConfiguration) {
	d.mu.Lock()
	d.state.Configuration = cfg.Clone()
	d.mu.Unlock()
	d.publish(batch{{typ: event.SensorDataConfiguration, value: cfg.Clone()}})
}

func (d *Device) ApplyWeightDataDelay(ms uint16) {
	d.mu.Lock()
	d.state.WeightDataDelay = ptr(ms)
	d.mu.Unlock()
	d.publish(batch{{typ: event.WeightDataDelay, value: ms}})
}

func (d *Device) ApplyWeight(w float32) {
	d.mu.Lock()
	d.state.Weight = ptr(w)
	d.mu.Unlock()
	d.publish(batch{{typ: event.Weight, value: w}})
}

func (d *Device) ApplyErrorMessage(msg string) {
	d.mu.Lock()
	d.state.ErrorMessage = msg
	d.mu.Unlock()
	d.publish(batch{{typ: event.ErrorMessage, value: msg}})
}

// ApplyWifi mutates the wifi state and publishes typ with the new value.
func (d *Device) ApplyWifi(typ event.Type, update func(*Wifi) any) {
	d.mu.Lock()
	value := update(&d.state.Wifi)
	d.mu.Unlock()
	d.publish(batch{{typ: typ, value: value}})
}
