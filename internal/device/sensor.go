package device

import (
	"errors"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/observability"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

var motionEvents = map[protocol.MotionDataType]event.Type{
	protocol.MotionAcceleration:       event.Acceleration,
	protocol.MotionGravity:            event.Gravity,
	protocol.MotionLinearAcceleration: event.LinearAcceleration,
	protocol.MotionRotationRate:       event.RotationRate,
	protocol.MotionMagnetometer:       event.Magnetometer,
	protocol.MotionQuaternion:         event.Quaternion,
}

// ApplySensorData decodes one sensor data frame and applies it. A frame-fatal
// error leaves state untouched and is returned; the caller drops the buffer
// and keeps the connection. Records dropped for an unknown data type are
// reported in the returned error while everything decoded before them, and
// the rest of the frame, still applies.
func (d *Device) ApplySensorData(buf []byte) error {
	d.mu.Lock()
	frame, err := d.decoder.DecodeFrame(buf)
	if err != nil && protocol.IsFrameFatal(err) {
		d.mu.Unlock()
		observability.RecordFrame(d.label, outcome(err))
		log.Warn().Err(err).Msgf("device.Device.ApplySensorData drop device=%s bytes=%d", d.label, len(buf))
		return err
	}
	events := d.applyFrame(frame)
	d.mu.Unlock()

	if err != nil {
		observability.RecordFrame(d.label, "partial")
		log.Debug().Err(err).Msgf("device.Device.ApplySensorData partial device=%s ts=%d", d.label, frame.Timestamp)
	} else {
		observability.RecordFrame(d.label, "ok")
	}
	d.publish(events)
	return err
}

func outcome(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownSensorType):
		return "unknown_sensor_type"
	case errors.Is(err, protocol.ErrTruncatedFrame):
		return "truncated"
	}
	return "error"
}

// applyFrame writes the frame into state and returns the events to publish.
// Caller holds d.mu.
func (d *Device) applyFrame(f protocol.Frame) batch {
	var events batch
	d.state.Timestamp = f.Timestamp
	for _, rec := range f.Records {
		for _, s := range rec.Motion {
			events = append(events, d.applyMotion(s)...)
		}
		for _, s := range rec.Pressure {
			events = append(events, d.applyPressure(s)...)
		}
	}
	return events
}

func (d *Device) applyMotion(s protocol.MotionSample) batch {
	m := &d.state.Motion
	var events batch
	switch s.DataType {
	case protocol.MotionAcceleration:
		m.Acceleration = s.Vector
	case protocol.MotionGravity:
		m.Gravity = s.Vector
	case protocol.MotionLinearAcceleration:
		m.LinearAcceleration = s.Vector
	case protocol.MotionRotationRate:
		m.RotationRate = s.Euler
	case protocol.MotionMagnetometer:
		m.Magnetometer = s.Vector
	case protocol.MotionQuaternion:
		m.Quaternion = s.Quaternion
		m.Euler = s.Euler
		events = append(events, pending{typ: event.Euler, timestamp: s.Timestamp, value: s.Euler})
	}
	return append(events, pending{typ: motionEvents[s.DataType], timestamp: s.Timestamp, value: s})
}

func (d *Device) applyPressure(s protocol.PressureSample) batch {
	p := &d.state.Pressure
	ts := s.Timestamp
	switch s.DataType {
	case protocol.PressureCenterOfMass:
		p.CenterOfMass = s.CenterOfMass
		return batch{{typ: event.CenterOfMass, timestamp: ts, value: s.CenterOfMass}}
	case protocol.PressureMass:
		p.Mass = s.Mass
		return batch{{typ: event.Mass, timestamp: ts, value: s.Mass}}
	case protocol.PressureHeelToToe:
		p.HeelToToe = s.HeelToToe
		return batch{{typ: event.HeelToToe, timestamp: ts, value: s.HeelToToe}}
	}

	*p = s
	form := event.PressureSingleByte
	if s.DataType == protocol.PressureDoubleByte {
		form = event.PressureDoubleByte
	}
	return batch{
		{typ: event.Pressure, timestamp: ts, value: s},
		{typ: form, timestamp: ts, value: s},
		{typ: event.Mass, timestamp: ts, value: s.Mass},
		{typ: event.CenterOfMass, timestamp: ts, value: s.CenterOfMass},
		{typ: event.HeelToToe, timestamp: ts, value: s.HeelToToe},
	}
}
