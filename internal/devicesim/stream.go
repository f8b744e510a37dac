package devicesim

import (
	"math"

	"github.com/danmuck/stridelink/internal/protocol"
)

// Tick is the firmware sampling granularity.
const Tick = protocol.DelayQuantum

type sampleKey struct {
	sensor   protocol.SensorType
	dataType uint8
}

// Streamer builds the sensor data frames a device emits as time advances.
type Streamer struct {
	dev      *Device
	lastSent map[sampleKey]uint32
}

func NewStreamer(dev *Device) *Streamer {
	return &Streamer{dev: dev, lastSent: make(map[sampleKey]uint32)}
}

// Frame returns the frame due at elapsedMS, or ok=false when no data type is
// due. The wire timestamp is elapsedMS truncated to 16 bits.
func (s *Streamer) Frame(elapsedMS uint32) ([]byte, bool, error) {
	typ, cfg, _ := s.dev.Snapshot()
	b := protocol.NewFrameBuilder(uint16(elapsedMS))
	emitted := false
	phase := float64(elapsedMS) / 1000

	var motion [][]byte
	for dt := 0; dt < protocol.SensorMotion.DataTypeCount(); dt++ {
		if s.due(protocol.SensorMotion, uint8(dt), cfg, elapsedMS) {
			motion = append(motion, motionEntry(protocol.MotionDataType(dt), phase))
		}
	}
	if len(motion) > 0 {
		b.Record(protocol.SensorMotion, motion...)
		emitted = true
	}

	if typ.IsInsole() {
		var pressure [][]byte
		for dt := 0; dt < protocol.SensorPressure.DataTypeCount(); dt++ {
			if s.due(protocol.SensorPressure, uint8(dt), cfg, elapsedMS) {
				pressure = append(pressure, pressureEntry(protocol.PressureDataType(dt), phase))
			}
		}
		if len(pressure) > 0 {
			b.Record(protocol.SensorPressure, pressure...)
			emitted = true
		}
	}
	if !emitted {
		return nil, false, nil
	}
	buf, err := b.Bytes()
	return buf, err == nil, err
}

func (s *Streamer) due(st protocol.SensorType, dt uint8, cfg protocol.SensorConfiguration, now uint32) bool {
	delay := cfg[st][dt]
	if delay <= 0 {
		return false
	}
	key := sampleKey{st, dt}
	last, seen := s.lastSent[key]
	if seen && now-last < uint32(delay) {
		return false
	}
	s.lastSent[key] = now
	return true
}

// WeightDue reports whether a weight record is due at elapsedMS.
func (s *Streamer) WeightDue(elapsedMS uint32) bool {
	_, _, delay := s.dev.Snapshot()
	if delay == 0 {
		return false
	}
	key := sampleKey{sensor: 0xff}
	last, seen := s.lastSent[key]
	if seen && elapsedMS-last < uint32(delay) {
		return false
	}
	s.lastSent[key] = elapsedMS
	return true
}

func motionEntry(dt protocol.MotionDataType, phase float64) []byte {
	sin, cos := math.Sincos(phase)
	switch dt {
	case protocol.MotionAcceleration:
		return protocol.MotionEntry(dt, int16(50*sin), int16(50*cos), 981)
	case protocol.MotionGravity:
		return protocol.MotionEntry(dt, 0, 0, 981)
	case protocol.MotionLinearAcceleration:
		return protocol.MotionEntry(dt, int16(50*sin), int16(50*cos), 0)
	case protocol.MotionRotationRate:
		return protocol.MotionEntry(dt, int16(16*90*cos), 0, 0)
	case protocol.MotionMagnetometer:
		return protocol.MotionEntry(dt, int16(2500*cos), int16(2500*sin), -4000)
	case protocol.MotionQuaternion:
		hs, hc := math.Sincos(phase / 2)
		return protocol.MotionEntry(dt, int16(16383*hc), 0, 0, int16(16383*hs))
	}
	return nil
}

func pressureEntry(dt protocol.PressureDataType, phase float64) []byte {
	switch dt {
	case protocol.PressureSingleByte, protocol.PressureDoubleByte:
		values := make([]uint16, protocol.DefaultLayout().Channels())
		for i := range values {
			v := 64 + 48*math.Sin(phase+float64(i)/3)
			if dt == protocol.PressureDoubleByte {
				v *= 16
			}
			values[i] = uint16(v)
		}
		return protocol.PressureArrayEntry(dt, values)
	case protocol.PressureCenterOfMass:
		return protocol.CenterOfMassEntry(0.5, float32(0.5+0.3*math.Sin(phase)))
	case protocol.PressureMass:
		return protocol.MassEntry(0.25 + 0.1*math.Sin(phase))
	case protocol.PressureHeelToToe:
		return protocol.HeelToToeEntry(0.5 + 0.3*math.Sin(phase))
	}
	return nil
}
