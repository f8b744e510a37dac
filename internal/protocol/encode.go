package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FrameBuilder assembles sensor data buffers in device wire layout.
type FrameBuilder struct {
	buf []byte
	err error
}

func NewFrameBuilder(rawTimestamp uint16) *FrameBuilder {
	b := &FrameBuilder{buf: make([]byte, 2, 64)}
	binary.LittleEndian.PutUint16(b.buf, rawTimestamp)
	return b
}

// Record appends one record built from the given entries.
func (b *FrameBuilder) Record(st SensorType, entries ...[]byte) *FrameBuilder {
	size := 0
	for _, e := range entries {
		size += len(e)
	}
	if size > math.MaxUint8 {
		b.err = fmt.Errorf("%s record of %d bytes exceeds 255", st, size)
		return b
	}
	b.buf = append(b.buf, byte(st), byte(size))
	for _, e := range entries {
		b.buf = append(b.buf, e...)
	}
	return b
}

func (b *FrameBuilder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.buf, nil
}

// MotionEntry encodes a motion entry from raw int16 components.
func MotionEntry(dt MotionDataType, raw ...int16) []byte {
	out := make([]byte, 1, 1+2*len(raw))
	out[0] = byte(dt)
	for _, v := range raw {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	return out
}

// PressureArrayEntry encodes the channel array form. Single-byte values are
// truncated to 8 bits.
func PressureArrayEntry(dt PressureDataType, values []uint16) []byte {
	out := []byte{byte(dt)}
	for _, v := range values {
		if dt == PressureDoubleByte {
			out = binary.LittleEndian.AppendUint16(out, v)
		} else {
			out = append(out, byte(v))
		}
	}
	return out
}

func CenterOfMassEntry(x, y float32) []byte {
	out := []byte{byte(PressureCenterOfMass)}
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(x))
	return binary.LittleEndian.AppendUint32(out, math.Float32bits(y))
}

// MassEntry encodes a mass fraction as the device's u32 fixed point.
func MassEntry(mass float64) []byte {
	out := []byte{byte(PressureMass)}
	return binary.LittleEndian.AppendUint32(out, uint32(mass*(1<<16)))
}

// HeelToToeEntry encodes the raw toe-to-heel value the device sends.
func HeelToToeEntry(raw float64) []byte {
	out := []byte{byte(PressureHeelToToe)}
	return binary.LittleEndian.AppendUint64(out, math.Float64bits(raw))
}
