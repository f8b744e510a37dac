package protocol

import (
	"fmt"

	"github.com/danmuck/stridelink/internal/geom"
)

// MotionSample is one decoded motion entry. Vector is set for acceleration,
// gravity, linearAcceleration and magnetometer; Euler for rotationRate;
// Quaternion and its derived YXZ Euler for quaternion.
type MotionSample struct {
	DataType   MotionDataType  `json:"dataType"`
	Timestamp  uint32          `json:"timestamp"`
	Vector     geom.Vector3    `json:"vector"`
	Euler      geom.Euler      `json:"euler"`
	Quaternion geom.Quaternion `json:"quaternion"`
	Raw        []int16         `json:"raw"`
}

// DecodeMotion walks the entries of one motion record payload. On error the
// entries decoded before the offending one are still returned.
func (d *Decoder) DecodeMotion(payload []byte, timestamp uint32) ([]MotionSample, error) {
	c := newCursor(payload)
	out := make([]MotionSample, 0, 2)
	for !c.done() {
		tag, _ := c.u8()
		dt := MotionDataType(tag)
		if !dt.Valid() {
			return out, fmt.Errorf("%w: %d at offset %d", ErrUnknownMotionDataType, tag, c.off-1)
		}
		raw, err := c.i16s(dt.Width() / 2)
		if err != nil {
			return out, fmt.Errorf("motion %s: %w", dt, err)
		}
		out = append(out, d.motionSample(dt, raw, timestamp))
	}
	return out, nil
}

func (d *Decoder) motionSample(dt MotionDataType, raw []int16, timestamp uint32) MotionSample {
	s := dt.Scalar()
	sample := MotionSample{DataType: dt, Timestamp: timestamp, Raw: raw}
	switch dt {
	case MotionRotationRate:
		sample.Euler = RemapEuler(d.deviceType,
			geom.DegToRad(float64(raw[0])*s),
			geom.DegToRad(float64(raw[1])*s),
			geom.DegToRad(float64(raw[2])*s),
		)
	case MotionQuaternion:
		sample.Quaternion = RemapQuaternion(d.math, d.deviceType, d.correction,
			float64(raw[0])*s,
			float64(raw[1])*s,
			float64(raw[2])*s,
			float64(raw[3])*s,
		)
		sample.Euler = d.math.ToEuler(sample.Quaternion, geom.OrderYXZ)
	default:
		sample.Vector = RemapVector(d.deviceType, float64(raw[0]), float64(raw[1]), float64(raw[2])).Scale(s)
	}
	return sample
}
