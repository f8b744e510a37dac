package protocol

import "fmt"

const (
	singleByteMassDivisor = (1 << 8) * 16
	doubleByteMassDivisor = (1 << 12) * 16
	massRecordScalar      = 1.0 / (1 << 16)
)

// Channel is one pressure sensor of the array form.
type Channel struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Value  uint16  `json:"value"`
	Weight float64 `json:"weight"`
}

// PressureSample is one decoded pressure entry. Array forms fill every field;
// the derived forms fill only the field named by DataType.
type PressureSample struct {
	DataType     PressureDataType `json:"dataType"`
	Timestamp    uint32           `json:"timestamp"`
	Channels     []Channel        `json:"channels,omitempty"`
	Sum          uint32           `json:"sum"`
	Mass         float64          `json:"mass"`
	CenterOfMass Point            `json:"centerOfMass"`
	HeelToToe    float64          `json:"heelToToe"`
}

// DecodePressure walks the entries of one pressure record payload. On error
// the entries decoded before the offending one are still returned.
func (d *Decoder) DecodePressure(payload []byte, timestamp uint32) ([]PressureSample, error) {
	c := newCursor(payload)
	out := make([]PressureSample, 0, 1)
	for !c.done() {
		tag, _ := c.u8()
		dt := PressureDataType(tag)
		sample := PressureSample{DataType: dt, Timestamp: timestamp}
		var err error
		switch dt {
		case PressureSingleByte, PressureDoubleByte:
			err = d.decodePressureArray(c, &sample)
		case PressureCenterOfMass:
			var x, y float32
			if x, err = c.f32(); err == nil {
				y, err = c.f32()
			}
			sample.CenterOfMass = Point{X: float64(x), Y: float64(y)}
		case PressureMass:
			var v uint32
			v, err = c.u32()
			sample.Mass = float64(v) * massRecordScalar
		case PressureHeelToToe:
			var v float64
			v, err = c.f64()
			sample.HeelToToe = 1 - v
		default:
			return out, fmt.Errorf("%w: %d at offset %d", ErrUnknownPressureDataType, tag, c.off-1)
		}
		if err != nil {
			return out, fmt.Errorf("pressure %s: %w", dt, err)
		}
		out = append(out, sample)
	}
	return out, nil
}

func (d *Decoder) decodePressureArray(c *cursor, sample *PressureSample) error {
	n := d.layout.Channels()
	width := 1
	if sample.DataType == PressureDoubleByte {
		width = 2
	}
	if err := c.need(n * width); err != nil {
		return err
	}

	right := d.deviceType.IsRightInsole()
	channels := make([]Channel, n)
	var sum uint32
	for i := range channels {
		var v uint16
		if width == 1 {
			b, _ := c.u8()
			v = uint16(b)
		} else {
			v, _ = c.u16()
		}
		sum += uint32(v)
		p := d.layout.Position(i, right)
		channels[i] = Channel{X: p.X, Y: p.Y, Value: v}
	}

	var com Point
	for i := range channels {
		if sum > 0 {
			channels[i].Weight = float64(channels[i].Value) / float64(sum)
		}
		com.X += channels[i].X * channels[i].Weight
		com.Y += channels[i].Y * channels[i].Weight
	}

	divisor := float64(singleByteMassDivisor)
	if width == 2 {
		divisor = doubleByteMassDivisor
	}
	sample.Channels = channels
	sample.Sum = sum
	sample.CenterOfMass = com
	sample.HeelToToe = 1 - com.Y
	sample.Mass = float64(sum) / divisor
	return nil
}
