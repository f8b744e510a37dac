package protocol

import (
	"errors"
	"fmt"

	"github.com/danmuck/stridelink/internal/geom"
)

// Record is one sensor record of a frame. Err is set when the record was
// dropped for an unknown data type; other records of the frame still commit.
type Record struct {
	SensorType SensorType       `json:"sensorType"`
	Size       uint8            `json:"size"`
	Motion     []MotionSample   `json:"motion,omitempty"`
	Pressure   []PressureSample `json:"pressure,omitempty"`
	Err        error            `json:"-"`
}

// Frame is one decoded sensor data buffer.
type Frame struct {
	RawTimestamp uint16   `json:"rawTimestamp"`
	Timestamp    uint32   `json:"timestamp"`
	Records      []Record `json:"records"`
}

// Err joins the record-level errors of the frame.
func (f Frame) Err() error {
	var errs []error
	for _, r := range f.Records {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Decoder turns sensor data buffers of one device session into samples.
// It owns the session clock and is not safe for concurrent use.
type Decoder struct {
	deviceType DeviceType
	layout     Layout
	math       geom.Math
	correction geom.Quaternion
	clock      Clock
}

type Option func(*Decoder)

func WithLayout(l Layout) Option {
	return func(d *Decoder) {
		if len(l) > 0 {
			d.layout = l
		}
	}
}

func WithMath(m geom.Math) Option {
	return func(d *Decoder) {
		if m != nil {
			d.math = m
		}
	}
}

func NewDecoder(t DeviceType, opts ...Option) *Decoder {
	d := &Decoder{
		deviceType: t,
		layout:     DefaultLayout(),
		math:       geom.Default,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.correction = InsoleCorrection(d.math, t)
	return d
}

func (d *Decoder) DeviceType() DeviceType {
	return d.deviceType
}

func (d *Decoder) Layout() Layout {
	return d.layout
}

// SetDeviceType changes the placement once the device identity resolves.
// The clock is kept.
func (d *Decoder) SetDeviceType(t DeviceType) {
	d.deviceType = t
	d.correction = InsoleCorrection(d.math, t)
}

// Reset clears the timestamp clock for a new connection.
func (d *Decoder) Reset() {
	d.clock.Reset()
}

// DecodeFrame demultiplexes one sensor data buffer. An unknown sensor type or
// a read past any declared size aborts the whole buffer and leaves the clock
// untouched. An unknown data type stops its record at that entry: entries
// before it are kept, the rest of the record is dropped, and the frame is
// still returned along with the joined record errors.
func (d *Decoder) DecodeFrame(buf []byte) (Frame, error) {
	c := newCursor(buf)
	raw, err := c.u16()
	if err != nil {
		return Frame{}, fmt.Errorf("frame timestamp: %w", err)
	}

	frame := Frame{RawTimestamp: raw, Timestamp: d.clock.Peek(raw)}
	for !c.done() {
		tag, _ := c.u8()
		st := SensorType(tag)
		if !st.Valid() {
			return Frame{}, fmt.Errorf("%w: %d at offset %d", ErrUnknownSensorType, tag, c.off-1)
		}
		size, err := c.u8()
		if err != nil {
			return Frame{}, fmt.Errorf("%s record size: %w", st, err)
		}
		payload, err := c.bytes(int(size))
		if err != nil {
			return Frame{}, fmt.Errorf("%s record: %w", st, err)
		}

		rec := Record{SensorType: st, Size: size}
		switch st {
		case SensorMotion:
			rec.Motion, err = d.DecodeMotion(payload, frame.Timestamp)
		case SensorPressure:
			rec.Pressure, err = d.DecodePressure(payload, frame.Timestamp)
		}
		if err != nil {
			if IsFrameFatal(err) {
				return Frame{}, err
			}
			rec.Err = err
		}
		frame.Records = append(frame.Records, rec)
	}

	d.clock.Commit(raw)
	return frame, frame.Err()
}
