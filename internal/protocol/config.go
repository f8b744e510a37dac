package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

// DelayQuantum is the sampling delay granularity in milliseconds.
const DelayQuantum = 20

// DataDelays maps a per-sensor data type tag to its sample delay in ms.
type DataDelays map[uint8]int

// SensorConfiguration maps each sensor type to its data type delays.
// A nil configuration means the device value has not been read yet.
type SensorConfiguration map[SensorType]DataDelays

// QuantizeDelay rounds ms down to a multiple of DelayQuantum. ok is false for
// delays that cannot be represented on the wire.
func QuantizeDelay(ms int) (uint16, bool) {
	if ms < 0 || ms > math.MaxUint16 {
		return 0, false
	}
	return uint16(ms - ms%DelayQuantum), true
}

// ConfigurationTableSize is the byte size of a full configuration read.
func ConfigurationTableSize() int {
	n := 0
	for _, st := range SensorTypes {
		n += 2 * st.DataTypeCount()
	}
	return n
}

// DecodeConfiguration reads the device's full delay table: a u16 per data
// type of every sensor type, in declared order. It returns the bytes consumed.
func DecodeConfiguration(b []byte) (SensorConfiguration, int, error) {
	c := newCursor(b)
	cfg := make(SensorConfiguration, len(SensorTypes))
	for _, st := range SensorTypes {
		delays := make(DataDelays, st.DataTypeCount())
		for dt := 0; dt < st.DataTypeCount(); dt++ {
			v, err := c.u16()
			if err != nil {
				return nil, 0, fmt.Errorf("%s configuration: %w", st, err)
			}
			delays[uint8(dt)] = int(v)
		}
		cfg[st] = delays
	}
	return cfg, c.off, nil
}

// EncodeConfigurationTable writes cfg in the layout DecodeConfiguration reads.
// Missing entries are written as 0.
func EncodeConfigurationTable(cfg SensorConfiguration) []byte {
	out := make([]byte, 0, ConfigurationTableSize())
	for _, st := range SensorTypes {
		for dt := 0; dt < st.DataTypeCount(); dt++ {
			q, _ := QuantizeDelay(cfg[st][uint8(dt)])
			out = binary.LittleEndian.AppendUint16(out, q)
		}
	}
	return out
}

// EncodeConfiguration builds a configuration write for the given device type.
// Each sensor type present in cfg becomes [sensorType][len][dataType delay]*.
// Pressure is dropped for devices that are not insoles. Invalid entries are
// logged and skipped.
func EncodeConfiguration(cfg SensorConfiguration, t DeviceType) []byte {
	var out []byte
	for _, st := range SensorTypes {
		delays, ok := cfg[st]
		if !ok {
			continue
		}
		if st == SensorPressure && !t.IsInsole() {
			continue
		}
		var triples []byte
		for _, dt := range sortedDataTypes(delays) {
			if _, known := st.DataTypeName(dt); !known {
				log.Debug().Err(ErrInvalidConfiguration).Msgf("protocol.EncodeConfiguration skip sensor=%s dataType=%d", st, dt)
				continue
			}
			q, ok := QuantizeDelay(delays[dt])
			if !ok {
				log.Debug().Err(ErrInvalidConfiguration).Msgf("protocol.EncodeConfiguration skip sensor=%s dataType=%d delay=%d", st, dt, delays[dt])
				continue
			}
			triples = append(triples, dt)
			triples = binary.LittleEndian.AppendUint16(triples, q)
		}
		if len(triples) == 0 {
			continue
		}
		out = append(out, byte(st), byte(len(triples)))
		out = append(out, triples...)
	}
	return out
}

// DecodeConfigurationUpdate parses a configuration write, the inverse of
// EncodeConfiguration. Devices apply it with Merge.
func DecodeConfigurationUpdate(b []byte) (SensorConfiguration, error) {
	c := newCursor(b)
	update := make(SensorConfiguration)
	for !c.done() {
		tag, _ := c.u8()
		st := SensorType(tag)
		if !st.Valid() {
			return nil, fmt.Errorf("%w: %d at offset %d", ErrUnknownSensorType, tag, c.off-1)
		}
		size, err := c.u8()
		if err != nil {
			return nil, err
		}
		body, err := c.bytes(int(size))
		if err != nil {
			return nil, err
		}
		if len(body)%3 != 0 {
			return nil, fmt.Errorf("%w: %s update of %d bytes", ErrInvalidConfiguration, st, len(body))
		}
		delays := update[st]
		if delays == nil {
			delays = make(DataDelays)
			update[st] = delays
		}
		for i := 0; i < len(body); i += 3 {
			dt := body[i]
			if _, known := st.DataTypeName(dt); !known {
				return nil, fmt.Errorf("%w: %s data type %d", ErrInvalidConfiguration, st, dt)
			}
			delays[dt] = int(binary.LittleEndian.Uint16(body[i+1:]))
		}
	}
	return update, nil
}

// Clone returns a deep copy.
func (c SensorConfiguration) Clone() SensorConfiguration {
	if c == nil {
		return nil
	}
	out := make(SensorConfiguration, len(c))
	for st, delays := range c {
		d := make(DataDelays, len(delays))
		for dt, v := range delays {
			d[dt] = v
		}
		out[st] = d
	}
	return out
}

// Merge overwrites the entries named in update, quantizing each delay.
func (c SensorConfiguration) Merge(update SensorConfiguration) {
	for st, delays := range update {
		dst := c[st]
		if dst == nil {
			dst = make(DataDelays, len(delays))
			c[st] = dst
		}
		for dt, v := range delays {
			if q, ok := QuantizeDelay(v); ok {
				dst[dt] = int(q)
			}
		}
	}
}

// Equal reports whether both configurations hold the same delays.
func (c SensorConfiguration) Equal(other SensorConfiguration) bool {
	if len(c) != len(other) {
		return false
	}
	for st, delays := range c {
		od, ok := other[st]
		if !ok || len(od) != len(delays) {
			return false
		}
		for dt, v := range delays {
			if ov, ok := od[dt]; !ok || ov != v {
				return false
			}
		}
	}
	return true
}

// Names renders the configuration keyed by sensor and data type names.
func (c SensorConfiguration) Names() map[string]map[string]int {
	out := make(map[string]map[string]int, len(c))
	for st, delays := range c {
		m := make(map[string]int, len(delays))
		for dt, v := range delays {
			if name, ok := st.DataTypeName(dt); ok {
				m[name] = v
			}
		}
		out[st.String()] = m
	}
	return out
}

// ParseConfiguration converts a name-keyed configuration. Unknown names and
// non-integer or negative delays are skipped and reported in the joined error.
func ParseConfiguration(named map[string]map[string]float64) (SensorConfiguration, error) {
	cfg := make(SensorConfiguration, len(named))
	var errs []error
	for sensorName, delays := range named {
		st, ok := ParseSensorType(sensorName)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: sensor type %q", ErrInvalidConfiguration, sensorName))
			continue
		}
		d := make(DataDelays, len(delays))
		for name, v := range delays {
			dt, ok := st.DataTypeByName(name)
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s data type %q", ErrInvalidConfiguration, st, name))
				continue
			}
			if v < 0 || v != math.Trunc(v) || v > math.MaxUint16 {
				errs = append(errs, fmt.Errorf("%w: %s.%s delay %v", ErrInvalidConfiguration, st, name, v))
				continue
			}
			d[dt] = int(v)
		}
		cfg[st] = d
	}
	return cfg, errors.Join(errs...)
}

// DisabledConfiguration sets every data type of every sensor type to 0.
func DisabledConfiguration() SensorConfiguration {
	cfg := make(SensorConfiguration, len(SensorTypes))
	for _, st := range SensorTypes {
		d := make(DataDelays, st.DataTypeCount())
		for dt := 0; dt < st.DataTypeCount(); dt++ {
			d[uint8(dt)] = 0
		}
		cfg[st] = d
	}
	return cfg
}

func sortedDataTypes(d DataDelays) []uint8 {
	out := make([]uint8, 0, len(d))
	for dt := range d {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
