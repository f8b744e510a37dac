package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/danmuck/stridelink/internal/protocol"
)

// MaxNameLength is the longest device name the firmware stores.
const MaxNameLength = 30

var (
	ErrUnknownKind = errors.New("session: unknown message kind")
	ErrInvalidKind = errors.New("session: invalid command kind")
)

// Inbound is one decoded device record. Only the field matching Kind is set.
type Inbound struct {
	Kind            Kind
	BatteryLevel    uint8
	Debug           bool
	Type            protocol.DeviceType
	Name            string
	Calibration     protocol.Calibration
	Configuration   protocol.SensorConfiguration
	SensorData      []byte
	WeightDataDelay uint16
	Weight          float32
}

// DecodeMessages splits one socket message into records. A SENSOR_DATA record
// runs to the end of the message. On an unknown kind or a short payload the
// records decoded so far are returned with the error; the rest is dropped.
func DecodeMessages(buf []byte) ([]Inbound, error) {
	var out []Inbound
	off := 0
	for off < len(buf) {
		kind := Kind(buf[off])
		off++
		in := Inbound{Kind: kind}
		rest := buf[off:]
		n := 0
		var err error
		switch kind {
		case BatteryLevel:
			n, err = need(rest, 1)
			if err == nil {
				in.BatteryLevel = rest[0]
			}
		case GetDebug, SetDebug:
			n, err = need(rest, 1)
			if err == nil {
				in.Debug = rest[0] != 0
			}
		case GetType, SetType:
			n, err = need(rest, 1)
			if err == nil {
				in.Type = protocol.DeviceType(rest[0])
			}
		case GetName, SetName:
			n, err = need(rest, 1)
			if err == nil {
				size := int(rest[0])
				n, err = need(rest, 1+size)
				if err == nil {
					in.Name = string(rest[1 : 1+size])
				}
			}
		case MotionCalibration:
			in.Calibration, n, err = protocol.DecodeCalibration(rest)
		case GetSensorDataConfigurations, SetSensorDataConfigurations:
			in.Configuration, n, err = protocol.DecodeConfiguration(rest)
		case SensorData:
			in.SensorData = rest
			n = len(rest)
		case GetWeightDataDelay, SetWeightDataDelay:
			n, err = need(rest, 2)
			if err == nil {
				in.WeightDataDelay = binary.LittleEndian.Uint16(rest)
			}
		case WeightData:
			n, err = need(rest, 4)
			if err == nil {
				in.Weight = math.Float32frombits(binary.LittleEndian.Uint32(rest))
			}
		default:
			return out, fmt.Errorf("%w: %d at offset %d", ErrUnknownKind, uint8(kind), off-1)
		}
		if err != nil {
			return out, fmt.Errorf("%s: %w", kind, err)
		}
		out = append(out, in)
		off += n
	}
	return out, nil
}

func need(b []byte, n int) (int, error) {
	if len(b) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", protocol.ErrTruncatedFrame, n, len(b))
	}
	return n, nil
}

// EncodeMessages writes device records in the envelope DecodeMessages reads.
// Devices and tests use it to build replies.
func EncodeMessages(records ...Inbound) ([]byte, error) {
	var out []byte
	for _, in := range records {
		out = append(out, byte(in.Kind))
		switch in.Kind {
		case BatteryLevel:
			out = append(out, in.BatteryLevel)
		case GetDebug, SetDebug:
			out = append(out, boolByte(in.Debug))
		case GetType, SetType:
			out = append(out, byte(in.Type))
		case GetName, SetName:
			out = append(out, NamePayload(in.Name)...)
		case MotionCalibration:
			out = append(out, protocol.EncodeCalibration(in.Calibration)...)
		case GetSensorDataConfigurations, SetSensorDataConfigurations:
			out = append(out, protocol.EncodeConfigurationTable(in.Configuration)...)
		case SensorData:
			out = append(out, in.SensorData...)
		case GetWeightDataDelay, SetWeightDataDelay:
			out = binary.LittleEndian.AppendUint16(out, in.WeightDataDelay)
		case WeightData:
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(in.Weight))
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(in.Kind))
		}
	}
	return out, nil
}

// DebugPayload encodes a SET_DEBUG argument.
func DebugPayload(debug bool) []byte {
	return []byte{boolByte(debug)}
}

// TypePayload encodes a SET_TYPE argument.
func TypePayload(t protocol.DeviceType) []byte {
	return []byte{byte(t)}
}

// NamePayload encodes a SET_NAME argument as [len][utf8], keeping at most
// MaxNameLength characters.
func NamePayload(name string) []byte {
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	out := make([]byte, 0, 1+len(name))
	out = append(out, byte(len(name)))
	return append(out, name...)
}

// ConfigurationPayload wraps an encoded configuration write as [len][bytes].
func ConfigurationPayload(encoded []byte) ([]byte, error) {
	if len(encoded) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: configuration write of %d bytes", protocol.ErrInvalidConfiguration, len(encoded))
	}
	out := make([]byte, 0, 1+len(encoded))
	out = append(out, byte(len(encoded)))
	return append(out, encoded...), nil
}

// SplitConfigurationPayload strips the length prefix of a SET_SENSOR_DATA_CONFIGURATIONS payload.
func SplitConfigurationPayload(b []byte) ([]byte, int, error) {
	if len(b) < 1 || len(b) < 1+int(b[0]) {
		return nil, 0, fmt.Errorf("%w: configuration payload", protocol.ErrTruncatedFrame)
	}
	return b[1 : 1+int(b[0])], 1 + int(b[0]), nil
}

// WeightDataDelayPayload encodes a SET_WEIGHT_DATA_DELAY argument.
func WeightDataDelayPayload(ms uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, ms)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
