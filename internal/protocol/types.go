package protocol

import (
	"fmt"
	"strings"
)

// DeviceType is the device identity reported by the device. It also fixes the
// placement used for every geometric decode.
type DeviceType uint8

const (
	MotionModule DeviceType = iota
	LeftInsole
	RightInsole
)

var deviceTypeNames = [...]string{"MOTION_MODULE", "LEFT_INSOLE", "RIGHT_INSOLE"}

func (t DeviceType) Valid() bool {
	return int(t) < len(deviceTypeNames)
}

func (t DeviceType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("DeviceType(%d)", uint8(t))
	}
	return deviceTypeNames[t]
}

func (t DeviceType) IsInsole() bool {
	return t == LeftInsole || t == RightInsole
}

func (t DeviceType) IsRightInsole() bool {
	return t == RightInsole
}

// ParseDeviceType accepts the wire name or a side shorthand ("left", "right", "module").
func ParseDeviceType(raw string) (DeviceType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "MOTION_MODULE", "MODULE", "":
		return MotionModule, nil
	case "LEFT_INSOLE", "LEFT":
		return LeftInsole, nil
	case "RIGHT_INSOLE", "RIGHT":
		return RightInsole, nil
	}
	return 0, fmt.Errorf("protocol: unknown device type %q", raw)
}

// SensorType tags one record inside a sensor data frame.
type SensorType uint8

const (
	SensorMotion SensorType = iota
	SensorPressure
)

// SensorTypes lists every known sensor type in declared wire order.
var SensorTypes = []SensorType{SensorMotion, SensorPressure}

var sensorTypeNames = [...]string{"motion", "pressure"}

func (s SensorType) Valid() bool {
	return int(s) < len(sensorTypeNames)
}

func (s SensorType) String() string {
	if !s.Valid() {
		return fmt.Sprintf("SensorType(%d)", uint8(s))
	}
	return sensorTypeNames[s]
}

// DataTypeCount is the number of data types the sensor type declares.
func (s SensorType) DataTypeCount() int {
	switch s {
	case SensorMotion:
		return len(motionDataTypeNames)
	case SensorPressure:
		return len(pressureDataTypeNames)
	}
	return 0
}

// DataTypeName returns the name of a per-sensor data type tag.
func (s SensorType) DataTypeName(dt uint8) (string, bool) {
	switch s {
	case SensorMotion:
		if MotionDataType(dt).Valid() {
			return MotionDataType(dt).String(), true
		}
	case SensorPressure:
		if PressureDataType(dt).Valid() {
			return PressureDataType(dt).String(), true
		}
	}
	return "", false
}

// DataTypeByName resolves a per-sensor data type name to its tag.
func (s SensorType) DataTypeByName(name string) (uint8, bool) {
	var names []string
	switch s {
	case SensorMotion:
		names = motionDataTypeNames[:]
	case SensorPressure:
		names = pressureDataTypeNames[:]
	}
	for i, n := range names {
		if n == name {
			return uint8(i), true
		}
	}
	return 0, false
}

func ParseSensorType(raw string) (SensorType, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for i, n := range sensorTypeNames {
		if n == raw {
			return SensorType(i), true
		}
	}
	return 0, false
}

// MotionDataType tags one entry inside a motion record.
type MotionDataType uint8

const (
	MotionAcceleration MotionDataType = iota
	MotionGravity
	MotionLinearAcceleration
	MotionRotationRate
	MotionMagnetometer
	MotionQuaternion
)

var motionDataTypeNames = [...]string{
	"acceleration",
	"gravity",
	"linearAcceleration",
	"rotationRate",
	"magnetometer",
	"quaternion",
}

func (m MotionDataType) Valid() bool {
	return int(m) < len(motionDataTypeNames)
}

func (m MotionDataType) String() string {
	if !m.Valid() {
		return fmt.Sprintf("MotionDataType(%d)", uint8(m))
	}
	return motionDataTypeNames[m]
}

// Scalar is the fixed multiplier applied to raw int16 components.
func (m MotionDataType) Scalar() float64 {
	switch m {
	case MotionAcceleration, MotionGravity, MotionLinearAcceleration, MotionMagnetometer:
		return 1.0 / 100
	case MotionRotationRate:
		return 1.0 / 16
	case MotionQuaternion:
		return 1.0 / (1 << 14)
	}
	return 1
}

// Width is the payload byte width of one entry, excluding the tag.
func (m MotionDataType) Width() int {
	if m == MotionQuaternion {
		return 8
	}
	return 6
}

// PressureDataType tags one entry inside a pressure record.
type PressureDataType uint8

const (
	PressureSingleByte PressureDataType = iota
	PressureDoubleByte
	PressureCenterOfMass
	PressureMass
	PressureHeelToToe
)

var pressureDataTypeNames = [...]string{
	"pressureSingleByte",
	"pressureDoubleByte",
	"centerOfMass",
	"mass",
	"heelToToe",
}

func (p PressureDataType) Valid() bool {
	return int(p) < len(pressureDataTypeNames)
}

func (p PressureDataType) String() string {
	if !p.Valid() {
		return fmt.Sprintf("PressureDataType(%d)", uint8(p))
	}
	return pressureDataTypeNames[p]
}

// IsArray reports whether the entry carries the full channel array.
func (p PressureDataType) IsArray() bool {
	return p == PressureSingleByte || p == PressureDoubleByte
}
