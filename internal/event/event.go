// Package event is the publish boundary between device decoding and its
// consumers (pair aggregation, relays, the HTTP API).
package event

import "time"

// Type names one published event.
type Type string

const (
	Connected    Type = "connected"
	Disconnected Type = "disconnected"

	Debug           Type = "debug"
	DeviceType      Type = "type"
	Name            Type = "name"
	BatteryLevel    Type = "batterylevel"
	ErrorMessage    Type = "errorMessage"
	WeightDataDelay Type = "weightdatadelay"
	Weight          Type = "weight"

	MotionCalibration       Type = "motioncalibration"
	MotionIsFullyCalibrated Type = "motionisfullycalibrated"
	SensorDataConfiguration Type = "sensordataconfigurations"

	Acceleration       Type = "acceleration"
	Gravity            Type = "gravity"
	LinearAcceleration Type = "linearAcceleration"
	RotationRate       Type = "rotationRate"
	Magnetometer       Type = "magnetometer"
	Quaternion         Type = "quaternion"
	Euler              Type = "euler"

	Pressure           Type = "pressure"
	PressureSingleByte Type = "pressureSingleByte"
	PressureDoubleByte Type = "pressureDoubleByte"
	Mass               Type = "mass"
	CenterOfMass       Type = "centerOfMass"
	HeelToToe          Type = "heelToToe"

	WifiSSID        Type = "wifissid"
	WifiPassword    Type = "wifipassword"
	WifiConnect     Type = "wificonnect"
	WifiIsConnected Type = "wifiisconnected"
	WifiIPAddress   Type = "wifiipaddress"
	WifiMACAddress  Type = "wifimacaddress"

	// PairPressure is published by the pair aggregator, not by a device.
	PairPressure Type = "pair.pressure"
)

// Event is one published value. Device is the configured device name, or
// the pair side for PairPressure. Timestamp is the reconstructed frame
// timestamp for sensor events and zero otherwise.
type Event struct {
	Type      Type      `json:"type"`
	Device    string    `json:"device"`
	Session   string    `json:"session,omitempty"`
	Timestamp uint32    `json:"timestamp"`
	At        time.Time `json:"at"`
	Value     any       `json:"value"`
}
