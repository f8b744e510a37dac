package device

import (
	"github.com/danmuck/stridelink/internal/geom"
	"github.com/danmuck/stridelink/internal/protocol"
)

// Wifi is the network state an insole reports over GATT.
type Wifi struct {
	SSID        string `json:"ssid"`
	Password    string `json:"-"`
	Connect     bool   `json:"connect"`
	IsConnected bool   `json:"isConnected"`
	IPAddress   string `json:"ipAddress"`
	MACAddress  string `json:"macAddress"`
}

// Motion holds the last decoded value of every motion data type.
type Motion struct {
	Acceleration       geom.Vector3    `json:"acceleration"`
	Gravity            geom.Vector3    `json:"gravity"`
	LinearAcceleration geom.Vector3    `json:"linearAcceleration"`
	RotationRate       geom.Euler      `json:"rotationRate"`
	Magnetometer       geom.Vector3    `json:"magnetometer"`
	Quaternion         geom.Quaternion `json:"quaternion"`
	Euler              geom.Euler      `json:"euler"`
}

// State is a snapshot of everything known about one device. Optional
// fields are nil until the device first reports them.
type State struct {
	Label     string `json:"label"`
	Session   string `json:"session"`
	Connected bool   `json:"connected"`

	Name            *string                      `json:"name"`
	Type            *protocol.DeviceType         `json:"type"`
	Debug           *bool                        `json:"debug"`
	BatteryLevel    *uint8                       `json:"batteryLevel"`
	Configuration   protocol.SensorConfiguration `json:"-"`
	WeightDataDelay *uint16                      `json:"weightDataDelay"`
	Weight          *float32                     `json:"weight"`
	ErrorMessage    string                       `json:"errorMessage,omitempty"`
	Wifi            Wifi                         `json:"wifi"`

	Calibration protocol.Calibration    `json:"calibration"`
	Motion      Motion                  `json:"motion"`
	Pressure    protocol.PressureSample `json:"pressure"`
	Timestamp   uint32                  `json:"timestamp"`
}

// ConfigurationNames renders the held configuration for JSON consumers.
func (s State) ConfigurationNames() map[string]map[string]int {
	if s.Configuration == nil {
		return nil
	}
	return s.Configuration.Names()
}

// IsInsole reports whether the resolved type is an insole.
func (s State) IsInsole() bool {
	return s.Type != nil && s.Type.IsInsole()
}

func (s State) clone() State {
	out := s
	out.Configuration = s.Configuration.Clone()
	if s.Pressure.Channels != nil {
		out.Pressure.Channels = append([]protocol.Channel(nil), s.Pressure.Channels...)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
