package session

import "fmt"

// Kind is the one-byte tag of a command or record in the socket envelope.
type Kind uint8

const (
	BatteryLevel Kind = iota
	GetDebug
	SetDebug
	GetType
	SetType
	GetName
	SetName
	MotionCalibration
	GetSensorDataConfigurations
	SetSensorDataConfigurations
	SensorData
	GetWeightDataDelay
	SetWeightDataDelay
	WeightData
)

var kindNames = [...]string{
	"BATTERY_LEVEL",
	"GET_DEBUG",
	"SET_DEBUG",
	"GET_TYPE",
	"SET_TYPE",
	"GET_NAME",
	"SET_NAME",
	"MOTION_CALIBRATION",
	"GET_SENSOR_DATA_CONFIGURATIONS",
	"SET_SENSOR_DATA_CONFIGURATIONS",
	"SENSOR_DATA",
	"GET_WEIGHT_DATA_DELAY",
	"SET_WEIGHT_DATA_DELAY",
	"WEIGHT_DATA",
}

func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// IsGet reports whether k is an idempotent read command.
func (k Kind) IsGet() bool {
	switch k {
	case GetDebug, GetType, GetName, GetSensorDataConfigurations, GetWeightDataDelay:
		return true
	}
	return false
}

// IsSet reports whether k is a write command.
func (k Kind) IsSet() bool {
	switch k {
	case SetDebug, SetType, SetName, SetSensorDataConfigurations, SetWeightDataDelay:
		return true
	}
	return false
}

// Topic folds a get/set pair onto its get kind. Replies of either kind
// resolve requests of the same topic. Other kinds are their own topic.
func (k Kind) Topic() Kind {
	if k.IsSet() {
		return k - 1
	}
	return k
}

// SetKind returns the write command paired with a get kind.
func (k Kind) SetKind() (Kind, bool) {
	if !k.IsGet() {
		return 0, false
	}
	return k + 1, true
}
