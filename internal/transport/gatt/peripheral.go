// Package gatt is the BLE device link. The BLE stack itself sits behind the
// Peripheral, Service and Characteristic interfaces so any host adapter can
// drive it.
package gatt

import "context"

const (
	ServiceUUID = "5691eddf-0000-4420-b7a5-bb8751ab5181"

	BatteryService = "battery_service"
	BatteryLevel   = "battery_level"
)

// CharacteristicUUID expands a four digit code into the device's UUID space.
func CharacteristicUUID(code string) string {
	return "5691eddf-" + code + "-4420-b7a5-bb8751ab5181"
}

var (
	DebugUUID                   = CharacteristicUUID("1001")
	ErrorMessageUUID            = CharacteristicUUID("2001")
	TypeUUID                    = CharacteristicUUID("3001")
	NameUUID                    = CharacteristicUUID("4001")
	MotionCalibrationUUID       = CharacteristicUUID("5001")
	SensorDataConfigurationUUID = CharacteristicUUID("6001")
	SensorDataUUID              = CharacteristicUUID("6002")
	WifiSSIDUUID                = CharacteristicUUID("7001")
	WifiPasswordUUID            = CharacteristicUUID("7002")
	WifiConnectUUID             = CharacteristicUUID("7003")
	WifiIsConnectedUUID         = CharacteristicUUID("7004")
	WifiIPAddressUUID           = CharacteristicUUID("7005")
	WifiMACAddressUUID          = CharacteristicUUID("7006")
	WeightDataDelayUUID         = CharacteristicUUID("8001")
	WeightDataUUID              = CharacteristicUUID("8002")
)

// Characteristic is one GATT characteristic. Value returns the bytes held
// after the last read or write-with-response.
type Characteristic interface {
	UUID() string
	Read(ctx context.Context) ([]byte, error)
	WriteWithResponse(ctx context.Context, value []byte) error
	Value() []byte
	Subscribe(ctx context.Context, fn func(value []byte)) error
}

type Service interface {
	UUID() string
	Characteristic(ctx context.Context, uuid string) (Characteristic, error)
}

// Peripheral is a connectable BLE device. OnDisconnect registers the
// callback fired when the link drops without Disconnect being called.
type Peripheral interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	PrimaryService(ctx context.Context, uuid string) (Service, error)
	OnDisconnect(fn func())
}
