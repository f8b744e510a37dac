package gatt

import (
	"context"

	"github.com/danmuck/stridelink/internal/device"
	"github.com/danmuck/stridelink/internal/event"
	"github.com/rs/zerolog/log"
)

func (l *Link) parseWifi(uuid string, v []byte) error {
	var typ event.Type
	var update func(*device.Wifi) any
	switch uuid {
	case WifiSSIDUUID:
		typ, update = event.WifiSSID, func(w *device.Wifi) any { w.SSID = string(v); return w.SSID }
	case WifiPasswordUUID:
		// Only whether a password is set leaves the device package.
		typ, update = event.WifiPassword, func(w *device.Wifi) any { w.Password = string(v); return w.Password != "" }
	case WifiConnectUUID:
		if len(v) < 1 {
			return ErrShortValue
		}
		typ, update = event.WifiConnect, func(w *device.Wifi) any { w.Connect = v[0] != 0; return w.Connect }
	case WifiIsConnectedUUID:
		if len(v) < 1 {
			return ErrShortValue
		}
		typ, update = event.WifiIsConnected, func(w *device.Wifi) any { w.IsConnected = v[0] != 0; return w.IsConnected }
	case WifiIPAddressUUID:
		typ, update = event.WifiIPAddress, func(w *device.Wifi) any { w.IPAddress = string(v); return w.IPAddress }
	case WifiMACAddressUUID:
		typ, update = event.WifiMACAddress, func(w *device.Wifi) any { w.MACAddress = string(v); return w.MACAddress }
	default:
		log.Debug().Msgf("gatt.Link.parse ignore uuid=%s", uuid)
		return nil
	}
	l.dev.ApplyWifi(typ, update)
	return nil
}

func (l *Link) wifi(ctx context.Context, uuid string) (device.Wifi, error) {
	if err := l.ensure(ctx, uuid); err != nil {
		return device.Wifi{}, err
	}
	return l.dev.Snapshot().Wifi, nil
}

func (l *Link) WifiSSID(ctx context.Context) (string, error) {
	w, err := l.wifi(ctx, WifiSSIDUUID)
	return w.SSID, err
}

func (l *Link) SetWifiSSID(ctx context.Context, ssid string) error {
	return l.write(ctx, WifiSSIDUUID, []byte(ssid), false)
}

func (l *Link) WifiPassword(ctx context.Context) (string, error) {
	w, err := l.wifi(ctx, WifiPasswordUUID)
	return w.Password, err
}

func (l *Link) SetWifiPassword(ctx context.Context, password string) error {
	return l.write(ctx, WifiPasswordUUID, []byte(password), false)
}

func (l *Link) WifiConnect(ctx context.Context) (bool, error) {
	w, err := l.wifi(ctx, WifiConnectUUID)
	return w.Connect, err
}

func (l *Link) ConnectToWifi(ctx context.Context) error {
	return l.write(ctx, WifiConnectUUID, []byte{1}, false)
}

func (l *Link) DisconnectFromWifi(ctx context.Context) error {
	return l.write(ctx, WifiConnectUUID, []byte{0}, false)
}

func (l *Link) WifiIsConnected(ctx context.Context) (bool, error) {
	w, err := l.wifi(ctx, WifiIsConnectedUUID)
	return w.IsConnected, err
}

func (l *Link) WifiIPAddress(ctx context.Context) (string, error) {
	w, err := l.wifi(ctx, WifiIPAddressUUID)
	return w.IPAddress, err
}

func (l *Link) WifiMACAddress(ctx context.Context) (string, error) {
	w, err := l.wifi(ctx, WifiMACAddressUUID)
	return w.MACAddress, err
}
