package gatt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/stridelink/internal/device"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/danmuck/stridelink/internal/transport"
	"github.com/rs/zerolog/log"
)

var ErrShortValue = errors.New("gatt: short characteristic value")

type Options struct {
	// ReconnectOnDisconnect makes one reconnect attempt after an unexpected
	// disconnect, delayed by the first backoff step.
	ReconnectOnDisconnect bool
	Backoff               session.BackoffConfig
	ConnectTimeout        time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReconnectOnDisconnect: true,
		Backoff:               session.DefaultConfig().Backoff,
		ConnectTimeout:        30 * time.Second,
	}
}

type mode uint8

const (
	bind mode = iota
	read
	notify
)

type step struct {
	service string
	uuid    string
	mode    mode
}

// connectSteps is the characteristic walk performed on every connect.
var connectSteps = []step{
	{BatteryService, BatteryLevel, notify},
	{ServiceUUID, DebugUUID, read},
	{ServiceUUID, ErrorMessageUUID, notify},
	{ServiceUUID, TypeUUID, read},
	{ServiceUUID, NameUUID, read},
	{ServiceUUID, MotionCalibrationUUID, notify},
	{ServiceUUID, SensorDataConfigurationUUID, read},
	{ServiceUUID, SensorDataUUID, notify},
	{ServiceUUID, WeightDataDelayUUID, read},
	{ServiceUUID, WeightDataUUID, notify},
	{ServiceUUID, WifiSSIDUUID, bind},
	{ServiceUUID, WifiPasswordUUID, bind},
	{ServiceUUID, WifiConnectUUID, bind},
	{ServiceUUID, WifiIsConnectedUUID, notify},
	{ServiceUUID, WifiIPAddressUUID, notify},
	{ServiceUUID, WifiMACAddressUUID, notify},
}

// Link is a transport.Link over a GATT peripheral.
type Link struct {
	p    Peripheral
	dev  *device.Device
	opts Options

	mu         sync.Mutex
	chars      map[string]Characteristic
	known      map[string]bool
	registered bool
	closing    bool
	reconnects int

	open atomic.Bool
}

var _ transport.Link = (*Link)(nil)

func New(p Peripheral, dev *device.Device, opts Options) *Link {
	return &Link{
		p:     p,
		dev:   dev,
		opts:  opts,
		chars: make(map[string]Characteristic),
		known: make(map[string]bool),
	}
}

func (l *Link) Device() *device.Device {
	return l.dev
}

func (l *Link) IsConnected() bool {
	return l.open.Load() && l.p.Connected()
}

// Connect connects the peripheral, walks every characteristic reading or
// subscribing as it goes, and publishes connected at the end of the walk.
func (l *Link) Connect(ctx context.Context) error {
	if l.IsConnected() {
		log.Debug().Msgf("gatt.Link.Connect already connected device=%s", l.dev.Label())
		return nil
	}
	if l.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.ConnectTimeout)
		defer cancel()
	}

	l.mu.Lock()
	if !l.registered {
		l.p.OnDisconnect(l.onDisconnect)
		l.registered = true
	}
	l.closing = false
	l.chars = make(map[string]Characteristic)
	l.known = make(map[string]bool)
	l.mu.Unlock()

	if err := l.p.Connect(ctx); err != nil {
		return fmt.Errorf("gatt connect: %w", err)
	}
	sessionID := l.dev.BeginSession()
	log.Info().Msgf("gatt.Link.Connect device=%s session=%s", l.dev.Label(), sessionID)
	l.open.Store(true)

	services := make(map[string]Service, 2)
	for _, s := range connectSteps {
		svc, ok := services[s.service]
		if !ok {
			var err error
			if svc, err = l.p.PrimaryService(ctx, s.service); err != nil {
				l.abort()
				return fmt.Errorf("gatt service %s: %w", s.service, err)
			}
			services[s.service] = svc
		}
		c, err := svc.Characteristic(ctx, s.uuid)
		if err != nil {
			l.abort()
			return fmt.Errorf("gatt characteristic %s: %w", s.uuid, err)
		}
		l.mu.Lock()
		l.chars[s.uuid] = c
		l.mu.Unlock()

		switch s.mode {
		case read:
			if err := l.refresh(ctx, s.uuid); err != nil {
				l.abort()
				return err
			}
		case notify:
			uuid := s.uuid
			err := c.Subscribe(ctx, func(v []byte) {
				if perr := l.parse(uuid, v); perr != nil {
					log.Warn().Err(perr).Msgf("gatt.Link.notify device=%s uuid=%s", l.dev.Label(), uuid)
				}
			})
			if err != nil {
				l.abort()
				return fmt.Errorf("gatt subscribe %s: %w", uuid, err)
			}
		}
	}
	l.dev.MarkConnected()
	return nil
}

func (l *Link) abort() {
	l.open.Store(false)
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	_ = l.p.Disconnect()
}

// Close disconnects without triggering a reconnect.
func (l *Link) Close() error {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	if !l.open.Swap(false) {
		return nil
	}
	err := l.p.Disconnect()
	l.dev.MarkDisconnected()
	return err
}

func (l *Link) onDisconnect() {
	if !l.open.Swap(false) {
		return
	}
	l.dev.MarkDisconnected()

	l.mu.Lock()
	retry := l.opts.ReconnectOnDisconnect && !l.closing
	if retry {
		l.reconnects++
	}
	l.mu.Unlock()
	if !retry {
		return
	}
	go func() {
		time.Sleep(session.NextBackoffDelay(l.opts.Backoff, 1, nil))
		log.Info().Msgf("gatt.Link.onDisconnect reconnect device=%s", l.dev.Label())
		if err := l.Connect(context.Background()); err != nil {
			log.Warn().Err(err).Msgf("gatt.Link.onDisconnect reconnect failed device=%s", l.dev.Label())
		}
	}()
}

// Reconnects reports how many reconnect attempts were started.
func (l *Link) Reconnects() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reconnects
}

func (l *Link) characteristic(uuid string) (Characteristic, error) {
	if !l.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.chars[uuid]
	if !ok {
		return nil, fmt.Errorf("gatt: characteristic %s not discovered", uuid)
	}
	return c, nil
}

// refresh reads uuid and applies the value.
func (l *Link) refresh(ctx context.Context, uuid string) error {
	c, err := l.characteristic(uuid)
	if err != nil {
		return err
	}
	v, err := c.Read(ctx)
	if err != nil {
		return fmt.Errorf("gatt read %s: %w", uuid, err)
	}
	return l.parse(uuid, v)
}

// ensure reads uuid unless a value already arrived this session.
func (l *Link) ensure(ctx context.Context, uuid string) error {
	if !l.IsConnected() {
		return transport.ErrNotConnected
	}
	l.mu.Lock()
	known := l.known[uuid]
	l.mu.Unlock()
	if known {
		return nil
	}
	return l.refresh(ctx, uuid)
}

// write writes value with response. When reread is set the value is read
// back, otherwise the characteristic's held value is applied.
func (l *Link) write(ctx context.Context, uuid string, value []byte, reread bool) error {
	c, err := l.characteristic(uuid)
	if err != nil {
		return err
	}
	if err := c.WriteWithResponse(ctx, value); err != nil {
		return fmt.Errorf("gatt write %s: %w", uuid, err)
	}
	if reread {
		return l.refresh(ctx, uuid)
	}
	return l.parse(uuid, c.Value())
}

func (l *Link) parse(uuid string, v []byte) error {
	switch uuid {
	case BatteryLevel:
		if len(v) < 1 {
			return ErrShortValue
		}
		l.dev.ApplyBatteryLevel(v[0])
	case DebugUUID:
		if len(v) < 1 {
			return ErrShortValue
		}
		l.dev.ApplyDebug(v[0] != 0)
	case ErrorMessageUUID:
		l.dev.ApplyErrorMessage(string(v))
	case TypeUUID:
		if len(v) < 1 {
			return ErrShortValue
		}
		if err := l.dev.ApplyType(protocol.DeviceType(v[0])); err != nil {
			return err
		}
	case NameUUID:
		l.dev.ApplyName(string(v))
	case MotionCalibrationUUID:
		c, _, err := protocol.DecodeCalibration(v)
		if err != nil {
			return err
		}
		l.dev.ApplyCalibration(c)
	case SensorDataConfigurationUUID:
		cfg, _, err := protocol.DecodeConfiguration(v)
		if err != nil {
			return err
		}
		l.dev.ApplyConfiguration(cfg)
	case SensorDataUUID:
		if err := l.dev.ApplySensorData(v); err != nil && protocol.IsFrameFatal(err) {
			return err
		}
	case WeightDataDelayUUID:
		if len(v) < 2 {
			return ErrShortValue
		}
		l.dev.ApplyWeightDataDelay(binary.LittleEndian.Uint16(v))
	case WeightDataUUID:
		if len(v) < 4 {
			return ErrShortValue
		}
		l.dev.ApplyWeight(math.Float32frombits(binary.LittleEndian.Uint32(v)))
	default:
		if err := l.parseWifi(uuid, v); err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.known[uuid] = true
	l.mu.Unlock()
	return nil
}

func (l *Link) Debug(ctx context.Context) (bool, error) {
	if err := l.ensure(ctx, DebugUUID); err != nil {
		return false, err
	}
	s := l.dev.Snapshot()
	return s.Debug != nil && *s.Debug, nil
}

func (l *Link) SetDebug(ctx context.Context, debug bool) error {
	return l.write(ctx, DebugUUID, session.DebugPayload(debug), false)
}

func (l *Link) Type(ctx context.Context) (protocol.DeviceType, error) {
	if err := l.ensure(ctx, TypeUUID); err != nil {
		return 0, err
	}
	t, _ := l.dev.Type()
	return t, nil
}

func (l *Link) SetType(ctx context.Context, t protocol.DeviceType) error {
	if !t.Valid() {
		return device.ErrInvalidType
	}
	return l.write(ctx, TypeUUID, session.TypePayload(t), false)
}

func (l *Link) Name(ctx context.Context) (string, error) {
	if err := l.ensure(ctx, NameUUID); err != nil {
		return "", err
	}
	if s := l.dev.Snapshot(); s.Name != nil {
		return *s.Name, nil
	}
	return "", nil
}

// SetName writes the name as raw UTF-8, truncated like the socket payload.
func (l *Link) SetName(ctx context.Context, name string) error {
	return l.write(ctx, NameUUID, session.NamePayload(name)[1:], false)
}

func (l *Link) SensorDataConfigurations(ctx context.Context) (protocol.SensorConfiguration, error) {
	if err := l.ensure(ctx, SensorDataConfigurationUUID); err != nil {
		return nil, err
	}
	return l.dev.Configuration(), nil
}

// SetSensorDataConfigurations writes the encoded configuration, reads the
// table back and returns it.
func (l *Link) SetSensorDataConfigurations(ctx context.Context, cfg protocol.SensorConfiguration) (protocol.SensorConfiguration, error) {
	t, _ := l.dev.Type()
	if err := l.write(ctx, SensorDataConfigurationUUID, protocol.EncodeConfiguration(cfg, t), true); err != nil {
		return nil, err
	}
	return l.dev.Configuration(), nil
}

func (l *Link) WeightDataDelay(ctx context.Context) (uint16, error) {
	if err := l.ensure(ctx, WeightDataDelayUUID); err != nil {
		return 0, err
	}
	if s := l.dev.Snapshot(); s.WeightDataDelay != nil {
		return *s.WeightDataDelay, nil
	}
	return 0, nil
}

func (l *Link) SetWeightDataDelay(ctx context.Context, ms uint16) error {
	return l.write(ctx, WeightDataDelayUUID, session.WeightDataDelayPayload(ms), true)
}
