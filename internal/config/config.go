package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/pair"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/relay"
	"gopkg.in/yaml.v3"
)

const (
	TransportSocket = "socket"
	TransportGATT   = "gatt"
)

type Config struct {
	Log     LogConfig      `toml:"log" yaml:"log"`
	HTTP    HTTPConfig     `toml:"http" yaml:"http"`
	Devices []DeviceConfig `toml:"devices" yaml:"devices"`
	Relay   RelayConfig    `toml:"relay" yaml:"relay"`
}

type LogConfig struct {
	Level   string `toml:"level" yaml:"level"`
	NoColor bool   `toml:"no_color" yaml:"no_color"`
}

type HTTPConfig struct {
	Addr        string   `toml:"addr" yaml:"addr"`
	CorsOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	// Token, when set, is required as a bearer token on write routes.
	Token string `toml:"token" yaml:"token"`
}

// DeviceConfig is one insole or motion module. Sensors maps sensor type
// names to data type names to delays in milliseconds. Reconnect re-runs the
// connect sequence whenever an established session drops.
type DeviceConfig struct {
	Name      string                        `toml:"name" yaml:"name"`
	Transport string                        `toml:"transport" yaml:"transport"`
	Address   string                        `toml:"address" yaml:"address"`
	Side      string                        `toml:"side" yaml:"side"`
	Reconnect bool                          `toml:"reconnect" yaml:"reconnect"`
	Sensors   map[string]map[string]float64 `toml:"sensors" yaml:"sensors"`
	Layout    *LayoutConfig                 `toml:"layout" yaml:"layout"`
}

// LayoutConfig overrides the pressure sensor positions, given in millimetres
// on a left insole outline of WidthMM by HeightMM.
type LayoutConfig struct {
	WidthMM   float64      `toml:"width_mm" yaml:"width_mm"`
	HeightMM  float64      `toml:"height_mm" yaml:"height_mm"`
	Positions [][2]float64 `toml:"positions" yaml:"positions"`
}

type RelayConfig struct {
	Buffer      int                      `toml:"buffer" yaml:"buffer"`
	Types       []string                 `toml:"types" yaml:"types"`
	EdgeImpulse *relay.EdgeImpulseConfig `toml:"edge_impulse" yaml:"edge_impulse"`
	MQTT        *relay.MQTTConfig        `toml:"mqtt" yaml:"mqtt"`
	Kafka       *relay.KafkaConfig       `toml:"kafka" yaml:"kafka"`
	Influx      *relay.InfluxConfig      `toml:"influx" yaml:"influx"`
	NATS        *relay.NATSConfig        `toml:"nats" yaml:"nats"`
}

func DefaultConfig() Config {
	return Config{
		Log:  LogConfig{Level: "info"},
		HTTP: HTTPConfig{Addr: ":8080"},
		Relay: RelayConfig{
			Buffer: relay.DefaultOptions().Buffer,
		},
	}
}

// Load reads a TOML or YAML file (by extension) over DefaultConfig and
// validates the result. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		return errors.New("http config missing addr")
	}
	names := make(map[string]bool, len(cfg.Devices))
	sides := make(map[pair.Side]string, 2)
	for i, d := range cfg.Devices {
		if err := ValidateDevice(d); err != nil {
			return fmt.Errorf("devices[%d] invalid: %w", i, err)
		}
		if names[d.Name] {
			return fmt.Errorf("devices[%d] invalid: duplicate name %q", i, d.Name)
		}
		names[d.Name] = true
		side, _ := deviceSide(d.Side)
		if side == "" {
			continue
		}
		if other, ok := sides[side]; ok {
			return fmt.Errorf("devices[%d] invalid: side %s already taken by %q", i, side, other)
		}
		sides[side] = d.Name
	}
	for _, t := range cfg.Relay.Types {
		if strings.TrimSpace(t) == "" {
			return errors.New("relay types contain an empty entry")
		}
	}
	if ei := cfg.Relay.EdgeImpulse; ei != nil && (ei.APIKey == "" || ei.HMACKey == "") {
		return errors.New("relay edge_impulse requires api_key and hmac_key")
	}
	if k := cfg.Relay.Kafka; k != nil && (len(k.Brokers) == 0 || k.Topic == "") {
		return errors.New("relay kafka requires brokers and topic")
	}
	if m := cfg.Relay.MQTT; m != nil && m.Broker == "" {
		return errors.New("relay mqtt requires broker")
	}
	if n := cfg.Relay.NATS; n != nil && n.URL == "" {
		return errors.New("relay nats requires url")
	}
	if in := cfg.Relay.Influx; in != nil && (in.URL == "" || in.Bucket == "") {
		return errors.New("relay influx requires url and bucket")
	}
	return nil
}

func ValidateDevice(d DeviceConfig) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("name is required")
	}
	switch d.Transport {
	case TransportSocket:
		if strings.TrimSpace(d.Address) == "" {
			return errors.New("address is required for socket transport")
		}
	case TransportGATT:
	default:
		return fmt.Errorf("unknown transport %q", d.Transport)
	}
	if _, err := deviceSide(d.Side); err != nil {
		return err
	}
	if _, err := d.Configuration(); err != nil {
		return err
	}
	if d.Layout != nil {
		if _, err := d.Layout.Build(); err != nil {
			return err
		}
	}
	return nil
}

// Configuration converts Sensors into a wire configuration. Nil Sensors
// returns nil.
func (d DeviceConfig) Configuration() (protocol.SensorConfiguration, error) {
	if len(d.Sensors) == 0 {
		return nil, nil
	}
	return protocol.ParseConfiguration(d.Sensors)
}

func (l LayoutConfig) Build() (protocol.Layout, error) {
	if l.WidthMM <= 0 || l.HeightMM <= 0 {
		return nil, fmt.Errorf("layout needs positive width_mm and height_mm")
	}
	if len(l.Positions) == 0 {
		return nil, fmt.Errorf("layout has no positions")
	}
	return protocol.LayoutFromMM(l.Positions, l.WidthMM, l.HeightMM), nil
}

// RelayTypes returns the relay filter as event types.
func (r RelayConfig) RelayTypes() []event.Type {
	out := make([]event.Type, 0, len(r.Types))
	for _, t := range r.Types {
		out = append(out, event.Type(strings.TrimSpace(t)))
	}
	return out
}

// deviceSide parses an optional pair side; blank means unpaired.
func deviceSide(raw string) (pair.Side, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return pair.ParseSide(raw)
}

// Pair returns the device names configured for the left and right sides.
func (c Config) Pair() (left, right string) {
	for _, d := range c.Devices {
		switch side, _ := deviceSide(d.Side); side {
		case pair.Left:
			left = d.Name
		case pair.Right:
			right = d.Name
		}
	}
	return left, right
}
