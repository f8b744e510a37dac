package relay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	DefaultEdgeImpulseURL = "https://ingestion.edgeimpulse.com"
	edgeImpulseDevice     = "ESP32-WROOM-32E"
)

var emptySignature = strings.Repeat("0", 64)

type EdgeImpulseConfig struct {
	URL      string `toml:"url" yaml:"url"`
	Category string `toml:"category" yaml:"category"`
	APIKey   string `toml:"api_key" yaml:"api_key"`
	HMACKey  string `toml:"hmac_key" yaml:"hmac_key"`
}

// EdgeImpulse uploads each pressure array as a signed ingestion sample,
// labelled with the device's last reported weight. Pressure from a device
// with no known weight is skipped.
type EdgeImpulse struct {
	cfg    EdgeImpulseConfig
	client *http.Client
	now    func() time.Time

	mu     sync.Mutex
	weight map[string]float32
	mac    map[string]string
}

func NewEdgeImpulse(cfg EdgeImpulseConfig, client *http.Client) *EdgeImpulse {
	if cfg.URL == "" {
		cfg.URL = DefaultEdgeImpulseURL
	}
	if cfg.Category == "" {
		cfg.Category = "training"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &EdgeImpulse{
		cfg:    cfg,
		client: client,
		now:    time.Now,
		weight: make(map[string]float32),
		mac:    make(map[string]string),
	}
}

func (s *EdgeImpulse) Name() string { return "edgeimpulse" }

type sampleHeader struct {
	Ver string `json:"ver"`
	Alg string `json:"alg"`
	Iat int64  `json:"iat"`
}

type sampleSensor struct {
	Name  string `json:"name"`
	Units string `json:"units"`
}

type samplePayload struct {
	DeviceName string         `json:"device_name"`
	DeviceType string         `json:"device_type"`
	IntervalMS int            `json:"interval_ms"`
	Sensors    []sampleSensor `json:"sensors"`
	Values     [][]float64    `json:"values"`
}

type sample struct {
	Protected sampleHeader  `json:"protected"`
	Signature string        `json:"signature"`
	Payload   samplePayload `json:"payload"`
}

func (s *EdgeImpulse) Write(ctx context.Context, e event.Event) error {
	switch e.Type {
	case event.Weight:
		if w, ok := e.Value.(float32); ok {
			s.mu.Lock()
			s.weight[e.Device] = w
			s.mu.Unlock()
		}
		return ErrSkip
	case event.WifiMACAddress:
		if mac, ok := e.Value.(string); ok && mac != "" {
			s.mu.Lock()
			s.mac[e.Device] = mac
			s.mu.Unlock()
		}
		return ErrSkip
	case event.Pressure:
	default:
		return ErrSkip
	}

	p, ok := e.Value.(protocol.PressureSample)
	if !ok {
		return ErrSkip
	}
	s.mu.Lock()
	weight, known := s.weight[e.Device]
	name := s.mac[e.Device]
	s.mu.Unlock()
	if !known {
		return ErrSkip
	}
	if name == "" {
		name = e.Device
	}

	values := make([][]float64, len(p.Channels))
	for i, ch := range p.Channels {
		values[i] = []float64{float64(ch.Value)}
	}
	body, err := s.sign(sample{
		Protected: sampleHeader{Ver: "v1", Alg: "HS256", Iat: s.now().Unix()},
		Payload: samplePayload{
			DeviceName: name,
			DeviceType: edgeImpulseDevice,
			IntervalMS: 1,
			Sensors:    []sampleSensor{{Name: "pressure_sensor", Units: "pressure"}},
			Values:     values,
		},
	})
	if err != nil {
		return err
	}
	return s.post(ctx, body, strconv.FormatFloat(float64(weight), 'f', -1, 32))
}

// sign fills the HMAC-SHA256 of the sample encoded with an all-zero
// signature and returns the final encoding.
func (s *EdgeImpulse) sign(smp sample) ([]byte, error) {
	smp.Signature = emptySignature
	unsigned, err := json.Marshal(smp)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.HMACKey))
	mac.Write(unsigned)
	smp.Signature = hex.EncodeToString(mac.Sum(nil))
	return json.Marshal(smp)
}

func (s *EdgeImpulse) post(ctx context.Context, body []byte, fileName string) error {
	url := strings.TrimSuffix(s.cfg.URL, "/") + "/api/" + s.cfg.Category + "/data"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", s.cfg.APIKey)
	req.Header.Set("x-file-name", fileName)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("edge impulse upload: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("edge impulse upload: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	log.Debug().Msgf("relay.EdgeImpulse.post status=%d file=%s", resp.StatusCode, fileName)
	return nil
}

func (s *EdgeImpulse) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
