package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/stridelink/internal/config"
	"github.com/danmuck/stridelink/internal/device"
	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/pair"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/danmuck/stridelink/internal/relay"
	"github.com/danmuck/stridelink/internal/server"
	"github.com/danmuck/stridelink/internal/transport"
	"github.com/danmuck/stridelink/internal/transport/socket"
	"github.com/rs/zerolog/log"
)

var errNoPeripheral = errors.New("gatt transport needs a host BLE adapter")

type app struct {
	cfg       config.Config
	bus       *event.Bus
	links     []transport.Link
	sensors   map[string]protocol.SensorConfiguration
	reconnect map[string]bool
	agg       *pair.Aggregator
	relay     *relay.Relay
	api       *server.Server

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{
		cfg:       cfg,
		bus:       event.NewBus(),
		sensors:   make(map[string]protocol.SensorConfiguration),
		reconnect: make(map[string]bool),
	}
	sess := session.DefaultConfig()
	for _, d := range cfg.Devices {
		var opts []protocol.Option
		if d.Layout != nil {
			layout, err := d.Layout.Build()
			if err != nil {
				return nil, err
			}
			opts = append(opts, protocol.WithLayout(layout))
		}
		dev := device.New(d.Name, a.bus, opts...)
		switch d.Transport {
		case config.TransportSocket:
			a.links = append(a.links, socket.New(d.Address, dev, sess))
		case config.TransportGATT:
			log.Warn().Err(errNoPeripheral).Msgf("stridectl skip device=%s", d.Name)
			continue
		}
		a.reconnect[d.Name] = d.Reconnect
		if sensors, _ := d.Configuration(); sensors != nil {
			a.sensors[d.Name] = sensors
		}
	}

	if left, right := cfg.Pair(); left != "" && right != "" {
		a.agg = pair.NewAggregator(a.bus)
		a.agg.Attach(a.bus, left, right)
		log.Info().Msgf("stridectl pair left=%s right=%s", left, right)
	}

	sinks, err := buildSinks(cfg.Relay)
	if err != nil {
		return nil, err
	}
	if len(sinks) > 0 {
		opts := relay.DefaultOptions()
		if cfg.Relay.Buffer > 0 {
			opts.Buffer = cfg.Relay.Buffer
		}
		opts.Types = cfg.Relay.RelayTypes()
		a.relay = relay.New(opts, sinks...)
		a.relay.Attach(a.bus)
	}

	a.api = server.New(cfg.HTTP.Addr, cfg.HTTP.CorsOrigins, a.links, a.agg)
	a.api.SetToken(cfg.HTTP.Token)
	return a, nil
}

func buildSinks(cfg config.RelayConfig) ([]relay.Sink, error) {
	var sinks []relay.Sink
	if cfg.EdgeImpulse != nil {
		sinks = append(sinks, relay.NewEdgeImpulse(*cfg.EdgeImpulse, nil))
	}
	if cfg.MQTT != nil {
		m, err := relay.NewMQTT(*cfg.MQTT)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, m)
	}
	if cfg.Kafka != nil {
		sinks = append(sinks, relay.NewKafka(*cfg.Kafka))
	}
	if cfg.Influx != nil {
		sinks = append(sinks, relay.NewInflux(*cfg.Influx))
	}
	if cfg.NATS != nil {
		n, err := relay.NewNATS(*cfg.NATS)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, n)
	}
	return sinks, nil
}

// run connects every device, serves the API and blocks until ctx ends.
func (a *app) run(ctx context.Context) error {
	if a.relay != nil {
		a.relay.Start(ctx)
	}

	var unwatch []func()
	for _, l := range a.links {
		if a.reconnect[l.Device().Label()] {
			unwatch = append(unwatch, a.watch(ctx, l))
		}
		a.spawn(ctx, l)
	}

	err := a.api.Serve(ctx)
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()
	a.wg.Wait()
	for _, cancel := range unwatch {
		cancel()
	}
	a.shutdown()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// spawn connects l in the background unless the app is shutting down.
func (a *app) spawn(ctx context.Context, l transport.Link) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closing || ctx.Err() != nil {
		return false
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.connect(ctx, l)
	}()
	return true
}

// watch reconnects l whenever its session drops outside shutdown. It returns
// the cancel func of the subscription.
func (a *app) watch(ctx context.Context, l transport.Link) func() {
	name := l.Device().Label()
	return a.bus.Subscribe(event.Disconnected, func(e event.Event) {
		if e.Device != name {
			return
		}
		if a.spawn(ctx, l) {
			log.Info().Msgf("stridectl reconnect device=%s", name)
		}
	})
}

func (a *app) connect(ctx context.Context, l transport.Link) {
	name := l.Device().Label()
	err := session.Retry(ctx, session.DefaultConfig().Backoff, func(ctx context.Context) error {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return l.Connect(dialCtx)
	})
	if err != nil {
		log.Error().Err(err).Msgf("stridectl connect failed device=%s", name)
		return
	}
	sensors, ok := a.sensors[name]
	if !ok {
		return
	}
	setCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	applied, err := l.SetSensorDataConfigurations(setCtx, sensors)
	if err != nil {
		log.Warn().Err(err).Msgf("stridectl configure failed device=%s", name)
		return
	}
	log.Info().Interface("configuration", applied.Names()).Msgf("stridectl configured device=%s", name)
}

// shutdown turns every sensor off on connected devices, then closes the
// links and the relay.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()
	for _, l := range a.links {
		if l.IsConnected() && !l.Device().Configuration().Equal(protocol.DisabledConfiguration()) {
			if err := transport.DisableSensors(ctx, l); err != nil {
				log.Warn().Err(err).Msgf("stridectl disable sensors device=%s", l.Device().Label())
			}
		}
		if err := l.Close(); err != nil {
			log.Debug().Err(err).Msgf("stridectl close device=%s", l.Device().Label())
		}
	}
	if a.relay != nil {
		if err := a.relay.Stop(); err != nil {
			log.Warn().Err(err).Msg("stridectl relay stop")
		}
	}
}
