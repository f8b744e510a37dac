// Package socket is the websocket device link: commands are batched through a
// session.Outbox and replies arrive as envelope records.
package socket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/stridelink/internal/device"
	"github.com/danmuck/stridelink/internal/observability"
	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/danmuck/stridelink/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client is a transport.Link over a websocket.
type Client struct {
	url    string
	cfg    session.Config
	dev    *device.Device
	outbox *session.Outbox

	mu          sync.Mutex
	conn        *websocket.Conn
	done        chan struct{}
	initialSent atomic.Bool
	open        atomic.Bool
}

var _ transport.Link = (*Client)(nil)

// New returns a client for address, either host[:port] (dialed as
// ws://address/ws) or a full ws:// URL.
func New(address string, dev *device.Device, cfg session.Config) *Client {
	return &Client{
		url:    URL(address),
		cfg:    cfg,
		dev:    dev,
		outbox: session.NewOutbox(),
	}
}

func URL(address string) string {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		return address
	}
	return "ws://" + strings.TrimSuffix(address, "/") + "/ws"
}

func (c *Client) Device() *device.Device {
	return c.dev
}

func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// Connect dials the device, requests debug, type, name and configuration in
// one buffer, and returns once all four replied.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		log.Debug().Msgf("socket.Client.Connect already connected device=%s", c.dev.Label())
		return nil
	}
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}

	sessionID := c.dev.BeginSession()
	log.Info().Msgf("socket.Client.Connect device=%s url=%s session=%s", c.dev.Label(), c.url, sessionID)

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.mu.Unlock()
	c.initialSent.Store(false)
	c.open.Store(true)
	go c.readLoop(conn, done)

	if err := c.handshake(ctx); err != nil {
		c.Close()
		c.outbox.Abort(err)
		return err
	}
	c.dev.MarkConnected()
	return nil
}

// handshake queues the four initial reads and waits for every reply.
func (c *Client) handshake(ctx context.Context) error {
	calls := make([]*session.Call, 0, 4)
	for _, k := range []session.Kind{session.GetDebug, session.GetType, session.GetName, session.GetSensorDataConfigurations} {
		call, err := c.outbox.Get(k)
		if err != nil {
			return err
		}
		calls = append(calls, call)
	}

	if err := c.flush(true); err != nil {
		return err
	}
	for _, call := range calls {
		if _, err := call.Wait(ctx); err != nil {
			return fmt.Errorf("initial %s: %w", call.Kind, err)
		}
	}
	return nil
}

// Close closes the websocket and waits for the read loop to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.open.Store(false)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	<-done
	return err
}

// flush writes every pending command as one binary message. initial marks
// the first buffer of the session; replies are accepted only after it.
func (c *Client) flush(initial bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return transport.ErrNotConnected
	}
	if initial {
		c.initialSent.Store(true)
	}
	buf := c.outbox.Flush()
	if len(buf) == 0 {
		return nil
	}
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	observability.RecordCommandFlush(c.dev.Label())
	log.Debug().Msgf("socket.Client.flush device=%s bytes=%d", c.dev.Label(), len(buf))
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		c.open.Store(false)
		c.outbox.Abort(transport.ErrNotConnected)
		c.dev.MarkDisconnected()
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, websocket.ErrCloseSent) {
				log.Debug().Err(err).Msgf("socket.Client.readLoop closed device=%s", c.dev.Label())
			}
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if !c.initialSent.Load() {
			log.Debug().Msgf("socket.Client.readLoop ignore message before initial payload device=%s", c.dev.Label())
			continue
		}
		c.handle(data)
		if err := c.flush(false); err != nil {
			log.Warn().Err(err).Msgf("socket.Client.readLoop flush device=%s", c.dev.Label())
		}
	}
}

// handle applies every record of one message, then completes the requests
// waiting on it. Decode failures drop the rest of the message only.
func (c *Client) handle(data []byte) {
	records, err := session.DecodeMessages(data)
	for _, in := range records {
		if aerr := c.dev.ApplyRecord(in); aerr != nil && in.Kind != session.SensorData {
			log.Warn().Err(aerr).Msgf("socket.Client.handle device=%s kind=%s", c.dev.Label(), in.Kind)
		}
		c.outbox.Resolve(in)
	}
	if err != nil {
		log.Warn().Err(err).Msgf("socket.Client.handle drop rest device=%s bytes=%d", c.dev.Label(), len(data))
	}
}

// get returns after a reply of kind's topic arrived.
func (c *Client) get(ctx context.Context, kind session.Kind) (session.Inbound, error) {
	if !c.IsConnected() {
		return session.Inbound{}, transport.ErrNotConnected
	}
	call, err := c.outbox.Get(kind)
	if err != nil {
		return session.Inbound{}, err
	}
	if err := c.flush(false); err != nil {
		return session.Inbound{}, err
	}
	return call.Wait(ctx)
}

func (c *Client) set(ctx context.Context, kind session.Kind, payload []byte) (session.Inbound, error) {
	if !c.IsConnected() {
		return session.Inbound{}, transport.ErrNotConnected
	}
	call, err := c.outbox.Set(kind, payload)
	if err != nil {
		return session.Inbound{}, err
	}
	if err := c.flush(false); err != nil {
		return session.Inbound{}, err
	}
	return call.Wait(ctx)
}
