package devicesim

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/stridelink/internal/protocol/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Server exposes a Device at /ws.
type Server struct {
	dev      *Device
	upgrader websocket.Upgrader
	tick     time.Duration
}

func NewServer(dev *Device) *Server {
	return &Server{
		dev: dev,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		tick: Tick * time.Millisecond,
	}
}

func (s *Server) Device() *Device {
	return s.dev
}

// Handler returns the gin engine serving /ws.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", func(c *gin.Context) {
		s.ServeWS(c.Writer, c.Request)
	})
	return r
}

type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) write(records ...session.Inbound) error {
	buf, err := session.EncodeMessages(records...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, buf)
}

// ServeWS upgrades one client connection. Streaming starts after the client
// sent its first command buffer.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("devicesim.Server.ServeWS upgrade")
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	started := make(chan struct{})
	go s.stream(ctx, c, started)

	first := true
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("devicesim.Server.ServeWS client closed")
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		replies, herr := s.dev.Handle(data)
		if herr != nil {
			log.Warn().Err(herr).Msg("devicesim.Server.ServeWS command buffer")
		}
		if first {
			replies = append(replies, s.dev.BatteryRecord())
			first = false
			close(started)
		}
		if len(replies) == 0 {
			continue
		}
		if err := c.write(replies...); err != nil {
			log.Warn().Err(err).Msg("devicesim.Server.ServeWS write")
			return
		}
	}
}

func (s *Server) stream(ctx context.Context, c *conn, started <-chan struct{}) {
	select {
	case <-ctx.Done():
		return
	case <-started:
	}
	streamer := NewStreamer(s.dev)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	var elapsed uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		elapsed += Tick
		frame, ok, err := streamer.Frame(elapsed)
		if err != nil {
			log.Warn().Err(err).Msg("devicesim.Server.stream frame")
			continue
		}
		var records []session.Inbound
		if ok {
			records = append(records, session.Inbound{Kind: session.SensorData, SensorData: frame})
		}
		if streamer.WeightDue(elapsed) {
			records = append([]session.Inbound{s.dev.WeightRecord()}, records...)
		}
		if len(records) == 0 {
			continue
		}
		if err := c.write(records...); err != nil {
			return
		}
	}
}
