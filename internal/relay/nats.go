package relay

import (
	"context"
	"fmt"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type NATSConfig struct {
	URL           string `toml:"url" yaml:"url"`
	SubjectPrefix string `toml:"subject_prefix" yaml:"subject_prefix"`
}

// NATS publishes every event to <prefix>.<device>.<type>.
type NATS struct {
	cfg  NATSConfig
	conn *nats.Conn
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("stridelink"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msgf("relay.NATS disconnected url=%s", cfg.URL)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	return &NATS{cfg: cfg, conn: conn}, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Write(ctx context.Context, e event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, payload, err := encode(e)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(topic(n.cfg.SubjectPrefix, ".", e))
	msg.Header.Set(nats.MsgIdHdr, id)
	msg.Data = payload
	return n.conn.PublishMsg(msg)
}

func (n *NATS) Close() error {
	return n.conn.Drain()
}
