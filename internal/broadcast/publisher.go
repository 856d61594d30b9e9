package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"gt06gateway/internal/config"
)

// Conn is the subset of *nats.Conn used for publishing
type Conn interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with the configured reconnect policy
func Connect(cfg config.NATSConfig, logger zerolog.Logger) (*nats.Conn, error) {
	log := logger.With().Str("component", "nats").Logger()

	nc, err := nats.Connect(cfg.URL,
		nats.Name("gt06-gateway"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectInterval),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// Publisher sends real-time position and alarm updates and device notifications
type Publisher struct {
	conn   Conn
	prefix string
	log    zerolog.Logger
}

// NewPublisher creates a publisher. Subjects are rooted at prefix.
func NewPublisher(conn Conn, prefix string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		prefix: prefix,
		log:    logger.With().Str("component", "broadcast").Logger(),
	}
}

// Notification is the body published for notify
type Notification struct {
	DeviceID  string      `json:"deviceId"`
	Kind      string      `json:"kind"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func (p *Publisher) subject(parts ...string) string {
	s := p.prefix
	for _, part := range parts {
		s += "." + part
	}
	return s
}

// Publish sends payload as JSON on <prefix>.<topic>
func (p *Publisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := p.conn.Publish(p.subject(topic), data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Notify sends a push notification request on <prefix>.notify.<kind>
func (p *Publisher) Notify(ctx context.Context, deviceID, kind string, payload interface{}) error {
	return p.Publish(ctx, "notify."+kind, Notification{
		DeviceID:  deviceID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}
