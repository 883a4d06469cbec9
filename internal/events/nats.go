package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

type NATSConfig struct {
	URL            string
	Name           string
	Queue          string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
	HandlerTimeout time.Duration
}

// NATSBus publishes JSON events on core NATS subjects. Subscribers join a queue group so only
// one replica reacts to each event.
type NATSBus struct {
	conn   *nats.Conn
	cfg    NATSConfig
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) (*NATSBus, error) {
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBus{conn: conn, cfg: cfg, logger: logger, subs: map[string]*nats.Subscription{}}, nil
}

func (b *NATSBus) Publish(ctx context.Context, subject string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.conn.Publish(subject, payload)
}

func (b *NATSBus) Subscribe(subject string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.subs[subject]; exists {
		return fmt.Errorf("already subscribed to %s", subject)
	}

	sub, err := b.conn.QueueSubscribe(subject, b.cfg.Queue, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.HandlerTimeout)
		defer cancel()
		if err := h(ctx, msg.Data); err != nil {
			b.logger.Error().Err(err).Str("subject", msg.Subject).Msg("event handler failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	b.subs[subject] = sub
	return nil
}

func (b *NATSBus) Close() {
	b.mu.Lock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = map[string]*nats.Subscription{}
	b.mu.Unlock()
	_ = b.conn.Drain()
}
