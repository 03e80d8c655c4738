package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS event bus
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	StreamName    string // when set, events are published through JetStream
	MaxReconnects int
	ReconnectWait time.Duration
	PublishWait   time.Duration
}

// DefaultNATSConfig returns default NATS configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "draftroom",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		PublishWait:   5 * time.Second,
	}
}

// NATSBus publishes room events to NATS and receives prediction results from it.
type NATSBus struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config NATSConfig
	subs   []*nats.Subscription
}

// Connect dials NATS and, if a stream name is configured, makes sure the stream exists.
func Connect(ctx context.Context, config NATSConfig) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name("draftroom-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	bus := &NATSBus{nc: nc, config: config}
	if config.StreamName == "" {
		return bus, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Draft room events",
		Subjects:    []string{config.SubjectPrefix + ".>"},
		MaxAge:      24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", config.StreamName, err)
	}
	bus.js = js

	log.Info().
		Str("stream", config.StreamName).
		Str("subjects", config.SubjectPrefix+".>").
		Msg("JetStream stream ready")
	return bus, nil
}

// Publish sends event on <prefix>.<roomKey>.<EventType>.
func (b *NATSBus) Publish(ctx context.Context, event Event) error {
	subject := Subject(b.config.SubjectPrefix, event.RoomKey, event.EventType)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if b.js != nil {
		if b.config.PublishWait > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.config.PublishWait)
			defer cancel()
		}
		if _, err := b.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.EventID)); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
	} else if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.EventID).
		Int("size", len(data)).
		Msg("event published")
	return nil
}

// SubscribeResults calls handle for every valid prediction result. Malformed
// messages are logged and dropped.
func (b *NATSBus) SubscribeResults(handle func(PredictionResult)) error {
	subject := ResultsSubject(b.config.SubjectPrefix)
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		res, err := DecodeResult(msg.Data)
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping prediction result")
			return
		}
		handle(res)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	b.subs = append(b.subs, sub)

	log.Info().Str("subject", subject).Msg("subscribed to prediction results")
	return nil
}

// Close drains subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("subject", sub.Subject).Msg("failed to unsubscribe")
		}
	}
	b.subs = nil
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
