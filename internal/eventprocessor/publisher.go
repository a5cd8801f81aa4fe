// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package eventprocessor

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/configrelay/internal/config"
)

// Publisher emits release messages. The admin surface publishes one message
// per affected watch key after committing a release.
type Publisher struct {
	publisher message.Publisher
	topic     string
}

// NewPublisher creates a JetStream publisher for the release topic.
func NewPublisher(cfg *config.NATSConfig, url string, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if url == "" {
		url = cfg.URL
	}

	wmConfig := wmNats.PublisherConfig{
		URL: url,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(cfg.MaxReconnects),
			natsgo.ReconnectWait(cfg.ReconnectWait),
		},
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{publisher: pub, topic: cfg.ReleaseTopic}, nil
}

// NewPublisherFor wraps an existing Watermill publisher. Used by tests and
// the in-process wiring.
func NewPublisherFor(publisher message.Publisher, topic string) *Publisher {
	return &Publisher{publisher: publisher, topic: topic}
}

// PublishRelease announces a release on one watch key.
func (p *Publisher) PublishRelease(watchKey string) error {
	msg := message.NewMessage(watermill.NewUUID(), []byte(watchKey))
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish release message: %w", err)
	}
	return nil
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	return p.publisher.Close()
}
