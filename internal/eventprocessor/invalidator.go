// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/configrelay/internal/logging"
	"github.com/tomtom215/configrelay/internal/metrics"
)

// CacheInvalidator removes one entry from the serving cache.
// Satisfied by *cache.Engine.
type CacheInvalidator interface {
	Invalidate(key string)
}

// WatchLookup snapshots the cache keys registered under a watch key.
// Satisfied by *cache.WatchIndex.
type WatchLookup interface {
	CacheKeys(watchKey string) []string
}

// ReleaseSubscriber is the bus side the invalidator consumes.
// Satisfied by *Subscriber and by Watermill's in-process pub/subs.
type ReleaseSubscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Invalidator consumes release messages and evicts every cache entry
// registered under the announced watch key.
//
// Handling is idempotent: duplicate or reordered deliveries cause at most
// extra no-op invalidations, so at-least-once delivery is sufficient. Every
// message is acked, including empty ones - there is nothing to retry.
type Invalidator struct {
	subscriber ReleaseSubscriber
	topic      string
	cache      CacheInvalidator
	index      WatchLookup
}

// NewInvalidator wires the bus to the cache.
func NewInvalidator(subscriber ReleaseSubscriber, topic string, cache CacheInvalidator, index WatchLookup) *Invalidator {
	return &Invalidator{
		subscriber: subscriber,
		topic:      topic,
		cache:      cache,
		index:      index,
	}
}

// Run consumes the release topic until the context is canceled or the
// subscription channel closes. Bus errors surface to the caller; the
// supervisor restarts the loop.
func (i *Invalidator) Run(ctx context.Context) error {
	messages, err := i.subscriber.Subscribe(ctx, i.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", i.topic, err)
	}

	logging.Info().Str("topic", i.topic).Msg("Release invalidator started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			i.handle(string(msg.Payload))
			msg.Ack()
		}
	}
}

// handle fans one release message out to the affected cache entries.
func (i *Invalidator) handle(watchKey string) {
	if watchKey == "" {
		metrics.ReleaseMessagesTotal.WithLabelValues("empty").Inc()
		return
	}

	// Snapshot before invalidating: the engine's removal callback mutates
	// the index while we iterate.
	affected := i.index.CacheKeys(watchKey)
	if len(affected) == 0 {
		metrics.ReleaseMessagesTotal.WithLabelValues("no_match").Inc()
		logging.Debug().Str("watch_key", watchKey).Msg("Release message matched no cache entries")
		return
	}

	for _, cacheKey := range affected {
		i.cache.Invalidate(cacheKey)
	}

	metrics.ReleaseMessagesTotal.WithLabelValues("applied").Inc()
	metrics.InvalidationFanout.Observe(float64(len(affected)))

	logging.Info().
		Str("watch_key", watchKey).
		Int("invalidated", len(affected)).
		Msg("Release invalidated cache entries")
}
