// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

// Package main is the entry point for the ConfigRelay server.
//
// ConfigRelay serves rendered configuration files to application processes
// at high request rates, shielding the release store behind a weight- and
// TTL-bounded in-memory cache that release messages invalidate promptly and
// precisely.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, YAML file, env)
//  2. Release store: Badger-backed releases, gray rules, namespace registry
//  3. Serving cache: weighted TTL engine wired to the watch index
//  4. Release bus: NATS JetStream subscriber (embedded server optional)
//  5. Supervisor tree: invalidator and HTTP server under suture
//
// # Configuration
//
// Environment variables use the CONFIGRELAY_ prefix with double underscores
// for nesting:
//
//	CONFIGRELAY_SERVER__PORT=8071
//	CONFIGRELAY_CACHE__MAX_WEIGHT_BYTES=52428800
//	CONFIGRELAY_CACHE__WRITE_TTL=30m
//	CONFIGRELAY_NATS__URL=nats://nats:4222
//	CONFIGRELAY_NATS__RELEASE_TOPIC=release.updated
//	CONFIGRELAY_STORE__PATH=/data/configrelay
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the bus subscription closes, and the store flushes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/configrelay/internal/api"
	"github.com/tomtom215/configrelay/internal/cache"
	"github.com/tomtom215/configrelay/internal/config"
	"github.com/tomtom215/configrelay/internal/eventprocessor"
	"github.com/tomtom215/configrelay/internal/logging"
	"github.com/tomtom215/configrelay/internal/metrics"
	"github.com/tomtom215/configrelay/internal/service"
	"github.com/tomtom215/configrelay/internal/store"
	"github.com/tomtom215/configrelay/internal/supervisor"
	"github.com/tomtom215/configrelay/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Int64("max_weight_bytes", cfg.Cache.MaxWeightBytes).
		Dur("write_ttl", cfg.Cache.WriteTTL).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting ConfigRelay")

	st, err := store.Open(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open release store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing release store")
		}
	}()

	// Serving cache core: every removal cleans the watch index so no edge
	// outlives its entry. Replacement keeps the key live, so its edges stay.
	index := cache.NewWatchIndex()
	engine := cache.NewEngine(cfg.Cache.MaxWeightBytes, cfg.Cache.WriteTTL, func(key string, cause cache.RemovalCause) {
		if cause != cache.RemovalReplaced {
			index.RemoveCacheKey(key)
		}
		metrics.RecordCacheRemoval(string(cause))
	})
	defer engine.Close()

	resolver := service.NewBreakerResolver(st)
	svc := service.New(engine, index, resolver, st.Rules(), service.DefaultWatchKeyAssembler{}, st.Registry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Release bus wiring.
	var (
		publisher  api.ReleasePublisher
		busHealthy func() bool
		embedded   *eventprocessor.EmbeddedServer
	)
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	if cfg.NATS.Enabled {
		natsURL := cfg.NATS.URL
		if cfg.NATS.EmbeddedServer {
			embedded, err = eventprocessor.NewEmbeddedServer(&cfg.NATS)
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
			}
			natsURL = embedded.ClientURL()
			logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
		}

		wmLogger := eventprocessor.NewLoggerAdapter()

		subscriber, err := eventprocessor.NewSubscriber(&cfg.NATS, natsURL, wmLogger)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create release subscriber")
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing subscriber")
			}
		}()

		pub, err := eventprocessor.NewPublisher(&cfg.NATS, natsURL, wmLogger)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create release publisher")
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing publisher")
			}
		}()
		publisher = pub

		invalidator := eventprocessor.NewInvalidator(subscriber, cfg.NATS.ReleaseTopic, engine, index)
		tree.AddMessagingService(services.NewInvalidatorService(invalidator))

		if embedded != nil {
			busHealthy = embedded.IsRunning
		} else {
			busHealthy = func() bool { return true }
		}
	} else {
		logging.Warn().Msg("Release bus disabled: cached payloads converge via TTL only")
	}

	handler := api.NewHandler(svc, st, publisher, busHealthy)
	router := api.NewRouter(handler, &cfg.Server)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("ConfigRelay listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited")
	}

	if embedded != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
		cancel()
	}

	logging.Info().Msg("ConfigRelay stopped")
}
