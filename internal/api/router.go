// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/configrelay/internal/config"
	"github.com/tomtom215/configrelay/internal/middleware"
)

// Router builds the HTTP route tree.
type Router struct {
	handler *Handler
	cfg     *config.ServerConfig
}

// NewRouter creates a router over the given handler set.
func NewRouter(handler *Handler, cfg *config.ServerConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup configures all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	// Client-facing config file routes. The static json/raw segments win
	// over the {appId} parameter, so /configfiles/json/... never routes to
	// the properties handler.
	r.Route("/configfiles", func(r chi.Router) {
		if router.cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(router.cfg.RateLimitReqs, router.cfg.RateLimitWindow))
		}
		r.Use(middleware.Prometheus)

		r.Get("/{appId}/{clusterName}/{namespace}", router.handler.ConfigFileProperties)
		r.Get("/json/{appId}/{clusterName}/{namespace}", router.handler.ConfigFileJSON)
		r.Get("/raw/{appId}/{clusterName}/{namespace}", router.handler.ConfigFileRaw)
	})

	// Admin surface: release publishing and gray rules.
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Prometheus)

		r.Put("/releases/{appId}/{clusterName}/{namespace}", router.handler.PublishRelease)
		r.Delete("/releases/{appId}/{clusterName}/{namespace}", router.handler.RetireRelease)
		r.Put("/grayrules/{appId}/{namespace}", router.handler.PutGrayRule)
		r.Delete("/grayrules/{appId}/{namespace}", router.handler.DeleteGrayRule)
	})

	// Health and metrics.
	r.Get("/health/live", router.handler.HealthLive)
	r.Get("/health/ready", router.handler.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
