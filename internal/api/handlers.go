// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

// Package api exposes the HTTP surface: the three /configfiles routes the
// clients poll, the admin release/gray-rule surface, health endpoints and
// Prometheus metrics.
package api

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/configrelay/internal/format"
	"github.com/tomtom215/configrelay/internal/logging"
	"github.com/tomtom215/configrelay/internal/service"
	"github.com/tomtom215/configrelay/internal/store"
)

// ReleasePublisher announces a release on one watch key. Nil-able: with the
// bus disabled, admin writes skip the announcement and caches converge via
// TTL.
type ReleasePublisher interface {
	PublishRelease(watchKey string) error
}

// Handler carries the dependencies of all HTTP handlers.
type Handler struct {
	svc       *service.Service
	store     *store.Store
	publisher ReleasePublisher

	// busHealthy reports release bus connectivity for readiness. May be nil.
	busHealthy func() bool
}

// NewHandler creates the handler set.
func NewHandler(svc *service.Service, st *store.Store, publisher ReleasePublisher, busHealthy func() bool) *Handler {
	return &Handler{
		svc:        svc,
		store:      st,
		publisher:  publisher,
		busHealthy: busHealthy,
	}
}

// ConfigFileProperties serves GET /configfiles/{appId}/{clusterName}/{namespace}.
func (h *Handler) ConfigFileProperties(w http.ResponseWriter, r *http.Request) {
	h.serveConfigFile(w, r, format.OutputProperties)
}

// ConfigFileJSON serves GET /configfiles/json/{appId}/{clusterName}/{namespace}.
func (h *Handler) ConfigFileJSON(w http.ResponseWriter, r *http.Request) {
	h.serveConfigFile(w, r, format.OutputJSON)
}

// ConfigFileRaw serves GET /configfiles/raw/{appId}/{clusterName}/{namespace}.
func (h *Handler) ConfigFileRaw(w http.ResponseWriter, r *http.Request) {
	h.serveConfigFile(w, r, format.OutputRaw)
}

// serveConfigFile runs the query pipeline and writes the payload.
func (h *Handler) serveConfigFile(w http.ResponseWriter, r *http.Request, output format.Output) {
	req := service.Request{
		Output:      output,
		AppID:       chi.URLParam(r, "appId"),
		Cluster:     chi.URLParam(r, "clusterName"),
		Namespace:   chi.URLParam(r, "namespace"),
		DataCenter:  r.URL.Query().Get("dataCenter"),
		ClientIP:    r.URL.Query().Get("ip"),
		ClientLabel: r.URL.Query().Get("label"),
	}
	if req.ClientIP == "" {
		req.ClientIP = peerIP(r)
	}

	result, err := h.svc.Query(r.Context(), req)
	if err != nil {
		logging.Error().
			Err(err).
			Str("request_id", logging.RequestIDFromContext(r.Context())).
			Str("app_id", req.AppID).
			Str("namespace", req.Namespace).
			Msg("Config resolution failed")
		http.Error(w, "config resolution failed", http.StatusInternalServerError)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(output, result.Namespace))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.Payload))
}

// contentTypeFor picks the response content type: fixed for properties and
// JSON output, namespace-derived for raw.
func contentTypeFor(output format.Output, namespace string) string {
	switch output {
	case format.OutputJSON:
		return "application/json;charset=UTF-8"
	case format.OutputRaw:
		return format.FromNamespace(namespace).ContentType()
	default:
		return "text/plain;charset=UTF-8"
	}
}

// peerIP extracts the client IP from the HTTP peer address. RealIP
// middleware has already rewritten RemoteAddr from X-Forwarded-For when
// present.
func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
