// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/configrelay/internal/cache"
	"github.com/tomtom215/configrelay/internal/logging"
	"github.com/tomtom215/configrelay/internal/store"
)

// publishReleaseRequest is the PUT /admin/releases body.
type publishReleaseRequest struct {
	// ReleaseKey is optional; a fresh key is minted when absent.
	ReleaseKey string `json:"releaseKey"`

	Configurations map[string]string `json:"configurations"`
}

// publishReleaseResponse echoes the committed release.
type publishReleaseResponse struct {
	ReleaseKey string `json:"releaseKey"`
	WatchKey   string `json:"watchKey"`
}

// grayRuleRequest is the PUT /admin/grayrules body.
type grayRuleRequest struct {
	ClientIPs []string          `json:"clientIps"`
	Labels    []string          `json:"labels"`
	Overrides map[string]string `json:"overrides"`
}

// PublishRelease serves PUT /admin/releases/{appId}/{clusterName}/{namespace}:
// commits the release and announces it on the affected watch key.
func (h *Handler) PublishRelease(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appId")
	cluster := chi.URLParam(r, "clusterName")
	namespace := chi.URLParam(r, "namespace")

	var req publishReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Configurations) == 0 {
		http.Error(w, "configurations must not be empty", http.StatusBadRequest)
		return
	}
	if req.ReleaseKey == "" {
		req.ReleaseKey = uuid.NewString()
	}

	release := &store.Release{
		ReleaseKey:     req.ReleaseKey,
		Configurations: req.Configurations,
	}
	if err := h.store.PutRelease(appID, cluster, namespace, release); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	watchKey := cache.WatchKey(appID, cluster, namespace)
	h.announceRelease(watchKey)

	writeJSON(w, http.StatusOK, publishReleaseResponse{
		ReleaseKey: release.ReleaseKey,
		WatchKey:   watchKey,
	})
}

// RetireRelease serves DELETE /admin/releases/{appId}/{clusterName}/{namespace}:
// removes the release and announces the change so cached payloads built from
// it are evicted.
func (h *Handler) RetireRelease(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appId")
	cluster := chi.URLParam(r, "clusterName")
	namespace := chi.URLParam(r, "namespace")

	if err := h.store.DeleteRelease(appID, cluster, namespace); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.announceRelease(cache.WatchKey(appID, cluster, namespace))
	w.WriteHeader(http.StatusNoContent)
}

// PutGrayRule serves PUT /admin/grayrules/{appId}/{namespace}.
func (h *Handler) PutGrayRule(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appId")
	namespace := chi.URLParam(r, "namespace")

	var req grayRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.ClientIPs) == 0 && len(req.Labels) == 0 {
		http.Error(w, "rule needs at least one client IP or label", http.StatusBadRequest)
		return
	}

	h.store.Rules().Put(&store.GrayRule{
		AppID:     appID,
		Namespace: namespace,
		ClientIPs: req.ClientIPs,
		Labels:    req.Labels,
		Overrides: req.Overrides,
	})

	logging.Info().
		Str("app_id", appID).
		Str("namespace", namespace).
		Int("client_ips", len(req.ClientIPs)).
		Int("labels", len(req.Labels)).
		Msg("Gray rule installed")

	w.WriteHeader(http.StatusNoContent)
}

// DeleteGrayRule serves DELETE /admin/grayrules/{appId}/{namespace}.
func (h *Handler) DeleteGrayRule(w http.ResponseWriter, r *http.Request) {
	h.store.Rules().Delete(chi.URLParam(r, "appId"), chi.URLParam(r, "namespace"))
	w.WriteHeader(http.StatusNoContent)
}

// announceRelease publishes the release message, best-effort. With the bus
// disabled or failing, caches converge via TTL instead.
func (h *Handler) announceRelease(watchKey string) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishRelease(watchKey); err != nil {
		logging.Error().Err(err).Str("watch_key", watchKey).Msg("Release announcement failed")
	}
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
