// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package store

import (
	"strings"
	"sync"
)

// Registry records the canonical spelling of every namespace seen per app,
// so requests with case variants ("fx.billing" for "FX.billing") land on the
// same cache entry as the published namespace.
//
// The first spelling recorded for a case-folded name wins; republishing the
// same spelling is a no-op.
type Registry struct {
	mu sync.RWMutex
	// apps maps appID -> lowercased namespace -> canonical spelling.
	apps map[string]map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{apps: make(map[string]map[string]string)}
}

// Record remembers the spelling of a published namespace.
func (r *Registry) Record(appID, namespace string) {
	folded := strings.ToLower(namespace)

	r.mu.Lock()
	defer r.mu.Unlock()

	namespaces := r.apps[appID]
	if namespaces == nil {
		namespaces = make(map[string]string)
		r.apps[appID] = namespaces
	}
	if _, exists := namespaces[folded]; !exists {
		namespaces[folded] = namespace
	}
}

// CanonicalNamespace implements cache.NamespaceRegistry: it returns the
// canonical spelling for a case-insensitive match, or ("", false) when the
// namespace is unknown for the app.
func (r *Registry) CanonicalNamespace(appID, namespace string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.apps[appID][strings.ToLower(namespace)]
	return canonical, ok
}
