// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package cache

import (
	"strings"

	"github.com/tomtom215/configrelay/internal/format"
)

// Separator joins cache key and watch key segments. It must never appear in
// appId, cluster or namespace names; release publishing rejects it.
const Separator = "+"

// propertiesSuffix is stripped from namespace names before lookup, so
// "application.properties" and "application" resolve to the same entry.
const propertiesSuffix = ".properties"

// NamespaceRegistry answers the canonical spelling of a namespace known for
// an application, looked up case-insensitively.
type NamespaceRegistry interface {
	// CanonicalNamespace returns the canonical spelling for the given
	// namespace and true, or ("", false) when the namespace is unknown.
	CanonicalNamespace(appID, namespace string) (string, bool)
}

// NormalizeNamespace strips a trailing ".properties" suffix (case-sensitive,
// matching upstream storage) and then replaces the namespace with its
// canonical spelling from the registry, unifying case variants such as
// "FX.billing" and "fx.billing". Unknown namespaces pass through unchanged.
//
// A nil registry skips canonicalization.
func NormalizeNamespace(registry NamespaceRegistry, appID, namespace string) string {
	namespace = strings.TrimSuffix(namespace, propertiesSuffix)
	if registry == nil {
		return namespace
	}
	if canonical, ok := registry.CanonicalNamespace(appID, namespace); ok {
		return canonical
	}
	return namespace
}

// BuildKey composes the cache key for a rendered payload. The dataCenter
// segment is appended only when non-blank. BuildKey is pure: identical inputs
// always produce identical keys.
func BuildKey(output format.Output, appID, cluster, namespace, dataCenter string) string {
	parts := []string{string(output), appID, cluster, namespace}
	if strings.TrimSpace(dataCenter) != "" {
		parts = append(parts, dataCenter)
	}
	return strings.Join(parts, Separator)
}

// WatchKey composes the release channel token for one (app, cluster,
// namespace) link. Watch keys use the same separator as cache keys.
func WatchKey(appID, cluster, namespace string) string {
	return strings.Join([]string{appID, cluster, namespace}, Separator)
}
