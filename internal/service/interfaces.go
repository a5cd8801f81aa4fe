// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

// Package service implements the request pipeline that turns a config-file
// query into a payload: gray-rule check, cache lookup, resolution, rendering,
// and watch registration.
package service

import "context"

// SentinelReleaseKey marks a resolution with no prior client-known release.
// Cache misses always resolve from scratch.
const SentinelReleaseKey = "-1"

// DefaultCluster is the fallback cluster consulted when the requested
// cluster carries no release.
const DefaultCluster = "default"

// ResolvedConfig is the effective configuration produced by the resolver.
type ResolvedConfig struct {
	// NamespaceName echoes the resolved namespace.
	NamespaceName string `json:"namespaceName"`

	// Configurations is the effective key/value map.
	Configurations map[string]string `json:"configurations"`

	// ReleaseKey identifies the release the map was assembled from.
	ReleaseKey string `json:"releaseKey"`
}

// ConfigQuery carries one resolution request to the resolver.
type ConfigQuery struct {
	AppID       string
	Cluster     string
	Namespace   string
	DataCenter  string
	ClientIP    string
	ClientLabel string

	// ReleaseKey is the release the client already holds, or
	// SentinelReleaseKey when resolving fresh.
	ReleaseKey string
}

// Resolver produces the effective configuration for a query. A nil result
// with a nil error means the namespace has no published configuration.
//
// Resolution may block on storage; it honors the context.
type Resolver interface {
	QueryConfig(ctx context.Context, q ConfigQuery) (*ResolvedConfig, error)
}

// GrayRuleIndex answers whether a client has a personalized release override
// for a namespace. Lookups are in-memory and non-blocking.
type GrayRuleIndex interface {
	HasGrayReleaseRule(appID, clientIP, clientLabel, namespace string) bool
}

// WatchKeyAssembler enumerates the release channels whose change must
// invalidate any payload built from the given tuple.
type WatchKeyAssembler interface {
	AssembleAllWatchKeys(appID, cluster, namespace, dataCenter string) []string
}
