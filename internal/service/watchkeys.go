// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package service

import "github.com/tomtom215/configrelay/internal/cache"

// DefaultWatchKeyAssembler derives watch keys from the resolution graph: one
// per cluster the resolver may fall back to. A release on any of them changes
// the effective configuration, so all of them must invalidate the payload.
type DefaultWatchKeyAssembler struct{}

// AssembleAllWatchKeys returns the watch keys for the requested cluster, the
// dataCenter cluster (when distinct), and the default-cluster fallback.
func (DefaultWatchKeyAssembler) AssembleAllWatchKeys(appID, cluster, namespace, dataCenter string) []string {
	keys := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)

	add := func(c string) {
		if c == "" {
			return
		}
		key := cache.WatchKey(appID, c, namespace)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	add(cluster)
	add(dataCenter)
	add(DefaultCluster)

	return keys
}
