// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

// Package cache holds the serving cache core: the weight- and TTL-bounded
// payload store, the bidirectional watch index that ties cache entries to the
// release channels that invalidate them, and the cache key builder.
//
// The engine and the watch index are wired together through the engine's
// removal callback: every removal except a replacement cleans the index so it
// never retains edges to dead entries. A replaced key stays live, so its
// edges are kept.
package cache
