// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package cache

import "sync"

// WatchIndex is a concurrent many-to-many relation between watch keys and
// cache keys. Two projections are kept mutually consistent under one lock:
// forward (watch key -> cache keys) drives invalidation fan-out, reverse
// (cache key -> watch keys) drives removal cleanup.
//
// Register and RemoveCacheKey are linearizable: a reader of either projection
// sees the full edge set of an entry or none of it. Lookup methods return
// snapshots that are safe to iterate while mutators run.
type WatchIndex struct {
	mu      sync.RWMutex
	forward map[string]map[string]struct{}
	reverse map[string]map[string]struct{}
}

// NewWatchIndex creates an empty watch index.
func NewWatchIndex() *WatchIndex {
	return &WatchIndex{
		forward: make(map[string]map[string]struct{}),
		reverse: make(map[string]map[string]struct{}),
	}
}

// Register atomically records every (watchKey, cacheKey) edge in both
// projections. Registering an already-present edge is a no-op.
func (w *WatchIndex) Register(cacheKey string, watchKeys []string) {
	if len(watchKeys) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	rev := w.reverse[cacheKey]
	if rev == nil {
		rev = make(map[string]struct{}, len(watchKeys))
		w.reverse[cacheKey] = rev
	}

	for _, wk := range watchKeys {
		fwd := w.forward[wk]
		if fwd == nil {
			fwd = make(map[string]struct{})
			w.forward[wk] = fwd
		}
		fwd[cacheKey] = struct{}{}
		rev[wk] = struct{}{}
	}
}

// CacheKeys returns an immutable snapshot of the cache keys registered under
// a watch key. The snapshot stays valid while concurrent mutators run.
func (w *WatchIndex) CacheKeys(watchKey string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	fwd := w.forward[watchKey]
	if len(fwd) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fwd))
	for k := range fwd {
		keys = append(keys, k)
	}
	return keys
}

// WatchKeys returns an immutable snapshot of the watch keys registered for a
// cache key.
func (w *WatchIndex) WatchKeys(cacheKey string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	rev := w.reverse[cacheKey]
	if len(rev) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rev))
	for k := range rev {
		keys = append(keys, k)
	}
	return keys
}

// RemoveCacheKey drops every edge of a cache key from both projections.
// Called from the engine's removal callback, so it runs on whichever
// goroutine triggered the removal; it never calls back into the engine.
func (w *WatchIndex) RemoveCacheKey(cacheKey string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rev, exists := w.reverse[cacheKey]
	if !exists {
		return
	}

	for wk := range rev {
		fwd := w.forward[wk]
		delete(fwd, cacheKey)
		if len(fwd) == 0 {
			delete(w.forward, wk)
		}
	}
	delete(w.reverse, cacheKey)
}

// Size returns the number of distinct watch keys and cache keys currently
// indexed. Used by the watch index metrics and tests.
func (w *WatchIndex) Size() (watchKeys, cacheKeys int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.forward), len(w.reverse)
}
