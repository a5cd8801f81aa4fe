// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package cache

import (
	"container/list"
	"sync"
	"time"
)

// RemovalCause identifies why an entry left the cache.
type RemovalCause string

const (
	// RemovalExplicit means Invalidate removed the entry.
	RemovalExplicit RemovalCause = "explicit"

	// RemovalExpired means the entry outlived its write TTL.
	RemovalExpired RemovalCause = "expired"

	// RemovalEvicted means the entry was pushed out by the weight bound.
	RemovalEvicted RemovalCause = "evicted"

	// RemovalReplaced means Put overwrote the entry's payload. The key is
	// still live, so watch index edges must survive a replacement.
	RemovalReplaced RemovalCause = "replaced"
)

// RemovalFunc observes entry removals. It runs synchronously on whichever
// goroutine triggered the removal, after the engine lock is released, so it
// may safely call back into the engine or the watch index.
type RemovalFunc func(key string, cause RemovalCause)

// engineEntry is one cached payload with its bookkeeping.
type engineEntry struct {
	key        string
	payload    string
	weight     int64
	insertedAt time.Time
	elem       *list.Element
}

// EngineStats is a snapshot of engine counters.
type EngineStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Weight    int64
}

// Engine is a weight-bounded, write-TTL, concurrent key->payload store.
//
// The total byte length of live payloads never exceeds the configured
// maximum: Put evicts oldest-inserted entries (expired ones first) until the
// new entry fits. Entries expire a fixed duration after insertion, not after
// access; expiry is enforced lazily on read and by a background sweep.
//
// Payloads larger than the maximum weight are never stored - callers get
// resolver results either way, they just aren't cached.
type Engine struct {
	mu        sync.Mutex
	entries   map[string]*engineEntry
	order     *list.List // insertion order, oldest at front
	weight    int64
	maxWeight int64
	ttl       time.Duration
	onRemoval RemovalFunc

	hits      int64
	misses    int64
	evictions int64

	now  func() time.Time
	stop chan struct{}
}

// DefaultMaxWeightBytes bounds the cache at 50 MiB of payload.
const DefaultMaxWeightBytes = 50 * 1024 * 1024

// DefaultWriteTTL expires entries 30 minutes after insertion.
const DefaultWriteTTL = 30 * time.Minute

// sweepInterval is how often the background sweep removes expired entries
// that no read has touched.
const sweepInterval = time.Minute

// NewEngine creates an engine with the given weight bound and write TTL.
// Zero or negative arguments fall back to the defaults. The removal callback
// is fixed at construction; pass nil for none.
//
// The engine starts a background sweep goroutine; call Close to stop it.
func NewEngine(maxWeightBytes int64, writeTTL time.Duration, onRemoval RemovalFunc) *Engine {
	if maxWeightBytes <= 0 {
		maxWeightBytes = DefaultMaxWeightBytes
	}
	if writeTTL <= 0 {
		writeTTL = DefaultWriteTTL
	}

	e := &Engine{
		entries:   make(map[string]*engineEntry),
		order:     list.New(),
		maxWeight: maxWeightBytes,
		ttl:       writeTTL,
		onRemoval: onRemoval,
		now:       time.Now,
		stop:      make(chan struct{}),
	}

	go e.sweepLoop()

	return e
}

// GetIfPresent returns the payload for key, or ("", false) on a miss.
// An expired entry counts as a miss and is removed.
func (e *Engine) GetIfPresent(key string) (string, bool) {
	e.mu.Lock()
	entry, exists := e.entries[key]
	if !exists {
		e.misses++
		e.mu.Unlock()
		return "", false
	}

	if e.expired(entry) {
		e.removeLocked(entry)
		e.misses++
		e.mu.Unlock()
		e.notify(key, RemovalExpired)
		return "", false
	}

	e.hits++
	payload := entry.payload
	e.mu.Unlock()
	return payload, true
}

// Put inserts or replaces the payload for key and reports whether it was
// stored. Inserting may evict other entries to keep the total weight within
// bounds; each eviction invokes the removal callback before Put returns.
// Replacement resets the entry's TTL.
//
// Oversized payloads are not stored and Put returns false; a previous entry
// under the key is removed with the evicted cause, since the key is no
// longer live.
func (e *Engine) Put(key, payload string) bool {
	weight := int64(len(payload))

	e.mu.Lock()

	var removals []removal

	replaced := false
	if existing, exists := e.entries[key]; exists {
		e.weight -= existing.weight
		e.order.Remove(existing.elem)
		delete(e.entries, key)
		replaced = true
	}

	if weight > e.maxWeight {
		// Oversized payloads are served but never cached.
		e.mu.Unlock()
		if replaced {
			e.notify(key, RemovalEvicted)
		}
		return false
	}

	if replaced {
		removals = append(removals, removal{key, RemovalReplaced})
	}

	removals = append(removals, e.makeRoomLocked(weight)...)

	entry := &engineEntry{
		key:        key,
		payload:    payload,
		weight:     weight,
		insertedAt: e.now(),
	}
	entry.elem = e.order.PushBack(entry)
	e.entries[key] = entry
	e.weight += weight

	e.mu.Unlock()
	e.notifyAll(removals)
	return true
}

// Invalidate removes key if present and invokes the removal callback.
// Unknown keys are a no-op, so duplicate release messages are harmless.
func (e *Engine) Invalidate(key string) {
	e.mu.Lock()
	entry, exists := e.entries[key]
	if exists {
		e.removeLocked(entry)
	}
	e.mu.Unlock()

	if exists {
		e.notify(key, RemovalExplicit)
	}
}

// Len returns the number of live entries.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Weight returns the total byte weight of live entries.
func (e *Engine) Weight() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.weight
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStats{
		Hits:      e.hits,
		Misses:    e.misses,
		Evictions: e.evictions,
		Entries:   len(e.entries),
		Weight:    e.weight,
	}
}

// Close stops the background sweep. The engine remains usable afterwards;
// expiry is then enforced only on reads.
func (e *Engine) Close() {
	close(e.stop)
}

// removal is a deferred callback invocation collected under the lock.
type removal struct {
	key   string
	cause RemovalCause
}

// makeRoomLocked evicts until the incoming weight fits. Expired entries go
// first regardless of position; then oldest-inserted entries. Must be called
// with the lock held.
func (e *Engine) makeRoomLocked(incoming int64) []removal {
	if e.weight+incoming <= e.maxWeight {
		return nil
	}

	var removals []removal

	// Expired entries are free weight, reclaim them before evicting live ones.
	for elem := e.order.Front(); elem != nil && e.weight+incoming > e.maxWeight; {
		next := elem.Next()
		entry := elem.Value.(*engineEntry)
		if e.expired(entry) {
			e.removeLocked(entry)
			removals = append(removals, removal{entry.key, RemovalExpired})
		}
		elem = next
	}

	for e.weight+incoming > e.maxWeight {
		front := e.order.Front()
		if front == nil {
			break
		}
		entry := front.Value.(*engineEntry)
		e.removeLocked(entry)
		e.evictions++
		removals = append(removals, removal{entry.key, RemovalEvicted})
	}

	return removals
}

// removeLocked unlinks an entry from the map, the order list and the weight
// total. Must be called with the lock held.
func (e *Engine) removeLocked(entry *engineEntry) {
	delete(e.entries, entry.key)
	e.order.Remove(entry.elem)
	e.weight -= entry.weight
}

// expired reports whether an entry has outlived the write TTL.
func (e *Engine) expired(entry *engineEntry) bool {
	return e.now().Sub(entry.insertedAt) >= e.ttl
}

// notify invokes the removal callback outside the lock.
func (e *Engine) notify(key string, cause RemovalCause) {
	if e.onRemoval != nil {
		e.onRemoval(key, cause)
	}
}

func (e *Engine) notifyAll(removals []removal) {
	if e.onRemoval == nil {
		return
	}
	for _, r := range removals {
		e.onRemoval(r.key, r.cause)
	}
}

// sweepLoop periodically removes expired entries so idle keys don't pin
// weight until the next read.
func (e *Engine) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

// sweep removes every expired entry in one pass.
func (e *Engine) sweep() {
	e.mu.Lock()
	var removals []removal
	for elem := e.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*engineEntry)
		if e.expired(entry) {
			e.removeLocked(entry)
			removals = append(removals, removal{entry.key, RemovalExpired})
		}
		elem = next
	}
	e.mu.Unlock()
	e.notifyAll(removals)
}
