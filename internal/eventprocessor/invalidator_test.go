// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package eventprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/configrelay/internal/cache"
)

const testTopic = "release.updated"

// invalidatorFixture runs an invalidator over an in-process pub/sub against
// real cache state.
type invalidatorFixture struct {
	bus    *gochannel.GoChannel
	engine *cache.Engine
	index  *cache.WatchIndex
	cancel context.CancelFunc
	done   chan error
}

func startInvalidator(t *testing.T) *invalidatorFixture {
	t.Helper()

	index := cache.NewWatchIndex()
	engine := cache.NewEngine(1024*1024, time.Minute, func(key string, cause cache.RemovalCause) {
		if cause != cache.RemovalReplaced {
			index.RemoveCacheKey(key)
		}
	})

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	inv := NewInvalidator(bus, testTopic, engine, index)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inv.Run(ctx) }()

	// Give the subscription a moment to attach before tests publish.
	time.Sleep(50 * time.Millisecond)

	f := &invalidatorFixture{bus: bus, engine: engine, index: index, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		if f.done != nil {
			select {
			case <-f.done:
			case <-time.After(2 * time.Second):
				t.Error("invalidator did not stop")
			}
		}
		engine.Close()
		_ = bus.Close()
	})
	return f
}

func (f *invalidatorFixture) publish(t *testing.T, payload string) {
	t.Helper()
	msg := message.NewMessage(watermill.NewUUID(), []byte(payload))
	if err := f.bus.Publish(testTopic, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestInvalidator_RemovesAffectedEntries(t *testing.T) {
	f := startInvalidator(t)

	f.engine.Put("properties+app1+default+ns1", "k=v\n")
	f.index.Register("properties+app1+default+ns1", []string{"app1+default+ns1"})
	f.engine.Put("json+app1+default+ns1", `{"k":"v"}`)
	f.index.Register("json+app1+default+ns1", []string{"app1+default+ns1"})

	f.publish(t, "app1+default+ns1")

	waitFor(t, 2*time.Second, func() bool {
		return f.engine.Len() == 0
	}, "entries were not invalidated")

	// The removal callback cleaned the reverse edges, which emptied the
	// forward projection transitively.
	if keys := f.index.CacheKeys("app1+default+ns1"); keys != nil {
		t.Errorf("forward edges survived invalidation: %v", keys)
	}
}

func TestInvalidator_UnrelatedEntriesSurvive(t *testing.T) {
	f := startInvalidator(t)

	f.engine.Put("properties+app1+default+ns1", "k=v\n")
	f.index.Register("properties+app1+default+ns1", []string{"app1+default+ns1"})
	f.engine.Put("properties+app2+default+ns1", "k=v\n")
	f.index.Register("properties+app2+default+ns1", []string{"app2+default+ns1"})

	f.publish(t, "app1+default+ns1")

	waitFor(t, 2*time.Second, func() bool {
		return f.engine.Len() == 1
	}, "affected entry was not invalidated")

	if _, ok := f.engine.GetIfPresent("properties+app2+default+ns1"); !ok {
		t.Error("unrelated entry was invalidated")
	}
}

func TestInvalidator_EmptyAndUnknownMessages(t *testing.T) {
	f := startInvalidator(t)

	f.engine.Put("properties+app1+default+ns1", "k=v\n")
	f.index.Register("properties+app1+default+ns1", []string{"app1+default+ns1"})

	f.publish(t, "")
	f.publish(t, "no+such+watchkey")
	// A matching message afterwards proves the loop survived both.
	f.publish(t, "app1+default+ns1")

	waitFor(t, 2*time.Second, func() bool {
		return f.engine.Len() == 0
	}, "invalidator stopped processing after empty/unknown messages")
}

func TestInvalidator_DuplicateDeliveryIsIdempotent(t *testing.T) {
	f := startInvalidator(t)

	f.engine.Put("properties+app1+default+ns1", "k=v\n")
	f.index.Register("properties+app1+default+ns1", []string{"app1+default+ns1"})

	f.publish(t, "app1+default+ns1")
	f.publish(t, "app1+default+ns1")
	f.publish(t, "app1+default+ns1")

	waitFor(t, 2*time.Second, func() bool {
		return f.engine.Len() == 0
	}, "entry was not invalidated")

	// Re-populate: duplicates already consumed must not affect new entries
	// registered after processing finished.
	time.Sleep(50 * time.Millisecond)
	f.engine.Put("properties+app1+default+ns1", "k=v2\n")
	f.index.Register("properties+app1+default+ns1", []string{"app1+default+ns1"})

	time.Sleep(50 * time.Millisecond)
	if _, ok := f.engine.GetIfPresent("properties+app1+default+ns1"); !ok {
		t.Error("entry repopulated after invalidation should survive")
	}
}

func TestInvalidator_StopsOnContextCancel(t *testing.T) {
	f := startInvalidator(t)

	f.cancel()

	select {
	case err := <-f.done:
		if err != nil && err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled or nil", err)
		}
		f.done = nil
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
