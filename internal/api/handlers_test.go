// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/configrelay/internal/cache"
	"github.com/tomtom215/configrelay/internal/config"
	"github.com/tomtom215/configrelay/internal/eventprocessor"
	"github.com/tomtom215/configrelay/internal/service"
	"github.com/tomtom215/configrelay/internal/store"
)

const releaseTopic = "release.updated"

// countingResolver counts resolutions on their way to the store.
type countingResolver struct {
	inner service.Resolver
	calls atomic.Int64
}

func (c *countingResolver) QueryConfig(ctx context.Context, q service.ConfigQuery) (*service.ResolvedConfig, error) {
	c.calls.Add(1)
	return c.inner.QueryConfig(ctx, q)
}

// testServer is the full stack over an in-memory store and an in-process
// release bus with a live invalidator.
type testServer struct {
	srv      *httptest.Server
	resolver *countingResolver
	engine   *cache.Engine
	index    *cache.WatchIndex
	store    *store.Store
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open(&config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	index := cache.NewWatchIndex()
	engine := cache.NewEngine(1024*1024, time.Minute, func(key string, cause cache.RemovalCause) {
		if cause != cache.RemovalReplaced {
			index.RemoveCacheKey(key)
		}
	})
	t.Cleanup(engine.Close)

	resolver := &countingResolver{inner: st}
	svc := service.New(engine, index, resolver, st.Rules(), service.DefaultWatchKeyAssembler{}, st.Registry())

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	inv := eventprocessor.NewInvalidator(bus, releaseTopic, engine, index)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = inv.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	publisher := eventprocessor.NewPublisherFor(bus, releaseTopic)
	handler := NewHandler(svc, st, publisher, func() bool { return true })

	serverCfg := &config.ServerConfig{
		CORSOrigins:     []string{"*"},
		RateLimitReqs:   0, // no limiting in tests
		RateLimitWindow: time.Minute,
	}
	srv := httptest.NewServer(NewRouter(handler, serverCfg).Setup())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, resolver: resolver, engine: engine, index: index, store: st}
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	_ = resp.Body.Close()
	return resp
}

func (ts *testServer) publishRelease(t *testing.T, app, cluster, namespace, body string) {
	t.Helper()
	resp := ts.do(t, http.MethodPut, "/admin/releases/"+app+"/"+cluster+"/"+namespace, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish release: status %d", resp.StatusCode)
	}
}

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

func TestConfigFile_MissThenHit(t *testing.T) {
	ts := startServer(t)
	ts.publishRelease(t, "app1", "default", "ns1", `{"configurations":{"k":"v"}}`)
	before := ts.resolver.calls.Load()

	resp, body := ts.get(t, "/configfiles/app1/default/ns1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body != "k=v\n" {
		t.Errorf("body = %q, want k=v\\n", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain;charset=UTF-8" {
		t.Errorf("content type = %q", ct)
	}

	// Second identical request: served from cache, resolver untouched.
	resolved := ts.resolver.calls.Load()
	resp, body = ts.get(t, "/configfiles/app1/default/ns1")
	if resp.StatusCode != http.StatusOK || body != "k=v\n" {
		t.Errorf("second response = %d %q", resp.StatusCode, body)
	}
	if got := ts.resolver.calls.Load(); got != resolved {
		t.Errorf("resolver invoked %d extra times on a hit", got-resolved)
	}
	if resolved-before != 1 {
		t.Errorf("first request resolved %d times, want 1", resolved-before)
	}
}

func TestConfigFile_JSONRendering(t *testing.T) {
	ts := startServer(t)
	ts.publishRelease(t, "app1", "default", "ns1", `{"configurations":{"a":"1","b":"2"}}`)

	resp, body := ts.get(t, "/configfiles/json/app1/default/ns1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json;charset=UTF-8" {
		t.Errorf("content type = %q", ct)
	}
	if body != `{"a":"1","b":"2"}` {
		t.Errorf("body = %q", body)
	}
}

func TestConfigFile_RawYAML(t *testing.T) {
	ts := startServer(t)
	ts.publishRelease(t, "app1", "default", "ns1.yaml",
		`{"configurations":{"content":"foo: bar\n"}}`)

	resp, body := ts.get(t, "/configfiles/raw/app1/default/ns1.yaml")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body != "foo: bar\n" {
		t.Errorf("body = %q, want foo: bar\\n", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml;charset=UTF-8" {
		t.Errorf("content type = %q", ct)
	}
}

func TestConfigFile_NotFound(t *testing.T) {
	ts := startServer(t)

	resp, body := ts.get(t, "/configfiles/app1/default/unpublished")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body != "" {
		t.Errorf("body = %q, want empty", body)
	}
}

func TestConfigFile_InvalidationOnRelease(t *testing.T) {
	ts := startServer(t)
	ts.publishRelease(t, "app1", "default", "ns1", `{"configurations":{"k":"v"}}`)

	if _, body := ts.get(t, "/configfiles/app1/default/ns1"); body != "k=v\n" {
		t.Fatalf("body = %q", body)
	}
	if ts.engine.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", ts.engine.Len())
	}

	// A new release announces app1+default+ns1 and evicts the entry.
	ts.publishRelease(t, "app1", "default", "ns1", `{"configurations":{"k":"v2"}}`)
	waitFor(t, 2*time.Second, func() bool {
		return ts.engine.Len() == 0
	}, "release message did not invalidate the entry")

	resolved := ts.resolver.calls.Load()
	_, body := ts.get(t, "/configfiles/app1/default/ns1")
	if body != "k=v2\n" {
		t.Errorf("body after release = %q, want k=v2\\n", body)
	}
	if got := ts.resolver.calls.Load(); got != resolved+1 {
		t.Errorf("resolver calls after invalidation = %d, want %d", got, resolved+1)
	}
}

func TestConfigFile_GrayReleaseBypass(t *testing.T) {
	ts := startServer(t)
	ts.publishRelease(t, "app1", "default", "ns1", `{"configurations":{"k":"shared"}}`)

	resp := ts.do(t, http.MethodPut, "/admin/grayrules/app1/ns1",
		`{"clientIps":["1.2.3.4"],"overrides":{"k":"gray"}}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("put gray rule: status %d", resp.StatusCode)
	}

	// The gray client resolves every time and sees the override.
	before := ts.resolver.calls.Load()
	for i := 0; i < 3; i++ {
		_, body := ts.get(t, "/configfiles/app1/default/ns1?ip=1.2.3.4")
		if body != "k=gray\n" {
			t.Errorf("gray body = %q, want k=gray\\n", body)
		}
	}
	if got := ts.resolver.calls.Load() - before; got != 3 {
		t.Errorf("gray client resolved %d times, want 3", got)
	}
	if ts.engine.Len() != 0 {
		t.Error("gray requests must leave the cache unchanged")
	}

	// Other clients still get the shared release, cached normally.
	_, body := ts.get(t, "/configfiles/app1/default/ns1?ip=9.9.9.9")
	if body != "k=shared\n" {
		t.Errorf("shared body = %q", body)
	}
	if ts.engine.Len() != 1 {
		t.Error("shared request should populate the cache")
	}

	// Dropping the rule returns the gray client to the shared entry.
	resp = ts.do(t, http.MethodDelete, "/admin/grayrules/app1/ns1", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete gray rule: status %d", resp.StatusCode)
	}
	resolved := ts.resolver.calls.Load()
	_, body = ts.get(t, "/configfiles/app1/default/ns1?ip=1.2.3.4")
	if body != "k=shared\n" {
		t.Errorf("body after rule removal = %q", body)
	}
	if got := ts.resolver.calls.Load(); got != resolved {
		t.Error("request after rule removal should hit the shared cache")
	}
}

func TestConfigFile_NamespaceCaseVariantsShareEntry(t *testing.T) {
	ts := startServer(t)
	ts.publishRelease(t, "app1", "default", "FX.billing", `{"configurations":{"k":"v"}}`)

	if _, body := ts.get(t, "/configfiles/app1/default/FX.billing"); body != "k=v\n" {
		t.Fatalf("body = %q", body)
	}
	resolved := ts.resolver.calls.Load()

	// The lowercased spelling canonicalizes onto the same cache entry.
	if _, body := ts.get(t, "/configfiles/app1/default/fx.billing"); body != "k=v\n" {
		t.Fatalf("case-variant body = %q", body)
	}
	if got := ts.resolver.calls.Load(); got != resolved {
		t.Error("case variant should hit the canonical cache entry")
	}
	if ts.engine.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", ts.engine.Len())
	}
}

func TestAdmin_PublishValidation(t *testing.T) {
	ts := startServer(t)

	if resp := ts.do(t, http.MethodPut, "/admin/releases/app1/default/ns1", `not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid body: status %d, want 400", resp.StatusCode)
	}
	if resp := ts.do(t, http.MethodPut, "/admin/releases/app1/default/ns1", `{"configurations":{}}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty configurations: status %d, want 400", resp.StatusCode)
	}
	if resp := ts.do(t, http.MethodPut, "/admin/releases/a+b/default/ns1", `{"configurations":{"k":"v"}}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("reserved character: status %d, want 400", resp.StatusCode)
	}
	if resp := ts.do(t, http.MethodPut, "/admin/grayrules/app1/ns1", `{"overrides":{"k":"v"}}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("rule without clients: status %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := startServer(t)

	if resp, _ := ts.get(t, "/health/live"); resp.StatusCode != http.StatusOK {
		t.Errorf("live: status %d", resp.StatusCode)
	}
	if resp, _ := ts.get(t, "/health/ready"); resp.StatusCode != http.StatusOK {
		t.Errorf("ready: status %d", resp.StatusCode)
	}
	if resp, _ := ts.get(t, "/metrics"); resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: status %d", resp.StatusCode)
	}
}

func TestConfigFile_RetireReleaseInvalidates(t *testing.T) {
	ts := startServer(t)
	ts.publishRelease(t, "app1", "default", "ns1", `{"configurations":{"k":"v"}}`)

	if _, body := ts.get(t, "/configfiles/app1/default/ns1"); body != "k=v\n" {
		t.Fatalf("body = %q", body)
	}

	if resp := ts.do(t, http.MethodDelete, "/admin/releases/app1/default/ns1", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("retire: status %d", resp.StatusCode)
	}
	waitFor(t, 2*time.Second, func() bool {
		return ts.engine.Len() == 0
	}, "retirement did not invalidate the entry")

	if resp, _ := ts.get(t, "/configfiles/app1/default/ns1"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after retirement = %d, want 404", resp.StatusCode)
	}
}
