// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// mockServer is a controllable HTTPServer.
type mockServer struct {
	listenErr   error
	listenBlock chan struct{}
	shutdownErr error
	shutdowns   int
}

func (m *mockServer) ListenAndServe() error {
	if m.listenBlock != nil {
		<-m.listenBlock
		return http.ErrServerClosed
	}
	return m.listenErr
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	m.shutdowns++
	if m.listenBlock != nil {
		close(m.listenBlock)
	}
	return m.shutdownErr
}

func TestHTTPService_StartupFailure(t *testing.T) {
	svc := NewHTTPService(&mockServer{listenErr: errors.New("port in use")}, time.Second)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("expected startup error")
	}
}

func TestHTTPService_GracefulShutdown(t *testing.T) {
	server := &mockServer{listenBlock: make(chan struct{})}
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if server.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", server.shutdowns)
	}
}

// stubRunner counts invocations.
type stubRunner struct {
	calls int
	err   error
}

func (s *stubRunner) Run(ctx context.Context) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestInvalidatorService_DelegatesToRunner(t *testing.T) {
	runner := &stubRunner{err: errors.New("bus down")}
	svc := NewInvalidatorService(runner)

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("expected runner error to propagate")
	}
	if runner.calls != 1 {
		t.Errorf("runner invoked %d times, want 1", runner.calls)
	}
	if svc.String() != "release-invalidator" {
		t.Errorf("String = %q", svc.String())
	}
}
