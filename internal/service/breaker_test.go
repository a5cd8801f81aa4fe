// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package service

import (
	"context"
	"errors"
	"testing"
)

func TestBreakerResolver_PassesThroughSuccess(t *testing.T) {
	inner := &fakeResolver{configurations: map[string]string{"k": "v"}}
	br := NewBreakerResolver(inner)

	resolved, err := br.QueryConfig(context.Background(), ConfigQuery{Namespace: "ns1"})
	if err != nil {
		t.Fatalf("QueryConfig: %v", err)
	}
	if resolved == nil || resolved.Configurations["k"] != "v" {
		t.Errorf("resolved = %+v", resolved)
	}
}

func TestBreakerResolver_NotFoundIsNotAFailure(t *testing.T) {
	br := NewBreakerResolver(&fakeResolver{})

	// Many not-found resolutions must never trip the breaker.
	for i := 0; i < 50; i++ {
		resolved, err := br.QueryConfig(context.Background(), ConfigQuery{Namespace: "ns1"})
		if err != nil {
			t.Fatalf("QueryConfig tripped on not-found: %v", err)
		}
		if resolved != nil {
			t.Fatalf("resolved = %+v, want nil", resolved)
		}
	}
}

func TestBreakerResolver_OpensOnSustainedFailure(t *testing.T) {
	wantErr := errors.New("storage down")
	br := NewBreakerResolver(&fakeResolver{err: wantErr})

	var sawBreakerErr bool
	for i := 0; i < 30; i++ {
		_, err := br.QueryConfig(context.Background(), ConfigQuery{Namespace: "ns1"})
		if err == nil {
			t.Fatal("expected error from failing resolver")
		}
		if !errors.Is(err, wantErr) {
			// The breaker is open and short-circuiting.
			sawBreakerErr = true
		}
	}
	if !sawBreakerErr {
		t.Error("breaker never opened after sustained failures")
	}
}
