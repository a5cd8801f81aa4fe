// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package service

import (
	"context"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/configrelay/internal/logging"
	"github.com/tomtom215/configrelay/internal/metrics"
)

// BreakerResolver wraps a Resolver with a circuit breaker so a failing
// storage backend sheds load fast instead of queueing every request behind
// timeouts. Not-found results are successes, only resolver errors count as
// failures.
type BreakerResolver struct {
	inner Resolver
	cb    *gobreaker.CircuitBreaker[*ResolvedConfig]
}

// NewBreakerResolver wraps the given resolver.
func NewBreakerResolver(inner Resolver) *BreakerResolver {
	cb := gobreaker.NewCircuitBreaker[*ResolvedConfig](gobreaker.Settings{
		Name:        "config-resolver",
		MaxRequests: 3,

		// Opens when failure rate >= 60% with at least 10 requests sampled.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Resolver circuit breaker state change")
			metrics.SetResolverBreakerState(to.String())
		},
	})

	return &BreakerResolver{inner: inner, cb: cb}
}

// QueryConfig resolves through the breaker. When the circuit is open the
// breaker error propagates like any resolver error.
func (b *BreakerResolver) QueryConfig(ctx context.Context, q ConfigQuery) (*ResolvedConfig, error) {
	return b.cb.Execute(func() (*ResolvedConfig, error) {
		return b.inner.QueryConfig(ctx, q)
	})
}
