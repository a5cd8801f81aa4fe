// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package services

import "context"

// Runner is a blocking loop that honors context cancellation.
// Satisfied by *eventprocessor.Invalidator.
type Runner interface {
	Run(ctx context.Context) error
}

// InvalidatorService supervises the release invalidator loop. A bus error
// returns from Run and suture restarts the subscription with backoff; the
// cache keeps serving (possibly stale until TTL) in the meantime.
type InvalidatorService struct {
	runner Runner
}

// NewInvalidatorService wraps the invalidator.
func NewInvalidatorService(runner Runner) *InvalidatorService {
	return &InvalidatorService{runner: runner}
}

// Serve implements suture.Service.
func (s *InvalidatorService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx)
}

// String implements fmt.Stringer for supervisor log messages.
func (s *InvalidatorService) String() string {
	return "release-invalidator"
}
