// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

// Package eventprocessor connects the serving cache to the release message
// bus: a Watermill/NATS subscriber feeding the invalidator, a publisher for
// the admin surface, and an optional embedded NATS JetStream server for
// single-instance deployments.
package eventprocessor
