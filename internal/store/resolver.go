// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package store

import (
	"context"

	"github.com/tomtom215/configrelay/internal/service"
)

// QueryConfig implements service.Resolver against the release store.
//
// Clusters are consulted in fallback order: the dataCenter cluster when one
// is named, then the requested cluster, then the default cluster. The first
// cluster holding a release wins.
//
// When a gray rule matches the client, its overrides are applied on top of
// the base release and the release key is branched, so personalized payloads
// are distinguishable from the shared release.
func (s *Store) QueryConfig(ctx context.Context, q service.ConfigQuery) (*service.ResolvedConfig, error) {
	release, err := s.resolveRelease(ctx, q)
	if err != nil {
		return nil, err
	}
	if release == nil || len(release.Configurations) == 0 {
		return nil, nil
	}

	configurations := release.Configurations
	releaseKey := release.ReleaseKey

	if rule := s.rules.get(q.AppID, q.Namespace); rule != nil && rule.Matches(q.ClientIP, q.ClientLabel) {
		merged := make(map[string]string, len(configurations)+len(rule.Overrides))
		for k, v := range configurations {
			merged[k] = v
		}
		for k, v := range rule.Overrides {
			merged[k] = v
		}
		configurations = merged
		releaseKey += "+gray"
	}

	return &service.ResolvedConfig{
		NamespaceName:  q.Namespace,
		Configurations: configurations,
		ReleaseKey:     releaseKey,
	}, nil
}

// resolveRelease walks the cluster fallback order.
func (s *Store) resolveRelease(ctx context.Context, q service.ConfigQuery) (*Release, error) {
	clusters := make([]string, 0, 3)
	if q.DataCenter != "" && q.DataCenter != q.Cluster {
		clusters = append(clusters, q.DataCenter)
	}
	clusters = append(clusters, q.Cluster)
	if q.Cluster != service.DefaultCluster {
		clusters = append(clusters, service.DefaultCluster)
	}

	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		release, err := s.GetRelease(q.AppID, cluster, q.Namespace)
		if err != nil {
			return nil, err
		}
		if release != nil {
			return release, nil
		}
	}
	return nil, nil
}
