// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package service

import (
	"context"
	"time"

	"github.com/tomtom215/configrelay/internal/cache"
	"github.com/tomtom215/configrelay/internal/format"
	"github.com/tomtom215/configrelay/internal/logging"
	"github.com/tomtom215/configrelay/internal/metrics"
	"github.com/tomtom215/configrelay/internal/render"
)

// Request is one config-file query as received from the HTTP layer.
type Request struct {
	Output      format.Output
	AppID       string
	Cluster     string
	Namespace   string
	DataCenter  string
	ClientIP    string
	ClientLabel string
}

// Result is a successfully served payload.
type Result struct {
	// Payload is the rendered body.
	Payload string

	// Namespace is the normalized namespace the payload was built from; the
	// HTTP layer derives the raw content type from it.
	Namespace string

	// Cached reports whether the payload came from the serving cache.
	Cached bool
}

// Service runs the query pipeline against the serving cache.
//
// Payloads resolved for clients with a gray-release rule are personalized
// and never enter the shared cache. The rule check runs twice: once up
// front, and again after resolution, so a rule committed mid-flight does not
// poison the cache for other clients. The remaining window between the second
// check and the insert is accepted: committing a gray rule publishes a
// release, and that release message evicts whatever the race let in.
type Service struct {
	cache     *cache.Engine
	index     *cache.WatchIndex
	resolver  Resolver
	grayRules GrayRuleIndex
	assembler WatchKeyAssembler
	registry  cache.NamespaceRegistry
}

// New assembles the pipeline. The registry may be nil to skip namespace
// canonicalization.
func New(
	engine *cache.Engine,
	index *cache.WatchIndex,
	resolver Resolver,
	grayRules GrayRuleIndex,
	assembler WatchKeyAssembler,
	registry cache.NamespaceRegistry,
) *Service {
	return &Service{
		cache:     engine,
		index:     index,
		resolver:  resolver,
		grayRules: grayRules,
		assembler: assembler,
		registry:  registry,
	}
}

// Query serves one request. It returns (nil, nil) when the namespace has no
// published configuration; resolver errors pass through for the HTTP layer
// to surface as 5xx.
func (s *Service) Query(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, outcome, err := s.query(ctx, req)
	metrics.RecordConfigRequest(string(req.Output), outcome, time.Since(start))
	metrics.SetCacheSize(s.cache.Len(), s.cache.Weight())
	return result, err
}

func (s *Service) query(ctx context.Context, req Request) (*Result, string, error) {
	namespace := cache.NormalizeNamespace(s.registry, req.AppID, req.Namespace)
	cacheKey := cache.BuildKey(req.Output, req.AppID, req.Cluster, namespace, req.DataCenter)

	if s.grayRules.HasGrayReleaseRule(req.AppID, req.ClientIP, req.ClientLabel, namespace) {
		result, err := s.resolvePersonalized(ctx, req, namespace)
		return result, "personalized", err
	}

	if payload, ok := s.cache.GetIfPresent(cacheKey); ok {
		metrics.CacheHits.Inc()
		return &Result{Payload: payload, Namespace: namespace, Cached: true}, "hit", nil
	}
	metrics.CacheMisses.Inc()

	resolved, err := s.resolve(ctx, req, namespace)
	if err != nil {
		return nil, "error", err
	}
	if resolved == nil {
		return nil, "not_found", nil
	}

	payload, err := render.Render(req.Output, format.FromNamespace(namespace), resolved.Configurations)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("app_id", req.AppID).
			Str("namespace", namespace).
			Msg("Payload rendering failed, serving not found")
		return nil, "not_found", nil
	}

	// A gray rule may have been committed while we resolved. Caching the
	// payload now would serve one client's override to everyone, so discard
	// it and resolve again on the personalized path.
	if s.grayRules.HasGrayReleaseRule(req.AppID, req.ClientIP, req.ClientLabel, namespace) {
		result, err := s.resolvePersonalized(ctx, req, namespace)
		return result, "personalized", err
	}

	if s.cache.Put(cacheKey, payload) {
		watchKeys := s.assembler.AssembleAllWatchKeys(req.AppID, req.Cluster, namespace, req.DataCenter)
		s.index.Register(cacheKey, watchKeys)
		metrics.SetWatchIndexSize(s.index.Size())

		logging.Debug().
			Str("cache_key", cacheKey).
			Strs("watch_keys", watchKeys).
			Msg("Cached config payload")
	}

	return &Result{Payload: payload, Namespace: namespace}, "miss", nil
}

// resolvePersonalized resolves and renders without touching the cache.
func (s *Service) resolvePersonalized(ctx context.Context, req Request, namespace string) (*Result, error) {
	resolved, err := s.resolve(ctx, req, namespace)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, nil
	}

	payload, err := render.Render(req.Output, format.FromNamespace(namespace), resolved.Configurations)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("app_id", req.AppID).
			Str("namespace", namespace).
			Msg("Personalized payload rendering failed, serving not found")
		return nil, nil
	}

	return &Result{Payload: payload, Namespace: namespace}, nil
}

func (s *Service) resolve(ctx context.Context, req Request, namespace string) (*ResolvedConfig, error) {
	return s.resolver.QueryConfig(ctx, ConfigQuery{
		AppID:       req.AppID,
		Cluster:     req.Cluster,
		Namespace:   namespace,
		DataCenter:  req.DataCenter,
		ClientIP:    req.ClientIP,
		ClientLabel: req.ClientLabel,
		ReleaseKey:  SentinelReleaseKey,
	})
}
