// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

// Package store is the reference release backend: a Badger-backed store of
// the latest release per (app, cluster, namespace), an in-memory gray-rule
// set, and the namespace spelling registry that backs canonicalization.
//
// The store implements the resolver consumed by the query pipeline. The
// resolution order mirrors the cluster fallback graph: dataCenter cluster,
// then the requested cluster, then the default cluster.
package store

import (
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/configrelay/internal/cache"
	"github.com/tomtom215/configrelay/internal/config"
	"github.com/tomtom215/configrelay/internal/logging"
)

// releasePrefix namespaces release records inside Badger.
const releasePrefix = "release/"

// ErrInvalidName rejects appId, cluster or namespace values that would
// corrupt record keys or cache keys.
var ErrInvalidName = errors.New("store: name contains a reserved character")

// Release is the latest committed version of one namespace in one cluster.
type Release struct {
	// ReleaseKey identifies this release.
	ReleaseKey string `json:"releaseKey"`

	// Configurations is the released key/value map.
	Configurations map[string]string `json:"configurations"`
}

// Store holds releases in Badger plus the in-memory rule set and registry.
type Store struct {
	db       *badger.DB
	rules    *GrayRuleSet
	registry *Registry
}

// Open opens (or creates) the store at the configured path. InMemory runs
// Badger without disk persistence.
func Open(cfg *config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open release store: %w", err)
	}

	s := &Store{
		db:       db,
		rules:    NewGrayRuleSet(),
		registry: NewRegistry(),
	}

	if err := s.rebuildRegistry(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying Badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Rules exposes the gray-rule set for the pipeline predicate and the admin
// surface.
func (s *Store) Rules() *GrayRuleSet {
	return s.rules
}

// Registry exposes the namespace spelling registry for cache key
// normalization.
func (s *Store) Registry() *Registry {
	return s.registry
}

// PutRelease stores the latest release for (appID, cluster, namespace) and
// records the namespace spelling. Names containing the record or cache key
// separators are rejected.
func (s *Store) PutRelease(appID, cluster, namespace string, release *Release) error {
	if err := validateNames(appID, cluster, namespace); err != nil {
		return err
	}
	if release == nil || release.ReleaseKey == "" {
		return errors.New("store: release requires a release key")
	}

	value, err := json.Marshal(release)
	if err != nil {
		return fmt.Errorf("marshal release: %w", err)
	}

	key := releaseRecordKey(appID, cluster, namespace)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("put release: %w", err)
	}

	s.registry.Record(appID, namespace)

	logging.Info().
		Str("app_id", appID).
		Str("cluster", cluster).
		Str("namespace", namespace).
		Str("release_key", release.ReleaseKey).
		Msg("Release published")

	return nil
}

// GetRelease returns the latest release, or (nil, nil) when none exists.
func (s *Store) GetRelease(appID, cluster, namespace string) (*Release, error) {
	var release *Release

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(releaseRecordKey(appID, cluster, namespace))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var r Release
			if err := json.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("unmarshal release: %w", err)
			}
			release = &r
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get release: %w", err)
	}
	return release, nil
}

// DeleteRelease retires the release for (appID, cluster, namespace).
// Deleting an absent release is a no-op.
func (s *Store) DeleteRelease(appID, cluster, namespace string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(releaseRecordKey(appID, cluster, namespace))
	})
	if err != nil {
		return fmt.Errorf("delete release: %w", err)
	}
	return nil
}

// Ready reports whether the store can serve reads. Used by health checks.
func (s *Store) Ready() bool {
	return !s.db.IsClosed()
}

// rebuildRegistry rescans release record keys so canonicalization survives
// restarts.
func (s *Store) rebuildRegistry() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(releasePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			parts := strings.Split(strings.TrimPrefix(key, releasePrefix), "/")
			if len(parts) != 3 {
				continue
			}
			s.registry.Record(parts[0], parts[2])
		}
		return nil
	})
}

// releaseRecordKey builds the Badger key for one release record.
func releaseRecordKey(appID, cluster, namespace string) []byte {
	return []byte(releasePrefix + appID + "/" + cluster + "/" + namespace)
}

// validateNames rejects identifiers that would collide with the record
// separator or the cache key separator.
func validateNames(names ...string) error {
	for _, name := range names {
		if name == "" {
			return errors.New("store: empty name")
		}
		if strings.ContainsAny(name, "/"+cache.Separator) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}
