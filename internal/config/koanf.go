// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/configrelay/config.yaml",
	"/etc/configrelay/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces ConfigRelay environment variables. Nesting uses a
// double underscore, single underscores stay part of the key:
// CONFIGRELAY_CACHE__MAX_WEIGHT_BYTES -> cache.max_weight_bytes.
const envPrefix = "CONFIGRELAY_"

// envAliases maps the bare environment variables operators expect onto
// config keys. Aliases load before the CONFIGRELAY_ pass, so a prefixed
// variable always wins over its alias.
var envAliases = map[string]string{
	"SERVER_HOST":            "server.host",
	"SERVER_PORT":            "server.port",
	"CACHE_MAX_WEIGHT_BYTES": "cache.max_weight_bytes",
	"CACHE_WRITE_TTL":        "cache.write_ttl",
	"NATS_ENABLED":           "nats.enabled",
	"NATS_URL":               "nats.url",
	"NATS_EMBEDDED_SERVER":   "nats.embedded_server",
	"NATS_RELEASE_TOPIC":     "nats.release_topic",
	"STORE_PATH":             "store.path",
	"LOG_LEVEL":              "logging.level",
	"LOG_FORMAT":             "logging.format",
	"LOG_CALLER":             "logging.caller",
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := configFilePath(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envAlias), nil); err != nil {
		return nil, fmt.Errorf("load environment aliases: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configFilePath returns the config file to load, or "" when none exists.
func configFilePath() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps CONFIGRELAY_SECTION__SOME_KEY to section.some_key.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// envAlias maps a bare variable through the alias table. Returning the empty
// string makes the provider skip every variable that is not an alias.
func envAlias(s string) string {
	return envAliases[s]
}
