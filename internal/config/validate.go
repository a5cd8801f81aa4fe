// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance; struct tag rules only.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tag rules plus the cross-field rules the tags can't
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("config: field %s fails rule %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateStore()
}

// validateNATS checks bus settings (only when the bus is enabled).
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.ReleaseTopic == "" {
		return fmt.Errorf("config: nats.release_topic is required when nats.enabled=true")
	}
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("config: nats.url is required when nats.enabled=true and nats.embedded_server=false")
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("config: nats.store_dir is required when nats.embedded_server=true")
	}
	return nil
}

// validateStore checks release store settings.
func (c *Config) validateStore() error {
	if !c.Store.InMemory && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("config: store.path is required unless store.in_memory=true")
	}
	return nil
}
