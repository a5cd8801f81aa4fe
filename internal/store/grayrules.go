// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package store

import (
	"strings"
	"sync"
)

// GrayRule routes specific clients of a namespace to an override release.
// A client matches when its IP is listed in ClientIPs or its label is listed
// in Labels.
type GrayRule struct {
	AppID     string `json:"appId"`
	Namespace string `json:"namespace"`

	ClientIPs []string `json:"clientIps,omitempty"`
	Labels    []string `json:"labels,omitempty"`

	// Overrides are applied on top of the base release for matching
	// clients.
	Overrides map[string]string `json:"overrides"`
}

// Matches reports whether the rule applies to the given client.
func (r *GrayRule) Matches(clientIP, clientLabel string) bool {
	for _, ip := range r.ClientIPs {
		if ip != "" && ip == clientIP {
			return true
		}
	}
	if clientLabel != "" {
		for _, label := range r.Labels {
			if label == clientLabel {
				return true
			}
		}
	}
	return false
}

// GrayRuleSet is the in-memory index of active gray rules, keyed by
// (appID, namespace). Lookups are non-blocking; the query pipeline calls the
// predicate twice per miss.
type GrayRuleSet struct {
	mu sync.RWMutex
	// rules maps appID -> folded namespace -> rule.
	rules map[string]map[string]*GrayRule
}

// NewGrayRuleSet creates an empty rule set.
func NewGrayRuleSet() *GrayRuleSet {
	return &GrayRuleSet{rules: make(map[string]map[string]*GrayRule)}
}

// Put installs or replaces the rule for (rule.AppID, rule.Namespace).
func (s *GrayRuleSet) Put(rule *GrayRule) {
	folded := strings.ToLower(rule.Namespace)

	s.mu.Lock()
	defer s.mu.Unlock()

	namespaces := s.rules[rule.AppID]
	if namespaces == nil {
		namespaces = make(map[string]*GrayRule)
		s.rules[rule.AppID] = namespaces
	}
	namespaces[folded] = rule
}

// Delete removes the rule for (appID, namespace). Absent rules are a no-op.
func (s *GrayRuleSet) Delete(appID, namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rules[appID], strings.ToLower(namespace))
}

// HasGrayReleaseRule implements the pipeline predicate: true when an active
// rule for (appID, namespace) matches the client.
func (s *GrayRuleSet) HasGrayReleaseRule(appID, clientIP, clientLabel, namespace string) bool {
	rule := s.get(appID, namespace)
	return rule != nil && rule.Matches(clientIP, clientLabel)
}

// get returns the active rule for (appID, namespace), or nil.
func (s *GrayRuleSet) get(appID, namespace string) *GrayRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rules[appID][strings.ToLower(namespace)]
}
