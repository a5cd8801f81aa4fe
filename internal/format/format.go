// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

// Package format defines the output formats a configuration payload can be
// rendered in, and the file format carried by a namespace name suffix.
//
// Two distinct notions live here:
//
//   - Output: how a /configfiles response is rendered (properties, json, raw).
//     The output format is part of the cache key, so the same namespace cached
//     under different renderings never collides.
//   - File: the native format of the namespace itself, derived from its name
//     suffix (.json, .yaml, .yml, .xml, .properties). Raw rendering returns the
//     namespace's native document and uses the file format for the content type.
package format

import "strings"

// Output identifies the rendering applied to a configuration payload.
type Output string

const (
	// OutputProperties renders key=value lines with properties escaping.
	OutputProperties Output = "properties"

	// OutputJSON renders a JSON object of the configuration map.
	OutputJSON Output = "json"

	// OutputRaw returns the namespace's native document unchanged.
	OutputRaw Output = "raw"
)

// File identifies the native format of a namespace, from its name suffix.
type File string

const (
	FileProperties File = "properties"
	FileJSON       File = "json"
	FileYML        File = "yml"
	FileYAML       File = "yaml"
	FileXML        File = "xml"
)

// FromNamespace derives the file format from a namespace name.
// Matching is case-insensitive on the suffix; namespaces without a recognized
// suffix default to properties.
func FromNamespace(namespace string) File {
	lower := strings.ToLower(namespace)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return FileJSON
	case strings.HasSuffix(lower, ".yml"):
		return FileYML
	case strings.HasSuffix(lower, ".yaml"):
		return FileYAML
	case strings.HasSuffix(lower, ".xml"):
		return FileXML
	default:
		return FileProperties
	}
}

// ContentType returns the HTTP content type for a payload in this file format.
func (f File) ContentType() string {
	switch f {
	case FileJSON:
		return "application/json;charset=UTF-8"
	case FileYML, FileYAML:
		return "application/yaml;charset=UTF-8"
	case FileXML:
		return "application/xml;charset=UTF-8"
	default:
		return "text/plain;charset=UTF-8"
	}
}

// IsProperties reports whether the file format is properties.
func (f File) IsProperties() bool {
	return f == FileProperties
}
