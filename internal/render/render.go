// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

// Package render turns a resolved configuration map into the payload body
// served to clients: properties lines, a JSON object, or the namespace's
// native raw document.
package render

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/configrelay/internal/format"
)

// ContentKey is the reserved configuration key that holds the complete
// document of a non-properties namespace (YAML, XML, JSON) as stored upstream.
const ContentKey = "content"

// ErrMissingContent is returned when a non-properties namespace is rendered
// raw but its configuration map carries no content entry.
var ErrMissingContent = errors.New("render: namespace has no content entry")

// JSON renders a configuration map as a JSON object whose members match the
// input verbatim. Keys are emitted in sorted order.
func JSON(configurations map[string]string) (string, error) {
	if configurations == nil {
		configurations = map[string]string{}
	}
	b, err := json.Marshal(configurations)
	if err != nil {
		return "", fmt.Errorf("render json: %w", err)
	}
	return string(b), nil
}

// Raw renders the namespace's native document. Properties namespaces render
// exactly like Properties; any other file format returns the value stored
// under ContentKey, or ErrMissingContent when absent.
func Raw(configurations map[string]string, file format.File) (string, error) {
	if file.IsProperties() {
		return Properties(configurations), nil
	}
	content, ok := configurations[ContentKey]
	if !ok {
		return "", fmt.Errorf("%w (format %s)", ErrMissingContent, file)
	}
	return content, nil
}

// Render dispatches on the output format. Raw output additionally needs the
// namespace's file format to pick between properties lines and the content
// document.
func Render(output format.Output, file format.File, configurations map[string]string) (string, error) {
	switch output {
	case format.OutputJSON:
		return JSON(configurations)
	case format.OutputRaw:
		return Raw(configurations, file)
	default:
		return Properties(configurations), nil
	}
}
