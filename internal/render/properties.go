// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package render

import (
	"fmt"
	"sort"
	"strings"
)

// Properties renders a configuration map as properties text, one
// "key=value" line per entry terminated by a newline.
//
// Escaping follows the standard properties conventions: backslash, '=', ':',
// '#' and '!' are backslash-escaped, spaces are escaped everywhere in keys and
// at the start of values, and control characters are written as \t, \n, \r,
// \f or a \uXXXX escape. Non-ASCII characters are emitted as UTF-8 verbatim.
//
// Keys are written in sorted order so the same map always renders to the same
// payload regardless of map iteration order.
func Properties(configurations map[string]string) string {
	if len(configurations) == 0 {
		return ""
	}

	keys := make([]string, 0, len(configurations))
	for k := range configurations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(escapeProperties(k, true))
		sb.WriteByte('=')
		sb.WriteString(escapeProperties(configurations[k], false))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// escapeProperties escapes a single key or value. Spaces are always escaped
// in keys; in values only a leading space needs the escape.
func escapeProperties(s string, escapeAllSpace bool) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for i, r := range s {
		switch r {
		case ' ':
			if escapeAllSpace || i == 0 {
				sb.WriteByte('\\')
			}
			sb.WriteByte(' ')
		case '\\':
			sb.WriteString(`\\`)
		case '\t':
			sb.WriteString(`\t`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\f':
			sb.WriteString(`\f`)
		case '=', ':', '#', '!':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			if r < 0x20 {
				sb.WriteString(fmt.Sprintf(`\u%04X`, r))
			} else {
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}
