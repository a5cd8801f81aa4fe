// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/configrelay/internal/format"
)

func TestProperties_Basic(t *testing.T) {
	got := Properties(map[string]string{"k": "v"})
	if got != "k=v\n" {
		t.Errorf("Properties = %q, want %q", got, "k=v\n")
	}
}

func TestProperties_SortedAndDeterministic(t *testing.T) {
	m := map[string]string{"b": "2", "a": "1", "c": "3"}
	want := "a=1\nb=2\nc=3\n"
	for i := 0; i < 10; i++ {
		if got := Properties(m); got != want {
			t.Fatalf("Properties = %q, want %q", got, want)
		}
	}
}

func TestProperties_Escaping(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"equals in key", "a=b", "v", `a\=b=v` + "\n"},
		{"colon in key", "a:b", "v", `a\:b=v` + "\n"},
		{"backslash", `a\b`, `c\d`, `a\\b=c\\d` + "\n"},
		{"space in key", "a b", "v", `a\ b=v` + "\n"},
		{"leading space in value", "k", " v", `k=\ v` + "\n"},
		{"interior space in value", "k", "a b", "k=a b\n"},
		{"newline in value", "k", "a\nb", `k=a\nb` + "\n"},
		{"tab in value", "k", "a\tb", `k=a\tb` + "\n"},
		{"comment chars", "#k", "!v", `\#k=\!v` + "\n"},
		{"control char", "k", "a\x01b", `k=a\u0001b` + "\n"},
		{"utf8 passthrough", "k", "héllo", "k=héllo\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Properties(map[string]string{tt.key: tt.value})
			if got != tt.want {
				t.Errorf("Properties(%q:%q) = %q, want %q", tt.key, tt.value, got, tt.want)
			}
		})
	}
}

func TestProperties_Empty(t *testing.T) {
	if got := Properties(nil); got != "" {
		t.Errorf("Properties(nil) = %q, want empty", got)
	}
}

func TestJSON_MembersMatchInput(t *testing.T) {
	got, err := JSON(map[string]string{"a": "1", "b": "2"})
	if err != nil {
		t.Fatalf("JSON returned error: %v", err)
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded["a"] != "1" || decoded["b"] != "2" {
		t.Errorf("decoded = %v, want exactly a=1 b=2", decoded)
	}
}

func TestJSON_NilMap(t *testing.T) {
	got, err := JSON(nil)
	if err != nil {
		t.Fatalf("JSON(nil) returned error: %v", err)
	}
	if got != "{}" {
		t.Errorf("JSON(nil) = %q, want {}", got)
	}
}

func TestRaw_YAMLContent(t *testing.T) {
	got, err := Raw(map[string]string{ContentKey: "foo: bar\n"}, format.FileYAML)
	if err != nil {
		t.Fatalf("Raw returned error: %v", err)
	}
	if got != "foo: bar\n" {
		t.Errorf("Raw = %q, want %q", got, "foo: bar\n")
	}
}

func TestRaw_PropertiesFallsBackToLines(t *testing.T) {
	got, err := Raw(map[string]string{"k": "v"}, format.FileProperties)
	if err != nil {
		t.Fatalf("Raw returned error: %v", err)
	}
	if got != "k=v\n" {
		t.Errorf("Raw = %q, want %q", got, "k=v\n")
	}
}

func TestRaw_MissingContent(t *testing.T) {
	_, err := Raw(map[string]string{"k": "v"}, format.FileYAML)
	if !errors.Is(err, ErrMissingContent) {
		t.Errorf("Raw error = %v, want ErrMissingContent", err)
	}
}

func TestRender_Dispatch(t *testing.T) {
	m := map[string]string{"k": "v"}

	if got, _ := Render(format.OutputProperties, format.FileProperties, m); got != "k=v\n" {
		t.Errorf("properties output = %q", got)
	}
	if got, _ := Render(format.OutputJSON, format.FileProperties, m); !strings.Contains(got, `"k":"v"`) {
		t.Errorf("json output = %q", got)
	}
	raw := map[string]string{ContentKey: "<a/>"}
	if got, _ := Render(format.OutputRaw, format.FileXML, raw); got != "<a/>" {
		t.Errorf("raw output = %q", got)
	}
}
