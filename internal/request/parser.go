// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package request

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
)

// Parser converts a raw submission payload into the canonical field map.
type Parser interface {
	// Name identifies the payload shape this parser handles.
	Name() string

	// Parse flattens the raw payload into a FieldMap.
	Parse(payload []byte) (*FieldMap, error)
}

// Registry maps integration IDs to the parser that understands their
// payload shape. Unknown integrations fall back to the flat parser.
type Registry struct {
	mu       sync.RWMutex
	parsers  map[string]Parser
	fallback Parser
}

// NewRegistry returns a registry with the built-in parsers registered
// for no integrations and the flat parser as fallback.
func NewRegistry() *Registry {
	return &Registry{
		parsers:  make(map[string]Parser),
		fallback: FlatParser{},
	}
}

// Register binds an integration ID to a parser. Later registrations for
// the same ID replace earlier ones.
func (r *Registry) Register(integrationID string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[integrationID] = p
}

// ParserFor returns the parser for the integration, or the fallback.
func (r *Registry) ParserFor(integrationID string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.parsers[integrationID]; ok {
		return p
	}
	return r.fallback
}

// Parse runs the integration's parser over the payload.
func (r *Registry) Parse(integrationID string, payload []byte) (*FieldMap, error) {
	fields, err := r.ParserFor(integrationID).Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("parse payload for %q: %w", integrationID, err)
	}
	return fields, nil
}

// ParserByName returns one of the built-in parsers by shape name.
func ParserByName(name string) (Parser, error) {
	switch name {
	case "flat", "":
		return FlatParser{}, nil
	case "urlencoded":
		return URLEncodedParser{}, nil
	case "json":
		return JSONParser{}, nil
	default:
		return nil, fmt.Errorf("unknown parser %q", name)
	}
}

// FlatParser handles the common case: a JSON object of field name to
// string or array of strings.
type FlatParser struct{}

// Name implements Parser.
func (FlatParser) Name() string { return "flat" }

// Parse implements Parser.
func (FlatParser) Parse(payload []byte) (*FieldMap, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("flat payload: %w", err)
	}

	fields := NewFieldMap()
	for _, name := range sortedKeys(raw) {
		values, err := decodeScalarOrList(raw[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		for _, v := range values {
			fields.Add(name, v)
		}
	}
	return fields, nil
}

// URLEncodedParser handles plugins that pack the whole submission into a
// single URL-encoded blob.
type URLEncodedParser struct{}

// Name implements Parser.
func (URLEncodedParser) Name() string { return "urlencoded" }

// Parse implements Parser.
func (URLEncodedParser) Parse(payload []byte) (*FieldMap, error) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("urlencoded payload: %w", err)
	}

	fields := NewFieldMap()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range values[name] {
			fields.Add(name, v)
		}
	}
	return fields, nil
}

// JSONParser handles nested JSON submissions, flattening them into
// dotted keys: {"author":{"email":"x"}} becomes author.email.
type JSONParser struct{}

// Name implements Parser.
func (JSONParser) Name() string { return "json" }

// Parse implements Parser.
func (JSONParser) Parse(payload []byte) (*FieldMap, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("json payload: %w", err)
	}

	fields := NewFieldMap()
	if err := flattenObject("", raw, fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func flattenObject(prefix string, obj map[string]json.RawMessage, fields *FieldMap) error {
	for _, name := range sortedKeys(obj) {
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		var nested map[string]json.RawMessage
		if err := json.Unmarshal(obj[name], &nested); err == nil {
			if err := flattenObject(key, nested, fields); err != nil {
				return err
			}
			continue
		}

		values, err := decodeScalarOrList(obj[name])
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		for _, v := range values {
			fields.Add(key, v)
		}
	}
	return nil
}

// decodeScalarOrList accepts a JSON string, number, bool or array of
// those, returning everything as strings.
func decodeScalarOrList(raw json.RawMessage) ([]string, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			v, err := decodeScalar(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	v, err := decodeScalar(raw)
	if err != nil {
		return nil, err
	}
	return []string{v}, nil
}

func decodeScalar(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), nil
	}
	return "", fmt.Errorf("unsupported value %s", string(raw))
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
