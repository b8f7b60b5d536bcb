// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package settings

import (
	"strconv"
)

// Effective is a flat mapping of setting key to scalar value produced
// by merging the three layers. Values arriving through the API or the
// store may carry JSON-decoded types (float64, []any); the accessors
// normalize them.
type Effective map[string]any

// Clone returns a shallow copy. Layer merging always works on a clone
// so callers can never mutate the shared defaults.
func (e Effective) Clone() Effective {
	out := make(Effective, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Bool returns the key's value as a bool, false if absent or untyped.
func (e Effective) Bool(key string) bool {
	switch v := e[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	default:
		return false
	}
}

// Int64 returns the key's value as an int64, 0 if absent or untyped.
func (e Effective) Int64(key string) int64 {
	switch v := e[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Str returns the key's value as a string, "" if absent or untyped.
func (e Effective) Str(key string) string {
	switch v := e[key].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// StrList returns the key's value as a string slice. JSON decoding
// produces []any, which is converted element-wise.
func (e Effective) StrList(key string) []string {
	switch v := e[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
