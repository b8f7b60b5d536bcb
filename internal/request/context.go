// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

// Package request normalizes heterogeneous form submission payloads into
// one canonical field map plus request metadata. Form plugins encode POST
// data differently (flat maps, URL-encoded blobs, nested JSON); a named
// parser selected by integration ID flattens each shape so the pipeline
// only ever sees a SubmissionContext.
package request

import (
	"strings"
)

// allowedHeaders is the subset of request headers retained on a
// SubmissionContext. Everything else is dropped at construction time.
var allowedHeaders = map[string]struct{}{
	"Accept":           {},
	"Accept-Language":  {},
	"Accept-Encoding":  {},
	"Referer":          {},
	"Origin":           {},
	"X-Requested-With": {},
}

// FieldMap is an insertion-ordered mapping of field name to values.
// Multi-value fields keep all values in submission order.
type FieldMap struct {
	names  []string
	values map[string][]string
}

// NewFieldMap returns an empty field map.
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string][]string)}
}

// Add appends a value for the named field, preserving first-seen order.
func (f *FieldMap) Add(name, value string) {
	if _, ok := f.values[name]; !ok {
		f.names = append(f.names, name)
	}
	f.values[name] = append(f.values[name], value)
}

// First returns the first value for the named field, or "" if absent.
func (f *FieldMap) First(name string) string {
	if vs := f.values[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Has reports whether the named field was submitted, even if empty.
func (f *FieldMap) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

// Values returns all values for the named field.
func (f *FieldMap) Values(name string) []string {
	return f.values[name]
}

// Names returns field names in submission order.
func (f *FieldMap) Names() []string {
	return f.names
}

// Len returns the number of distinct fields.
func (f *FieldMap) Len() int {
	return len(f.names)
}

// JoinedText concatenates every submitted value, separated by newlines.
// Content-based validators scan this combined text.
func (f *FieldMap) JoinedText() string {
	var b strings.Builder
	for _, name := range f.names {
		for _, v := range f.values[name] {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(v)
		}
	}
	return b.String()
}

// Meta holds the request metadata attached to a submission.
type Meta struct {
	RemoteIP      string
	UserAgent     string
	Route         string
	Headers       map[string]string
	Authenticated bool
	Roles         []string
	IntegrationID string
	FormID        string
}

// SubmissionContext is the immutable per-request snapshot consumed by
// the pipeline. It is constructed once per inbound submission and
// read-only afterward.
type SubmissionContext struct {
	fields *FieldMap

	remoteIP      string
	userAgent     string
	route         string
	headers       map[string]string
	authenticated bool
	roles         []string
	integrationID string
	formID        string
}

// NewContext builds a SubmissionContext from metadata and parsed fields.
// Headers outside the allow-list are discarded.
func NewContext(meta Meta, fields *FieldMap) *SubmissionContext {
	if fields == nil {
		fields = NewFieldMap()
	}

	headers := make(map[string]string, len(meta.Headers))
	for name, value := range meta.Headers {
		canonical := canonicalHeader(name)
		if _, ok := allowedHeaders[canonical]; ok {
			headers[canonical] = value
		}
	}

	roles := make([]string, len(meta.Roles))
	copy(roles, meta.Roles)

	return &SubmissionContext{
		fields:        fields,
		remoteIP:      meta.RemoteIP,
		userAgent:     meta.UserAgent,
		route:         meta.Route,
		headers:       headers,
		authenticated: meta.Authenticated,
		roles:         roles,
		integrationID: meta.IntegrationID,
		formID:        meta.FormID,
	}
}

// Fields returns the canonical field map.
func (c *SubmissionContext) Fields() *FieldMap { return c.fields }

// RemoteIP returns the submitting client's IP address.
func (c *SubmissionContext) RemoteIP() string { return c.remoteIP }

// UserAgent returns the submitting client's User-Agent string.
func (c *SubmissionContext) UserAgent() string { return c.userAgent }

// Route returns the request path the submission arrived on.
func (c *SubmissionContext) Route() string { return c.route }

// Header returns the value of an allow-listed header, or "" if absent.
func (c *SubmissionContext) Header(name string) string {
	return c.headers[canonicalHeader(name)]
}

// Authenticated reports whether the submitter is a logged-in user.
func (c *SubmissionContext) Authenticated() bool { return c.authenticated }

// Roles returns the submitter's role strings, empty if anonymous.
func (c *SubmissionContext) Roles() []string {
	roles := make([]string, len(c.roles))
	copy(roles, c.roles)
	return roles
}

// HasRole reports whether the submitter holds the named role.
func (c *SubmissionContext) HasRole(role string) bool {
	for _, r := range c.roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IntegrationID identifies which form-plugin adapter produced this
// submission. Empty for unattributed submissions.
func (c *SubmissionContext) IntegrationID() string { return c.integrationID }

// FormID identifies the specific form instance, when known.
func (c *SubmissionContext) FormID() string { return c.formID }

func canonicalHeader(name string) string {
	parts := strings.Split(strings.ToLower(name), "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}
