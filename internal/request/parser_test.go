// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatParser(t *testing.T) {
	fields, err := FlatParser{}.Parse([]byte(`{
		"name": "Ada",
		"tags": ["one", "two"],
		"count": 3,
		"agree": true
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Ada", fields.First("name"))
	assert.Equal(t, []string{"one", "two"}, fields.Values("tags"))
	assert.Equal(t, "3", fields.First("count"))
	assert.Equal(t, "true", fields.First("agree"))
}

func TestFlatParserRejectsNonObject(t *testing.T) {
	_, err := FlatParser{}.Parse([]byte(`["not", "an", "object"]`))
	assert.Error(t, err)
}

func TestURLEncodedParser(t *testing.T) {
	fields, err := URLEncodedParser{}.Parse([]byte(`name=Ada+Lovelace&tag=a&tag=b&empty=`))
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", fields.First("name"))
	assert.Equal(t, []string{"a", "b"}, fields.Values("tag"))
	assert.True(t, fields.Has("empty"))
	assert.Equal(t, "", fields.First("empty"))
}

func TestURLEncodedParserRejectsBadEncoding(t *testing.T) {
	_, err := URLEncodedParser{}.Parse([]byte(`a=%zz`))
	assert.Error(t, err)
}

func TestJSONParserFlattensNestedKeys(t *testing.T) {
	fields, err := JSONParser{}.Parse([]byte(`{
		"author": {"email": "ada@example.com", "name": "Ada"},
		"body": "hello",
		"meta": {"page": {"id": 7}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", fields.First("author.email"))
	assert.Equal(t, "Ada", fields.First("author.name"))
	assert.Equal(t, "hello", fields.First("body"))
	assert.Equal(t, "7", fields.First("meta.page.id"))
}

func TestParserByName(t *testing.T) {
	for _, name := range []string{"flat", "urlencoded", "json", ""} {
		p, err := ParserByName(name)
		require.NoError(t, err, name)
		require.NotNil(t, p)
	}

	_, err := ParserByName("xml")
	assert.Error(t, err)
}

func TestRegistryFallsBackToFlat(t *testing.T) {
	r := NewRegistry()
	r.Register("shopfront", URLEncodedParser{})

	assert.Equal(t, "urlencoded", r.ParserFor("shopfront").Name())
	assert.Equal(t, "flat", r.ParserFor("unknown").Name())

	fields, err := r.Parse("unknown", []byte(`{"a":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, "b", fields.First("a"))
}

func TestFieldMapOrderAndJoinedText(t *testing.T) {
	f := NewFieldMap()
	f.Add("first", "1")
	f.Add("second", "2a")
	f.Add("second", "2b")
	f.Add("third", "3")

	assert.Equal(t, []string{"first", "second", "third"}, f.Names())
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, "1\n2a\n2b\n3", f.JoinedText())
}
