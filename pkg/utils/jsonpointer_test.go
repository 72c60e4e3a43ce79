/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: jsonpointer_test.go
Description: Unit tests for JSON pointer resolution and the canonical
serialization helpers behind variant deduplication keys.
*/

package utils_test

import (
	"encoding/json"
	"testing"

	"github.com/kleascm/akaylee-explorer/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) interface{} {
	t.Helper()
	var doc interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestResolvePointer(t *testing.T) {
	doc := decode(t, `{"data": [{"id": "u1"}, {"id": "u2"}], "meta": {"a/b": 1, "c~d": 2}}`)

	value, found := utils.ResolvePointer(doc, "/data/0/id")
	require.True(t, found)
	assert.Equal(t, "u1", value)

	value, found = utils.ResolvePointer(doc, "/data/1/id")
	require.True(t, found)
	assert.Equal(t, "u2", value)

	// Escaped tokens per RFC 6901.
	value, found = utils.ResolvePointer(doc, "/meta/a~1b")
	require.True(t, found)
	assert.Equal(t, float64(1), value)

	value, found = utils.ResolvePointer(doc, "/meta/c~0d")
	require.True(t, found)
	assert.Equal(t, float64(2), value)
}

func TestResolvePointerRoot(t *testing.T) {
	doc := decode(t, `{"id": "u1"}`)
	value, found := utils.ResolvePointer(doc, "")
	require.True(t, found)
	assert.Equal(t, doc, value)

	value, found = utils.ResolvePointer(doc, "/")
	require.True(t, found)
	assert.Equal(t, doc, value)
}

func TestResolvePointerMisses(t *testing.T) {
	doc := decode(t, `{"data": [], "id": "u1"}`)

	// Index into an empty array.
	_, found := utils.ResolvePointer(doc, "/data/0")
	assert.False(t, found)

	// Missing key.
	_, found = utils.ResolvePointer(doc, "/absent")
	assert.False(t, found)

	// Scalar in the way.
	_, found = utils.ResolvePointer(doc, "/id/deeper")
	assert.False(t, found)

	// Non-numeric array index.
	_, found = utils.ResolvePointer(doc, "/data/first")
	assert.False(t, found)

	// Negative index.
	_, found = utils.ResolvePointer(doc, "/data/-1")
	assert.False(t, found)
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2}
	b := map[string]interface{}{"a": 2, "b": 1}
	assert.Equal(t, utils.CanonicalJSON(a), utils.CanonicalJSON(b))
	assert.Equal(t, `{"a":2,"b":1}`, utils.CanonicalJSON(a))
}

func TestValueKeyIsTypeAware(t *testing.T) {
	assert.NotEqual(t, utils.ValueKey("1"), utils.ValueKey(1))
	assert.NotEqual(t, utils.ValueKey(float64(1)), utils.ValueKey("1"))
	assert.Equal(t, utils.ValueKey("u1"), utils.ValueKey("u1"))
}
