package payload_test

import (
	"testing"

	"github.com/chatwire/conversation-service/internal/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNilPassesThrough(t *testing.T) {
	assert.Nil(t, payload.ToStoredForm(nil))
	assert.Nil(t, payload.FromStoredForm(nil))
}

func TestPlainStringWrapped(t *testing.T) {
	stored := payload.ToStoredForm("just a string")
	require.Equal(t, bson.M{"value": "just a string"}, stored)
	assert.Equal(t, "just a string", payload.FromStoredForm(stored))
}

func TestJSONObjectStringParsed(t *testing.T) {
	stored := payload.ToStoredForm(`{"name":"alice","age":30,"tags":["a","b"]}`)
	m, ok := stored.(bson.M)
	require.True(t, ok)
	assert.Equal(t, "alice", m["name"])
	assert.Equal(t, int32(30), m["age"])

	native := payload.FromStoredForm(stored)
	assert.Equal(t, map[string]any{
		"name": "alice",
		"age":  int64(30),
		"tags": []any{"a", "b"},
	}, native)
}

func TestJSONArrayStringParsed(t *testing.T) {
	stored := payload.ToStoredForm(`[1, 2.5, "x", null, true]`)
	a, ok := stored.(bson.A)
	require.True(t, ok)
	require.Len(t, a, 5)

	assert.Equal(t, []any{int64(1), 2.5, "x", nil, true}, payload.FromStoredForm(stored))
}

func TestInvalidJSONStringFallsBackToWrapper(t *testing.T) {
	// Looks like JSON but is not parseable.
	stored := payload.ToStoredForm(`{"broken": }`)
	assert.Equal(t, bson.M{"value": `{"broken": }`}, stored)
	assert.Equal(t, `{"broken": }`, payload.FromStoredForm(stored))
}

func TestStructuredTreeRoundTrip(t *testing.T) {
	in := map[string]any{
		"n":     int64(3000000000), // above int32 range
		"f":     1.25,
		"b":     false,
		"s":     "text",
		"null":  nil,
		"inner": map[string]any{"list": []any{int64(1), "two"}},
	}
	stored := payload.ToStoredForm(in)
	_, ok := stored.(bson.M)
	require.True(t, ok)

	assert.Equal(t, in, payload.FromStoredForm(stored))
}

func TestTypedObjectSerialized(t *testing.T) {
	type order struct {
		ID    string  `json:"id"`
		Total float64 `json:"total"`
	}
	stored := payload.ToStoredForm(order{ID: "o-1", Total: 9.5})
	m, ok := stored.(bson.M)
	require.True(t, ok)
	assert.Equal(t, "o-1", m["id"])

	native := payload.FromStoredForm(stored)
	assert.Equal(t, map[string]any{"id": "o-1", "total": 9.5}, native)
}

func TestWrappedJSONStringUnwrapsParsed(t *testing.T) {
	// A wrapper whose value field holds JSON text: unwrap re-parses it.
	stored := bson.M{"value": `{"k": 7}`}
	assert.Equal(t, map[string]any{"k": int64(7)}, payload.FromStoredForm(stored))
}

func TestWrapperWithExtraFieldsNotUnwrapped(t *testing.T) {
	stored := bson.M{"value": "x", "other": "y"}
	assert.Equal(t, map[string]any{"value": "x", "other": "y"}, payload.FromStoredForm(stored))
}

func TestStoredFormPassesThrough(t *testing.T) {
	doc := bson.M{"already": "stored"}
	assert.Equal(t, doc, payload.ToStoredForm(doc))
}

func TestBSONDDecodesToMap(t *testing.T) {
	// The driver decodes interface{} fields as bson.D.
	doc := bson.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: bson.A{"x"}}}
	assert.Equal(t, map[string]any{"a": int64(1), "b": []any{"x"}}, payload.FromStoredForm(doc))
}
