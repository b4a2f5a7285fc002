package stix

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAndObjects(t *testing.T) {
	doc, err := Decode([]byte(`{
		"type": "bundle",
		"id": "bundle--1",
		"objects": [
			{"type": "indicator", "id": "indicator--a", "confidence": 85},
			{"type": "x-custom-thing", "id": "x-custom-thing--b"}
		]
	}`))
	require.NoError(t, err)

	objs, err := doc.Objects()
	require.NoError(t, err)
	require.Len(t, objs, 2)

	assert.Equal(t, "indicator--a", objs[0].ID())
	assert.Equal(t, KindIndicator, objs[0].Kind())
	assert.Equal(t, json.Number("85"), objs[0]["confidence"])
	assert.Equal(t, KindCustom, objs[1].Kind())
}

func TestObjectsMissing(t *testing.T) {
	doc, err := Decode([]byte(`{"type": "bundle"}`))
	require.NoError(t, err)

	_, err = doc.Objects()
	assert.True(t, errors.Is(err, ErrNoObjects))

	doc, err = Decode([]byte(`{"objects": {"not": "a list"}}`))
	require.NoError(t, err)
	_, err = doc.Objects()
	assert.True(t, errors.Is(err, ErrNoObjects))
}

func TestObjectsRejectsScalars(t *testing.T) {
	doc, err := Decode([]byte(`{"objects": [{"id": "a--1"}, 3]}`))
	require.NoError(t, err)

	_, err = doc.Objects()
	assert.True(t, errors.Is(err, ErrNotObject))
}

func TestDecodeRejectsNonObject(t *testing.T) {
	_, err := Decode([]byte(`[1, 2]`))
	assert.True(t, errors.Is(err, ErrNotObject))

	_, err = Decode([]byte(`{"broken": `))
	assert.Error(t, err)
}

func TestEncodePreservesNumbersAndIndent(t *testing.T) {
	doc, err := Decode([]byte(`{"objects":[{"id":"x--1","n":1.50,"u":"a<b>&c"}]}`))
	require.NoError(t, err)

	out, err := doc.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n  \"objects\": [")
	assert.Contains(t, string(out), `"n": 1.50`)
	assert.Contains(t, string(out), `"u": "a<b>&c"`)
}

func TestSetObjectsReplacesElements(t *testing.T) {
	doc, err := Decode([]byte(`{"objects":[{"id":"a--1"}]}`))
	require.NoError(t, err)

	objs, err := doc.Objects()
	require.NoError(t, err)
	objs[0] = Object{"id": "b--2"}
	doc.SetObjects(objs)

	again, err := doc.Objects()
	require.NoError(t, err)
	assert.Equal(t, "b--2", again[0].ID())
}

func TestIDPrefix(t *testing.T) {
	assert.Equal(t, "indicator", IDPrefix("indicator--1234"))
	assert.Equal(t, "attack-pattern", IDPrefix("attack-pattern--a--b"))
	assert.Equal(t, "noprefix", IDPrefix("noprefix"))
}

func TestKinds(t *testing.T) {
	assert.Len(t, OfficialKinds, 38)
	for _, k := range OfficialKinds {
		assert.True(t, k.Official(), string(k))
		assert.Equal(t, k, KindOf(string(k)))
	}
	assert.Equal(t, FamilySRO, KindOf("sighting").Family())
	assert.False(t, KindOf("sighting").Official())
	assert.Equal(t, KindUnknown, KindOf("nonsense"))
	assert.Equal(t, FamilyMeta, KindMarkingDefinition.Family())
}
