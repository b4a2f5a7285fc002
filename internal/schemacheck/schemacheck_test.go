package schemacheck

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckValid(t *testing.T) {
	err := Check("mem://ok.json", []byte(`{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {"id": {"type": "string"}},
		"required": ["id"]
	}`))
	assert.NoError(t, err)
}

func TestCheckDraft7(t *testing.T) {
	err := Check("mem://d7.json", []byte(`{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"definitions": {"a": {"type": "string"}},
		"$ref": "#/definitions/a"
	}`))
	assert.NoError(t, err)
}

func TestCheckInvalid(t *testing.T) {
	err := Check("mem://bad.json", []byte(`{"type": 12}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema is invalid")

	var se *jsonschema.SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestCheckNotJSON(t *testing.T) {
	err := Check("mem://junk.json", []byte(`{"type": `))
	assert.Error(t, err)
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"type": "string", "minLength": 1}`), 0644))
	assert.NoError(t, CheckFile(good))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"minLength": -1}`), 0644))
	assert.Error(t, CheckFile(bad))

	assert.Error(t, CheckFile(filepath.Join(dir, "missing.json")))
}
