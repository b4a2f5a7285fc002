package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write(t, dir, "a.json", `{"objects": [
		{"type": "indicator", "id": "indicator--1"},
		{"type": "indicator", "id": "indicator--2"},
		{"type": "relationship", "id": "relationship--3"},
		{"type": "x-opencti-thing", "id": "x-opencti-thing--4"}
	]}`)
	write(t, dir, "B.JSON", `{"objects": [
		{"type": "malware", "id": "malware--1"},
		{"id": "nothing--2"},
		{"type": "indicator", "id": "indicator--3"}
	]}`)
	write(t, dir, "broken.json", `{"objects": [`)
	write(t, dir, "empty.json", `{"type": "bundle"}`)
	write(t, dir, "notes.txt", `{"objects": [{"type": "tool"}]}`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0755))
	return dir
}

func TestCollect(t *testing.T) {
	dir := fixtureDir(t)

	rep, err := Collect(context.Background(), dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Files)
	assert.Equal(t, []TypeCount{
		{Type: "indicator", Count: 3},
		{Type: "malware", Count: 1},
		{Type: "relationship", Count: 1},
		{Type: "unknown", Count: 1},
	}, rep.Totals)

	assert.Equal(t, 38, rep.OfficialTotal)
	assert.Equal(t, 3, rep.OfficialUsed)
	assert.Len(t, rep.Unused, 35)
	assert.NotContains(t, rep.Unused, "indicator")
	assert.Contains(t, rep.Unused, "marking-definition")

	require.Len(t, rep.Failed, 1)
	assert.Equal(t, "broken.json", rep.Failed[0].Name)

	byName := map[string]FileStats{}
	for _, fs := range rep.PerFile {
		byName[fs.Name] = fs
	}
	assert.Equal(t, []TypeCount{{Type: "indicator", Count: 2}, {Type: "relationship", Count: 1}}, byName["a.json"].Counts)
	assert.Empty(t, byName["empty.json"].Counts)
}

func TestCollectMissingDir(t *testing.T) {
	_, err := Collect(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	rep, err := Collect(context.Background(), fixtureDir(t), nil)
	require.NoError(t, err)

	var text bytes.Buffer
	require.NoError(t, rep.Render(&text, "text"))
	assert.Contains(t, text.String(), "STIX FILE STATISTICS")
	assert.Contains(t, text.String(), "Total files processed: 3")
	assert.Contains(t, text.String(), "  - indicator: 3")
	assert.Contains(t, text.String(), "File: a.json")
	assert.Contains(t, text.String(), "Failed files (1):")
	assert.NotContains(t, text.String(), "x-opencti-thing")

	var js bytes.Buffer
	require.NoError(t, rep.Render(&js, "json"))
	var decoded Report
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, rep.Totals, decoded.Totals)

	var ym bytes.Buffer
	require.NoError(t, rep.Render(&ym, "yaml"))
	var fromYAML Report
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	assert.Equal(t, rep.Files, fromYAML.Files)

	assert.Error(t, rep.Render(&bytes.Buffer{}, "xml"))
}

func TestRenderAllUsed(t *testing.T) {
	rep := &Report{OfficialTotal: 38, OfficialUsed: 38}
	var b bytes.Buffer
	require.NoError(t, rep.Render(&b, ""))
	assert.Contains(t, b.String(), "All 38 official STIX types are used.")
}
