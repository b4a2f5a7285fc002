package fixup

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/stixkit/internal/stix"
)

func objectsFrom(t *testing.T, raw string) []stix.Object {
	t.Helper()
	doc, err := stix.Decode([]byte(raw))
	require.NoError(t, err)
	objs, err := doc.Objects()
	require.NoError(t, err)
	return objs
}

func TestReplaceTLPClear(t *testing.T) {
	objs := objectsFrom(t, `{"objects": [
		{"type": "marking-definition", "id": "marking-definition--94868c89-83c2-464b-929b-a1a8aa3c8487", "name": "TLP:CLEAR"},
		{"type": "marking-definition", "id": "marking-definition--f88d31f6-486f-44da-b317-01333bde0b82", "name": "TLP:AMBER"},
		{"type": "indicator", "id": "indicator--1", "name": "TLP:CLEAR"}
	]}`)

	n, err := ReplaceTLPClear(objs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, TLPWhite(), objs[0])
	assert.Equal(t, "TLP:AMBER", objs[1].String("name"))
	assert.Equal(t, "TLP:CLEAR", objs[2].String("name"))
}

func TestReplaceTLPClearRetargetsRefs(t *testing.T) {
	objs := objectsFrom(t, `{"objects": [
		{"type": "indicator", "id": "indicator--1",
		 "object_marking_refs": ["marking-definition--clear", "marking-definition--amber"]},
		{"type": "malware", "id": "malware--1",
		 "object_marking_refs": ["marking-definition--clear", "`+TLPWhiteID+`"],
		 "granular_markings": [{"marking_ref": "marking-definition--clear", "selectors": ["name"]}]},
		{"type": "marking-definition", "id": "marking-definition--clear", "name": "TLP:CLEAR"}
	]}`)

	n, err := ReplaceTLPClear(objs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []any{TLPWhiteID, "marking-definition--amber"}, objs[0]["object_marking_refs"])
	assert.Equal(t, []any{TLPWhiteID}, objs[1]["object_marking_refs"])
	assert.Equal(t, TLPWhiteID, objs[1].Maps("granular_markings")[0]["marking_ref"])

	raw, err := json.Marshal(objs)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "marking-definition--clear")
}

func TestTLPWhiteIsACopy(t *testing.T) {
	a := TLPWhite()
	a["definition"].(map[string]any)["tlp"] = "changed"
	assert.Equal(t, "white", TLPWhite()["definition"].(map[string]any)["tlp"])
}

func TestRepairRelationshipTimesEqual(t *testing.T) {
	objs := objectsFrom(t, `{"objects": [
		{"type": "relationship", "id": "relationship--1",
		 "start_time": "2021-01-01T00:00:00.000Z", "stop_time": "2021-01-01T00:00:00.000Z"}
	]}`)

	n, err := RepairRelationshipTimes(objs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "2021-01-01T00:00:00.001Z", objs[0]["stop_time"])
}

func TestRepairRelationshipTimesBackwards(t *testing.T) {
	objs := objectsFrom(t, `{"objects": [
		{"type": "relationship", "id": "relationship--1",
		 "start_time": "2022-06-01T12:30:00+02:00", "stop_time": "2020-01-01T00:00:00Z"},
		{"type": "relationship", "id": "relationship--2",
		 "start_time": "2020-01-01T00:00:00Z", "stop_time": "2020-01-02T00:00:00Z"},
		{"type": "relationship", "id": "relationship--3", "start_time": "2020-01-01T00:00:00Z"},
		{"type": "sighting", "id": "sighting--1",
		 "start_time": "2021-01-01T00:00:00Z", "stop_time": "2020-01-01T00:00:00Z"}
	]}`)

	n, err := RepairRelationshipTimes(objs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "2022-06-01T10:30:00.001Z", objs[0]["stop_time"])
	assert.Equal(t, "2020-01-02T00:00:00Z", objs[1]["stop_time"])
	assert.NotContains(t, objs[2], "stop_time")
	assert.Equal(t, "2020-01-01T00:00:00Z", objs[3]["stop_time"])
}

func TestRepairRelationshipTimesStrictlyAfter(t *testing.T) {
	objs := objectsFrom(t, `{"objects": [
		{"type": "relationship", "id": "relationship--1",
		 "start_time": "2021-03-04T05:06:07.123456Z", "stop_time": "2021-03-04T05:06:07.123Z"}
	]}`)

	_, err := RepairRelationshipTimes(objs)
	require.NoError(t, err)

	start, err := time.Parse(time.RFC3339Nano, objs[0].String("start_time"))
	require.NoError(t, err)
	stop, err := time.Parse(time.RFC3339Nano, objs[0].String("stop_time"))
	require.NoError(t, err)
	assert.True(t, stop.After(start))
	assert.Equal(t, "2021-03-04T05:06:07.124Z", objs[0]["stop_time"])
}

func TestRepairRelationshipTimesBadTimestamp(t *testing.T) {
	objs := objectsFrom(t, `{"objects": [
		{"type": "relationship", "id": "relationship--1",
		 "start_time": "yesterday", "stop_time": "2021-01-01T00:00:00Z"}
	]}`)

	_, err := RepairRelationshipTimes(objs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadTimestamp))
	assert.Contains(t, err.Error(), "relationship--1")

	for _, start := range []string{`5`, `null`, `{"at": "2021-01-01T00:00:00Z"}`} {
		objs := objectsFrom(t, `{"objects": [
			{"type": "relationship", "id": "relationship--2",
			 "start_time": `+start+`, "stop_time": "2021-03-04T05:06:07Z"}
		]}`)

		n, err := RepairRelationshipTimes(objs)
		require.Error(t, err, start)
		assert.ErrorIs(t, err, ErrBadTimestamp)
		assert.Contains(t, err.Error(), "relationship--2")
		assert.Zero(t, n)
		assert.Equal(t, "2021-03-04T05:06:07Z", objs[0]["stop_time"])
	}
}

func TestRepairRelationshipTimesFullPrecision(t *testing.T) {
	objs := objectsFrom(t, `{"objects": [
		{"type": "relationship", "id": "relationship--1",
		 "start_time": "2021-03-04T05:06:07.1231Z", "stop_time": "2021-03-04T05:06:07.1239Z"},
		{"type": "relationship", "id": "relationship--2",
		 "start_time": "2021-03-04T05:06:07", "stop_time": "2021-03-04T05:06:07"}
	]}`)

	n, err := RepairRelationshipTimes(objs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "2021-03-04T05:06:07.1239Z", objs[0]["stop_time"])
	assert.Equal(t, "2021-03-04T05:06:07.001Z", objs[1]["stop_time"])
}

func TestNormalizeCVEReferences(t *testing.T) {
	objs := objectsFrom(t, `{"objects": [
		{"type": "vulnerability", "id": "vulnerability--1", "external_references": [
			{"external_id": "cve-2021-1234", "source_name": "nvd"},
			{"external_id": "CVE-2021-123", "source_name": "nvd"},
			{"external_id": "CVE-2019-0708", "source_name": "cve"},
			{"source_name": "mitre"},
			"not-a-mapping"
		]},
		{"type": "indicator", "id": "indicator--1", "external_references": [
			{"external_id": "CVE-2021-44228", "source_name": "nvd"}
		]}
	]}`)

	n, err := NormalizeCVEReferences(objs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	refs := objs[0].Maps("external_references")
	assert.Equal(t, "cve", refs[0]["source_name"])
	assert.Equal(t, "nvd", refs[1]["source_name"])
	assert.Equal(t, "cve", refs[2]["source_name"])
	assert.Equal(t, "nvd", objs[1].Maps("external_references")[0]["source_name"])
}

func TestFixupsIdempotent(t *testing.T) {
	raw := `{"objects": [
		{"type": "marking-definition", "id": "marking-definition--x", "name": "TLP:CLEAR"},
		{"type": "relationship", "id": "relationship--1",
		 "start_time": "2021-01-01T00:00:00.000Z", "stop_time": "2020-01-01T00:00:00.000Z"},
		{"type": "vulnerability", "id": "vulnerability--1", "external_references": [
			{"external_id": "CVE-2021-1234", "source_name": "nvd"}
		]}
	]}`
	once := objectsFrom(t, raw)
	for _, f := range Default(nil)[:3] {
		_, err := f.Apply(once)
		require.NoError(t, err)
	}
	snapshot, err := json.Marshal(once)
	require.NoError(t, err)

	for _, f := range Default(nil)[:3] {
		n, err := f.Apply(once)
		require.NoError(t, err)
		assert.Zero(t, n, f.Name)
	}
	twice, err := json.Marshal(once)
	require.NoError(t, err)
	assert.JSONEq(t, string(snapshot), string(twice))
}

func TestDefaultOrder(t *testing.T) {
	var names []string
	for _, f := range Default([]string{"x_opencti_id"}) {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"tlp-marking", "relationship-times", "cve-references", "url-sanitize", "remove-fields"}, names)
	assert.Len(t, Default(nil), 4)
}

func TestRemoveFields(t *testing.T) {
	objs := objectsFrom(t, `{"objects": [
		{"type": "malware", "id": "malware--1", "x_opencti_id": "a", "x_mitre_platforms": ["windows"]},
		{"type": "tool", "id": "tool--1"}
	]}`)

	n := RemoveFields(objs, []string{"x_opencti_id", "x_mitre_platforms", "x_opencti_type"})
	assert.Equal(t, 2, n)
	assert.Equal(t, stix.Object{"type": "malware", "id": "malware--1"}, objs[0])
}
