package fixup

import "github.com/Ashfaaq98/stixkit/internal/stix"

// TLPWhiteID is the identifier of the canonical TLP:WHITE marking definition.
const TLPWhiteID = "marking-definition--613f2e26-407d-48c7-9eca-b8e91df99dc9"

// TLPWhite returns a fresh copy of the canonical TLP:WHITE marking definition.
func TLPWhite() stix.Object {
	return stix.Object{
		"type":            "marking-definition",
		"spec_version":    "2.1",
		"id":              TLPWhiteID,
		"created":         "2017-01-20T00:00:00.000Z",
		"definition_type": "tlp",
		"name":            "TLP:WHITE",
		"definition": map[string]any{
			"tlp": "white",
		},
	}
}

// ReplaceTLPClear swaps every TLP:CLEAR marking definition for TLP:WHITE and
// points object_marking_refs and granular marking_ref values at it.
func ReplaceTLPClear(objects []stix.Object) (int, error) {
	replaced := 0
	old := make(map[string]bool)
	for i, obj := range objects {
		switch obj.Kind() {
		case stix.KindMarkingDefinition:
			if obj.String("name") == "TLP:CLEAR" {
				if id := obj.ID(); id != "" && id != TLPWhiteID {
					old[id] = true
				}
				objects[i] = TLPWhite()
				replaced++
			}
		}
	}
	if len(old) == 0 {
		return replaced, nil
	}

	for _, obj := range objects {
		if refs, ok := obj["object_marking_refs"].([]any); ok {
			obj["object_marking_refs"] = retargetRefs(refs, old)
		}
		for _, gm := range obj.Maps("granular_markings") {
			if ref, _ := gm["marking_ref"].(string); old[ref] {
				gm["marking_ref"] = TLPWhiteID
			}
		}
	}
	return replaced, nil
}

// retargetRefs rewrites old ids to TLPWhiteID, dropping the duplicates that
// arise when a list already carried TLP:WHITE.
func retargetRefs(refs []any, old map[string]bool) []any {
	out := make([]any, 0, len(refs))
	seenWhite := false
	for _, r := range refs {
		s, _ := r.(string)
		if old[s] {
			s, r = TLPWhiteID, TLPWhiteID
		}
		if s == TLPWhiteID {
			if seenWhite {
				continue
			}
			seenWhite = true
		}
		out = append(out, r)
	}
	return out
}
