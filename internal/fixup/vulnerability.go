package fixup

import (
	"regexp"

	"github.com/Ashfaaq98/stixkit/internal/stix"
)

var cvePattern = regexp.MustCompile(`(?i)^CVE-\d{4}-\d{4,}$`)

// NormalizeCVEReferences forces source_name "cve" on every vulnerability
// external reference whose external_id is a CVE identifier.
func NormalizeCVEReferences(objects []stix.Object) (int, error) {
	changed := 0
	for _, obj := range objects {
		switch obj.Kind() {
		case stix.KindVulnerability:
			for _, ref := range obj.Maps("external_references") {
				id, _ := ref["external_id"].(string)
				if !cvePattern.MatchString(id) {
					continue
				}
				if ref["source_name"] != "cve" {
					ref["source_name"] = "cve"
					changed++
				}
			}
		}
	}
	return changed, nil
}
