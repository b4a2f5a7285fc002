package stix

import "strings"

// Kind is the closed set of STIX 2.1 object types this toolkit knows about.
type Kind string

const (
	// SDOs
	KindAttackPattern   Kind = "attack-pattern"
	KindCampaign        Kind = "campaign"
	KindCourseOfAction  Kind = "course-of-action"
	KindGrouping        Kind = "grouping"
	KindIdentity        Kind = "identity"
	KindIndicator       Kind = "indicator"
	KindInfrastructure  Kind = "infrastructure"
	KindIntrusionSet    Kind = "intrusion-set"
	KindLocation        Kind = "location"
	KindMalware         Kind = "malware"
	KindMalwareAnalysis Kind = "malware-analysis"
	KindNote            Kind = "note"
	KindObservedData    Kind = "observed-data"
	KindOpinion         Kind = "opinion"
	KindReport          Kind = "report"
	KindThreatActor     Kind = "threat-actor"
	KindTool            Kind = "tool"
	KindVulnerability   Kind = "vulnerability"

	// SCOs
	KindArtifact           Kind = "artifact"
	KindAutonomousSystem   Kind = "autonomous-system"
	KindDirectory          Kind = "directory"
	KindDomainName         Kind = "domain-name"
	KindEmailAddr          Kind = "email-addr"
	KindEmailMessage       Kind = "email-message"
	KindFile               Kind = "file"
	KindIPv4Addr           Kind = "ipv4-addr"
	KindIPv6Addr           Kind = "ipv6-addr"
	KindMACAddr            Kind = "mac-addr"
	KindMutex              Kind = "mutex"
	KindNetworkTraffic     Kind = "network-traffic"
	KindProcess            Kind = "process"
	KindSoftware           Kind = "software"
	KindURL                Kind = "url"
	KindUserAccount        Kind = "user-account"
	KindWindowsRegistryKey Kind = "windows-registry-key"
	KindX509Certificate    Kind = "x509-certificate"

	// SROs
	KindRelationship Kind = "relationship"
	KindSighting     Kind = "sighting"

	// Meta objects
	KindMarkingDefinition Kind = "marking-definition"
	KindLanguageContent   Kind = "language-content"
	KindExtensionDef      Kind = "extension-definition"

	KindBundle  Kind = "bundle"
	KindCustom  Kind = "custom"
	KindUnknown Kind = "unknown"
)

// Family groups kinds into the structural STIX object families.
type Family string

const (
	FamilySDO   Family = "sdo"
	FamilySCO   Family = "sco"
	FamilySRO   Family = "sro"
	FamilyMeta  Family = "meta"
	FamilyOther Family = "other"
)

var knownKinds = map[string]Kind{}

func init() {
	for _, k := range append(append([]Kind{}, OfficialKinds...),
		KindSighting, KindLanguageContent, KindExtensionDef, KindBundle) {
		knownKinds[string(k)] = k
	}
}

// OfficialKinds lists the standard types reported on by the statistics command:
// SDOs, SCOs, the relationship SRO and marking-definition.
var OfficialKinds = []Kind{
	KindAttackPattern, KindCampaign, KindCourseOfAction, KindGrouping, KindIdentity,
	KindIndicator, KindInfrastructure, KindIntrusionSet, KindLocation, KindMalware,
	KindMalwareAnalysis, KindNote, KindObservedData, KindOpinion, KindReport,
	KindThreatActor, KindTool, KindVulnerability,

	KindArtifact, KindAutonomousSystem, KindDirectory, KindDomainName, KindEmailAddr,
	KindEmailMessage, KindFile, KindIPv4Addr, KindIPv6Addr, KindMACAddr, KindMutex,
	KindNetworkTraffic, KindProcess, KindSoftware, KindURL, KindUserAccount,
	KindWindowsRegistryKey, KindX509Certificate,

	KindRelationship,
	KindMarkingDefinition,
}

// KindOf maps a raw "type" value to its Kind. Types starting with "x-" are
// custom; anything else not in the table is KindUnknown.
func KindOf(typ string) Kind {
	if k, ok := knownKinds[typ]; ok {
		return k
	}
	if strings.HasPrefix(typ, "x-") {
		return KindCustom
	}
	return KindUnknown
}

// Family returns the structural family of k.
func (k Kind) Family() Family {
	switch k {
	case KindAttackPattern, KindCampaign, KindCourseOfAction, KindGrouping, KindIdentity,
		KindIndicator, KindInfrastructure, KindIntrusionSet, KindLocation, KindMalware,
		KindMalwareAnalysis, KindNote, KindObservedData, KindOpinion, KindReport,
		KindThreatActor, KindTool, KindVulnerability:
		return FamilySDO
	case KindArtifact, KindAutonomousSystem, KindDirectory, KindDomainName, KindEmailAddr,
		KindEmailMessage, KindFile, KindIPv4Addr, KindIPv6Addr, KindMACAddr, KindMutex,
		KindNetworkTraffic, KindProcess, KindSoftware, KindURL, KindUserAccount,
		KindWindowsRegistryKey, KindX509Certificate:
		return FamilySCO
	case KindRelationship, KindSighting:
		return FamilySRO
	case KindMarkingDefinition, KindLanguageContent, KindExtensionDef:
		return FamilyMeta
	default:
		return FamilyOther
	}
}

// Official reports whether k is one of OfficialKinds.
func (k Kind) Official() bool {
	switch k.Family() {
	case FamilySDO, FamilySCO:
		return true
	}
	return k == KindRelationship || k == KindMarkingDefinition
}
