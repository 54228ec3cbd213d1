package schemas

import "encoding/json"

// -- Insight Schemas --

// Severity represents the severity level of a vulnerability or incident.
// The values are lowercase to align with the graph API's enums.
type Severity string

// Constants defining the standard severity levels.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// EntitySummary is the flattened view of a resolved entity carried in an
// InsightBundle. Fields other than Name are optional; a summary synthesized
// from a bare relationship target may only carry a name and slug.
type EntitySummary struct {
	ID          string `json:"id,omitempty"`
	Slug        string `json:"slug,omitempty"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Dependency is a component the resolved component depends on.
type Dependency struct {
	ID          string `json:"id"`
	ShortID     string `json:"shortId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Vulnerability is the summary form of a finding returned by entity-keyed
// searches. Location and classification data live in VulnerabilityDetails
// and are fetched separately per finding.
type Vulnerability struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// VulnerabilityDetails carries the per-finding payload needed to place a
// diagnostic. Location is kept raw: every scanner integration reports a
// different shape and the normalizer owns the probing.
type VulnerabilityDetails struct {
	Location           json.RawMessage `json:"location,omitempty"`
	Severity           Severity        `json:"severity,omitempty"`
	ScanType           string          `json:"scanType,omitempty"`
	OriginatingSystem  string          `json:"originatingSystem,omitempty"`
	Description        string          `json:"description,omitempty"`
	PackageData        json.RawMessage `json:"packageData,omitempty"`
	PackageIdentifier  string          `json:"packageIdentifier,omitempty"`
	RecommendedVersion string          `json:"recommendedVersion,omitempty"`
}

// HasPackageData reports whether the finding carries package identity data,
// which makes it eligible for manifest-file placement.
func (d *VulnerabilityDetails) HasPackageData() bool {
	if d == nil {
		return false
	}
	return len(d.PackageData) > 0 || d.PackageIdentifier != "" || d.RecommendedVersion != ""
}

// Incident is an operational incident associated with an application or
// component.
type Incident struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// InsightBundle is the aggregate output of one insight fetch: the resolved
// entity summaries plus their dependencies, vulnerabilities and incidents.
// Each collection is truncated to the configured maximum item count in
// source-API insertion order.
type InsightBundle struct {
	Application     *EntitySummary  `json:"application,omitempty"`
	Component       *EntitySummary  `json:"component,omitempty"`
	Repository      *EntitySummary  `json:"repository,omitempty"`
	Dependencies    []Dependency    `json:"dependencies"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Incidents       []Incident      `json:"incidents"`
}
