// Package diagnostics projects vulnerabilities onto workspace files as
// editor diagnostics: one detail fetch + location resolution pipeline per
// finding, fanned out concurrently, grouped per file URI.
package diagnostics

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
	"github.com/xkilldash9x/opslens-cli/internal/location"
)

// Source is the diagnostic source tag shown by editors.
const Source = "opslens"

// configKeywords classify a finding as a configuration issue when any of
// them appears in its scan type or originating system. The scanner names
// are the common IaC/compliance tools.
var configKeywords = []string{
	"config",
	"configuration",
	"infra",
	"infrastructure",
	"compliance",
	"checkov",
	"tfsec",
	"terrascan",
	"kics",
}

// Projector builds diagnostics from vulnerabilities.
type Projector struct {
	details     schemas.VulnerabilityDetailSource
	files       schemas.WorkspaceFS
	concurrency int
	log         *zap.Logger
}

// NewProjector creates a projector. Concurrency bounds the parallel detail
// fetches; values below 1 are treated as 1.
func NewProjector(details schemas.VulnerabilityDetailSource, files schemas.WorkspaceFS, concurrency int, logger *zap.Logger) *Projector {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		details:     details,
		files:       files,
		concurrency: concurrency,
		log:         logger.Named("diagnostics"),
	}
}

// BuildDiagnostics produces one diagnostic per placeable open vulnerability,
// grouped by file URI. Findings whose status is closed or resolved are
// skipped; per-finding pipelines are independent and any one failing
// degrades to "no diagnostic" without affecting the rest. Results are merged
// only after every pipeline has returned.
func (p *Projector) BuildDiagnostics(ctx context.Context, vulns []schemas.Vulnerability) map[string][]schemas.Diagnostic {
	results := make([]*schemas.Diagnostic, len(vulns))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range vulns {
		v := vulns[i]
		if isClosed(v.Status) {
			continue
		}
		g.Go(func() error {
			results[i] = p.project(ctx, v)
			return nil
		})
	}
	// Pipelines never return errors; Wait is purely a join.
	_ = g.Wait()

	grouped := make(map[string][]schemas.Diagnostic)
	for _, d := range results {
		if d != nil {
			grouped[d.FileURI] = append(grouped[d.FileURI], *d)
		}
	}
	return grouped
}

// project runs the full pipeline for one finding: detail fetch, location
// parse, workspace placement, fallbacks, classification.
func (p *Projector) project(ctx context.Context, v schemas.Vulnerability) *schemas.Diagnostic {
	details, err := p.details.FetchVulnerabilityDetails(ctx, v.ID)
	if err != nil {
		p.log.Debug("Detail fetch failed", zap.String("vulnerability_id", v.ID), zap.Error(err))
		details = nil
	}

	severity := v.Severity
	if details != nil && details.Severity != "" {
		severity = details.Severity
	}

	fileURI, rng, placed := p.place(details)
	if !placed {
		switch {
		case details.HasPackageData():
			fileURI = p.files.ResolvePackageManifest(details.PackageIdentifier)
		case severity == schemas.SeverityCritical || severity == schemas.SeverityHigh || severity == schemas.SeverityMedium:
			fileURI = schemas.AmbiguousLocationURI
		default:
			// Low/unknown severity with no location is not worth a
			// placeholder diagnostic.
			p.log.Debug("Dropping unplaceable low-severity finding",
				zap.String("vulnerability_id", v.ID),
				zap.String("severity", string(severity)),
			)
			return nil
		}
		rng = schemas.Range{Start: schemas.Position{}, End: schemas.Position{Character: 1}}
	}

	return &schemas.Diagnostic{
		FileURI:  fileURI,
		Range:    rng,
		Message:  buildMessage(v, details),
		Severity: mapSeverity(severity),
		Source:   Source,
		Code:     v.ID,
	}
}

// place resolves the finding's parsed location to a workspace file. A
// parseable location whose file cannot be found (even fuzzily) counts as
// unplaced; the caller decides the fallback.
func (p *Projector) place(details *schemas.VulnerabilityDetails) (string, schemas.Range, bool) {
	if details == nil {
		return "", schemas.Range{}, false
	}
	loc, ok := location.Parse(details.Location)
	if !ok {
		return "", schemas.Range{}, false
	}
	uri, found := p.files.ResolveFileURI(loc.FilePath)
	if !found {
		return "", schemas.Range{}, false
	}
	return uri, rangeFor(loc), true
}

// rangeFor builds a one-character range at the parsed position, or at
// document start for file-level findings.
func rangeFor(loc schemas.ParsedLocation) schemas.Range {
	var line, col int
	if loc.Line != nil {
		line = *loc.Line
	}
	if loc.Column != nil {
		col = *loc.Column
	}
	return schemas.Range{
		Start: schemas.Position{Line: line, Character: col},
		End:   schemas.Position{Line: line, Character: col + 1},
	}
}

// buildMessage assembles the diagnostic text: optional "[Config] " prefix,
// the title, and the detail description after a blank line.
func buildMessage(v schemas.Vulnerability, details *schemas.VulnerabilityDetails) string {
	var b strings.Builder
	if isConfigIssue(details) {
		b.WriteString("[Config] ")
	}
	b.WriteString(v.Title)
	if details != nil && details.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(details.Description)
	}
	return b.String()
}

// isConfigIssue reports whether the finding came from a configuration or
// infrastructure scanner.
func isConfigIssue(details *schemas.VulnerabilityDetails) bool {
	if details == nil {
		return false
	}
	haystack := strings.ToLower(details.ScanType + " " + details.OriginatingSystem)
	for _, kw := range configKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// isClosed reports whether a finding status excludes it from diagnostics.
func isClosed(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "closed", "resolved":
		return true
	}
	return false
}

// mapSeverity converts a finding severity to the editor scale. Unrecognized
// severities default to Warning; a fully absent severity maps to
// Information.
func mapSeverity(s schemas.Severity) schemas.DiagnosticSeverity {
	switch strings.ToLower(string(s)) {
	case "critical", "high":
		return schemas.DiagnosticError
	case "medium":
		return schemas.DiagnosticWarning
	case "low", "info", "informational":
		return schemas.DiagnosticInformation
	case "":
		return schemas.DiagnosticInformation
	default:
		return schemas.DiagnosticWarning
	}
}
