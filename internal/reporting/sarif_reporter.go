package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
	"github.com/xkilldash9x/opslens-cli/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "OpsLens CLI"
	ToolInfoURI  = "https://github.com/xkilldash9x/opslens-cli"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// ruleIDSanitizer replaces characters not safe in SARIF rule IDs. Allowed:
// alphanumerics, underscore and dot; everything else collapses to a hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0
// format. It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the rule map.
	mu sync.Mutex
	// rulesByCode maps a vulnerability code to its registered rule ID.
	rulesByCode map[string]string
}

// NewSARIFReporter creates a reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:      writer,
		logger:      logger.Named("sarif_reporter"),
		log:         log,
		rulesByCode: make(map[string]string),
	}
}

// Write converts the diagnostics map into SARIF results. Files are visited
// in sorted URI order so output is deterministic.
func (r *SARIFReporter) Write(diagnostics map[string][]schemas.Diagnostic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]

	uris := make([]string, 0, len(diagnostics))
	for uri := range diagnostics {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	count := 0
	for _, uri := range uris {
		for _, d := range diagnostics[uri] {
			run.Results = append(run.Results, &sarif.Result{
				RuleID:    r.ensureRule(d),
				Message:   &sarif.Message{Text: pString(d.Message)},
				Level:     mapDiagnosticLevel(d.Severity),
				Locations: []*sarif.Location{locationFor(d)},
			})
			count++
		}
	}

	if count > 0 {
		r.logger.Debug("Wrote diagnostics to SARIF buffer", zap.Int("count", count))
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Finalizing SARIF report",
		zap.Int("total_results", len(r.log.Runs[0].Results)),
		zap.Int("total_rules", len(r.log.Runs[0].Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// ensureRule registers a rule for the diagnostic's vulnerability code once
// and returns its ID. Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(d schemas.Diagnostic) string {
	if ruleID, exists := r.rulesByCode[d.Code]; exists {
		return ruleID
	}

	ruleID := "OPSLENS-" + sanitizeRuleName(d.Code)
	title, _, _ := strings.Cut(d.Message, "\n")

	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               ruleID,
		Name:             pString(d.Code),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(title)},
		Properties: &sarif.PropertyBag{
			"tags":   []string{"security", "opslens"},
			"source": d.Source,
		},
	})
	r.rulesByCode[d.Code] = ruleID
	return ruleID
}

// sanitizeRuleName creates a standardized rule ID fragment.
func sanitizeRuleName(name string) string {
	if name == "" {
		return "UNNAMED-FINDING"
	}
	sanitized := ruleIDSanitizer.ReplaceAllString(strings.ToUpper(name), "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		return "UNKNOWN-FINDING"
	}
	return sanitized
}

// locationFor converts the diagnostic's 0-based range into a 1-based SARIF
// region.
func locationFor(d schemas.Diagnostic) *sarif.Location {
	return &sarif.Location{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(d.FileURI)},
			Region: &sarif.Region{
				StartLine:   pInt(d.Range.Start.Line + 1),
				StartColumn: pInt(d.Range.Start.Character + 1),
				EndLine:     pInt(d.Range.End.Line + 1),
				EndColumn:   pInt(d.Range.End.Character + 1),
			},
		},
	}
}

// mapDiagnosticLevel converts the editor severity scale to SARIF levels.
func mapDiagnosticLevel(s schemas.DiagnosticSeverity) sarif.Level {
	switch s {
	case schemas.DiagnosticError:
		return sarif.LevelError
	case schemas.DiagnosticWarning:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value.
func pString(s string) *string {
	return &s
}

// pInt returns a pointer to the given int value.
func pInt(i int) *int {
	return &i
}
