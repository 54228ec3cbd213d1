package schemas

// -- Location Schemas --

// ParsedLocation is the normalized form of a scanner-reported finding
// location. Line and Column are 0-based; nil means the finding is
// file-level with no specific position. FilePath is always
// workspace-relative with container-path prefixes stripped.
type ParsedLocation struct {
	FilePath string `json:"filePath"`
	Line     *int   `json:"line,omitempty"`
	Column   *int   `json:"column,omitempty"`
}

// -- Diagnostic Schemas --

// DiagnosticSeverity mirrors the editor-side severity scale.
type DiagnosticSeverity string

// Constants for diagnostic severities.
const (
	DiagnosticError       DiagnosticSeverity = "error"
	DiagnosticWarning     DiagnosticSeverity = "warning"
	DiagnosticInformation DiagnosticSeverity = "information"
)

// Position is a 0-based line/character pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span inside a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is one editor diagnostic produced for a vulnerability.
type Diagnostic struct {
	FileURI  string             `json:"fileUri"`
	Range    Range              `json:"range"`
	Message  string             `json:"message"`
	Severity DiagnosticSeverity `json:"severity"`
	Source   string             `json:"source"`
	Code     string             `json:"code"`
}

// AmbiguousLocationURI is the synthetic, non-file URI used to anchor
// diagnostics that cannot be placed at a concrete workspace file. Findings
// attached to it are still surfaced rather than silently dropped.
const AmbiguousLocationURI = "opslens://ambiguous-location"
