package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
	"github.com/xkilldash9x/opslens-cli/internal/workspace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubDetails serves canned detail payloads per vulnerability ID.
type stubDetails struct {
	mu      sync.Mutex
	byID    map[string]*schemas.VulnerabilityDetails
	errByID map[string]error
	fetched []string
}

func newStubDetails() *stubDetails {
	return &stubDetails{
		byID:    make(map[string]*schemas.VulnerabilityDetails),
		errByID: make(map[string]error),
	}
}

func (s *stubDetails) FetchVulnerabilityDetails(_ context.Context, id string) (*schemas.VulnerabilityDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, id)
	if err := s.errByID[id]; err != nil {
		return nil, err
	}
	return s.byID[id], nil
}

func (s *stubDetails) fetchedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

func newTestProjector(t *testing.T, details *stubDetails, files ...string) (*Projector, *workspace.Resolver, string) {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		writeWorkspaceFile(t, root, f)
	}
	ws := workspace.NewResolver([]string{root}, nil, nil)
	return NewProjector(details, ws, 4, nil), ws, root
}

func writeWorkspaceFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestBuildDiagnosticsPlacesLocatedFinding(t *testing.T) {
	details := newStubDetails()
	details.byID["v1"] = &schemas.VulnerabilityDetails{
		Location:    json.RawMessage(`{"fileName": "/app/src/auth.ts", "line": 10, "column": 3}`),
		Description: "User input reaches the query builder.",
	}
	p, _, _ := newTestProjector(t, details, "src/auth.ts")

	grouped := p.BuildDiagnostics(context.Background(), []schemas.Vulnerability{
		{ID: "v1", Title: "SQL Injection", Severity: schemas.SeverityHigh, Status: "open"},
	})

	require.Len(t, grouped, 1)
	var diags []schemas.Diagnostic
	for _, d := range grouped {
		diags = d
	}
	require.Len(t, diags, 1)
	d := diags[0]
	assert.True(t, strings.HasSuffix(d.FileURI, "/src/auth.ts"))
	assert.Equal(t, 9, d.Range.Start.Line)
	assert.Equal(t, 2, d.Range.Start.Character)
	assert.Equal(t, 3, d.Range.End.Character, "ranges span one character")
	assert.Equal(t, schemas.DiagnosticError, d.Severity)
	assert.Equal(t, "SQL Injection\n\nUser input reaches the query builder.", d.Message)
	assert.Equal(t, Source, d.Source)
	assert.Equal(t, "v1", d.Code)
}

func TestBuildDiagnosticsSkipsClosedFindings(t *testing.T) {
	details := newStubDetails()
	p, _, _ := newTestProjector(t, details)

	grouped := p.BuildDiagnostics(context.Background(), []schemas.Vulnerability{
		{ID: "v1", Title: "Fixed", Severity: schemas.SeverityCritical, Status: "Closed"},
		{ID: "v2", Title: "Also fixed", Severity: schemas.SeverityCritical, Status: "RESOLVED"},
	})

	assert.Empty(t, grouped)
	assert.Empty(t, details.fetchedIDs(), "closed findings never hit the detail source")
}

func TestBuildDiagnosticsPackageManifestFallback(t *testing.T) {
	details := newStubDetails()
	details.byID["v1"] = &schemas.VulnerabilityDetails{
		PackageIdentifier:  "PyPI-requests-2.28.0",
		RecommendedVersion: "2.31.0",
	}
	p, _, _ := newTestProjector(t, details, "requirements.txt")

	grouped := p.BuildDiagnostics(context.Background(), []schemas.Vulnerability{
		{ID: "v1", Title: "Vulnerable dependency", Severity: schemas.SeverityHigh},
	})

	require.Len(t, grouped, 1)
	for uri, diags := range grouped {
		assert.True(t, strings.HasSuffix(uri, "/requirements.txt"))
		require.Len(t, diags, 1)
		assert.Equal(t, schemas.Position{}, diags[0].Range.Start, "manifest placements anchor at document start")
		assert.Equal(t, schemas.Position{Character: 1}, diags[0].Range.End)
	}
}

func TestBuildDiagnosticsAmbiguousFallbackBySeverity(t *testing.T) {
	testCases := []struct {
		severity schemas.Severity
		placed   bool
	}{
		{schemas.SeverityCritical, true},
		{schemas.SeverityHigh, true},
		{schemas.SeverityMedium, true},
		{schemas.SeverityLow, false},
		{schemas.SeverityInfo, false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.severity), func(t *testing.T) {
			details := newStubDetails()
			p, _, _ := newTestProjector(t, details)

			grouped := p.BuildDiagnostics(context.Background(), []schemas.Vulnerability{
				{ID: "v1", Title: "No location", Severity: tc.severity},
			})

			if !tc.placed {
				assert.Empty(t, grouped, "unplaceable low findings are dropped, not parked")
				return
			}
			require.Len(t, grouped, 1)
			diags, ok := grouped[schemas.AmbiguousLocationURI]
			require.True(t, ok)
			require.Len(t, diags, 1)
		})
	}
}

func TestBuildDiagnosticsParsedButMissingFileFallsBack(t *testing.T) {
	details := newStubDetails()
	details.byID["v1"] = &schemas.VulnerabilityDetails{
		Location: json.RawMessage(`{"fileName": "src/gone.ts", "line": 5}`),
	}
	p, _, _ := newTestProjector(t, details)

	grouped := p.BuildDiagnostics(context.Background(), []schemas.Vulnerability{
		{ID: "v1", Title: "Dangling location", Severity: schemas.SeverityCritical},
	})

	require.Len(t, grouped, 1)
	_, ok := grouped[schemas.AmbiguousLocationURI]
	assert.True(t, ok, "a location pointing outside the workspace is treated as unplaced")
}

func TestBuildDiagnosticsDetailSeverityOverrides(t *testing.T) {
	details := newStubDetails()
	details.byID["v1"] = &schemas.VulnerabilityDetails{
		Location: json.RawMessage(`"src/auth.ts"`),
		Severity: schemas.SeverityCritical,
	}
	p, _, _ := newTestProjector(t, details, "src/auth.ts")

	grouped := p.BuildDiagnostics(context.Background(), []schemas.Vulnerability{
		{ID: "v1", Title: "Escalated", Severity: schemas.SeverityLow},
	})

	require.Len(t, grouped, 1)
	for _, diags := range grouped {
		require.Len(t, diags, 1)
		assert.Equal(t, schemas.DiagnosticError, diags[0].Severity)
	}
}

func TestBuildDiagnosticsConfigPrefix(t *testing.T) {
	details := newStubDetails()
	details.byID["v1"] = &schemas.VulnerabilityDetails{
		Location: json.RawMessage(`"main.tf"`),
		ScanType: "Infrastructure-as-Code",
	}
	details.byID["v2"] = &schemas.VulnerabilityDetails{
		Location:          json.RawMessage(`"main.tf"`),
		OriginatingSystem: "checkov",
	}
	details.byID["v3"] = &schemas.VulnerabilityDetails{
		Location: json.RawMessage(`"main.tf"`),
		ScanType: "SAST",
	}
	p, _, _ := newTestProjector(t, details, "main.tf")

	grouped := p.BuildDiagnostics(context.Background(), []schemas.Vulnerability{
		{ID: "v1", Title: "Open security group", Severity: schemas.SeverityHigh},
		{ID: "v2", Title: "Public S3 bucket", Severity: schemas.SeverityHigh},
		{ID: "v3", Title: "Hardcoded secret", Severity: schemas.SeverityHigh},
	})

	require.Len(t, grouped, 1)
	messages := make(map[string]string)
	for _, diags := range grouped {
		for _, d := range diags {
			messages[d.Code] = d.Message
		}
	}
	assert.Equal(t, "[Config] Open security group", messages["v1"])
	assert.Equal(t, "[Config] Public S3 bucket", messages["v2"])
	assert.Equal(t, "Hardcoded secret", messages["v3"])
}

func TestBuildDiagnosticsDetailFetchFailureDegrades(t *testing.T) {
	details := newStubDetails()
	details.errByID["v1"] = fmt.Errorf("backend timeout")
	details.byID["v2"] = &schemas.VulnerabilityDetails{Location: json.RawMessage(`"src/ok.go"`)}
	p, _, _ := newTestProjector(t, details, "src/ok.go")

	grouped := p.BuildDiagnostics(context.Background(), []schemas.Vulnerability{
		{ID: "v1", Title: "Fetch fails", Severity: schemas.SeverityHigh},
		{ID: "v2", Title: "Fetch works", Severity: schemas.SeverityHigh},
	})

	// v1 degrades to the ambiguous bucket, v2 lands on its file.
	require.Len(t, grouped, 2)
	_, ok := grouped[schemas.AmbiguousLocationURI]
	assert.True(t, ok)
}

func TestBuildDiagnosticsGroupsByFile(t *testing.T) {
	details := newStubDetails()
	details.byID["v1"] = &schemas.VulnerabilityDetails{Location: json.RawMessage(`{"fileName": "src/a.go", "line": 1}`)}
	details.byID["v2"] = &schemas.VulnerabilityDetails{Location: json.RawMessage(`{"fileName": "src/a.go", "line": 7}`)}
	details.byID["v3"] = &schemas.VulnerabilityDetails{Location: json.RawMessage(`{"fileName": "src/b.go", "line": 2}`)}
	p, _, _ := newTestProjector(t, details, "src/a.go", "src/b.go")

	grouped := p.BuildDiagnostics(context.Background(), []schemas.Vulnerability{
		{ID: "v1", Title: "One", Severity: schemas.SeverityMedium},
		{ID: "v2", Title: "Two", Severity: schemas.SeverityMedium},
		{ID: "v3", Title: "Three", Severity: schemas.SeverityMedium},
	})

	require.Len(t, grouped, 2)
	total := 0
	for _, diags := range grouped {
		total += len(diags)
	}
	assert.Equal(t, 3, total)
	assert.ElementsMatch(t, []string{"v1", "v2", "v3"}, details.fetchedIDs())
}

func TestMapSeverity(t *testing.T) {
	testCases := []struct {
		input    schemas.Severity
		expected schemas.DiagnosticSeverity
	}{
		{schemas.SeverityCritical, schemas.DiagnosticError},
		{schemas.SeverityHigh, schemas.DiagnosticError},
		{schemas.SeverityMedium, schemas.DiagnosticWarning},
		{schemas.SeverityLow, schemas.DiagnosticInformation},
		{schemas.SeverityInfo, schemas.DiagnosticInformation},
		{"informational", schemas.DiagnosticInformation},
		{"", schemas.DiagnosticInformation},
		{"bizarre", schemas.DiagnosticWarning},
		{"HIGH", schemas.DiagnosticError},
	}

	for _, tc := range testCases {
		t.Run(string(tc.input), func(t *testing.T) {
			assert.Equal(t, tc.expected, mapSeverity(tc.input))
		})
	}
}

func TestIsClosed(t *testing.T) {
	assert.True(t, isClosed("closed"))
	assert.True(t, isClosed("Resolved"))
	assert.True(t, isClosed("  CLOSED  "))
	assert.False(t, isClosed("open"))
	assert.False(t, isClosed(""))
	assert.False(t, isClosed("in_progress"))
}
