package schemas

import (
	"context"
	"encoding/json"
)

// GraphQLError is one error entry of a GraphQL response envelope.
type GraphQLError struct {
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

// GraphQLResponse is the raw response envelope of a GraphQL query. Data is
// kept raw because entity payload shapes vary per query and per backend
// version; decoding is owned by the caller.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// RESTResponse is the response of a plain HTTP call issued through the
// transport.
type RESTResponse struct {
	Status  int
	Headers map[string][]string
	Data    []byte
}

// Transport executes authenticated requests against the remote API. The
// implementation owns retry/backoff, rate limiting and auth header
// injection; callers treat any returned error as "this attempt failed" and
// degrade locally.
type Transport interface {
	// Query executes a GraphQL query. A response with a non-empty Errors
	// slice is returned without error; transport and decode failures are.
	Query(ctx context.Context, query string, variables map[string]any) (*GraphQLResponse, error)
	// Get issues a GET against an absolute URL.
	Get(ctx context.Context, url string) (*RESTResponse, error)
	// Post issues a POST with a JSON-encoded body against an absolute URL.
	Post(ctx context.Context, url string, body any) (*RESTResponse, error)
}

// VulnerabilityDetailSource fetches the placement payload for a single
// finding. A nil result with nil error means the finding has no retrievable
// details.
type VulnerabilityDetailSource interface {
	FetchVulnerabilityDetails(ctx context.Context, id string) (*VulnerabilityDetails, error)
}

// WorkspaceFS places normalized paths and package hints onto files in the
// open workspace.
type WorkspaceFS interface {
	// ResolveFileURI maps a workspace-relative path to a file URI, or false
	// when no file (exact or fuzzy) matches.
	ResolveFileURI(path string) (string, bool)
	// ResolvePackageManifest maps a package identifier to a manifest file
	// URI. The returned URI is never empty; the chain ends at
	// AmbiguousLocationURI.
	ResolvePackageManifest(packageIdentifier string) string
}

// GitMetadata exposes the git remote of a local checkout.
type GitMetadata interface {
	// RemoteURL returns the first URL of the origin remote for the
	// repository containing path, or false when none can be determined.
	RemoteURL(path string) (string, bool)
}
