package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
	"github.com/xkilldash9x/opslens-cli/internal/entitygraph"
)

// stubTransport routes queries by operation name.
type stubTransport struct {
	handlers map[string]func(vars map[string]any) (*schemas.GraphQLResponse, error)
}

func newStubTransport() *stubTransport {
	return &stubTransport{handlers: make(map[string]func(vars map[string]any) (*schemas.GraphQLResponse, error))}
}

func (s *stubTransport) on(op string, h func(vars map[string]any) (*schemas.GraphQLResponse, error)) {
	s.handlers[op] = h
}

func (s *stubTransport) Query(_ context.Context, query string, vars map[string]any) (*schemas.GraphQLResponse, error) {
	for op, h := range s.handlers {
		if strings.Contains(query, op) {
			return h(vars)
		}
	}
	return &schemas.GraphQLResponse{Data: json.RawMessage(`{}`)}, nil
}

func (s *stubTransport) Get(context.Context, string) (*schemas.RESTResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubTransport) Post(context.Context, string, any) (*schemas.RESTResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func respond(t *testing.T, payload any) (*schemas.GraphQLResponse, error) {
	t.Helper()
	data, err := jsoniter.Marshal(payload)
	require.NoError(t, err)
	return &schemas.GraphQLResponse{Data: data}, nil
}

// stubGit returns a fixed remote URL.
type stubGit struct {
	url string
}

func (s *stubGit) RemoteURL(string) (string, bool) {
	if s.url == "" {
		return "", false
	}
	return s.url, true
}

func componentEntity() map[string]any {
	return map[string]any{
		"id": "comp-1", "shortId": "svc-a", "name": "Service A", "type": "component",
		"attributes": map[string]any{"url": "https://example.com/svc-a"},
		"relationships": []any{
			map[string]any{"type": "OWNED_BY", "to": map[string]any{"id": "repo-1", "name": "widget", "type": "repository"}},
			map[string]any{"type": "PART_OF", "to": map[string]any{"id": "app-1", "name": "Shop", "type": "application"}},
			map[string]any{"type": "DEPENDS_ON", "to": map[string]any{"id": "dep-1", "name": "auth-lib", "type": "component"}},
			map[string]any{"type": "DEPENDS_ON", "to": map[string]any{"id": "dep-1", "name": "auth-lib", "type": "component"}},
			map[string]any{"type": "DEPENDS_ON", "to": map[string]any{"id": "dep-2", "name": "", "type": "component"}},
			map[string]any{"type": "DEPENDS_ON", "to": map[string]any{"id": "", "name": "nameless", "type": "component"}},
			map[string]any{"type": "DEPENDS_ON", "to": map[string]any{"id": "dep-3", "name": "queue-lib", "type": "component"}},
		},
	}
}

func TestFetchInsightsFullChain(t *testing.T) {
	st := newStubTransport()
	st.on("EntitiesByShortID", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		if vars["shortId"] == "svc-a" {
			return respond(t, map[string]any{"entities": []any{componentEntity()}})
		}
		return respond(t, map[string]any{"entities": []any{}})
	})
	st.on("EntityByID", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		switch vars["id"] {
		case "repo-1":
			return respond(t, map[string]any{"entity": map[string]any{
				"id": "repo-1", "shortId": "acme/widget", "name": "widget", "type": "repository",
				"attributes": map[string]any{"url": "https://github.com/acme/widget"},
			}})
		case "app-1":
			return respond(t, map[string]any{"entity": map[string]any{
				"id": "app-1", "shortId": "shop", "name": "Shop", "type": "application",
			}})
		}
		return respond(t, map[string]any{"entity": nil})
	})
	st.on("VulnerabilitiesByEntity", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		switch vars["entityId"] {
		case "comp-1":
			return respond(t, map[string]any{"vulnerabilities": []any{
				map[string]any{"id": "v1", "title": "SQLi", "severity": "high"},
				map[string]any{"id": "v2", "title": "XSS", "severity": "medium"},
			}})
		case "repo-1":
			return respond(t, map[string]any{"vulnerabilities": []any{
				map[string]any{"id": "v2", "title": "XSS", "severity": "medium"},
				map[string]any{"id": "v3", "title": "Leaked secret", "severity": "critical"},
			}})
		}
		return respond(t, map[string]any{"vulnerabilities": []any{}})
	})
	st.on("IncidentsByEntity", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		assert.Equal(t, "app-1", vars["entityId"], "incidents are keyed by the application when one resolved")
		return respond(t, map[string]any{"incidents": []any{
			map[string]any{"id": "i1", "title": "API outage", "status": "resolved"},
		}})
	})

	resolver := entitygraph.NewResolver(st, nil)
	a := NewAggregator(resolver, &stubGit{}, 50, nil)

	bundle := a.FetchInsights(context.Background(), Identifiers{ComponentSlug: "svc-a"})

	require.NotNil(t, bundle.Component)
	assert.Equal(t, "comp-1", bundle.Component.ID)
	assert.Equal(t, "https://example.com/svc-a", bundle.Component.URL)

	require.NotNil(t, bundle.Repository)
	assert.Equal(t, "repo-1", bundle.Repository.ID)
	assert.Equal(t, "https://github.com/acme/widget", bundle.Repository.URL)

	require.NotNil(t, bundle.Application)
	assert.Equal(t, "shop", bundle.Application.Slug)

	require.Len(t, bundle.Dependencies, 2, "duplicates and id/name-less targets are dropped")
	assert.Equal(t, "dep-1", bundle.Dependencies[0].ID)
	assert.Equal(t, "dep-3", bundle.Dependencies[1].ID)

	require.Len(t, bundle.Vulnerabilities, 3, "component and repository searches merge with ID dedupe")
	assert.Equal(t, "v1", bundle.Vulnerabilities[0].ID)
	assert.Equal(t, "v2", bundle.Vulnerabilities[1].ID)
	assert.Equal(t, "v3", bundle.Vulnerabilities[2].ID)

	require.Len(t, bundle.Incidents, 1)
	assert.Equal(t, "API outage", bundle.Incidents[0].Title)
}

func TestFetchInsightsSynthesizesRepositorySummary(t *testing.T) {
	st := newStubTransport()
	component := map[string]any{
		"id": "comp-1", "name": "Service A", "type": "component",
		"attributes": map[string]any{
			"repositorySlug": "acme/widget",
			"repositoryUrl":  "https://github.com/acme/widget",
		},
		"relationships": []any{
			map[string]any{"type": "OWNED_BY", "to": map[string]any{"id": "repo-gone", "name": "widget", "type": "repository"}},
		},
	}
	st.on("EntityByID", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		if vars["id"] == "comp-1" {
			return respond(t, map[string]any{"entity": component})
		}
		return respond(t, map[string]any{"entity": nil})
	})

	resolver := entitygraph.NewResolver(st, nil)
	a := NewAggregator(resolver, &stubGit{}, 50, nil)

	bundle := a.FetchInsights(context.Background(), Identifiers{ComponentID: "comp-1"})

	require.NotNil(t, bundle.Repository, "an unresolvable relationship target still yields a summary")
	assert.Equal(t, "repo-gone", bundle.Repository.ID)
	assert.Equal(t, "acme/widget", bundle.Repository.Slug, "owner attributes override the bare target")
	assert.Equal(t, "https://github.com/acme/widget", bundle.Repository.URL)
	assert.Equal(t, "widget", bundle.Repository.Name)
}

func TestFetchInsightsGitRemoteFallback(t *testing.T) {
	st := newStubTransport()
	st.on("SearchRepositories", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		if vars["term"] != "https://github.com/acme/widget" {
			return respond(t, map[string]any{"searchEntities": []any{}})
		}
		return respond(t, map[string]any{"searchEntities": []any{
			map[string]any{
				"id": "repo-1", "name": "widget", "type": "repository",
				"attributes": map[string]any{"url": "git@github.com:acme/widget.git"},
			},
		}})
	})

	resolver := entitygraph.NewResolver(st, nil)
	a := NewAggregator(resolver, &stubGit{url: "https://github.com/acme/widget.git"}, 50, nil)

	bundle := a.FetchInsights(context.Background(), Identifiers{WorkspacePath: "/home/dev/widget"})

	require.NotNil(t, bundle.Repository)
	assert.Equal(t, "repo-1", bundle.Repository.ID)
}

func TestFetchInsightsTruncatesCollections(t *testing.T) {
	st := newStubTransport()
	st.on("EntityByID", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		return respond(t, map[string]any{"entity": map[string]any{
			"id": "comp-1", "name": "Service A", "type": "component",
		}})
	})
	st.on("VulnerabilitiesByEntity", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		if vars["entityId"] != "comp-1" {
			return respond(t, map[string]any{"vulnerabilities": []any{}})
		}
		vulns := make([]any, 10)
		for i := range vulns {
			vulns[i] = map[string]any{"id": fmt.Sprintf("v%d", i), "title": fmt.Sprintf("Finding %d", i)}
		}
		return respond(t, map[string]any{"vulnerabilities": vulns})
	})

	resolver := entitygraph.NewResolver(st, nil)
	a := NewAggregator(resolver, &stubGit{}, 3, nil)

	bundle := a.FetchInsights(context.Background(), Identifiers{ComponentID: "comp-1"})

	require.Len(t, bundle.Vulnerabilities, 3)
	assert.Equal(t, "v0", bundle.Vulnerabilities[0].ID, "truncation keeps insertion order")
}

func TestFetchInsightsDegradesToEmptyBundle(t *testing.T) {
	st := newStubTransport()
	st.on("EntityByID", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		return nil, fmt.Errorf("network down")
	})
	st.on("EntitiesByShortID", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		return nil, fmt.Errorf("network down")
	})
	st.on("EntitiesByType", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		return nil, fmt.Errorf("network down")
	})

	resolver := entitygraph.NewResolver(st, nil)
	a := NewAggregator(resolver, nil, 50, nil)

	bundle := a.FetchInsights(context.Background(), Identifiers{ComponentSlug: "svc-a"})

	require.NotNil(t, bundle)
	assert.Nil(t, bundle.Component)
	assert.Nil(t, bundle.Repository)
	assert.Nil(t, bundle.Application)
	assert.NotNil(t, bundle.Dependencies)
	assert.Empty(t, bundle.Dependencies)
	assert.NotNil(t, bundle.Vulnerabilities)
	assert.Empty(t, bundle.Vulnerabilities)
	assert.NotNil(t, bundle.Incidents)
	assert.Empty(t, bundle.Incidents)
}

func TestFetchInsightsIsRepeatable(t *testing.T) {
	st := newStubTransport()
	st.on("EntityByID", func(vars map[string]any) (*schemas.GraphQLResponse, error) {
		return respond(t, map[string]any{"entity": map[string]any{
			"id": "comp-1", "name": "Service A", "type": "component",
		}})
	})

	resolver := entitygraph.NewResolver(st, nil)
	a := NewAggregator(resolver, &stubGit{}, 50, nil)
	ids := Identifiers{ComponentID: "comp-1"}

	first := a.FetchInsights(context.Background(), ids)
	second := a.FetchInsights(context.Background(), ids)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("aggregation holds no state between fetches, got diff:\n%s", diff)
	}
}
