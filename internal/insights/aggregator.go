// Package insights orchestrates entity resolution into a complete insight
// bundle: component, repository and application summaries plus their
// dependencies, vulnerabilities and incidents. Every sub-fetch is
// independently fault-tolerant; one failing lookup never nulls out the rest
// of the bundle.
package insights

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
	"github.com/xkilldash9x/opslens-cli/internal/entitygraph"
)

// Identifiers is the loosely-specified starting point of one insight fetch.
// Any subset may be present; missing pieces are discovered through the
// resolution chain.
type Identifiers struct {
	ComponentID     string
	ComponentSlug   string
	RepositoryID    string
	RepositorySlug  string
	ApplicationID   string
	ApplicationSlug string
	// WorkspacePath is the local checkout used for the git remote URL
	// fallback.
	WorkspacePath string
}

// Aggregator builds insight bundles.
type Aggregator struct {
	resolver *entitygraph.Resolver
	git      schemas.GitMetadata
	maxItems int
	log      *zap.Logger
}

// NewAggregator creates an aggregator. git may be nil when no local checkout
// is available; maxItems below 1 falls back to 50.
func NewAggregator(resolver *entitygraph.Resolver, git schemas.GitMetadata, maxItems int, logger *zap.Logger) *Aggregator {
	if maxItems < 1 {
		maxItems = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		resolver: resolver,
		git:      git,
		maxItems: maxItems,
		log:      logger.Named("insights"),
	}
}

// FetchInsights resolves the identifier set into a complete bundle. The
// resolution order is fixed: component, then repository (with the component
// as a relationship hint), then application, then the collections. The
// returned bundle is never nil and its collections are never nil.
func (a *Aggregator) FetchInsights(ctx context.Context, ids Identifiers) *schemas.InsightBundle {
	ictx := entitygraph.IdentifierContext{}.
		WithComponent(ids.ComponentID, ids.ComponentSlug).
		WithRepository(ids.RepositoryID, ids.RepositorySlug).
		WithApplication(ids.ApplicationID, ids.ApplicationSlug)

	bundle := &schemas.InsightBundle{
		Dependencies:    []schemas.Dependency{},
		Vulnerabilities: []schemas.Vulnerability{},
		Incidents:       []schemas.Incident{},
	}

	component, _ := a.resolver.ResolveEntity(ctx, criteria(ictx.ComponentID, ictx.ComponentSlug), schemas.KindComponent)
	if component != nil {
		ictx = ictx.WithComponent(component.ID, component.ShortID)
		bundle.Component = summaryFromEntity(component)
	}

	repository := a.resolveRelated(ctx, criteria(ictx.RepositoryID, ictx.RepositorySlug), schemas.KindRepository, component, ids.WorkspacePath, bundle)
	if repository != nil {
		ictx = ictx.WithRepository(repository.ID, repository.ShortID)
		bundle.Repository = summaryFromEntity(repository)
	}

	application := a.resolveRelated(ctx, criteria(ictx.ApplicationID, ictx.ApplicationSlug), schemas.KindApplication, component, "", bundle)
	if application != nil {
		ictx = ictx.WithApplication(application.ID, application.ShortID)
		bundle.Application = summaryFromEntity(application)
	}

	bundle.Dependencies = truncate(dependenciesOf(component), a.maxItems)

	// Vulnerability searches keyed by component and repository run
	// independently; their merge preserves component-search order first and
	// dedupes by finding ID. The same finding reported under two different
	// IDs stays duplicated — a known source-data limitation.
	var byComponent, byRepository []schemas.Vulnerability
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		byComponent = a.resolver.FindVulnerabilities(gctx, ictx.ComponentID)
		return nil
	})
	g.Go(func() error {
		byRepository = a.resolver.FindVulnerabilities(gctx, ictx.RepositoryID)
		return nil
	})
	_ = g.Wait()
	bundle.Vulnerabilities = truncate(mergeVulnerabilities(byComponent, byRepository), a.maxItems)

	incidentKey := ictx.ApplicationID
	if incidentKey == "" {
		incidentKey = ictx.ComponentID
	}
	if incidents := a.resolver.FindIncidents(ctx, incidentKey); incidents != nil {
		bundle.Incidents = truncate(incidents, a.maxItems)
	}

	return bundle
}

// resolveRelated resolves a repository or application: direct lookup first,
// then the component's relationship target retried as a direct lookup, then
// (repositories only) the git remote URL search. When everything misses but
// a relationship target exists, a summary is synthesized onto the bundle
// from the target plus the owning component's attributes.
func (a *Aggregator) resolveRelated(ctx context.Context, crit entitygraph.Criteria, kind schemas.EntityKind, component *schemas.Entity, workspacePath string, bundle *schemas.InsightBundle) *schemas.Entity {
	if e, ok := a.resolver.ResolveEntity(ctx, crit, kind); ok {
		return e
	}

	ref, hasRef := entitygraph.RelatedRef(component, kind)
	if hasRef {
		if ref.ID != "" {
			if e, ok := a.resolver.ResolveEntity(ctx, entitygraph.Criteria{ID: ref.ID}, kind); ok {
				return e
			}
		}
		if ref.ShortID != "" {
			if e, ok := a.resolver.ResolveEntity(ctx, entitygraph.Criteria{ShortID: ref.ShortID}, kind); ok {
				return e
			}
		}
	}

	if kind == schemas.KindRepository && workspacePath != "" && a.git != nil {
		if remote, ok := a.git.RemoteURL(workspacePath); ok {
			if e, found := a.resolver.ResolveRepositoryByRemoteURL(ctx, remote); found {
				return e
			}
		}
	}

	if hasRef {
		summary := synthesizeSummary(component, ref, kind)
		switch kind {
		case schemas.KindRepository:
			bundle.Repository = summary
		case schemas.KindApplication:
			bundle.Application = summary
		}
		a.log.Debug("Synthesized entity summary from relationship target",
			zap.String("kind", string(kind)),
			zap.String("name", summary.Name),
		)
	}
	return nil
}

// criteria prefers the authoritative ID over a slug/short ID.
func criteria(id, slug string) entitygraph.Criteria {
	if id != "" {
		return entitygraph.Criteria{ID: id}
	}
	return entitygraph.Criteria{ShortID: slug}
}

// summaryFromEntity flattens a fully resolved entity.
func summaryFromEntity(e *schemas.Entity) *schemas.EntitySummary {
	return &schemas.EntitySummary{
		ID:          e.ID,
		Slug:        e.ShortID,
		Name:        e.Name,
		URL:         e.Attribute("url", "repoUrl", "repositoryUrl", "htmlUrl"),
		Description: e.Description,
	}
}

// synthesizeSummary builds a summary from a bare relationship target. The
// owning entity's attributes are more authoritative than the target for
// URL-derived fields, so they override where present.
func synthesizeSummary(owner *schemas.Entity, ref schemas.EntityRef, kind schemas.EntityKind) *schemas.EntitySummary {
	s := &schemas.EntitySummary{
		ID:          ref.ID,
		Slug:        ref.ShortID,
		Name:        ref.Name,
		Description: ref.Description,
	}
	if owner == nil {
		return s
	}
	switch kind {
	case schemas.KindRepository:
		if id := owner.Attribute("repositoryId", "repoId"); id != "" {
			s.ID = id
		}
		if slug := owner.Attribute("repositorySlug", "repoSlug"); slug != "" {
			s.Slug = slug
		}
		s.URL = owner.Attribute("repositoryUrl", "repoUrl", "url")
	case schemas.KindApplication:
		if id := owner.Attribute("applicationId", "appId"); id != "" {
			s.ID = id
		}
		if slug := owner.Attribute("applicationSlug", "appSlug"); slug != "" {
			s.Slug = slug
		}
	}
	return s
}

// dependenciesOf extracts component-type relationship targets, deduplicated
// by target ID, short ID or name, preserving the first occurrence.
func dependenciesOf(component *schemas.Entity) []schemas.Dependency {
	if component == nil {
		return []schemas.Dependency{}
	}
	seen := make(map[string]struct{})
	out := []schemas.Dependency{}
	for _, rel := range component.Relationships {
		if !schemas.KindComponent.Matches(rel.To.Type) {
			continue
		}
		// Entries without an id and a name are dropped silently, same as
		// vulnerabilities and incidents.
		if rel.To.ID == "" || rel.To.Name == "" {
			continue
		}
		// Duplicate if any identifying field was already seen.
		keys := []string{"id:" + rel.To.ID, "name:" + rel.To.Name}
		if rel.To.ShortID != "" {
			keys = append(keys, "short:"+rel.To.ShortID)
		}
		dup := false
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		out = append(out, schemas.Dependency{
			ID:          rel.To.ID,
			ShortID:     rel.To.ShortID,
			Name:        rel.To.Name,
			Description: rel.To.Description,
		})
	}
	return out
}

// mergeVulnerabilities concatenates the two keyed searches, dropping exact
// ID duplicates and keeping first occurrences.
func mergeVulnerabilities(first, second []schemas.Vulnerability) []schemas.Vulnerability {
	seen := make(map[string]struct{}, len(first)+len(second))
	out := make([]schemas.Vulnerability, 0, len(first)+len(second))
	for _, v := range append(append([]schemas.Vulnerability{}, first...), second...) {
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	return out
}

// truncate caps a collection at n items in insertion order.
func truncate[T any](items []T, n int) []T {
	if items == nil {
		return []T{}
	}
	if len(items) <= n {
		return items
	}
	return items[:n]
}
