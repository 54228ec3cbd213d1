// Package entitygraph resolves loosely-specified identifiers (UUIDs, short
// IDs, slugs, git remote URLs) into canonical repository, component and
// application entities via the remote graph API. Every lookup strategy
// degrades to "not found" on failure; nothing here propagates transport
// errors to the caller.
package entitygraph

import (
	"context"
	"encoding/json"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
	"github.com/xkilldash9x/opslens-cli/internal/gitmeta"
)

const (
	// scanPageSize is the page size of the full type-scan fallback.
	scanPageSize = 100
	// scanMaxPages caps the type-scan fallback; a kind with more pages than
	// this is abandoned rather than walked exhaustively.
	scanMaxPages = 5
	// lastResortSearchTerm is the final term tried by the repository
	// URL-search fallback when every URL-derived term returns nothing.
	lastResortSearchTerm = "repo"
)

// Criteria identifies an entity to resolve. ID, when present, is
// authoritative and exclusive: no other strategy runs, even if the ID lookup
// misses.
type Criteria struct {
	ID      string
	ShortID string
}

// Resolver resolves entities against the graph API.
type Resolver struct {
	transport schemas.Transport
	log       *zap.Logger
}

// Compile-time check: the resolver is the production detail source.
var _ schemas.VulnerabilityDetailSource = (*Resolver)(nil)

// NewResolver creates a resolver over the given transport.
func NewResolver(transport schemas.Transport, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{transport: transport, log: logger.Named("entitygraph")}
}

// query runs one GraphQL query and returns its data payload. Transport
// failures and GraphQL-level errors are logged at debug with the attempted
// criteria and collapse to "no data" for the calling sub-strategy.
func (r *Resolver) query(ctx context.Context, doc string, vars map[string]any) (json.RawMessage, bool) {
	resp, err := r.transport.Query(ctx, doc, vars)
	if err != nil {
		r.log.Debug("Query failed", zap.Any("variables", vars), zap.Error(err))
		return nil, false
	}
	if len(resp.Errors) > 0 {
		r.log.Debug("Query returned errors",
			zap.Any("variables", vars),
			zap.String("first_error", resp.Errors[0].Message),
		)
		return nil, false
	}
	if len(resp.Data) == 0 {
		return nil, false
	}
	return resp.Data, true
}

// ResolveEntity resolves a single entity of the given kind.
//
// Strategy order: a direct ID lookup short-circuits everything else; a short
// ID first tries the attribute-filter query, then the paginated type-scan
// fallback. Total failure returns absent, never an error.
func (r *Resolver) ResolveEntity(ctx context.Context, crit Criteria, kind schemas.EntityKind) (*schemas.Entity, bool) {
	if crit.ID != "" {
		return r.resolveByID(ctx, crit.ID)
	}
	if crit.ShortID != "" {
		if e, ok := r.resolveByShortID(ctx, crit.ShortID, kind); ok {
			return e, true
		}
		return r.scanByType(ctx, crit.ShortID, kind)
	}
	return nil, false
}

func (r *Resolver) resolveByID(ctx context.Context, id string) (*schemas.Entity, bool) {
	data, ok := r.query(ctx, queryEntityByID, map[string]any{"id": id})
	if !ok {
		return nil, false
	}
	return decodeEntity(data, "entity", "node")
}

// resolveByShortID queries entities whose shortId attribute matches. Among
// multiple hits the one whose type matches the requested kind wins; if none
// matches on type, any hit is accepted.
func (r *Resolver) resolveByShortID(ctx context.Context, shortID string, kind schemas.EntityKind) (*schemas.Entity, bool) {
	data, ok := r.query(ctx, queryEntitiesByShortID, map[string]any{"shortId": shortID})
	if !ok {
		return nil, false
	}
	hits := decodeEntityList(data, "entities", "searchEntities")
	if len(hits) == 0 {
		return nil, false
	}
	for i := range hits {
		if kind.Matches(hits[i].Type) {
			return &hits[i], true
		}
	}
	return &hits[0], true
}

// scanByType pages through all entities of the kind, matching the short ID
// case-insensitively against the direct field and the shortId/short_id
// attributes. Scanning stops at the first short page (kind exhausted) or
// after scanMaxPages pages.
func (r *Resolver) scanByType(ctx context.Context, shortID string, kind schemas.EntityKind) (*schemas.Entity, bool) {
	want := strings.ToLower(shortID)
	for page := 0; page < scanMaxPages; page++ {
		data, ok := r.query(ctx, queryEntitiesByType, map[string]any{
			"type":     string(kind),
			"pageSize": scanPageSize,
			"offset":   page * scanPageSize,
		})
		if !ok {
			return nil, false
		}
		hits := decodeEntityList(data, "entities")
		for i := range hits {
			e := &hits[i]
			if strings.ToLower(e.ShortID) == want ||
				strings.ToLower(e.Attribute("shortId", "short_id")) == want {
				return e, true
			}
		}
		if len(hits) < scanPageSize {
			break
		}
	}
	return nil, false
}

// ResolveRepositoryByRemoteURL searches repositories by name using
// progressively looser terms derived from the git remote URL, then selects
// the hit whose stored URL normalizes to the same canonical HTTPS form as
// the remote. The first term that returns any results wins the term race;
// selection within those results is by normalized URL equality.
func (r *Resolver) ResolveRepositoryByRemoteURL(ctx context.Context, remoteURL string) (*schemas.Entity, bool) {
	if remoteURL == "" {
		return nil, false
	}
	normalized := gitmeta.NormalizeURL(remoteURL)

	terms := []string{normalized, remoteURL}
	if path := gitmeta.OrgRepoPath(remoteURL); path != "" {
		terms = append(terms, path)
	}
	terms = append(terms, lastResortSearchTerm)

	for _, term := range terms {
		if term == "" {
			continue
		}
		data, ok := r.query(ctx, querySearchRepositories, map[string]any{"term": term})
		if !ok {
			continue
		}
		hits := decodeEntityList(data, "searchEntities", "entities", "repositories")
		if len(hits) == 0 {
			continue
		}
		for i := range hits {
			url := hits[i].Attribute("url", "repoUrl", "repositoryUrl", "htmlUrl")
			if url != "" && gitmeta.NormalizeURL(url) == normalized {
				return &hits[i], true
			}
		}
		// This term matched entities but none with the right URL; looser
		// terms would only match a superset, so stop here.
		r.log.Debug("Repository search hit entities with no matching URL",
			zap.String("term", term),
			zap.Int("hits", len(hits)),
		)
		return nil, false
	}
	return nil, false
}

// RelatedRef returns the first relationship target of the entity whose type
// matches the kind.
func RelatedRef(e *schemas.Entity, kind schemas.EntityKind) (schemas.EntityRef, bool) {
	if e == nil {
		return schemas.EntityRef{}, false
	}
	for _, rel := range e.Relationships {
		if kind.Matches(rel.To.Type) {
			return rel.To, true
		}
	}
	return schemas.EntityRef{}, false
}

// FindVulnerabilities returns the findings keyed by an entity ID. Entries
// with an empty id or title are dropped at the mapping stage; failures
// return an empty slice.
func (r *Resolver) FindVulnerabilities(ctx context.Context, entityID string) []schemas.Vulnerability {
	if entityID == "" {
		return nil
	}
	data, ok := r.query(ctx, queryVulnerabilitiesByEntity, map[string]any{"entityId": entityID})
	if !ok {
		return nil
	}
	items := decodeItemList(data, "vulnerabilities", "findings")
	out := make([]schemas.Vulnerability, 0, len(items))
	for _, item := range items {
		var v schemas.Vulnerability
		if err := jsoniter.Unmarshal(item, &v); err != nil {
			continue
		}
		if v.ID == "" || v.Title == "" {
			continue
		}
		v.Severity = schemas.Severity(strings.ToLower(string(v.Severity)))
		out = append(out, v)
	}
	return out
}

// FindIncidents returns the incidents keyed by an entity ID, usually an
// application. Same drop and failure semantics as FindVulnerabilities.
func (r *Resolver) FindIncidents(ctx context.Context, entityID string) []schemas.Incident {
	if entityID == "" {
		return nil
	}
	data, ok := r.query(ctx, queryIncidentsByEntity, map[string]any{"entityId": entityID})
	if !ok {
		return nil
	}
	items := decodeItemList(data, "incidents")
	out := make([]schemas.Incident, 0, len(items))
	for _, item := range items {
		var inc schemas.Incident
		if err := jsoniter.Unmarshal(item, &inc); err != nil {
			continue
		}
		if inc.ID == "" || inc.Title == "" {
			continue
		}
		out = append(out, inc)
	}
	return out
}

// FetchVulnerabilityDetails fetches the placement payload for one finding.
// A nil result with nil error means no details are retrievable.
func (r *Resolver) FetchVulnerabilityDetails(ctx context.Context, id string) (*schemas.VulnerabilityDetails, error) {
	data, ok := r.query(ctx, queryVulnerabilityDetails, map[string]any{"id": id})
	if !ok {
		return nil, nil
	}
	fields := rootFields(data)
	for _, key := range []string{"vulnerability", "vulnerabilityDetails", "finding"} {
		raw, present := fields[key]
		if !present || firstToken(raw) != '{' {
			continue
		}
		var details schemas.VulnerabilityDetails
		if err := jsoniter.Unmarshal(raw, &details); err != nil {
			r.log.Debug("Malformed vulnerability details", zap.String("id", id), zap.Error(err))
			return nil, nil
		}
		details.Severity = schemas.Severity(strings.ToLower(string(details.Severity)))
		return &details, nil
	}
	return nil, nil
}
