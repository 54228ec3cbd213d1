package entitygraph

// IdentifierContext accumulates the identifiers discovered during one
// resolution pass. It is a value threaded through the resolution steps;
// every setter fills a field only if it is still empty, so the first
// successful write wins regardless of how many lower-confidence strategies
// run afterwards. One context belongs to exactly one resolution pass.
type IdentifierContext struct {
	RepositoryID    string
	RepositorySlug  string
	ComponentID     string
	ComponentSlug   string
	ApplicationID   string
	ApplicationSlug string
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// WithRepository records repository identifiers, keeping existing values.
func (c IdentifierContext) WithRepository(id, slug string) IdentifierContext {
	fill(&c.RepositoryID, id)
	fill(&c.RepositorySlug, slug)
	return c
}

// WithComponent records component identifiers, keeping existing values.
func (c IdentifierContext) WithComponent(id, slug string) IdentifierContext {
	fill(&c.ComponentID, id)
	fill(&c.ComponentSlug, slug)
	return c
}

// WithApplication records application identifiers, keeping existing values.
func (c IdentifierContext) WithApplication(id, slug string) IdentifierContext {
	fill(&c.ApplicationID, id)
	fill(&c.ApplicationSlug, slug)
	return c
}
