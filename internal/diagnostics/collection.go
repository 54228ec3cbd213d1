package diagnostics

import (
	"sync"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
)

// Collection tracks the published per-file diagnostics between runs. A
// publication replaces the previous one wholesale: files that had
// diagnostics before and have none now appear in the returned map with an
// explicit empty list so consumers clear them. There is no incremental
// patching.
type Collection struct {
	mu      sync.Mutex
	tracked map[string]struct{}
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{tracked: make(map[string]struct{})}
}

// Replace publishes a freshly computed diagnostics map. The result contains
// every file of the new map plus, with empty slices, every previously
// tracked file that dropped out.
func (c *Collection) Replace(next map[string][]schemas.Diagnostic) map[string][]schemas.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string][]schemas.Diagnostic, len(next)+len(c.tracked))
	for uri, diags := range next {
		out[uri] = diags
	}
	for uri := range c.tracked {
		if _, still := out[uri]; !still {
			out[uri] = []schemas.Diagnostic{}
		}
	}

	c.tracked = make(map[string]struct{}, len(next))
	for uri := range next {
		c.tracked[uri] = struct{}{}
	}
	return out
}
