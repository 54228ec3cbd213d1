package schemas

import "strings"

// -- Graph Entity Schemas --

// EntityKind identifies the category of a node in the remote entity graph.
// The values are lowercase to match the graph API's `type` field.
type EntityKind string

// Constants for the entity kinds the client resolves.
const (
	KindRepository  EntityKind = "repository"  // A source code repository.
	KindComponent   EntityKind = "component"   // A deployable service or library.
	KindApplication EntityKind = "application" // A business-level application grouping components.
)

// Matches reports whether the given type string identifies this kind.
// The graph API is inconsistent about casing and abbreviations ("Repo",
// "repository", "REPOSITORY"), so matching is case-insensitive and accepts
// the common short forms.
func (k EntityKind) Matches(entityType string) bool {
	t := strings.ToLower(strings.TrimSpace(entityType))
	if t == string(k) {
		return true
	}
	switch k {
	case KindRepository:
		return t == "repo"
	case KindApplication:
		return t == "app"
	}
	return false
}

// EntityRef is the lightweight projection of an entity embedded in
// relationship payloads.
type EntityRef struct {
	ID          string `json:"id"`
	ShortID     string `json:"shortId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
}

// Relationship links an entity to another entity in the graph.
type Relationship struct {
	Type string    `json:"type"`
	To   EntityRef `json:"to"`
}

// Entity is the canonical representation of a graph node. Entities are
// read-only snapshots fetched per resolution call and are never cached
// across calls.
type Entity struct {
	ID            string         `json:"id"`
	ShortID       string         `json:"shortId"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Type          string         `json:"type"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// Attribute returns the first non-empty string attribute among the given
// keys. The graph API stores the same logical field under different names
// depending on which integration wrote it, so callers pass the probe order
// explicitly.
func (e *Entity) Attribute(keys ...string) string {
	for _, k := range keys {
		if v, ok := e.Attributes[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Ref returns the lightweight projection of the entity.
func (e *Entity) Ref() EntityRef {
	return EntityRef{
		ID:          e.ID,
		ShortID:     e.ShortID,
		Name:        e.Name,
		Description: e.Description,
		Type:        e.Type,
	}
}
