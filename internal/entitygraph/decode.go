package entitygraph

import (
	"bytes"
	"encoding/json"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
)

// Decode helpers for the graph API's heterogeneous response shapes. Each
// helper is an explicit ordered probe: try this field name, then that one.
// The probe order encodes real-world backend precedence and is covered by
// tests; do not reorder casually.

// rawEntity mirrors the wire shape of an entity before normalization.
type rawEntity struct {
	ID            string          `json:"id"`
	ShortID       string          `json:"shortId"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Type          string          `json:"type"`
	Attributes    json.RawMessage `json:"attributes"`
	Relationships json.RawMessage `json:"relationships"`
}

// rawAttribute is one entry of an attribute list. Older backend versions
// emit {key, value} instead of {name, value}.
type rawAttribute struct {
	Name  string `json:"name"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// rawRelationship tolerates the two relationship target spellings the
// backend has shipped.
type rawRelationship struct {
	Type   string            `json:"type"`
	To     *schemas.EntityRef `json:"to"`
	Target *schemas.EntityRef `json:"target"`
}

// firstToken returns the first non-whitespace byte of a JSON value, or 0.
func firstToken(data json.RawMessage) byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// rootFields splits a GraphQL data payload into its top-level fields.
func rootFields(data json.RawMessage) map[string]json.RawMessage {
	fields := map[string]json.RawMessage{}
	if len(data) == 0 {
		return fields
	}
	_ = jsoniter.Unmarshal(data, &fields)
	return fields
}

// decodeEntity extracts a single entity stored under the first matching
// root key.
func decodeEntity(data json.RawMessage, keys ...string) (*schemas.Entity, bool) {
	fields := rootFields(data)
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || firstToken(raw) != '{' {
			continue
		}
		if e, ok := normalizeEntity(raw); ok {
			return e, true
		}
	}
	return nil, false
}

// decodeEntityList extracts an entity list stored under the first matching
// root key. The value may be a bare array, an object wrapping a "nodes" or
// "items" array, or a relay-style edges list.
func decodeEntityList(data json.RawMessage, keys ...string) []schemas.Entity {
	fields := rootFields(data)
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if list := decodeEntityArray(raw); list != nil {
			return list
		}
	}
	return nil
}

func decodeEntityArray(raw json.RawMessage) []schemas.Entity {
	switch firstToken(raw) {
	case '[':
		var items []json.RawMessage
		if err := jsoniter.Unmarshal(raw, &items); err != nil {
			return nil
		}
		out := make([]schemas.Entity, 0, len(items))
		for _, item := range items {
			if e, ok := normalizeEntity(item); ok {
				out = append(out, *e)
			}
		}
		return out
	case '{':
		wrapper := rootFields(raw)
		for _, key := range []string{"nodes", "items", "results"} {
			if inner, ok := wrapper[key]; ok && firstToken(inner) == '[' {
				return decodeEntityArray(inner)
			}
		}
		if edges, ok := wrapper["edges"]; ok && firstToken(edges) == '[' {
			var nodes []struct {
				Node json.RawMessage `json:"node"`
			}
			if err := jsoniter.Unmarshal(edges, &nodes); err != nil {
				return nil
			}
			out := make([]schemas.Entity, 0, len(nodes))
			for _, n := range nodes {
				if e, ok := normalizeEntity(n.Node); ok {
					out = append(out, *e)
				}
			}
			return out
		}
	}
	return nil
}

// decodeItemList extracts a list of raw items stored under the first
// matching root key, unwrapping the same container shapes as
// decodeEntityArray.
func decodeItemList(data json.RawMessage, keys ...string) []json.RawMessage {
	fields := rootFields(data)
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if items := decodeRawArray(raw); items != nil {
			return items
		}
	}
	return nil
}

func decodeRawArray(raw json.RawMessage) []json.RawMessage {
	switch firstToken(raw) {
	case '[':
		var items []json.RawMessage
		if err := jsoniter.Unmarshal(raw, &items); err != nil {
			return nil
		}
		return items
	case '{':
		wrapper := rootFields(raw)
		for _, key := range []string{"nodes", "items", "results"} {
			if inner, ok := wrapper[key]; ok && firstToken(inner) == '[' {
				return decodeRawArray(inner)
			}
		}
	}
	return nil
}

// normalizeEntity converts a wire entity into the canonical form.
func normalizeEntity(raw json.RawMessage) (*schemas.Entity, bool) {
	var re rawEntity
	if err := jsoniter.Unmarshal(raw, &re); err != nil {
		return nil, false
	}
	if re.ID == "" && re.ShortID == "" && re.Name == "" {
		return nil, false
	}

	e := &schemas.Entity{
		ID:          re.ID,
		ShortID:     re.ShortID,
		Name:        re.Name,
		Description: re.Description,
		Type:        re.Type,
		Attributes:  normalizeAttributes(re.Attributes),
	}
	e.Relationships = normalizeRelationships(re.Relationships)

	// Some integrations only write the short id as an attribute.
	if e.ShortID == "" {
		e.ShortID = e.Attribute("shortId", "short_id")
	}
	return e, true
}

// normalizeAttributes accepts both the list form ([{name, value}]) and the
// plain object form and returns a flat map.
func normalizeAttributes(raw json.RawMessage) map[string]any {
	switch firstToken(raw) {
	case '[':
		var attrs []rawAttribute
		if err := jsoniter.Unmarshal(raw, &attrs); err != nil {
			return nil
		}
		out := make(map[string]any, len(attrs))
		for _, a := range attrs {
			name := a.Name
			if name == "" {
				name = a.Key
			}
			if name != "" {
				out[name] = a.Value
			}
		}
		return out
	case '{':
		var out map[string]any
		if err := jsoniter.Unmarshal(raw, &out); err != nil {
			return nil
		}
		return out
	}
	return nil
}

func normalizeRelationships(raw json.RawMessage) []schemas.Relationship {
	if firstToken(raw) != '[' {
		return nil
	}
	var rels []rawRelationship
	if err := jsoniter.Unmarshal(raw, &rels); err != nil {
		return nil
	}
	out := make([]schemas.Relationship, 0, len(rels))
	for _, r := range rels {
		target := r.To
		if target == nil {
			target = r.Target
		}
		if target == nil {
			continue
		}
		out = append(out, schemas.Relationship{Type: r.Type, To: *target})
	}
	return out
}
