// Package location normalizes the heterogeneous "location" payloads
// reported by scanner integrations into a single workspace-relative
// {filePath, line, column} form. Payload shapes range from bare path
// strings to nested scanner-specific JSON; the field probe orders below
// encode real-world scanner precedence and are covered by tests.
package location

import (
	"encoding/json"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
)

// containerPathPrefix is the in-container mount point scanners commonly
// report absolute paths under.
const containerPathPrefix = "/app/"

// Probe orders per payload shape. Nodes-style payloads prefer fileName over
// path; flat payloads prefer fileName over path over file.
var (
	nodeFileKeys = []string{"fileName", "file", "path"}
	flatFileKeys = []string{"fileName", "path", "file", "filePath"}
	lineKeys     = []string{"line", "lineNumber", "startLine"}
	columnKeys   = []string{"column", "columnNumber", "startColumn"}
)

// Parse normalizes a raw location payload. The payload may be a JSON
// document ([]byte / json.RawMessage) or an already-decoded value (string or
// map). The second return value is false when the payload carries no
// location at all — callers must distinguish that from "location present but
// file not found".
func Parse(raw any) (schemas.ParsedLocation, bool) {
	switch v := raw.(type) {
	case nil:
		return schemas.ParsedLocation{}, false
	case json.RawMessage:
		return parseJSON(v)
	case []byte:
		return parseJSON(v)
	case string:
		return fromString(v)
	case map[string]any:
		return fromObject(v)
	default:
		return schemas.ParsedLocation{}, false
	}
}

func parseJSON(data []byte) (schemas.ParsedLocation, bool) {
	if len(data) == 0 {
		return schemas.ParsedLocation{}, false
	}
	var decoded any
	if err := jsoniter.Unmarshal(data, &decoded); err != nil {
		// Some integrations write the path unquoted. Treat the raw bytes as
		// a plain string, unless they were clearly meant to be structured.
		if t := data[0]; t == '{' || t == '[' {
			return schemas.ParsedLocation{}, false
		}
		return fromString(string(data))
	}
	switch v := decoded.(type) {
	case string:
		return fromString(v)
	case map[string]any:
		return fromObject(v)
	default:
		return schemas.ParsedLocation{}, false
	}
}

// fromString treats the whole string as a file path with no position.
func fromString(s string) (schemas.ParsedLocation, bool) {
	path := stripContainerPrefix(strings.TrimSpace(s))
	if path == "" {
		return schemas.ParsedLocation{}, false
	}
	return schemas.ParsedLocation{FilePath: path}, true
}

func fromObject(obj map[string]any) (schemas.ParsedLocation, bool) {
	// Scanner-specific nested format: the first node carries the location.
	if nodes, ok := obj["nodes"].([]any); ok && len(nodes) > 0 {
		if node, ok := nodes[0].(map[string]any); ok {
			if loc, ok := fromFields(node, nodeFileKeys); ok {
				return loc, true
			}
		}
		return schemas.ParsedLocation{}, false
	}
	return fromFields(obj, flatFileKeys)
}

// fromFields probes the object for a file path and optional 1-based
// line/column, converting positions to 0-based.
func fromFields(obj map[string]any, fileKeys []string) (schemas.ParsedLocation, bool) {
	path := ""
	for _, key := range fileKeys {
		if s, ok := obj[key].(string); ok {
			if trimmed := stripContainerPrefix(strings.TrimSpace(s)); trimmed != "" {
				path = trimmed
				break
			}
		}
	}
	if path == "" {
		return schemas.ParsedLocation{}, false
	}

	loc := schemas.ParsedLocation{FilePath: path}
	if line, ok := numericField(obj, lineKeys); ok {
		loc.Line = toZeroBased(line)
	}
	if col, ok := numericField(obj, columnKeys); ok {
		loc.Column = toZeroBased(col)
	}
	return loc, true
}

// numericField probes the given keys in order for a numeric value. Strings
// and other types do not count; absence of a position is meaningful.
func numericField(obj map[string]any, keys []string) (int, bool) {
	for _, key := range keys {
		switch n := obj[key].(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i), true
			}
		}
	}
	return 0, false
}

// toZeroBased converts a 1-based scanner position to 0-based, clamping
// already-0 (or bogus negative) input at 0.
func toZeroBased(n int) *int {
	v := n - 1
	if v < 0 {
		v = 0
	}
	return &v
}

// stripContainerPrefix removes the /app/ container mount prefix, or any
// leading slash, leaving a workspace-relative path.
func stripContainerPrefix(path string) string {
	if rest, ok := strings.CutPrefix(path, containerPathPrefix); ok {
		return rest
	}
	return strings.TrimLeft(path, "/")
}
