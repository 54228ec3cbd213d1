package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates a file (and its parents) under root with trivial content.
func writeFile(t *testing.T, root string, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestResolveFileURIExactMatch(t *testing.T) {
	root := t.TempDir()
	abs := writeFile(t, root, "src/handlers/auth.ts")
	r := NewResolver([]string{root}, nil, nil)

	uri, ok := r.ResolveFileURI("src/handlers/auth.ts")

	require.True(t, ok)
	assert.Equal(t, FileURI(abs), uri)
}

func TestResolveFileURILeadingSlashTolerated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.py")
	r := NewResolver([]string{root}, nil, nil)

	_, ok := r.ResolveFileURI("/src/main.py")
	assert.True(t, ok)
}

func TestResolveFileURIFuzzyBasename(t *testing.T) {
	root := t.TempDir()
	abs := writeFile(t, root, "services/api/auth.ts")
	r := NewResolver([]string{root}, nil, nil)

	// The scanner reported a container path layout that does not exist
	// locally; the basename search still places the file.
	uri, ok := r.ResolveFileURI("build/output/auth.ts")

	require.True(t, ok)
	assert.Equal(t, FileURI(abs), uri)
}

func TestResolveFileURIMiss(t *testing.T) {
	r := NewResolver([]string{t.TempDir()}, nil, nil)

	_, ok := r.ResolveFileURI("src/gone.ts")
	assert.False(t, ok)

	_, ok = r.ResolveFileURI("")
	assert.False(t, ok)

	_, ok = r.ResolveFileURI("   ")
	assert.False(t, ok)
}

func TestResolveFileURIRootOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, first, "shared.go")
	writeFile(t, second, "shared.go")
	r := NewResolver([]string{first, second}, nil, nil)

	uri, ok := r.ResolveFileURI("shared.go")

	require.True(t, ok)
	assert.True(t, strings.HasPrefix(uri, FileURI(first)), "roots are tried in order")
}

func TestFindFilesSkipsVendorDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/pkg/target.js")
	writeFile(t, root, ".git/objects/target.js")
	kept := writeFile(t, root, "src/target.js")
	r := NewResolver([]string{root}, nil, nil)

	matches := r.FindFiles("target.js", 10)

	require.Len(t, matches, 1)
	assert.Equal(t, kept, matches[0])
}

func TestFindFilesExtraSkips(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "generated/target.js")
	r := NewResolver([]string{root}, []string{"generated"}, nil)

	assert.Empty(t, r.FindFiles("target.js", 10))
}

func TestFindFilesHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("out/\nsecret.env\n"), 0o644))
	writeFile(t, root, "out/target.js")
	writeFile(t, root, "secret.env")
	kept := writeFile(t, root, "src/target.js")

	r := NewResolver([]string{root}, nil, nil)

	matches := r.FindFiles("target.js", 10)
	require.Len(t, matches, 1)
	assert.Equal(t, kept, matches[0])

	assert.Empty(t, r.FindFiles("secret.env", 10))
}

func TestFindFilesLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/match.go")
	writeFile(t, root, "b/match.go")
	writeFile(t, root, "c/match.go")
	r := NewResolver([]string{root}, nil, nil)

	assert.Len(t, r.FindFiles("match.go", 2), 2)
	assert.Len(t, r.FindFiles("match.go", 0), 1, "non-positive limits behave as 1")
}

func TestFindFilesGlobPattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/web.csproj")
	r := NewResolver([]string{root}, nil, nil)

	matches := r.FindFiles("*.csproj", 1)
	require.Len(t, matches, 1)
	assert.True(t, strings.HasSuffix(matches[0], "web.csproj"))
}

func TestFileURI(t *testing.T) {
	assert.Equal(t, "file:///home/dev/project/a.go", FileURI("/home/dev/project/a.go"))
}
