// Package workspace maps normalized, workspace-relative file paths (or
// package-manifest hints) onto actual files in the open workspace folders.
package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
)

// skipDirs are never descended into during recursive search. Workspace
// config can extend this set.
var skipDirs = map[string]struct{}{
	".git":          {},
	".hg":           {},
	".svn":          {},
	"node_modules":  {},
	"__pycache__":   {},
	"venv":          {},
	".venv":         {},
	"build":         {},
	"dist":          {},
	"target":        {},
	".tox":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
}

// errStopWalk signals that the search limit was reached.
var errStopWalk = errors.New("stop walk")

// Compile-time check: the resolver is the production workspace filesystem.
var _ schemas.WorkspaceFS = (*Resolver)(nil)

// Resolver resolves paths against a set of workspace folder roots, tried in
// order.
type Resolver struct {
	roots      []string
	extraSkips map[string]struct{}
	ignores    map[string]*ignore.GitIgnore // per root, nil when absent
	log        *zap.Logger
}

// NewResolver creates a resolver over the given workspace roots. Roots that
// cannot be made absolute are kept as-is; a root-level .gitignore, when
// present, excludes its matches from recursive search.
func NewResolver(roots []string, excludeDirs []string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		extraSkips: make(map[string]struct{}, len(excludeDirs)),
		ignores:    make(map[string]*ignore.GitIgnore, len(roots)),
		log:        logger.Named("workspace"),
	}
	for _, d := range excludeDirs {
		r.extraSkips[d] = struct{}{}
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			abs = root
		}
		r.roots = append(r.roots, abs)
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(abs, ".gitignore")); err == nil {
			r.ignores[abs] = gi
		}
	}
	return r
}

// Roots returns the absolute workspace roots in resolution order.
func (r *Resolver) Roots() []string {
	return r.roots
}

// ResolveFileURI maps a workspace-relative file path to a file URI. Exact
// path match against each root wins; otherwise the basename is searched
// recursively and the first match (walk order, not scored) is taken. The
// fuzzy result can land on an unrelated same-named file in a monorepo;
// callers accept that in exchange for placing the diagnostic at all.
func (r *Resolver) ResolveFileURI(path string) (string, bool) {
	rel := strings.TrimLeft(strings.TrimSpace(path), "/")
	if rel == "" {
		return "", false
	}

	for _, root := range r.roots {
		candidate := filepath.Join(root, filepath.FromSlash(rel))
		if isRegularFile(candidate) {
			return FileURI(candidate), true
		}
	}

	base := filepath.Base(filepath.FromSlash(rel))
	if matches := r.FindFiles(base, 1); len(matches) > 0 {
		r.log.Debug("Resolved file by fuzzy basename search",
			zap.String("path", path),
			zap.String("match", matches[0]),
		)
		return FileURI(matches[0]), true
	}
	return "", false
}

// FindFiles searches all roots recursively for files whose basename matches
// the pattern (glob syntax; a plain name matches exactly), returning up to
// limit absolute paths in deterministic lexical walk order.
func (r *Resolver) FindFiles(pattern string, limit int) []string {
	if limit <= 0 {
		limit = 1
	}
	var matches []string
	for _, root := range r.roots {
		gi := r.ignores[root]
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, not fatal
			}
			name := d.Name()
			if d.IsDir() {
				if path == root {
					return nil
				}
				if _, skip := skipDirs[name]; skip {
					return filepath.SkipDir
				}
				if _, skip := r.extraSkips[name]; skip {
					return filepath.SkipDir
				}
				if gi != nil {
					if rel, relErr := filepath.Rel(root, path); relErr == nil && gi.MatchesPath(rel) {
						return filepath.SkipDir
					}
				}
				return nil
			}
			if ok, _ := filepath.Match(pattern, name); !ok {
				return nil
			}
			if gi != nil {
				if rel, relErr := filepath.Rel(root, path); relErr == nil && gi.MatchesPath(rel) {
					return nil
				}
			}
			matches = append(matches, path)
			if len(matches) >= limit {
				return errStopWalk
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			r.log.Debug("Workspace walk aborted", zap.String("root", root), zap.Error(err))
		}
		if len(matches) >= limit {
			break
		}
	}
	return matches
}

// FileURI converts an absolute path to a file:// URI.
func FileURI(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // windows drive paths
	}
	return "file://" + p
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
