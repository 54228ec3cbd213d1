// Package gitmeta reads metadata from the local git checkout, currently the
// origin remote URL used by the repository URL-search fallback.
package gitmeta

import (
	"strings"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
	"github.com/xkilldash9x/opslens-cli/internal/observability"
)

// Provider implements schemas.GitMetadata against the filesystem.
type Provider struct {
	log *zap.Logger
}

var _ schemas.GitMetadata = (*Provider)(nil)

// NewProvider creates a git metadata provider.
func NewProvider() *Provider {
	return &Provider{log: observability.GetLogger().Named("gitmeta")}
}

// RemoteURL returns the first URL of the origin remote of the repository
// containing path. Missing repository, missing remote and config errors all
// degrade to "not available".
func (p *Provider) RemoteURL(path string) (string, bool) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		p.log.Debug("No git repository detected", zap.String("path", path), zap.Error(err))
		return "", false
	}
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		p.log.Debug("No origin remote", zap.String("path", path), zap.Error(err))
		return "", false
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || urls[0] == "" {
		return "", false
	}
	return urls[0], true
}

// NormalizeURL converts a git remote URL to its canonical HTTPS form:
// SSH/scp syntax is rewritten, the .git suffix and trailing slashes are
// stripped, host and scheme are lowercased. Two remotes pointing at the same
// repository normalize to the same string.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}

	// scp-like syntax: git@github.com:org/repo.git
	if strings.HasPrefix(u, "git@") {
		u = strings.TrimPrefix(u, "git@")
		u = strings.Replace(u, ":", "/", 1)
		u = "https://" + u
	}
	u = strings.TrimPrefix(u, "ssh://")
	if strings.HasPrefix(u, "git@") { // ssh://git@host/org/repo
		u = "https://" + strings.TrimPrefix(u, "git@")
	}
	if strings.HasPrefix(u, "git://") {
		u = "https://" + strings.TrimPrefix(u, "git://")
	}
	if strings.HasPrefix(u, "http://") {
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	if !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}

	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")

	// Lowercase scheme and host only; path segments stay case-sensitive.
	if rest, ok := strings.CutPrefix(u, "https://"); ok {
		if slash := strings.Index(rest, "/"); slash >= 0 {
			u = "https://" + strings.ToLower(rest[:slash]) + rest[slash:]
		} else {
			u = "https://" + strings.ToLower(rest)
		}
	}
	return u
}

// OrgRepoPath extracts the trailing "org/repo" path segment of a remote URL,
// or "" when the URL has fewer than two path segments.
func OrgRepoPath(raw string) string {
	normalized := NormalizeURL(raw)
	rest, ok := strings.CutPrefix(normalized, "https://")
	if !ok {
		return ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 3 {
		return ""
	}
	// Last two segments; deep paths (GitLab subgroups) keep project and its
	// immediate parent, which is what name search matches on.
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}
