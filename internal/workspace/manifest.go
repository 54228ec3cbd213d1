package workspace

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
)

// Ecosystem identifies a package ecosystem detected from a scanner-supplied
// package identifier.
type Ecosystem string

// Known ecosystems.
const (
	EcosystemNPM       Ecosystem = "npm"
	EcosystemPython    Ecosystem = "python"
	EcosystemRust      Ecosystem = "rust"
	EcosystemJavaMaven Ecosystem = "java-maven"
	EcosystemGo        Ecosystem = "go"
	EcosystemRuby      Ecosystem = "ruby"
	EcosystemPHP       Ecosystem = "php"
	EcosystemDotnet    Ecosystem = "dotnet"
	EcosystemDocker    Ecosystem = "docker"
)

// ecosystemByPrefix maps the alphabetic prefix of a package identifier
// (the part before the first hyphen, lowercased) to an ecosystem.
var ecosystemByPrefix = map[string]Ecosystem{
	"npm":       EcosystemNPM,
	"node":      EcosystemNPM,
	"yarn":      EcosystemNPM,
	"pypi":      EcosystemPython,
	"pip":       EcosystemPython,
	"python":    EcosystemPython,
	"cargo":     EcosystemRust,
	"crates":    EcosystemRust,
	"rust":      EcosystemRust,
	"maven":     EcosystemJavaMaven,
	"gradle":    EcosystemJavaMaven,
	"java":      EcosystemJavaMaven,
	"go":        EcosystemGo,
	"golang":    EcosystemGo,
	"gem":       EcosystemRuby,
	"rubygems":  EcosystemRuby,
	"ruby":      EcosystemRuby,
	"composer":  EcosystemPHP,
	"packagist": EcosystemPHP,
	"php":       EcosystemPHP,
	"nuget":     EcosystemDotnet,
	"dotnet":    EcosystemDotnet,
	"docker":    EcosystemDocker,
}

// manifestsByEcosystem lists candidate manifest filenames (or globs) per
// ecosystem, in lookup priority order.
var manifestsByEcosystem = map[Ecosystem][]string{
	EcosystemNPM:       {"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml"},
	EcosystemPython:    {"requirements.txt", "pyproject.toml", "Pipfile", "setup.py", "setup.cfg"},
	EcosystemRust:      {"Cargo.toml", "Cargo.lock"},
	EcosystemJavaMaven: {"pom.xml", "build.gradle", "build.gradle.kts"},
	EcosystemGo:        {"go.mod", "go.sum"},
	EcosystemRuby:      {"Gemfile", "Gemfile.lock", "*.gemspec"},
	EcosystemPHP:       {"composer.json", "composer.lock"},
	EcosystemDotnet:    {"*.csproj", "*.fsproj", "packages.config"},
	EcosystemDocker:    {"Dockerfile", "docker-compose.yml", "docker-compose.yaml"},
}

// genericManifests is the cross-ecosystem priority list scanned at the
// workspace root when ecosystem detection (or every ecosystem candidate)
// fails.
var genericManifests = []string{
	"package.json",
	"requirements.txt",
	"go.mod",
	"Cargo.toml",
	"pom.xml",
	"composer.json",
	"Gemfile",
	"*.csproj",
	"Dockerfile*",
}

// DetectEcosystem extracts the alphabetic prefix before the first hyphen of
// a package identifier (e.g. "PyPI-requests-2.28.0" → python) and maps it to
// an ecosystem.
func DetectEcosystem(packageIdentifier string) (Ecosystem, bool) {
	prefix, _, _ := strings.Cut(strings.TrimSpace(packageIdentifier), "-")
	prefix = strings.ToLower(prefix)
	if prefix == "" || !isAlphabetic(prefix) {
		return "", false
	}
	eco, ok := ecosystemByPrefix[prefix]
	return eco, ok
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// ResolvePackageManifest maps a finding that has package identity data but
// no per-file location onto a manifest file: first the detected ecosystem's
// candidates, then a generic workspace-root scan, and finally the ambiguous
// location URI. The returned URI is never empty — every finding reaching
// this stage stays placeable.
func (r *Resolver) ResolvePackageManifest(packageIdentifier string) string {
	if eco, ok := DetectEcosystem(packageIdentifier); ok {
		for _, candidate := range manifestsByEcosystem[eco] {
			if uri, found := r.findManifest(candidate); found {
				return uri
			}
		}
		r.log.Debug("No manifest found for detected ecosystem",
			zap.String("package", packageIdentifier),
			zap.String("ecosystem", string(eco)),
		)
	}

	for _, candidate := range genericManifests {
		if uri, found := r.findManifestAtRoots(candidate); found {
			return uri
		}
	}

	r.log.Debug("Falling back to ambiguous location for package finding",
		zap.String("package", packageIdentifier),
	)
	return schemas.AmbiguousLocationURI
}

// findManifest locates one manifest candidate: plain names are stat'ed at
// each workspace root, glob patterns are searched recursively.
func (r *Resolver) findManifest(candidate string) (string, bool) {
	if !strings.ContainsAny(candidate, "*?[") {
		for _, root := range r.roots {
			path := filepath.Join(root, candidate)
			if isRegularFile(path) {
				return FileURI(path), true
			}
		}
		return "", false
	}
	if matches := r.FindFiles(candidate, 1); len(matches) > 0 {
		return FileURI(matches[0]), true
	}
	return "", false
}

// findManifestAtRoots checks a candidate at the workspace roots only, no
// recursion — the generic fallback deliberately looks at the top level.
func (r *Resolver) findManifestAtRoots(candidate string) (string, bool) {
	for _, root := range r.roots {
		if !strings.ContainsAny(candidate, "*?[") {
			path := filepath.Join(root, candidate)
			if isRegularFile(path) {
				return FileURI(path), true
			}
			continue
		}
		matches, err := filepath.Glob(filepath.Join(root, candidate))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if isRegularFile(m) {
				return FileURI(m), true
			}
		}
	}
	return "", false
}
