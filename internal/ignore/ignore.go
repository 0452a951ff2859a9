// Package ignore implements the three-tier gitignore-style filter from
// spec.md §4.4, built on go-git's gitignore matcher — the same library
// and layering approach the teacher uses for its own ignore matching.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Jianxun/ams-compose/internal/errs"
)

// BuiltinNames is Tier A: basenames that are always excluded, matching
// either a file or a directory, regardless of any other tier.
var BuiltinNames = map[string]bool{
	".git":              true,
	".gitignore":        true,
	".gitmodules":       true,
	".svn":              true,
	".hg":               true,
	"CVS":               true,
	"__pycache__":       true,
	".ipynb_checkpoints": true,
	".vscode":           true,
	".idea":             true,
	"node_modules":      true,
	".DS_Store":         true,
	"Thumbs.db":         true,
	"desktop.ini":       true,
}

// Engine matches candidate paths against the three tiers.
type Engine struct {
	matcher gitignore.Matcher
}

// NewEngine builds an Engine from:
//  1. Tier A built-ins (handled separately in IsIgnored, not as patterns)
//  2. Tier B: gitignore-syntax lines from {projectRoot}/.ams-compose-ignore
//  3. Tier C: spec.ignore_patterns supplied by the caller
func NewEngine(projectRoot string, perLibraryPatterns []string) (*Engine, error) {
	var patterns []gitignore.Pattern

	globalPatterns, err := readIgnoreLines(filepath.Join(projectRoot, ".ams-compose-ignore"))
	if err != nil {
		return nil, err
	}
	for _, p := range globalPatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	for _, p := range perLibraryPatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := validatePatternSyntax(p); err != nil {
			return nil, err
		}
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	return &Engine{matcher: gitignore.NewMatcher(patterns)}, nil
}

// validatePatternSyntax pre-validates a Tier C spec.ignore_patterns entry's
// glob syntax with doublestar before it ever reaches go-git's matcher,
// catching malformed patterns (e.g. an unterminated character class) at
// manifest-load time instead of silently never matching anything.
func validatePatternSyntax(pattern string) error {
	glob := strings.TrimPrefix(pattern, "!")
	glob = strings.TrimPrefix(glob, "/")
	glob = strings.TrimSuffix(glob, "/")
	if glob == "" {
		return nil
	}
	if _, err := doublestar.Match(glob, "probe"); err != nil {
		return fmt.Errorf("%w: %q: %s", errs.ErrInvalidPattern, pattern, err)
	}
	return nil
}

func readIgnoreLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// IsBuiltinExcluded reports whether basename matches a Tier A name.
func IsBuiltinExcluded(basename string) bool {
	return BuiltinNames[basename]
}

// IsIgnored reports whether relPath (slash-separated, relative to the
// tree being filtered) is excluded by Tier A, or by Tier B/C pattern
// matching. For directories, both the bare name form and the
// trailing-slash form are tested and either hit counts as a match,
// per spec.md §4.4's note on gitignore-library trailing-slash quirks.
func (e *Engine) IsIgnored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if IsBuiltinExcluded(filepath.Base(relPath)) {
		return true
	}

	parts := splitPath(relPath)
	if len(parts) == 0 {
		return false
	}

	if e.matcher.Match(parts, isDir) {
		return true
	}
	if isDir {
		// Some gitignore pattern sets only match a directory when the
		// path is evaluated without the directory flag (bare "foo"
		// form) — test both forms and treat either as a hit.
		if e.matcher.Match(parts, false) {
			return true
		}
	}
	return false
}

// splitPath breaks a slash-separated relative path into its non-empty
// components, relying on path.Clean to absorb redundant slashes and
// "." segments rather than filtering them out component by component.
func splitPath(relPath string) []string {
	cleaned := path.Clean(strings.Trim(relPath, "/"))
	if cleaned == "" || cleaned == "." {
		return nil
	}
	return strings.Split(cleaned, "/")
}
