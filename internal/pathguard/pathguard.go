// Package pathguard implements the security boundary from spec.md
// §4.2: it rejects traversal-escape local paths and unsafe repository
// URLs before any I/O is attempted.
package pathguard

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Jianxun/ams-compose/internal/errs"
)

// acceptedSchemes mirrors spec.md §3's ImportSpec.repo scheme list.
var acceptedSchemes = map[string]bool{
	"https":     true,
	"ssh":       true,
	"git":       true,
	"git+https": true,
	"git+ssh":   true,
}

// shorthandHost matches the "host:owner/name" shorthand form, e.g.
// "github.com:org/repo" — a colon that is not part of a scheme.
var shorthandHost = regexp.MustCompile(`^[A-Za-z0-9.\-]+:[A-Za-z0-9_.\-]+/[A-Za-z0-9_.\-]+(\.git)?$`)

// unsafeChars are shell metacharacters that must never appear in a
// repository URL, regardless of scheme.
const unsafeChars = ";|`\n"

// ResolveLibraryPath implements spec.md §4.2 path resolution:
//  1. candidate = spec.LocalPath or f"{libraryRoot}/{name}"
//  2. reject absolute candidates
//  3. join with projectRoot, lexically normalize, require projectRoot
//     as a prefix of the result (no symlink resolution — avoids TOCTOU)
//  4. reject candidate == projectRoot
func ResolveLibraryPath(projectRoot, libraryRoot, name, localPath string) (string, error) {
	candidate := localPath
	if candidate == "" {
		candidate = filepath.Join(libraryRoot, name)
	}

	if filepath.IsAbs(candidate) {
		return "", fmt.Errorf("%w: local_path %q must be relative", errs.ErrPathEscape, candidate)
	}

	absRoot, err := filepath.Abs(filepath.Clean(projectRoot))
	if err != nil {
		return "", err
	}

	joined := filepath.Join(absRoot, candidate)
	cleaned := filepath.Clean(joined)

	if cleaned == absRoot {
		return "", fmt.Errorf("%w: local_path resolves to project root itself", errs.ErrPathEscape)
	}

	rel, err := filepath.Rel(absRoot, cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrPathEscape, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: local_path %q escapes project root", errs.ErrPathEscape, candidate)
	}

	return cleaned, nil
}

// ValidateRepoURL implements spec.md §4.2 URL validation: accepted
// schemes, file:// only under testMode, rejection of shell
// metacharacters, lexical-only checks (no DNS resolution).
func ValidateRepoURL(url string, testMode bool) error {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return fmt.Errorf("%w: empty repository url", errs.ErrUnsafeURL)
	}

	if strings.ContainsAny(trimmed, unsafeChars) || strings.Contains(trimmed, "$(") {
		return fmt.Errorf("%w: repository url contains shell metacharacters", errs.ErrUnsafeURL)
	}

	if shorthandHost.MatchString(trimmed) {
		return nil
	}

	idx := strings.Index(trimmed, "://")
	if idx == -1 {
		return fmt.Errorf("%w: unrecognized repository url %q", errs.ErrUnsafeURL, trimmed)
	}
	scheme := strings.ToLower(trimmed[:idx])

	if scheme == "file" {
		if !testMode {
			return fmt.Errorf("%w: file:// repositories require test mode", errs.ErrUnsafeURL)
		}
		rest := trimmed[idx+3:]
		if strings.Contains(rest, "..") {
			return fmt.Errorf("%w: file:// path contains traversal sequences", errs.ErrUnsafeURL)
		}
		return nil
	}

	if !acceptedSchemes[scheme] {
		return fmt.Errorf("%w: unsupported scheme %q", errs.ErrUnsafeURL, scheme)
	}

	return nil
}
