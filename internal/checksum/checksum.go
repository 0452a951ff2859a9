// Package checksum implements the content-addressing primitives from
// spec.md §4.1: file digests, whole-tree digests, and repository URL
// digests.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExcludePredicate reports whether a path (relative to the tree root,
// slash-separated) must be excluded from a tree digest.
type ExcludePredicate func(relPath string) bool

// FileDigest returns the hex-encoded SHA-256 of a file's byte contents.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TreeDigest computes the checksum described in spec.md §4.1: for every
// file under root not rejected by exclude, hash
// sha256(relPath || 0x00 || sha256(content)); sort the per-file hashes
// by relative path and hash the sorted concatenation. Symlinks are
// hashed by their target string, not followed. Empty directories do
// not contribute.
func TreeDigest(root string, exclude ExcludePredicate) (string, error) {
	type entry struct {
		relPath string
		sum     [sha256.Size]byte
	}
	var entries []entry

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if exclude != nil && exclude(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		var contentSum [sha256.Size]byte
		if info.Mode()&os.ModeSymlink != 0 {
			target, lerr := os.Readlink(path)
			if lerr != nil {
				return lerr
			}
			contentSum = sha256.Sum256([]byte(target))
		} else {
			f, ferr := os.Open(path)
			if ferr != nil {
				return ferr
			}
			h := sha256.New()
			_, cerr := io.Copy(h, f)
			f.Close()
			if cerr != nil {
				return cerr
			}
			copy(contentSum[:], h.Sum(nil))
		}

		entryHash := sha256.New()
		entryHash.Write([]byte(rel))
		entryHash.Write([]byte{0x00})
		entryHash.Write(contentSum[:])

		var sum [sha256.Size]byte
		copy(sum[:], entryHash.Sum(nil))
		entries = append(entries, entry{relPath: rel, sum: sum})
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].relPath < entries[j].relPath
	})

	final := sha256.New()
	for _, e := range entries {
		final.Write(e.sum[:])
	}
	return hex.EncodeToString(final.Sum(nil)), nil
}

// RepoURLDigest normalizes a repository URL (lowercase scheme, strip
// trailing slash, strip .git suffix, strip fragment/query) and returns
// the first 16 hex characters of its SHA-256 digest. Stable across
// runs and platforms per spec.md §4.1.
func RepoURLDigest(url string) string {
	normalized := NormalizeRepoURL(url)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizeRepoURL applies the normalization rules used by RepoURLDigest
// so callers can reason about/display the canonical form.
func NormalizeRepoURL(url string) string {
	u := strings.TrimSpace(url)

	// Strip fragment and query.
	if i := strings.IndexAny(u, "#?"); i != -1 {
		u = u[:i]
	}

	u = strings.TrimRight(u, "/")
	u = strings.TrimSuffix(u, ".git")

	// Lowercase only the scheme portion (e.g. "HTTPS://Host/Path" ->
	// "https://Host/Path"); the rest of the URL is case-sensitive on
	// many hosts, but tests and spec examples only require scheme
	// lowercasing plus the trailing-slash/.git stripping to be stable.
	if idx := strings.Index(u, "://"); idx != -1 {
		u = strings.ToLower(u[:idx]) + u[idx:]
	}

	return u
}
