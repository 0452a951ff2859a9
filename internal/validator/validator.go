// Package validator implements spec.md §4.10: per-library validation
// against the lock file's recorded checksum, and a cleaner that prunes
// unreferenced mirrors and orphaned library directories.
package validator

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Jianxun/ams-compose/internal/checksum"
	"github.com/Jianxun/ams-compose/internal/ignore"
	"github.com/Jianxun/ams-compose/internal/lockstore"
	"github.com/Jianxun/ams-compose/internal/manifest"
	"github.com/Jianxun/ams-compose/internal/metadata"
	"github.com/Jianxun/ams-compose/internal/mirror"
)

// ValidationStatus is the per-library verdict.
type ValidationStatus string

const (
	StatusNotInstalled ValidationStatus = "not_installed"
	StatusMissing      ValidationStatus = "missing"
	StatusValid        ValidationStatus = "valid"
	StatusModified     ValidationStatus = "modified"
	StatusOrphaned     ValidationStatus = "orphaned"
	StatusError        ValidationStatus = "error"
)

// LibraryValidation is the validator's per-library report.
type LibraryValidation struct {
	Name       string
	Status     ValidationStatus
	Diagnostic string
}

// Validator checks lock entries against the extracted trees they describe.
type Validator struct {
	ProjectRoot string
	Mirrors     *mirror.Cache
}

// New constructs a Validator rooted at projectRoot.
func New(projectRoot string, mirrors *mirror.Cache) *Validator {
	return &Validator{ProjectRoot: projectRoot, Mirrors: mirrors}
}

// ValidateLibrary checks a single lock entry's on-disk tree digest
// against its recorded checksum.
func ValidateLibrary(name string, entry *lockstore.LockEntry) LibraryValidation {
	if entry == nil {
		return LibraryValidation{Name: name, Status: StatusNotInstalled}
	}

	info, err := os.Stat(entry.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return LibraryValidation{Name: name, Status: StatusMissing}
		}
		return LibraryValidation{Name: name, Status: StatusError, Diagnostic: err.Error()}
	}

	var sum string
	if info.IsDir() {
		sum, err = checksum.TreeDigest(entry.LocalPath, excludePredicate)
	} else {
		// A single-file source_path library (SPEC_FULL.md §C.5) was
		// extracted and checksummed as a plain file, not a tree —
		// mirror that here or every such library reports "modified"
		// right after a clean install.
		sum, err = checksum.FileDigest(entry.LocalPath)
	}
	if err != nil {
		return LibraryValidation{Name: name, Status: StatusError, Diagnostic: err.Error()}
	}

	if sum == entry.Checksum {
		return LibraryValidation{Name: name, Status: StatusValid}
	}
	return LibraryValidation{Name: name, Status: StatusModified}
}

func excludePredicate(relPath string) bool {
	if strings.EqualFold(filepath.Base(relPath), metadata.FileName) {
		return true
	}
	return ignore.IsBuiltinExcluded(filepath.Base(relPath))
}

// ValidateInstallation runs ValidateLibrary for every library named in
// m (using the current lock entry, if any) and for every library that
// exists only in the lock, which is reported as orphaned.
func (v *Validator) ValidateInstallation(m *manifest.Manifest, lf *lockstore.LockFile) []LibraryValidation {
	seen := make(map[string]bool, len(m.Imports))
	results := make([]LibraryValidation, 0, len(m.Imports)+len(lf.Libraries))

	for name := range m.Imports {
		seen[name] = true
		var entryPtr *lockstore.LockEntry
		if entry, ok := lf.Libraries[name]; ok {
			entryPtr = &entry
		}
		results = append(results, ValidateLibrary(name, entryPtr))
	}

	for name := range lf.Libraries {
		if seen[name] {
			continue
		}
		results = append(results, LibraryValidation{Name: name, Status: StatusOrphaned})
	}

	return results
}

// CleanResult reports what Clean removed.
type CleanResult struct {
	RemovedMirrors     []string
	RepairedMirrors    []string
	RemovedDirectories []string
}

// Clean removes mirror directories whose URL digest is no longer
// referenced by any LockEntry, repairs mirrors that are still
// referenced but corrupt (not a valid git repository at all — e.g. an
// interrupted clone), and — when removeOrphans is true — removes
// library directories whose lock entry has no corresponding manifest
// import ("orphaned"), but only those that still contain a provenance
// metadata file matching the stale LockEntry (spec.md §4.10: guards
// against deleting user-created directories).
func (v *Validator) Clean(m *manifest.Manifest, lf *lockstore.LockFile, removeOrphans bool) (*CleanResult, error) {
	result := &CleanResult{}

	referenced := make(map[string]bool, len(lf.Libraries))
	for _, entry := range lf.Libraries {
		referenced[checksum.RepoURLDigest(entry.Repo)] = true
	}

	digests, err := v.Mirrors.List()
	if err != nil {
		return nil, err
	}
	for _, digest := range digests {
		if !referenced[digest] {
			if err := v.Mirrors.Remove(digest); err != nil {
				return nil, err
			}
			result.RemovedMirrors = append(result.RemovedMirrors, digest)
			continue
		}
		if mirror.IsCorrupt(v.Mirrors.DigestPath(digest)) {
			// Referenced but not a valid git repository — Ensure has
			// no prior clone to recover from, so remove it now and let
			// the next install/update re-clone from scratch.
			if err := v.Mirrors.Remove(digest); err != nil {
				return nil, err
			}
			result.RepairedMirrors = append(result.RepairedMirrors, digest)
		}
	}

	if removeOrphans {
		for name, entry := range lf.Libraries {
			if _, inManifest := m.Imports[name]; inManifest {
				continue
			}
			rec, err := metadata.Read(entry.LocalPath)
			if err != nil || rec == nil {
				continue
			}
			if rec.Library != name || rec.ResolvedCommit != entry.ResolvedCommit {
				continue
			}
			if err := os.RemoveAll(entry.LocalPath); err != nil {
				return nil, err
			}
			delete(lf.Libraries, name)
			result.RemovedDirectories = append(result.RemovedDirectories, entry.LocalPath)
		}
	}

	return result, nil
}
