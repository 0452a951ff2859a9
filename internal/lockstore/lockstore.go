// Package lockstore persists the .ams-compose.lock file (spec.md §3,
// §4.7): per-library resolved state, written atomically. Update wraps
// load/mutate/save in a cross-process file lock, following the
// load-under-lock/mutate/save pattern the teacher uses for its own
// local config store.
package lockstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/Jianxun/ams-compose/internal/errs"
)

// FileName is the lock file's fixed on-disk name.
const FileName = ".ams-compose.lock"

// SchemaVersion is the current lock file schema version. A lock file
// declaring a newer version than this is a hard error (spec.md §4.7).
const SchemaVersion = 1

// lockTimeout bounds how long Update waits to acquire the file lock.
const lockTimeout = 5 * time.Second

// LockEntry is the resolved, persisted state of one installed library.
// Field names here are this module's own wire format, not necessarily
// identical to the illustrative names used when describing the lock
// schema in prose (e.g. commit, license) — the concrete names below
// (resolved_commit, license_id, ...) are what's actually read and
// written.
type LockEntry struct {
	Repo            string   `yaml:"repo"`
	Ref             string   `yaml:"ref"`
	ResolvedCommit  string   `yaml:"resolved_commit"`
	SourcePath      string   `yaml:"source_path"`
	LocalPath       string   `yaml:"local_path"`
	Checkin         bool     `yaml:"checkin"`
	Checksum        string   `yaml:"checksum"`
	LicenseID       string   `yaml:"license_id,omitempty"`
	LicenseFile     string   `yaml:"license_file,omitempty"`
	InstalledAt     string   `yaml:"installed_at"`
	UpdatedAt       string   `yaml:"updated_at"`
	NestedManifests []string `yaml:"nested_manifests,omitempty"`
}

// LockFile is the top-level ams-compose.lock document.
type LockFile struct {
	SchemaVersion int                  `yaml:"schema_version"`
	Libraries     map[string]LockEntry `yaml:"libraries"`
}

// Store reads and atomically persists a LockFile at path. Update holds
// a sibling ".lock" file against concurrent ams-compose invocations;
// Load and Save on their own do not take it.
type Store struct {
	path string
}

// New returns a Store rooted at path (typically "<project>/.ams-compose.lock").
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the lock file, returning an empty LockFile if it does not
// exist yet (spec.md §4.7: a missing lock file is not an error — every
// library is simply treated as not-yet-installed).
func (s *Store) Load() (*LockFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LockFile{SchemaVersion: SchemaVersion, Libraries: map[string]LockEntry{}}, nil
		}
		return nil, err
	}

	var lf LockFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrLockParse, err)
	}
	if lf.Libraries == nil {
		lf.Libraries = map[string]LockEntry{}
	}
	if lf.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: file declares %d, supported %d", errs.ErrLockSchemaTooNew, lf.SchemaVersion, SchemaVersion)
	}
	return &lf, nil
}

// Save atomically writes lf to disk: marshal to a temp file in the
// same directory, then rename over the destination, so a reader never
// observes a partially-written lock file.
func (s *Store) Save(lf *LockFile) error {
	if lf.SchemaVersion == 0 {
		lf.SchemaVersion = SchemaVersion
	}
	data, err := yaml.Marshal(lf)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ams-compose.lock.*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// Update acquires the cross-process lock, loads the current lock file,
// applies updateFn, and atomically saves the result — the same
// load-under-lock/mutate/save shape the teacher's LocalStore.Update uses.
func (s *Store) Update(ctx context.Context, updateFn func(*LockFile) error) error {
	fileLock := flock.New(s.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire lock file: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock file: timeout after %v", lockTimeout)
	}
	defer fileLock.Unlock()

	lf, err := s.Load()
	if err != nil {
		return err
	}
	if err := updateFn(lf); err != nil {
		return err
	}
	return s.Save(lf)
}
