// Package extractor implements the subpath extraction algorithm from
// spec.md §4.6: copy a curated subtree out of a mirror into the
// project, applying the ignore engine, forced-preserve license rules,
// and provenance metadata, then atomically swap it into place.
package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jianxun/ams-compose/internal/checksum"
	"github.com/Jianxun/ams-compose/internal/errs"
	"github.com/Jianxun/ams-compose/internal/ignore"
	"github.com/Jianxun/ams-compose/internal/license"
	"github.com/Jianxun/ams-compose/internal/logx"
	"github.com/Jianxun/ams-compose/internal/metadata"
)

// Spec carries the extraction parameters derived from a manifest entry
// and its resolved mirror state.
type Spec struct {
	Library         string
	ProjectRoot     string
	Repo            string
	Ref             string
	ResolvedCommit  string
	SourcePath      string
	Checkin         bool
	IgnorePatterns  []string
	LicenseOverride string
}

// Result reports what Extract produced.
type Result struct {
	DestPath        string
	Checksum        string
	LicenseID       string
	LicenseFile     string
	NestedManifests []string
}

const gitignoreFileName = ".gitignore"

// Extract copies spec.SourcePath out of mirrorPath into destPath.
func Extract(mirrorPath, destPath string, spec Spec) (*Result, error) {
	src := filepath.Join(mirrorPath, filepath.FromSlash(spec.SourcePath))
	cleanSrc := filepath.Clean(src)
	cleanMirror := filepath.Clean(mirrorPath)
	if cleanSrc != cleanMirror && !strings.HasPrefix(cleanSrc, cleanMirror+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s escapes mirror", errs.ErrPathEscape, spec.SourcePath)
	}

	srcInfo, err := os.Lstat(cleanSrc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrSourceMissing, spec.SourcePath, err)
	}

	destParent := filepath.Dir(destPath)
	if err := os.MkdirAll(destParent, 0o755); err != nil {
		return nil, err
	}

	// Single-file source_path bypasses the ignore engine, license
	// scanning, and provenance metadata entirely: the destination is
	// the file itself, tracked by its own content digest.
	if !srcInfo.IsDir() && srcInfo.Mode()&os.ModeSymlink == 0 {
		return extractSingleFile(cleanSrc, destPath)
	}

	destTmp, err := os.MkdirTemp(destParent, filepath.Base(destPath)+".tmp-*")
	if err != nil {
		return nil, err
	}
	succeeded := false
	defer func() {
		if !succeeded {
			_ = os.RemoveAll(destTmp)
		}
	}()

	engine, err := ignore.NewEngine(spec.ProjectRoot, spec.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	nested, err := copyTree(cleanSrc, destTmp, engine, spec.Checkin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCopyFailed, err)
	}

	if spec.Checkin && spec.SourcePath != "." {
		if err := preserveRootLicense(mirrorPath, destTmp); err != nil {
			return nil, err
		}
	}

	var licenseID, licenseFile string
	if found, err := license.Scan(destTmp); err != nil {
		return nil, err
	} else if found != nil {
		licenseID, licenseFile = found.ID, found.Path
	}
	if spec.LicenseOverride != "" {
		licenseID = spec.LicenseOverride
	}

	if err := metadata.Write(destTmp, metadata.Record{
		Library:         spec.Library,
		Repo:            spec.Repo,
		Ref:             spec.Ref,
		ResolvedCommit:  spec.ResolvedCommit,
		SourcePath:      spec.SourcePath,
		Checkin:         spec.Checkin,
		LicenseID:       licenseID,
		LicenseFile:     licenseFile,
		ExtractedAt:     time.Now().UTC().Format(time.RFC3339),
		NestedManifests: nested,
	}); err != nil {
		return nil, err
	}

	sum, err := treeChecksum(destTmp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrChecksumFailed, err)
	}

	if !spec.Checkin {
		if err := writeExclusionGitignore(destTmp); err != nil {
			return nil, err
		}
	}

	if err := swapIntoPlace(destTmp, destPath); err != nil {
		return nil, err
	}
	succeeded = true

	if len(nested) > 0 {
		logx.Default().Warn("nested manifest files found inside extracted library",
			logx.String("library", spec.Library), logx.Int("count", len(nested)))
	}

	return &Result{
		DestPath:        destPath,
		Checksum:        sum,
		LicenseID:       licenseID,
		LicenseFile:     licenseFile,
		NestedManifests: nested,
	}, nil
}

// extractSingleFile implements the single-file source_path support
// supplemented from the original tool: the destination is the file
// itself, with no ignore filtering, license scan, or provenance
// metadata attached, and the checksum is a plain file digest.
func extractSingleFile(src, destPath string) (*Result, error) {
	destTmp := destPath + ".tmp-" + filepath.Base(src)
	if err := copyFilePreserveMode(src, destTmp); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCopyFailed, err)
	}
	succeeded := false
	defer func() {
		if !succeeded {
			_ = os.Remove(destTmp)
		}
	}()

	sum, err := checksum.FileDigest(destTmp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrChecksumFailed, err)
	}

	if err := swapIntoPlace(destTmp, destPath); err != nil {
		return nil, err
	}
	succeeded = true

	return &Result{DestPath: destPath, Checksum: sum}, nil
}

// copyTree walks src, filtering through engine, and copies surviving
// entries under dest. It reports any "ams-compose.yaml" files found
// below the top level as nested manifests.
func copyTree(src, dest string, engine *ignore.Engine, checkin bool) ([]string, error) {
	var nested []string

	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		isDir := d.IsDir()
		if engine.IsIgnored(rel, isDir) && !isForcedPreserve(rel, checkin) {
			if isDir {
				return filepath.SkipDir
			}
			return nil
		}

		destPath := filepath.Join(dest, rel)

		if isDir {
			info, statErr := d.Info()
			if statErr != nil {
				return statErr
			}
			return os.MkdirAll(destPath, info.Mode().Perm()|0o700)
		}

		if strings.EqualFold(filepath.Base(rel), "ams-compose.yaml") {
			nested = append(nested, rel)
		}

		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return copySymlink(path, destPath)
		}
		return copyFilePreserveMode(path, destPath)
	})
	if err != nil {
		return nil, err
	}
	return nested, nil
}

// isForcedPreserve implements spec.md §4.4's forced-preserve override
// for LICENSE*/COPYING*/NOTICE* files within source_path, active only
// when checkin is true.
func isForcedPreserve(rel string, checkin bool) bool {
	if !checkin {
		return false
	}
	return license.IsCanonicalName(filepath.Base(rel))
}

// preserveRootLicense copies a repository-root LICENSE file into
// destTmp when extracting a subdirectory and the destination doesn't
// already have one of its own.
func preserveRootLicense(mirrorPath, destTmp string) error {
	existing, err := license.Scan(destTmp)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	rootLicense, err := license.Scan(mirrorPath)
	if err != nil {
		return err
	}
	if rootLicense == nil {
		return nil
	}

	srcPath := filepath.Join(mirrorPath, rootLicense.Path)
	destPath := filepath.Join(destTmp, filepath.Base(rootLicense.Path))
	return copyFilePreserveMode(srcPath, destPath)
}

func treeChecksum(dir string) (string, error) {
	return checksum.TreeDigest(dir, func(relPath string) bool {
		if strings.EqualFold(filepath.Base(relPath), metadata.FileName) {
			return true
		}
		return ignore.IsBuiltinExcluded(filepath.Base(relPath))
	})
}

func writeExclusionGitignore(destTmp string) error {
	content := "*\n!" + metadata.FileName + "\n"
	return os.WriteFile(filepath.Join(destTmp, gitignoreFileName), []byte(content), 0o644)
}

// swapIntoPlace atomically replaces destPath with destTmp: if destPath
// already exists it is moved to a quarantine name, destTmp is renamed
// into destPath's place, and the quarantine directory is removed.
func swapIntoPlace(destTmp, destPath string) error {
	if _, err := os.Lstat(destPath); err == nil {
		quarantine := destPath + ".quarantine-" + filepath.Base(destTmp)
		if err := os.Rename(destPath, quarantine); err != nil {
			return fmt.Errorf("failed to quarantine existing destination: %w", err)
		}
		if err := os.Rename(destTmp, destPath); err != nil {
			_ = os.Rename(quarantine, destPath)
			return fmt.Errorf("failed to swap extracted content into place: %w", err)
		}
		return os.RemoveAll(quarantine)
	}
	return os.Rename(destTmp, destPath)
}

func copyFilePreserveMode(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copySymlink(src, dest string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	_ = os.Remove(dest)
	return os.Symlink(target, dest)
}
