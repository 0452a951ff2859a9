// Package mirror implements the content-addressed git mirror cache
// from spec.md §4.5, grounded on the teacher's SSOT clone cache
// (open-or-clone, fetch-with-fallback, resolve-then-checkout) and
// extended with ref classification, submodule recursion, and a
// cross-process file lock guarding mirror construction.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/gofrs/flock"

	"github.com/Jianxun/ams-compose/internal/checksum"
	"github.com/Jianxun/ams-compose/internal/errs"
	"github.com/Jianxun/ams-compose/internal/logx"
)

// Default timeouts per spec.md §4.5.
const (
	DefaultCloneTimeout = 300 * time.Second
	DefaultOpsTimeout   = 60 * time.Second
)

// Result is what Ensure reports for a successfully materialized mirror.
type Result struct {
	MirrorPath string
	CommitSHA  string
}

// Cache manages the set of mirrors under "<project_root>/.mirror".
type Cache struct {
	root         string
	cloneTimeout time.Duration
	opsTimeout   time.Duration
	log          *logx.Logger
}

// New returns a Cache rooted at root (typically "<project>/.mirror").
func New(root string) *Cache {
	return &Cache{
		root:         root,
		cloneTimeout: DefaultCloneTimeout,
		opsTimeout:   DefaultOpsTimeout,
		log:          logx.Default(),
	}
}

// WithTimeouts overrides the clone/ops timeouts (primarily for tests).
func (c *Cache) WithTimeouts(clone, ops time.Duration) *Cache {
	c.cloneTimeout = clone
	c.opsTimeout = ops
	return c
}

// MirrorPath returns the deterministic path for repoURL without
// touching the filesystem.
func (c *Cache) MirrorPath(repoURL string) string {
	return filepath.Join(c.root, checksum.RepoURLDigest(repoURL))
}

// List enumerates existing mirror directories, keyed by their digest.
func (c *Cache) List() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != ".lock" {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Remove deletes the mirror directory at digest (used by the cleaner
// when no LockEntry references its repo URL any longer).
func (c *Cache) Remove(digest string) error {
	return os.RemoveAll(filepath.Join(c.root, digest))
}

// DigestPath returns the filesystem path for a mirror digest as
// reported by List, without touching the filesystem.
func (c *Cache) DigestPath(digest string) string {
	return filepath.Join(c.root, digest)
}

// Ensure produces a local directory whose working tree is checked out
// at ref's resolved commit for repoURL, and reports that commit SHA.
// It guards mirror construction with a cross-process lock so that two
// concurrent ams-compose invocations never race on the same mirror.
func (c *Cache) Ensure(ctx context.Context, repoURL, ref string, remoteProbe bool) (*Result, error) {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return nil, err
	}

	fileLock := flock.New(filepath.Join(c.root, ".lock"))
	lockCtx, cancel := context.WithTimeout(ctx, c.opsTimeout)
	defer cancel()
	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire mirror lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to acquire mirror lock: timeout")
	}
	defer fileLock.Unlock()

	mirrorPath := c.MirrorPath(repoURL)

	res, err := c.ensureLocked(ctx, repoURL, ref, mirrorPath, remoteProbe)
	if err == nil {
		return res, nil
	}

	c.log.Warn("mirror build failed, attempting single recovery", logx.String("repo", repoURL), logx.Err(err))
	if rmErr := os.RemoveAll(mirrorPath); rmErr != nil {
		return nil, fmt.Errorf("%w: cleanup after failure: %v (original: %v)", errs.ErrMirrorCorrupt, rmErr, err)
	}

	res, retryErr := c.ensureLocked(ctx, repoURL, ref, mirrorPath, remoteProbe)
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrMirrorCorrupt, retryErr)
	}
	return res, nil
}

func (c *Cache) ensureLocked(ctx context.Context, repoURL, ref, mirrorPath string, remoteProbe bool) (*Result, error) {
	repo, err := git.PlainOpen(mirrorPath)
	if err != nil {
		if err := c.cloneFresh(ctx, repoURL, ref, mirrorPath); err != nil {
			return nil, err
		}
		repo, err = git.PlainOpen(mirrorPath)
		if err != nil {
			return nil, fmt.Errorf("%w: reopen after clone: %v", errs.ErrMirrorCorrupt, err)
		}
	} else {
		if err := c.updateExisting(ctx, repo, ref, remoteProbe); err != nil {
			return nil, err
		}
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("%w: resolve HEAD: %v", errs.ErrGitRefNotFound, err)
	}
	return &Result{MirrorPath: mirrorPath, CommitSHA: head.Hash().String()}, nil
}

func (c *Cache) cloneFresh(ctx context.Context, repoURL, ref, mirrorPath string) error {
	parent := filepath.Dir(mirrorPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	tmpDir, err := os.MkdirTemp(parent, filepath.Base(mirrorPath)+".tmp-*")
	if err != nil {
		return err
	}
	succeeded := false
	defer func() {
		if !succeeded {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	cloneCtx, cancel := context.WithTimeout(ctx, c.cloneTimeout)
	defer cancel()

	repo, err := git.PlainCloneContext(cloneCtx, tmpDir, false, &git.CloneOptions{
		URL:               repoURL,
		Tags:              git.AllTags,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		if errors.Is(err, transport.ErrAuthenticationRequired) {
			return fmt.Errorf("%w: %v", errs.ErrGitAuthFailed, err)
		}
		if errors.Is(cloneCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: clone %s", errs.ErrGitTimeout, repoURL)
		}
		return fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}

	if err := c.checkoutRef(ctx, repo, ref); err != nil {
		return err
	}

	if err := os.Rename(tmpDir, mirrorPath); err != nil {
		return fmt.Errorf("failed to finalize mirror: %w", err)
	}
	succeeded = true
	return nil
}

type refKind int

const (
	refBranchLike refKind = iota
	refTagLike
	refCommitLike
)

func classifyRef(repo *git.Repository, ref string) refKind {
	if looksLikeHash(ref) {
		return refCommitLike
	}
	if _, err := repo.Tag(ref); err == nil {
		return refTagLike
	}
	return refBranchLike
}

func looksLikeHash(ref string) bool {
	if len(ref) < 7 || len(ref) > 40 {
		return false
	}
	for _, r := range ref {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

func (c *Cache) updateExisting(ctx context.Context, repo *git.Repository, ref string, remoteProbe bool) error {
	kind := classifyRef(repo, ref)

	shouldFetch := false
	switch kind {
	case refCommitLike:
		if _, err := repo.CommitObject(plumbing.NewHash(ref)); err != nil {
			shouldFetch = true
		}
	case refTagLike:
		shouldFetch = remoteProbe
	case refBranchLike:
		if remoteProbe {
			shouldFetch = true
		} else if _, err := resolveRefHash(repo, ref); err != nil {
			shouldFetch = true
		}
	}

	if shouldFetch {
		fetchCtx, cancel := context.WithTimeout(ctx, c.opsTimeout)
		defer cancel()
		if err := fetchOrigin(fetchCtx, repo); err != nil {
			return err
		}
	}

	return c.checkoutRef(ctx, repo, ref)
}

func fetchOrigin(ctx context.Context, repo *git.Repository) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.AllTags,
		Force:      true,
		RefSpecs:   []config.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if errors.Is(err, transport.ErrAuthenticationRequired) {
		return fmt.Errorf("%w: %v", errs.ErrGitAuthFailed, err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: fetch origin", errs.ErrGitTimeout)
	}
	return err
}

// referenceCandidates lists the reference-name forms worth probing for
// a ref that classifyRef couldn't resolve directly.
var referenceCandidates = func(ref string) []plumbing.ReferenceName {
	return []plumbing.ReferenceName{
		plumbing.ReferenceName(ref),
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewRemoteReferenceName("origin", ref),
		plumbing.NewTagReferenceName(ref),
	}
}

// resolveRefHash resolves ref to a commit hash. It consults classifyRef
// first so a commit-like ref never pays for a reference-name lookup, a
// tag-like ref is tried against its own reference form, and a
// branch-like ref is tried against origin's remote-tracking ref (which
// a fetch advances; the mirror's local branches stay where the clone
// left them). Anything those lookups miss falls back to ResolveRevision
// and then the full candidate list.
func resolveRefHash(repo *git.Repository, ref string) (plumbing.Hash, error) {
	switch classifyRef(repo, ref) {
	case refCommitLike:
		if hash, err := repo.ResolveRevision(plumbing.Revision(ref)); err == nil {
			return *hash, nil
		}
		return plumbing.NewHash(ref), nil
	case refTagLike:
		if reference, err := repo.Reference(plumbing.NewTagReferenceName(ref), true); err == nil {
			return reference.Hash(), nil
		}
	case refBranchLike:
		if reference, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", ref), true); err == nil {
			return reference.Hash(), nil
		}
	}

	if hash, err := repo.ResolveRevision(plumbing.Revision(ref)); err == nil {
		return *hash, nil
	}
	for _, candidate := range referenceCandidates(ref) {
		if candidate == "" {
			continue
		}
		if reference, err := repo.Reference(candidate, true); err == nil {
			return reference.Hash(), nil
		}
	}

	return plumbing.ZeroHash, fmt.Errorf("%w: %s", errs.ErrGitRefNotFound, ref)
}

func checkoutHash(repo *git.Repository, hash plumbing.Hash) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return err
	}
	return worktree.Checkout(&git.CheckoutOptions{
		Hash:  hash,
		Force: true,
	})
}

// checkoutRef resolves ref against repo, checks it out, and updates
// submodules — the sequence both cloneFresh and updateExisting need
// once they have a *git.Repository in hand.
func (c *Cache) checkoutRef(ctx context.Context, repo *git.Repository, ref string) error {
	opsCtx, cancel := context.WithTimeout(ctx, c.opsTimeout)
	defer cancel()

	hash, err := resolveRefHash(repo, ref)
	if err != nil {
		return err
	}
	if err := checkoutHash(repo, hash); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", ref, err)
	}
	return updateSubmodules(opsCtx, repo)
}

func updateSubmodules(ctx context.Context, repo *git.Repository) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return err
	}
	submodules, err := worktree.Submodules()
	if err != nil {
		return err
	}
	for _, sub := range submodules {
		if err := sub.UpdateContext(ctx, &git.SubmoduleUpdateOptions{
			Init:              true,
			RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		}); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: submodule update", errs.ErrGitTimeout)
			}
			return fmt.Errorf("failed to update submodule %s: %w", sub.Config().Name, err)
		}
	}
	return nil
}

// IsCorrupt reports whether mirrorPath exists but is not a valid git
// repository — used by the validator's repair pass.
func IsCorrupt(mirrorPath string) bool {
	if _, err := os.Stat(mirrorPath); err != nil {
		return false
	}
	_, err := git.PlainOpen(mirrorPath)
	return err != nil
}
