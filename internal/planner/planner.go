// Package planner implements the reconciliation logic from spec.md
// §4.8: diffing the manifest against the current lock file to decide,
// per library, whether to install, update, or leave alone.
package planner

import (
	"context"
	"os"

	"github.com/google/go-cmp/cmp"

	"github.com/Jianxun/ams-compose/internal/lockstore"
	"github.com/Jianxun/ams-compose/internal/manifest"
	"github.com/Jianxun/ams-compose/internal/pathguard"
)

// Action is the decided operation for one manifest library.
type Action string

const (
	ActionInstall  Action = "install"
	ActionUpdate   Action = "update"
	ActionUpToDate Action = "up_to_date"
	ActionError    Action = "error"
	ActionSkip     Action = "skip"
)

// RemoteResolver resolves the current commit for (repoURL, ref),
// factoring MirrorCache's network activity out of the planner so its
// output stays deterministic except for this one call.
type RemoteResolver interface {
	ResolveCommit(ctx context.Context, repoURL, ref string) (string, error)
}

// Step is the planned action for a single manifest library.
type Step struct {
	Name       string
	Spec       manifest.ImportSpec
	LocalPath  string
	Action     Action
	LockEntry  *lockstore.LockEntry
	Diagnostic string
	Diff       string
}

// Options controls planning behavior, per spec.md §4.8's input flags.
type Options struct {
	Force       bool
	RemoteProbe bool
	Targets     map[string]bool
	ProjectRoot string
	TestMode    bool
}

// Plan produces one Step per manifest library, in manifest declaration
// order (spec.md §5's ordering guarantee — callers MUST iterate
// manifest.Imports in the order supplied by Names, not map order).
func Plan(ctx context.Context, names []string, m *manifest.Manifest, lock *lockstore.LockFile, opts Options, resolver RemoteResolver) []Step {
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		spec := m.Imports[name]
		steps = append(steps, planOne(ctx, name, spec, m.LibraryRootOrDefault(), lock, opts, resolver))
	}
	return steps
}

func planOne(ctx context.Context, name string, spec manifest.ImportSpec, libraryRoot string, lock *lockstore.LockFile, opts Options, resolver RemoteResolver) Step {
	if opts.Targets != nil && !opts.Targets[name] {
		return Step{Name: name, Spec: spec, Action: ActionSkip}
	}

	localPath, err := pathguard.ResolveLibraryPath(opts.ProjectRoot, libraryRoot, name, spec.LocalPath)
	if err != nil {
		return Step{Name: name, Spec: spec, Action: ActionError, Diagnostic: err.Error()}
	}

	if err := pathguard.ValidateRepoURL(spec.Repo, opts.TestMode); err != nil {
		return Step{Name: name, Spec: spec, LocalPath: localPath, Action: ActionError, Diagnostic: err.Error()}
	}

	entry, hasEntry := lock.Libraries[name]
	var entryPtr *lockstore.LockEntry
	if hasEntry {
		entryPtr = &entry
	}
	base := Step{Name: name, Spec: spec, LocalPath: localPath, LockEntry: entryPtr}

	if opts.Force {
		base.Action = ActionInstall
		return base
	}

	if !hasEntry {
		base.Action = ActionInstall
		return base
	}

	if specChanged(spec, localPath, entry) {
		base.Action = ActionInstall
		base.Diff = cmp.Diff(entry, lockstore.LockEntry{
			Repo: spec.Repo, SourcePath: spec.SourcePath, LocalPath: localPath, Checkin: spec.CheckinOrDefault(),
		})
		return base
	}

	if _, statErr := os.Stat(localPath); statErr != nil {
		base.Action = ActionInstall
		base.Diagnostic = "local path missing, repairing"
		return base
	}

	if spec.Ref != entry.Ref {
		base.Action = ActionUpdate
		return base
	}

	if opts.RemoteProbe && resolver != nil {
		commit, err := resolver.ResolveCommit(ctx, spec.Repo, spec.Ref)
		if err != nil {
			base.Action = ActionError
			base.Diagnostic = err.Error()
			return base
		}
		if commit != entry.ResolvedCommit {
			base.Action = ActionUpdate
			return base
		}
	}

	base.Action = ActionUpToDate
	return base
}

func specChanged(spec manifest.ImportSpec, localPath string, entry lockstore.LockEntry) bool {
	return spec.Repo != entry.Repo ||
		spec.SourcePath != entry.SourcePath ||
		localPath != entry.LocalPath ||
		spec.CheckinOrDefault() != entry.Checkin
}
