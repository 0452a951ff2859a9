// Package orchestrator executes a planner.Plan in manifest order,
// wiring MirrorCache, Extractor, and LockStore, and isolating
// per-library failures so one bad repo never aborts the whole run.
// Grounded on the original tool's LibraryInstaller.install_all /
// update_library / list_installed_libraries control flow.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jianxun/ams-compose/internal/errs"
	"github.com/Jianxun/ams-compose/internal/extractor"
	"github.com/Jianxun/ams-compose/internal/lockstore"
	"github.com/Jianxun/ams-compose/internal/logx"
	"github.com/Jianxun/ams-compose/internal/manifest"
	"github.com/Jianxun/ams-compose/internal/mirror"
	"github.com/Jianxun/ams-compose/internal/pathguard"
	"github.com/Jianxun/ams-compose/internal/planner"
)

// Status is the per-library outcome reported in the result map.
type Status string

const (
	StatusInstalled Status = "installed"
	StatusUpdated   Status = "updated"
	StatusUpToDate  Status = "up_to_date"
	StatusError     Status = "error"
	StatusSkipped   Status = "skipped"
)

// LibraryResult is what one library's execution produced.
type LibraryResult struct {
	Name          string
	Status        Status
	Commit        string
	Diagnostic    string
	LicenseChange *LicenseChange
}

// LicenseChange is a diagnostic-only report of a license identifier
// changing between the prior and new LockEntry (spec.md §4.9).
type LicenseChange struct {
	Previous string
	Current  string
}

// Orchestrator wires the mirror cache, extractor, and lock store.
type Orchestrator struct {
	ProjectRoot string
	Mirrors     *mirror.Cache
	Lock        *lockstore.Store
	Log         *logx.Logger
	TestMode    bool
}

// New constructs an Orchestrator rooted at projectRoot.
func New(projectRoot string, mirrors *mirror.Cache, lock *lockstore.Store) *Orchestrator {
	return &Orchestrator{ProjectRoot: projectRoot, Mirrors: mirrors, Lock: lock, Log: logx.Default()}
}

// mirrorResolver adapts *mirror.Cache to planner.RemoteResolver.
type mirrorResolver struct{ cache *mirror.Cache }

func (r mirrorResolver) ResolveCommit(ctx context.Context, repoURL, ref string) (string, error) {
	res, err := r.cache.Ensure(ctx, repoURL, ref, true)
	if err != nil {
		return "", err
	}
	return res.CommitSHA, nil
}

// Run plans and executes installation for the given manifest names, in
// manifest declaration order, and persists the lock file once at the
// end (spec.md §4.9, §5).
func (o *Orchestrator) Run(ctx context.Context, names []string, m *manifest.Manifest, opts planner.Options) (map[string]LibraryResult, error) {
	opts.ProjectRoot = o.ProjectRoot
	opts.TestMode = o.TestMode

	lf, err := o.Lock.Load()
	if err != nil {
		return nil, err
	}

	var resolver planner.RemoteResolver
	if opts.RemoteProbe {
		resolver = mirrorResolver{cache: o.Mirrors}
	}

	steps := planner.Plan(ctx, names, m, lf, opts, resolver)

	results := make(map[string]LibraryResult, len(steps))
	for _, step := range steps {
		results[step.Name] = o.execute(ctx, step, lf)
	}

	if err := o.Lock.Save(lf); err != nil {
		return results, err
	}
	return results, nil
}

// Plan runs reconciliation planning only, without touching the
// extractor or writing the lock file — the preview path used by
// `install --dry-run`/`update --dry-run` (SPEC_FULL.md §A.1). When
// opts.RemoteProbe is set, the remote probe still goes through the
// mirror cache (Ensure may clone, fetch, and check out). Every
// step is logged through o.Log so a NoOp-configured logger renders
// its `[NO-OP]` marker on each planned action.
func (o *Orchestrator) Plan(ctx context.Context, names []string, m *manifest.Manifest, opts planner.Options) ([]planner.Step, error) {
	opts.ProjectRoot = o.ProjectRoot
	opts.TestMode = o.TestMode

	lf, err := o.Lock.Load()
	if err != nil {
		return nil, err
	}

	var resolver planner.RemoteResolver
	if opts.RemoteProbe {
		resolver = mirrorResolver{cache: o.Mirrors}
	}

	steps := planner.Plan(ctx, names, m, lf, opts, resolver)
	for _, step := range steps {
		o.Log.Info(fmt.Sprintf("would %s %s", step.Action, step.Name), logx.String("library", step.Name), logx.String("action", string(step.Action)))
	}
	return steps, nil
}

// UpdateOne performs a targeted, forced install of a single library
// without running reconciliation over the rest of the manifest — the
// per-library update operation supplemented from the original tool's
// update_library.
func (o *Orchestrator) UpdateOne(ctx context.Context, name string, m *manifest.Manifest) (LibraryResult, error) {
	spec, ok := m.Imports[name]
	if !ok {
		return LibraryResult{Name: name, Status: StatusError}, fmt.Errorf("library %q not found in manifest", name)
	}

	lf, err := o.Lock.Load()
	if err != nil {
		return LibraryResult{Name: name, Status: StatusError}, err
	}

	localPath, err := pathguard.ResolveLibraryPath(o.ProjectRoot, m.LibraryRootOrDefault(), name, spec.LocalPath)
	if err != nil {
		return LibraryResult{Name: name, Status: StatusError, Diagnostic: err.Error()}, err
	}
	if err := pathguard.ValidateRepoURL(spec.Repo, o.TestMode); err != nil {
		return LibraryResult{Name: name, Status: StatusError, Diagnostic: err.Error()}, err
	}

	step := planner.Step{Name: name, Spec: spec, LocalPath: localPath, Action: planner.ActionInstall}
	result := o.execute(ctx, step, lf)

	if err := o.Lock.Save(lf); err != nil {
		return result, err
	}
	return result, nil
}

// ListInstalled renders the raw lock map, independent of validation
// against the current manifest — supplemented from the original
// tool's list_installed_libraries.
func (o *Orchestrator) ListInstalled() (map[string]lockstore.LockEntry, error) {
	lf, err := o.Lock.Load()
	if err != nil {
		return nil, err
	}
	return lf.Libraries, nil
}

func (o *Orchestrator) execute(ctx context.Context, step planner.Step, lf *lockstore.LockFile) LibraryResult {
	switch step.Action {
	case planner.ActionSkip:
		return LibraryResult{Name: step.Name, Status: StatusSkipped}
	case planner.ActionError:
		return LibraryResult{Name: step.Name, Status: StatusError, Diagnostic: step.Diagnostic}
	case planner.ActionUpToDate:
		if entry, ok := lf.Libraries[step.Name]; ok {
			return LibraryResult{Name: step.Name, Status: StatusUpToDate, Commit: entry.ResolvedCommit}
		}
		return LibraryResult{Name: step.Name, Status: StatusUpToDate}
	case planner.ActionInstall, planner.ActionUpdate:
		return o.installOrUpdate(ctx, step, lf)
	default:
		return LibraryResult{Name: step.Name, Status: StatusError, Diagnostic: "unknown planner action"}
	}
}

func (o *Orchestrator) installOrUpdate(ctx context.Context, step planner.Step, lf *lockstore.LockFile) LibraryResult {
	spec := step.Spec
	checkin := spec.CheckinOrDefault()

	mirrorRes, err := o.Mirrors.Ensure(ctx, spec.Repo, spec.Ref, step.Action == planner.ActionUpdate)
	if err != nil {
		return LibraryResult{Name: step.Name, Status: StatusError, Diagnostic: wrapDiag(errs.NewLibraryError(step.Name, classifyMirrorErr(err), err.Error()))}
	}

	extractRes, err := extractor.Extract(mirrorRes.MirrorPath, step.LocalPath, extractor.Spec{
		Library:         step.Name,
		ProjectRoot:     o.ProjectRoot,
		Repo:            spec.Repo,
		Ref:             spec.Ref,
		ResolvedCommit:  mirrorRes.CommitSHA,
		SourcePath:      spec.SourcePath,
		Checkin:         checkin,
		IgnorePatterns:  spec.IgnorePatterns,
		LicenseOverride: spec.License,
	})
	if err != nil {
		return LibraryResult{Name: step.Name, Status: StatusError, Diagnostic: wrapDiag(errs.NewLibraryError(step.Name, classifyExtractErr(err), err.Error()))}
	}

	prior, hadPrior := lf.Libraries[step.Name]
	now := time.Now().UTC().Format(time.RFC3339)
	installedAt := now
	if hadPrior && prior.InstalledAt != "" {
		installedAt = prior.InstalledAt
	}

	licenseID := extractRes.LicenseID

	lf.Libraries[step.Name] = lockstore.LockEntry{
		Repo:            spec.Repo,
		Ref:             spec.Ref,
		ResolvedCommit:  mirrorRes.CommitSHA,
		SourcePath:      spec.SourcePath,
		LocalPath:       step.LocalPath,
		Checkin:         checkin,
		Checksum:        extractRes.Checksum,
		LicenseID:       licenseID,
		LicenseFile:     extractRes.LicenseFile,
		InstalledAt:     installedAt,
		UpdatedAt:       now,
		NestedManifests: extractRes.NestedManifests,
	}

	status := StatusInstalled
	if step.Action == planner.ActionUpdate {
		status = StatusUpdated
	}

	result := LibraryResult{Name: step.Name, Status: status, Commit: mirrorRes.CommitSHA}
	if hadPrior && prior.LicenseID != "" && prior.LicenseID != licenseID {
		result.LicenseChange = &LicenseChange{Previous: prior.LicenseID, Current: licenseID}
	}
	return result
}

func wrapDiag(libErr *errs.LibraryError) string {
	return libErr.Error()
}

// classifyMirrorErr recovers the real error kind from a MirrorCache.Ensure
// failure so per-library diagnostics reflect what actually went wrong
// (spec.md §7's error-kind taxonomy) instead of a fixed label.
func classifyMirrorErr(err error) error {
	switch {
	case errors.Is(err, errs.ErrGitAuthFailed):
		return errs.ErrGitAuthFailed
	case errors.Is(err, errs.ErrGitRefNotFound):
		return errs.ErrGitRefNotFound
	case errors.Is(err, errs.ErrMirrorCorrupt):
		return errs.ErrMirrorCorrupt
	case errors.Is(err, errs.ErrGitTimeout):
		return errs.ErrGitTimeout
	default:
		return errs.ErrGitOperationFailed
	}
}

// classifyExtractErr recovers the real error kind from an Extractor
// failure — in particular so a PathEscape security event is never
// reported as a generic copy failure.
func classifyExtractErr(err error) error {
	switch {
	case errors.Is(err, errs.ErrPathEscape):
		return errs.ErrPathEscape
	case errors.Is(err, errs.ErrSourceMissing):
		return errs.ErrSourceMissing
	case errors.Is(err, errs.ErrChecksumFailed):
		return errs.ErrChecksumFailed
	case errors.Is(err, errs.ErrCopyFailed):
		return errs.ErrCopyFailed
	default:
		return errs.ErrExtractionFailed
	}
}
