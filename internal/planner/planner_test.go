package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Jianxun/ams-compose/internal/lockstore"
	"github.com/Jianxun/ams-compose/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	commit string
	err    error
}

func (s stubResolver) ResolveCommit(context.Context, string, string) (string, error) {
	return s.commit, s.err
}

func baseManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Imports: map[string]manifest.ImportSpec{
			"opamp": {Repo: "https://github.com/example/opamp.git", Ref: "v1.0.0", SourcePath: "cells/opamp"},
		},
	}
}

func TestPlanInstallsWhenNoLockEntry(t *testing.T) {
	root := t.TempDir()
	lock := &lockstore.LockFile{Libraries: map[string]lockstore.LockEntry{}}
	steps := Plan(context.Background(), []string{"opamp"}, baseManifest(), lock, Options{ProjectRoot: root}, nil)
	require.Len(t, steps, 1)
	assert.Equal(t, ActionInstall, steps[0].Action)
}

func TestPlanForceAlwaysInstalls(t *testing.T) {
	root := t.TempDir()
	m := baseManifest()
	localPath, _ := filepath.Abs(filepath.Join(root, "designs/libs/opamp"))
	lock := &lockstore.LockFile{Libraries: map[string]lockstore.LockEntry{
		"opamp": {Repo: m.Imports["opamp"].Repo, Ref: "v1.0.0", SourcePath: "cells/opamp", LocalPath: localPath, Checkin: true, ResolvedCommit: "abc"},
	}}
	steps := Plan(context.Background(), []string{"opamp"}, m, lock, Options{ProjectRoot: root, Force: true}, nil)
	assert.Equal(t, ActionInstall, steps[0].Action)
}

func TestPlanUpdateWhenRefDiffers(t *testing.T) {
	root := t.TempDir()
	m := baseManifest()
	spec := m.Imports["opamp"]
	localPath, _ := filepath.Abs(filepath.Join(root, "designs/libs/opamp"))
	require.NoError(t, os.MkdirAll(localPath, 0o755))
	lock := &lockstore.LockFile{Libraries: map[string]lockstore.LockEntry{
		"opamp": {Repo: spec.Repo, Ref: "v0.9.0", SourcePath: spec.SourcePath, LocalPath: localPath, Checkin: true, ResolvedCommit: "abc"},
	}}
	steps := Plan(context.Background(), []string{"opamp"}, m, lock, Options{ProjectRoot: root}, nil)
	assert.Equal(t, ActionUpdate, steps[0].Action)
}

func TestPlanUpToDateFastPath(t *testing.T) {
	root := t.TempDir()
	m := baseManifest()
	spec := m.Imports["opamp"]
	localPath, _ := filepath.Abs(filepath.Join(root, "designs/libs/opamp"))
	require.NoError(t, os.MkdirAll(localPath, 0o755))
	lock := &lockstore.LockFile{Libraries: map[string]lockstore.LockEntry{
		"opamp": {Repo: spec.Repo, Ref: spec.Ref, SourcePath: spec.SourcePath, LocalPath: localPath, Checkin: true, ResolvedCommit: "abc"},
	}}
	steps := Plan(context.Background(), []string{"opamp"}, m, lock, Options{ProjectRoot: root}, nil)
	assert.Equal(t, ActionUpToDate, steps[0].Action)
}

func TestPlanRemoteProbeDetectsUpdate(t *testing.T) {
	root := t.TempDir()
	m := baseManifest()
	spec := m.Imports["opamp"]
	localPath, _ := filepath.Abs(filepath.Join(root, "designs/libs/opamp"))
	require.NoError(t, os.MkdirAll(localPath, 0o755))
	lock := &lockstore.LockFile{Libraries: map[string]lockstore.LockEntry{
		"opamp": {Repo: spec.Repo, Ref: spec.Ref, SourcePath: spec.SourcePath, LocalPath: localPath, Checkin: true, ResolvedCommit: "abc"},
	}}
	steps := Plan(context.Background(), []string{"opamp"}, m, lock, Options{ProjectRoot: root, RemoteProbe: true}, stubResolver{commit: "def"})
	assert.Equal(t, ActionUpdate, steps[0].Action)
}

func TestPlanRepairsMissingLocalPath(t *testing.T) {
	root := t.TempDir()
	m := baseManifest()
	spec := m.Imports["opamp"]
	lock := &lockstore.LockFile{Libraries: map[string]lockstore.LockEntry{
		"opamp": {Repo: spec.Repo, Ref: spec.Ref, SourcePath: spec.SourcePath, LocalPath: filepath.Join(root, "designs/libs/opamp"), Checkin: true, ResolvedCommit: "abc"},
	}}
	steps := Plan(context.Background(), []string{"opamp"}, m, lock, Options{ProjectRoot: root}, nil)
	assert.Equal(t, ActionInstall, steps[0].Action)
}

func TestPlanSkipsLibrariesOutsideTargets(t *testing.T) {
	root := t.TempDir()
	lock := &lockstore.LockFile{Libraries: map[string]lockstore.LockEntry{}}
	steps := Plan(context.Background(), []string{"opamp"}, baseManifest(), lock, Options{ProjectRoot: root, Targets: map[string]bool{"other": true}}, nil)
	assert.Equal(t, ActionSkip, steps[0].Action)
}

func TestPlanErrorsOnResolverFailure(t *testing.T) {
	root := t.TempDir()
	m := baseManifest()
	spec := m.Imports["opamp"]
	localPath, _ := filepath.Abs(filepath.Join(root, "designs/libs/opamp"))
	require.NoError(t, os.MkdirAll(localPath, 0o755))
	lock := &lockstore.LockFile{Libraries: map[string]lockstore.LockEntry{
		"opamp": {Repo: spec.Repo, Ref: spec.Ref, SourcePath: spec.SourcePath, LocalPath: localPath, Checkin: true, ResolvedCommit: "abc"},
	}}
	steps := Plan(context.Background(), []string{"opamp"}, m, lock, Options{ProjectRoot: root, RemoteProbe: true}, stubResolver{err: errors.New("network down")})
	assert.Equal(t, ActionError, steps[0].Action)
}
