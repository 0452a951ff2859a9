package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jianxun/ams-compose/pkg/exitcode"
)

func newSourceRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cells", "opamp"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cells", "opamp", "opamp.sch"), []byte("schematic"), 0o644))
	_, err = wt.Add(".")
	require.NoError(t, err)
	sig := &object.Signature{Name: "t", Email: "t@example.com", When: time.Unix(1700000000, 0)}
	_, err = wt.Commit("initial", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	// file:// repository URLs pass validation only in test mode.
	t.Setenv("AMS_COMPOSE_TEST_MODE", "1")
	return "file://" + dir
}

func writeManifest(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ams-compose.yaml"), []byte(content), 0o644))
}

func TestRunInitWritesManifest(t *testing.T) {
	root := t.TempDir()
	code := Run([]string{"init", "--project-root", root})
	assert.Equal(t, exitcode.Success, code)
	assert.FileExists(t, filepath.Join(root, "ams-compose.yaml"))
}

func TestRunInitFailsWhenManifestExists(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "imports: {}\n")
	code := Run([]string{"init", "--project-root", root})
	assert.Equal(t, exitcode.ConfigError, code)
}

func TestRunInstallAndListRoundTrip(t *testing.T) {
	src := newSourceRepo(t)
	root := t.TempDir()
	writeManifest(t, root, `imports:
  opamp:
    repo: `+src+`
    ref: master
    source_path: cells/opamp
`)

	code := Run([]string{"install", "--project-root", root})
	require.Equal(t, exitcode.Success, code)
	assert.FileExists(t, filepath.Join(root, "designs", "libs", "opamp", "opamp.sch"))

	code = Run([]string{"list", "--project-root", root})
	assert.Equal(t, exitcode.Success, code)
}

func TestRunInstallDryRunDoesNotWriteAnything(t *testing.T) {
	src := newSourceRepo(t)
	root := t.TempDir()
	writeManifest(t, root, `imports:
  opamp:
    repo: `+src+`
    ref: master
    source_path: cells/opamp
`)

	code := Run([]string{"install", "--dry-run", "--project-root", root})
	require.Equal(t, exitcode.Success, code)

	assert.NoFileExists(t, filepath.Join(root, "designs", "libs", "opamp", "opamp.sch"))
	assert.NoFileExists(t, filepath.Join(root, ".ams-compose.lock"))
}

func TestRunValidateDetectsModification(t *testing.T) {
	src := newSourceRepo(t)
	root := t.TempDir()
	writeManifest(t, root, `imports:
  opamp:
    repo: `+src+`
    ref: master
    source_path: cells/opamp
`)

	require.Equal(t, exitcode.Success, Run([]string{"install", "--project-root", root}))
	require.Equal(t, exitcode.Success, Run([]string{"validate", "--project-root", root}))

	tampered := filepath.Join(root, "designs", "libs", "opamp", "opamp.sch")
	require.NoError(t, os.WriteFile(tampered, []byte("tampered"), 0o644))

	assert.Equal(t, exitcode.LibraryError, Run([]string{"validate", "--project-root", root}))
}

func TestRunInstallReportsLibraryErrorAndExitsNonZero(t *testing.T) {
	src := newSourceRepo(t)
	root := t.TempDir()
	writeManifest(t, root, `imports:
  bad:
    repo: `+src+`
    ref: does-not-exist
    source_path: cells/opamp
`)

	code := Run([]string{"install", "--project-root", root})
	assert.Equal(t, exitcode.LibraryError, code)
}

func TestRunRejectsMalformedManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "imports:\n  bad:\n    unknown_field: true\n")
	code := Run([]string{"install", "--project-root", root})
	assert.Equal(t, exitcode.ConfigError, code)
}

func TestRunSchemaSucceeds(t *testing.T) {
	assert.Equal(t, exitcode.Success, Run([]string{"schema"}))
}
