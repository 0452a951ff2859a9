package lockstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Jianxun/ams-compose/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "ams-compose.lock"))
	lf, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, lf.SchemaVersion)
	assert.Empty(t, lf.Libraries)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "ams-compose.lock"))
	lf := &LockFile{Libraries: map[string]LockEntry{
		"opamp": {Repo: "https://github.com/example/opamp.git", Ref: "v1.2.0", ResolvedCommit: "abc123", Checkin: true},
	}}
	require.NoError(t, s.Save(lf))

	got, err := s.Load()
	require.NoError(t, err)
	require.Contains(t, got.Libraries, "opamp")
	assert.Equal(t, "abc123", got.Libraries["opamp"].ResolvedCommit)
}

func TestLoadRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ams-compose.lock")
	s := New(path)
	require.NoError(t, s.Save(&LockFile{SchemaVersion: SchemaVersion + 1, Libraries: map[string]LockEntry{}}))

	_, err := s.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrLockSchemaTooNew))
}

func TestUpdateAppliesMutationUnderLock(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "ams-compose.lock"))

	err := s.Update(context.Background(), func(lf *LockFile) error {
		lf.Libraries["opamp"] = LockEntry{Repo: "https://github.com/example/opamp.git", Ref: "main"}
		return nil
	})
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Contains(t, got.Libraries, "opamp")
}

func TestUpdatePropagatesFnError(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "ams-compose.lock"))
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(*LockFile) error { return boom })
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}
