package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDigestStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	d1, err := FileDigest(path)
	require.NoError(t, err)
	d2, err := FileDigest(path)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)
}

func TestTreeDigestOrderIndependent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("B"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.txt"), []byte("A"), 0o644))

	d1, err := TreeDigest(dir, nil)
	require.NoError(t, err)

	// Rebuild the same tree in a different directory with files created
	// in a different order; digest must match.
	dir2 := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir2, "b.txt"), []byte("B"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir2, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir2, "sub", "a.txt"), []byte("A"), 0o644))

	d2, err := TreeDigest(dir2, nil)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestTreeDigestExcludesPredicate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ams-compose-metadata.yaml"), []byte("meta"), 0o644))

	withMeta, err := TreeDigest(dir, nil)
	require.NoError(t, err)

	withoutMeta, err := TreeDigest(dir, func(rel string) bool {
		return rel == ".ams-compose-metadata.yaml"
	})
	require.NoError(t, err)

	assert.NotEqual(t, withMeta, withoutMeta)

	// Removing the excluded file entirely should match the "excluded" digest.
	require.NoError(t, os.Remove(filepath.Join(dir, ".ams-compose-metadata.yaml")))
	afterRemoval, err := TreeDigest(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, withoutMeta, afterRemoval)
}

func TestTreeDigestSymlinkHashesTarget(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.txt"), []byte("content"), 0o644))
	require.NoError(t, os.Symlink("real.txt", filepath.Join(dir, "link.txt")))

	d1, err := TreeDigest(dir, nil)
	require.NoError(t, err)

	// A symlink contributes the hash of its target string, so the tree
	// must digest exactly like one where link.txt is a regular file whose
	// bytes are that target string ("real.txt"), not the target's content.
	dir2 := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir2, "real.txt"), []byte("content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir2, "link.txt"), []byte("real.txt"), 0o644))
	d2, err := TreeDigest(dir2, nil)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestTreeDigestEmptyDirectoryDoesNotContribute(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))
	d1, err := TreeDigest(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))
	d2, err := TreeDigest(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestRepoURLDigestStability(t *testing.T) {
	base := "https://git.example.com/org/widget"
	withSlash := base + "/"
	withGit := base + ".git"

	d0 := RepoURLDigest(base)
	d1 := RepoURLDigest(withSlash)
	d2 := RepoURLDigest(withGit)

	assert.Equal(t, d0, d1)
	assert.Equal(t, d0, d2)
	assert.Len(t, d0, 16)
}

func TestRepoURLDigestSchemeCaseInsensitive(t *testing.T) {
	d1 := RepoURLDigest("HTTPS://git.example.com/org/widget")
	d2 := RepoURLDigest("https://git.example.com/org/widget")
	assert.Equal(t, d1, d2)
}
