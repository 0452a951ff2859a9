package pathguard

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Jianxun/ams-compose/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLibraryPathDefaultsToLibraryRoot(t *testing.T) {
	root := t.TempDir()
	resolved, err := ResolveLibraryPath(root, "designs/libs", "widget", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "designs", "libs", "widget"), resolved)
}

func TestResolveLibraryPathUsesLocalPathOverride(t *testing.T) {
	root := t.TempDir()
	resolved, err := ResolveLibraryPath(root, "designs/libs", "widget", "custom/place")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "custom", "place"), resolved)
}

func TestResolveLibraryPathRejectsAbsolute(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveLibraryPath(root, "designs/libs", "widget", "/etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPathEscape))
}

func TestResolveLibraryPathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveLibraryPath(root, "designs/libs", "widget", "../../etc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPathEscape))
}

func TestResolveLibraryPathRejectsProjectRootItself(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveLibraryPath(root, "designs/libs", "widget", ".")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPathEscape))
}

func TestValidateRepoURLAcceptsKnownSchemes(t *testing.T) {
	for _, url := range []string{
		"https://git.example.com/org/widget.git",
		"ssh://git@example.com/org/widget.git",
		"git://example.com/org/widget.git",
		"git+https://example.com/org/widget.git",
		"git+ssh://example.com/org/widget.git",
		"github.com:org/widget",
	} {
		assert.NoError(t, ValidateRepoURL(url, false), url)
	}
}

func TestValidateRepoURLRejectsFileWithoutTestMode(t *testing.T) {
	err := ValidateRepoURL("file:///tmp/x", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnsafeURL))
}

func TestValidateRepoURLAcceptsFileInTestMode(t *testing.T) {
	assert.NoError(t, ValidateRepoURL("file:///tmp/x", true))
}

func TestValidateRepoURLRejectsShellMetacharacters(t *testing.T) {
	for _, url := range []string{
		"https://example.com/$(whoami).git",
		"https://example.com/x;rm -rf /",
		"https://example.com/x|cat",
		"https://example.com/x`id`",
	} {
		err := ValidateRepoURL(url, false)
		require.Error(t, err, url)
		assert.True(t, errors.Is(err, errs.ErrUnsafeURL))
	}
}

func TestValidateRepoURLRejectsUnknownScheme(t *testing.T) {
	err := ValidateRepoURL("ftp://example.com/x", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnsafeURL))
}
