package license

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFindsCanonicalFileByPriority(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "COPYING"), []byte("MIT License\nPermission is hereby granted, free of charge"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LICENSE"), []byte("MIT License\nPermission is hereby granted, free of charge"), 0o644))

	found, err := Scan(dir)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "LICENSE", found.Path)
	assert.Equal(t, "MIT", found.ID)
}

func TestScanFallsBackToShallowSubdirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "licenses"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "licenses", "LICENSE.txt"), []byte("Apache License\nVersion 2.0"), 0o644))

	found, err := Scan(dir)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, filepath.Join("licenses", "LICENSE.txt"), found.Path)
	assert.Equal(t, "Apache-2.0", found.ID)
}

func TestScanReturnsNilWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	found, err := Scan(dir)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestDetectTypeUnknownForUnrecognizedContent(t *testing.T) {
	assert.Equal(t, Unknown, DetectType("just some text with no license markers"))
}

func TestDetectTypeCoversAnchors(t *testing.T) {
	cases := map[string]string{
		"MIT License\nPermission is hereby granted, free of charge":                        "MIT",
		"Apache License\nVersion 2.0, January 2004":                                         "Apache-2.0",
		"GNU GENERAL PUBLIC LICENSE\nVersion 3, 29 June 2007":                                "GPL-3.0",
		"GNU GENERAL PUBLIC LICENSE\nVersion 2, June 1991":                                   "GPL-2.0",
		"Mozilla Public License Version 2.0":                                                 "MPL-2.0",
		"This is free and unencumbered software released into the public domain. UNLICENSE": "Unlicense",
		"Redistribution and use in source and binary forms... Neither the name of...":        "BSD-3-Clause",
	}
	for content, want := range cases {
		assert.Equal(t, want, DetectType(content), content)
	}
}

func TestIsCanonicalName(t *testing.T) {
	assert.True(t, IsCanonicalName("LICENSE-MIT"))
	assert.True(t, IsCanonicalName("COPYING.txt"))
	assert.True(t, IsCanonicalName("NOTICE"))
	assert.False(t, IsCanonicalName("readme.md"))
}
