// Package license implements spec.md §4.3: detection of a canonical
// license file within a directory and identification of its SPDX-ish
// license type from a content pattern match.
package license

import (
	"os"
	"path/filepath"
	"strings"
)

// Unknown is returned when a license file is found but no pattern matches.
const Unknown = "Unknown"

// candidateNames lists canonical license filenames in priority order
// (case-insensitive basename match), per spec.md §4.3.
var candidateNames = []string{
	"LICENSE",
	"LICENSE.txt",
	"LICENSE.md",
	"COPYING",
	"NOTICE",
	"COPYRIGHT",
}

// shallowSubdirs are the well-known one-level-deep fallback locations
// scanned when no canonical file sits directly in dir.
var shallowSubdirs = []string{"licenses", "LICENSES", "license"}

const maxScanBytes = 4096

// Found describes a detected license file and its identifier.
type Found struct {
	// Path is relative to the scanned directory.
	Path string
	// ID is the detected SPDX-ish identifier, or Unknown.
	ID string
}

// Scan looks for a canonical license file directly under dir, falling
// back to a shallow recursive scan of well-known subdirectories if
// none is found, and returns its detected identifier.
func Scan(dir string) (*Found, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	byLower := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		byLower[strings.ToLower(e.Name())] = e.Name()
	}

	for _, candidate := range candidateNames {
		if actual, ok := byLower[strings.ToLower(candidate)]; ok {
			return detect(dir, actual)
		}
	}

	for _, sub := range shallowSubdirs {
		subPath := filepath.Join(dir, sub)
		info, err := os.Stat(subPath)
		if err != nil || !info.IsDir() {
			continue
		}
		subEntries, err := os.ReadDir(subPath)
		if err != nil {
			continue
		}
		subByLower := make(map[string]string, len(subEntries))
		for _, e := range subEntries {
			if e.IsDir() {
				continue
			}
			subByLower[strings.ToLower(e.Name())] = e.Name()
		}
		for _, candidate := range candidateNames {
			if actual, ok := subByLower[strings.ToLower(candidate)]; ok {
				return detect(subPath, filepath.Join(sub, actual))
			}
		}
	}

	return nil, nil
}

func detect(baseDir, relName string) (*Found, error) {
	full := filepath.Join(baseDir, filepath.Base(relName))

	data, err := readHead(full, maxScanBytes)
	if err != nil {
		return nil, err
	}

	return &Found{Path: relName, ID: DetectType(string(data))}, nil
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		if err.Error() == "EOF" {
			return []byte{}, nil
		}
		return nil, err
	}
	return buf[:read], nil
}

// DetectType matches content against a small set of anchored patterns
// for MIT, Apache-2.0, BSD-2/3-Clause, GPL-2.0/3.0, MPL-2.0, Unlicense,
// and CC0. Returns Unknown if nothing matches.
func DetectType(content string) string {
	normalized := strings.ToUpper(content)

	switch {
	case strings.Contains(normalized, "CREATIVE COMMONS ZERO") || strings.Contains(normalized, "CC0"):
		return "CC0-1.0"
	case strings.Contains(normalized, "UNLICENSE"):
		return "Unlicense"
	case strings.Contains(normalized, "MOZILLA PUBLIC LICENSE"):
		return "MPL-2.0"
	case strings.Contains(normalized, "BSD 3-CLAUSE") || strings.Contains(normalized, "BSD-3-CLAUSE"):
		return "BSD-3-Clause"
	case strings.Contains(normalized, "REDISTRIBUTION AND USE") && strings.Contains(normalized, "NEITHER THE NAME"):
		return "BSD-3-Clause"
	case strings.Contains(normalized, "BSD 2-CLAUSE") || strings.Contains(normalized, "BSD-2-CLAUSE"):
		return "BSD-2-Clause"
	case strings.Contains(normalized, "REDISTRIBUTION AND USE"):
		return "BSD-2-Clause"
	case strings.Contains(normalized, "APACHE LICENSE") || strings.Contains(normalized, "APACHE-2.0"):
		return "Apache-2.0"
	case strings.Contains(normalized, "GNU GENERAL PUBLIC LICENSE") && strings.Contains(normalized, "VERSION 3"):
		return "GPL-3.0"
	case strings.Contains(normalized, "GNU GENERAL PUBLIC LICENSE") && strings.Contains(normalized, "VERSION 2"):
		return "GPL-2.0"
	case strings.Contains(normalized, "GPL-3.0"):
		return "GPL-3.0"
	case strings.Contains(normalized, "GPL-2.0"):
		return "GPL-2.0"
	case strings.Contains(normalized, "MIT LICENSE") || strings.Contains(normalized, "PERMISSION IS HEREBY GRANTED, FREE OF CHARGE"):
		return "MIT"
	default:
		return Unknown
	}
}

// IsCanonicalName reports whether basename matches one of the
// LICENSE*/COPYING*/NOTICE* forced-preserve patterns of spec.md §4.4,
// used by the extractor's forced-preserve logic for files *within*
// source_path (distinct from the single repo-root LICENSE lookup Scan
// performs).
func IsCanonicalName(basename string) bool {
	upper := strings.ToUpper(basename)
	for _, prefix := range []string{"LICENSE", "COPYING", "NOTICE"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
