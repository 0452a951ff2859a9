// Package manifest defines the ams-compose.yaml document shape
// (spec.md §3, §6) and its strict decoder.
package manifest

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Jianxun/ams-compose/internal/errs"
	"gopkg.in/yaml.v3"
)

// DefaultLibraryRoot is used when the manifest omits library_root.
const DefaultLibraryRoot = "designs/libs"

// FileName is the manifest's fixed on-disk name, per spec.md §6.
const FileName = "ams-compose.yaml"

// ImportSpec is the per-library block in the manifest (spec.md §3).
type ImportSpec struct {
	Repo           string   `yaml:"repo"`
	Ref            string   `yaml:"ref"`
	SourcePath     string   `yaml:"source_path"`
	LocalPath      string   `yaml:"local_path,omitempty"`
	Checkin        *bool    `yaml:"checkin,omitempty"`
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`
	License        string   `yaml:"license,omitempty"`
}

// CheckinOrDefault returns Checkin, defaulting to true when unset.
func (s ImportSpec) CheckinOrDefault() bool {
	if s.Checkin == nil {
		return true
	}
	return *s.Checkin
}

// Manifest is the top-level ams-compose.yaml document.
type Manifest struct {
	LibraryRoot string                `yaml:"library_root,omitempty"`
	Imports     map[string]ImportSpec `yaml:"imports"`

	// ImportOrder is the declaration order of Imports' keys as they
	// appeared in the source YAML — a plain map cannot preserve this,
	// so Parse walks the raw yaml.Node tree to recover it separately.
	// Callers that must iterate in manifest declaration order (spec.md
	// §5) use this instead of ranging over Imports directly.
	ImportOrder []string `yaml:"-"`
}

// LibraryRootOrDefault returns LibraryRoot, defaulting per spec.md §3.
func (m Manifest) LibraryRootOrDefault() string {
	if m.LibraryRoot == "" {
		return DefaultLibraryRoot
	}
	return m.LibraryRoot
}

// Load reads and strictly decodes a manifest file, rejecting unknown
// top-level or per-import keys (spec.md §6: "Unknown top-level keys or
// unknown per-import keys are rejected (strict)").
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse strictly decodes manifest YAML bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrManifestParse, err)
	}

	if err := validate(&m); err != nil {
		return nil, err
	}

	order, err := importOrder(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrManifestParse, err)
	}
	m.ImportOrder = order

	return &m, nil
}

// importOrder walks the raw document node tree to recover the
// declaration order of the top-level imports mapping's keys — the
// only place that order still exists, since map[string]ImportSpec
// decoding discards it.
func importOrder(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if key.Value != "imports" {
			continue
		}
		importsNode := root.Content[i+1]
		if importsNode.Kind != yaml.MappingNode {
			return nil, nil
		}
		names := make([]string, 0, len(importsNode.Content)/2)
		for j := 0; j+1 < len(importsNode.Content); j += 2 {
			names = append(names, importsNode.Content[j].Value)
		}
		return names, nil
	}
	return nil, nil
}

func validate(m *Manifest) error {
	for name, spec := range m.Imports {
		if spec.Repo == "" {
			return fmt.Errorf("%w: import %q missing repo", errs.ErrMissingField, name)
		}
		if spec.Ref == "" {
			return fmt.Errorf("%w: import %q missing ref", errs.ErrMissingField, name)
		}
		if spec.SourcePath == "" {
			return fmt.Errorf("%w: import %q missing source_path", errs.ErrMissingField, name)
		}
	}
	return nil
}
