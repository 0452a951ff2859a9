// Package metadata defines the per-library provenance document written
// alongside extracted content (spec.md §4.6) and read back by the
// validator, modeled on the teacher's direct yaml.v3 struct-tag codec
// for its own signed manifest documents.
package metadata

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the fixed provenance filename dropped inside every
// extracted library directory. It is always excluded from the tree
// checksum (spec.md §4.1).
const FileName = ".ams-compose-metadata.yaml"

// SchemaVersion is the current provenance document schema version.
const SchemaVersion = 1

// Record captures exactly what was extracted from where, per spec.md §4.6.
type Record struct {
	SchemaVersion   int      `yaml:"schema_version"`
	Library         string   `yaml:"library"`
	Repo            string   `yaml:"repo"`
	Ref             string   `yaml:"ref"`
	ResolvedCommit  string   `yaml:"resolved_commit"`
	SourcePath      string   `yaml:"source_path"`
	Checkin         bool     `yaml:"checkin"`
	LicenseID       string   `yaml:"license_id,omitempty"`
	LicenseFile     string   `yaml:"license_file,omitempty"`
	// Checksum is populated by callers that already know the tree digest
	// before writing the record. extractor.Extract writes this document
	// before treeChecksum runs, so it leaves this blank; validation reads
	// lockstore.LockEntry.Checksum instead, not this field.
	Checksum        string   `yaml:"checksum"`
	ExtractedAt     string   `yaml:"extracted_at"`
	NestedManifests []string `yaml:"nested_manifests,omitempty"`
}

// Write marshals rec to dir/FileName.
func Write(dir string, rec Record) error {
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = SchemaVersion
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FileName), data, 0o644)
}

// Read loads and unmarshals the provenance record from dir, returning
// (nil, nil) if no provenance file is present — single-file libraries,
// or pre-existing directories, lack one.
func Read(dir string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
