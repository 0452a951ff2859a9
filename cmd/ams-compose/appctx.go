package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Jianxun/ams-compose/internal/lockstore"
	"github.com/Jianxun/ams-compose/internal/manifest"
	"github.com/Jianxun/ams-compose/internal/mirror"
	"github.com/Jianxun/ams-compose/internal/orchestrator"
	"github.com/Jianxun/ams-compose/internal/validator"
)

const mirrorDirName = ".mirror"

// projectRoot resolves the --project-root flag to an absolute path.
func projectRoot(cmd *cobra.Command) (string, error) {
	raw, _ := cmd.Flags().GetString("project-root")
	return filepath.Abs(raw)
}

// loadManifest reads ams-compose.yaml from root.
func loadManifest(root string) (*manifest.Manifest, error) {
	return manifest.Load(filepath.Join(root, manifest.FileName))
}

// newOrchestrator wires an Orchestrator rooted at root, with test mode
// threaded explicitly from the environment read at CLI startup.
func newOrchestrator(root string) *orchestrator.Orchestrator {
	mirrors := mirror.New(filepath.Join(root, mirrorDirName))
	lock := lockstore.New(filepath.Join(root, lockstore.FileName))
	o := orchestrator.New(root, mirrors, lock)
	o.TestMode = testModeFromEnv()
	return o
}

// newValidator wires a Validator rooted at root, sharing the same
// mirror cache layout the orchestrator uses.
func newValidator(root string) *validator.Validator {
	mirrors := mirror.New(filepath.Join(root, mirrorDirName))
	return validator.New(root, mirrors)
}
