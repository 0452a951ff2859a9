package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Jianxun/ams-compose/internal/manifest"
	"github.com/Jianxun/ams-compose/pkg/exitcode"
)

const starterManifest = `library_root: designs/libs

imports: {}
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold a starter ams-compose.yaml in the project root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := projectRoot(cmd)
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}
			path := filepath.Join(root, manifest.FileName)

			if _, err := os.Stat(path); err == nil {
				return exitErr(exitcode.ConfigError, fmt.Errorf("%s already exists", path))
			}

			if err := os.MkdirAll(root, 0o755); err != nil {
				return exitErr(exitcode.ConfigError, err)
			}
			if err := os.WriteFile(path, []byte(starterManifest), 0o644); err != nil {
				return exitErr(exitcode.ConfigError, err)
			}

			cmd.Printf("wrote %s\n", path)
			return nil
		},
	}
}
