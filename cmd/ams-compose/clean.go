package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Jianxun/ams-compose/internal/lockstore"
	"github.com/Jianxun/ams-compose/pkg/exitcode"
)

func newCleanCmd() *cobra.Command {
	var orphans bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Prune mirrors with no referencing lock entry, and optionally orphaned library directories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := projectRoot(cmd)
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}
			m, err := loadManifest(root)
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}

			lockPath := filepath.Join(root, lockstore.FileName)
			lock := lockstore.New(lockPath)
			lf, err := lock.Load()
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}

			v := newValidator(root)
			result, err := v.Clean(m, lf, orphans)
			if err != nil {
				return exitErr(exitcode.LibraryError, err)
			}
			if err := lock.Save(lf); err != nil {
				return exitErr(exitcode.ConfigError, err)
			}

			out := cmd.OutOrStdout()
			for _, digest := range result.RemovedMirrors {
				fmt.Fprintf(out, "removed mirror %s\n", digest)
			}
			for _, dir := range result.RemovedDirectories {
				fmt.Fprintf(out, "removed orphaned directory %s\n", dir)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&orphans, "orphans", false, "Also remove library directories whose manifest entry was deleted")
	return cmd
}
