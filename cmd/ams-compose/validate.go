package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Jianxun/ams-compose/internal/lockstore"
	"github.com/Jianxun/ams-compose/internal/validator"
	"github.com/Jianxun/ams-compose/pkg/exitcode"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check installed library trees against the lock file's recorded checksums",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := projectRoot(cmd)
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}
			m, err := loadManifest(root)
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}

			lock := lockstore.New(filepath.Join(root, lockstore.FileName))
			lf, err := lock.Load()
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}

			v := newValidator(root)
			results := v.ValidateInstallation(m, lf)

			out := cmd.OutOrStdout()
			failed := false
			for _, r := range results {
				line := fmt.Sprintf("%-20s %s", r.Name, r.Status)
				if r.Diagnostic != "" {
					line += fmt.Sprintf(" (%s)", r.Diagnostic)
				}
				fmt.Fprintln(out, line)
				if r.Status != validator.StatusValid && r.Status != validator.StatusNotInstalled {
					failed = true
				}
			}
			if failed {
				return exitErr(exitcode.LibraryError, errLibraryFailure)
			}
			return nil
		},
	}
}
