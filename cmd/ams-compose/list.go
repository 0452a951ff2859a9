package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Jianxun/ams-compose/pkg/exitcode"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed libraries from the lock file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := projectRoot(cmd)
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}
			o := newOrchestrator(root)
			installed, err := o.ListInstalled()
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}

			names := make([]string, 0, len(installed))
			for name := range installed {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-20s %-10s %-9s %-8s %s\n", "NAME", "REF", "COMMIT", "CHECKIN", "LICENSE")
			for _, name := range names {
				entry := installed[name]
				commit := entry.ResolvedCommit
				if len(commit) > 8 {
					commit = commit[:8]
				}
				license := entry.LicenseID
				if license == "" {
					license = "-"
				}
				fmt.Fprintf(out, "%-20s %-10s %-9s %-8t %s\n", name, entry.Ref, commit, entry.Checkin, license)
			}
			return nil
		},
	}
}
