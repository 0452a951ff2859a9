package main

import (
	"github.com/spf13/cobra"
)

const manifestSchemaText = `ams-compose.yaml

library_root: designs/libs   # optional, default shown

imports:
  <name>:
    repo: <git url>          # required; https/ssh/git(+ssh|+https) or host:owner/repo shorthand
    ref: <branch|tag|commit> # required
    source_path: <path>      # required; path within the repo, "." for the whole tree, or a single file
    local_path: <path>       # optional, default "<library_root>/<name>"
    checkin: true|false      # optional, default true
    ignore_patterns: [...]   # optional, gitignore-syntax, applied on top of built-in and project-wide rules
    license: <spdx-id>       # optional override when detection is ambiguous

Unknown top-level or per-import keys are rejected.
`

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Emit the manifest schema as text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Print(manifestSchemaText)
			return nil
		},
	}
}
