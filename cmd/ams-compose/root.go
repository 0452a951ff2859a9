package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jianxun/ams-compose/internal/logx"
	"github.com/Jianxun/ams-compose/pkg/exitcode"
)

// newRootCommand creates a fresh root command instance. Factory pattern
// so tests can build isolated command trees without shared global state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ams-compose",
		Short: "Dependency manager for analog/mixed-signal IC design libraries",
		Long: `ams-compose clones git repositories, extracts curated subpaths into
a project's design tree, and tracks provenance in a lock file.

Examples:
   ams-compose init                 # write a starter manifest
   ams-compose install               # reconcile all libraries against the manifest
   ams-compose update opamp --force  # force a single library to its current ref
   ams-compose validate              # check installed trees against the lock file`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("project-root", ".", "Project root containing ams-compose.yaml")
	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored log output")

	return cmd
}

// registerSubcommands adds all subcommands to cmd. Called by Run on
// each freshly built root command, so every invocation (production or
// test) gets an isolated tree.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newSchemaCmd())
}

// Execute runs the root command and translates its outcome into a
// process exit code (spec.md §6).
func Execute() {
	os.Exit(Run(os.Args[1:]))
}

// Run executes the root command with the given args and returns the
// process exit code, without touching os.Exit — used by main() and by
// tests that need the code without killing the test process.
func Run(args []string) int {
	cmd := newRootCommand()
	registerSubcommands(cmd)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitcode.Success
	}
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	cmd.PrintErrln(err)
	return exitcode.ConfigError
}

func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	// "dry-run" is a local flag on install/update only — Lookup returns
	// nil (and GetBool would error) for every other command, so treat
	// absence the same as false rather than requiring it be persistent.
	dryRun := false
	if f := cmd.Flags().Lookup("dry-run"); f != nil {
		dryRun, _ = cmd.Flags().GetBool("dry-run")
	}

	level, err := logx.ParseLevel(logLevelStr)
	if err != nil {
		level = logx.InfoLevel
	}

	logx.Initialize(logx.Config{
		Level:     level,
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "ams-compose",
		NoOp:      dryRun,
	})
}

// testModeFromEnv reads AMS_COMPOSE_TEST_MODE once and returns it as an
// explicit bool, per SPEC_FULL.md §A.3 — never read ambiently deeper
// in the call stack.
func testModeFromEnv() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AMS_COMPOSE_TEST_MODE")))
	return v == "1" || v == "true" || v == "yes"
}
