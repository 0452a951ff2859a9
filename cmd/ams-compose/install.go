package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/Jianxun/ams-compose/internal/planner"
	"github.com/Jianxun/ams-compose/pkg/exitcode"
)

func newInstallCmd() *cobra.Command {
	var force, dryRun bool
	cmd := &cobra.Command{
		Use:   "install [names...]",
		Short: "Reconcile libraries against the manifest without probing remote state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, args, force, false, dryRun)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reinstall even when the lock entry appears up to date")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without touching mirrors, files, or the lock")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var force, dryRun bool
	cmd := &cobra.Command{
		Use:   "update [names...]",
		Short: "Reconcile libraries, probing remote state for the current commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, args, force, true, dryRun)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reinstall even when the lock entry appears up to date")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without extracting files or writing the lock (the remote probe still updates mirrors)")
	return cmd
}

func runReconcile(cmd *cobra.Command, names []string, force, remoteProbe, dryRun bool) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return exitErr(exitcode.ConfigError, err)
	}
	m, err := loadManifest(root)
	if err != nil {
		return exitErr(exitcode.ConfigError, err)
	}

	all := m.ImportOrder
	if len(all) != len(m.Imports) {
		// Manifest wasn't built through Parse (declaration order
		// unavailable) — alphabetical is the best remaining fallback.
		all = make([]string, 0, len(m.Imports))
		for name := range m.Imports {
			all = append(all, name)
		}
		sort.Strings(all)
	}

	var targets map[string]bool
	order := all
	if len(names) > 0 {
		targets = make(map[string]bool, len(names))
		for _, n := range names {
			targets[n] = true
		}
		order = make([]string, 0, len(names))
		for _, n := range all {
			if targets[n] {
				order = append(order, n)
			}
		}
	}

	o := newOrchestrator(root)
	opts := planner.Options{Force: force, RemoteProbe: remoteProbe, Targets: targets}

	if dryRun {
		steps, err := o.Plan(cmd.Context(), all, m, opts)
		if err != nil {
			return exitErr(exitcode.ConfigError, err)
		}
		orderedSteps := make([]planner.Step, 0, len(order))
		byName := make(map[string]planner.Step, len(steps))
		for _, s := range steps {
			byName[s.Name] = s
		}
		for _, name := range order {
			if s, ok := byName[name]; ok {
				orderedSteps = append(orderedSteps, s)
			}
		}
		code := printPlan(cmd.OutOrStdout(), orderedSteps)
		if code != exitcode.Success {
			return exitErr(code, errLibraryFailure)
		}
		return nil
	}

	results, err := o.Run(cmd.Context(), all, m, opts)
	if err != nil {
		return exitErr(exitcode.ConfigError, err)
	}

	code := printResults(cmd.OutOrStdout(), order, results)
	if code != exitcode.Success {
		return exitErr(code, errLibraryFailure)
	}
	return nil
}
