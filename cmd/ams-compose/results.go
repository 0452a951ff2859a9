package main

import (
	"fmt"
	"io"

	"github.com/Jianxun/ams-compose/internal/orchestrator"
	"github.com/Jianxun/ams-compose/internal/planner"
	"github.com/Jianxun/ams-compose/pkg/exitcode"
)

// printResults writes one line per library, ordered by names, and
// returns the exit code reflecting the worst observed outcome
// (spec.md §6/§7).
func printResults(w io.Writer, names []string, results map[string]orchestrator.LibraryResult) int {
	code := exitcode.Success
	for _, name := range names {
		r, ok := results[name]
		if !ok {
			continue
		}
		line := fmt.Sprintf("%-20s %s", r.Name, r.Status)
		if r.Commit != "" {
			commit := r.Commit
			if len(commit) > 8 {
				commit = commit[:8]
			}
			line += fmt.Sprintf(" %s", commit)
		}
		if r.LicenseChange != nil {
			line += fmt.Sprintf(" license:%s->%s", r.LicenseChange.Previous, r.LicenseChange.Current)
		}
		if r.Diagnostic != "" {
			line += fmt.Sprintf(" (%s)", r.Diagnostic)
		}
		fmt.Fprintln(w, line)

		if r.Status == orchestrator.StatusError && code < exitcode.LibraryError {
			code = exitcode.LibraryError
		}
	}
	return code
}

// printPlan writes one line per planned step without performing any
// mutation — the report for `install --dry-run`/`update --dry-run`.
func printPlan(w io.Writer, steps []planner.Step) int {
	code := exitcode.Success
	for _, step := range steps {
		line := fmt.Sprintf("%-20s would-%s", step.Name, step.Action)
		if step.Diagnostic != "" {
			line += fmt.Sprintf(" (%s)", step.Diagnostic)
		}
		fmt.Fprintln(w, line)

		if step.Action == planner.ActionError && code < exitcode.LibraryError {
			code = exitcode.LibraryError
		}
	}
	return code
}
