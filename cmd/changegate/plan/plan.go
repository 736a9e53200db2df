// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package plan implements the plan command: evaluate the pipeline
// manifest against the classified changeset and show which jobs would
// run. The output is advice for the orchestrator and the human reading
// the build log; nothing is executed.
package plan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/changegate/changegate/cmd/changegate/cli"
	"github.com/changegate/changegate/lib/manifest"
	planner "github.com/changegate/changegate/lib/plan"
)

type planParams struct {
	cli.SourceConfig
	cli.JSONOutput

	Manifest string `flag:"manifest,m" default:"changegate.yaml" desc:"pipeline manifest to evaluate"`
}

// Command returns the "changegate plan" command.
func Command() *cli.Command {
	var params planParams

	return &cli.Command{
		Name:    "plan",
		Summary: "Show which pipeline jobs the changeset gates on",
		Description: `Classify the changeset exactly like classify does, then evaluate the
pipeline manifest against the resulting signals: which jobs run, which
are skipped, and why (their own condition, or a skipped dependency).

Positional paths simulate a changeset, so the effect of a change can
be previewed without a build: changegate plan --merge-request doc/a.rst.`,
		Usage: "changegate plan [paths...] [flags]",
		Examples: []cli.Example{
			{
				Description: "Plan the current build",
				Command:     "changegate plan",
			},
			{
				Description: "Preview the plan for a docs-only merge request",
				Command:     "changegate plan --merge-request doc/index.rst",
			},
			{
				Description: "Structured output for tooling",
				Command:     "changegate plan --manifest ci/changegate.yaml --json",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return runPlan(ctx, args, logger, &params)
		},
	}
}

func runPlan(ctx context.Context, args []string, logger *slog.Logger, params *planParams) error {
	m, err := loadManifest(params.Manifest)
	if err != nil {
		return err
	}

	source, err := params.Resolve(ctx, args, logger)
	if err != nil {
		return err
	}

	signals := source.Evaluate().Result
	plan, err := planner.Evaluate(m, signals)
	if err != nil {
		return err
	}

	logger.Info("plan evaluated",
		"manifest", params.Manifest,
		"jobs", len(plan.Jobs),
		"run", plan.RunCount(),
	)

	if done, err := params.EmitJSON(plan); done {
		return err
	}

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	return writePlanTable(os.Stdout, params.Manifest, plan, styled)
}

// loadManifest reads and fully validates a manifest: schema issues and
// condition compile errors are reported together, in the same shape
// ruleset loading uses.
func loadManifest(path string) (*manifest.Manifest, error) {
	m, err := manifest.ReadFile(path)
	if err != nil {
		return nil, err
	}
	issues := append(m.Validate(), planner.ValidateConditions(m)...)
	if len(issues) > 0 {
		return nil, fmt.Errorf("%s has %d issue(s):\n  - %s", path, len(issues), strings.Join(issues, "\n  - "))
	}
	return m, nil
}

var (
	runStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// verdict renders the run column for one row. The word is padded
// before styling so ANSI escape codes never count against the column
// width.
func verdict(run, styled bool) string {
	word := "skip"
	if run {
		word = "run "
	}
	if !styled {
		return word
	}
	if run {
		return runStyle.Render(word)
	}
	return skipStyle.Render(word)
}

// writePlanTable renders the plan as an aligned table: one row per
// job, one indented row per matrix cell. Manual padding instead of
// tabwriter, so styled verdicts do not skew the columns.
func writePlanTable(w io.Writer, manifestPath string, plan *planner.Plan, styled bool) error {
	title := plan.Pipeline
	if title == "" {
		title = manifestPath
	}
	fmt.Fprintf(w, "%s: %d/%d jobs run (buildDocs=%t buildNotebooks=%t testCode=%t)\n\n",
		title, plan.RunCount(), len(plan.Jobs),
		plan.Signals.BuildDocs, plan.Signals.BuildNotebooks, plan.Signals.TestCode)

	width := len("JOB")
	for _, job := range plan.Jobs {
		width = max(width, len(job.Name))
		for _, cell := range job.Cells {
			width = max(width, len(cell.Label())+2)
		}
	}

	fmt.Fprintf(w, "%-*s  %s  %s\n", width, "JOB", "RUN ", "REASON")
	for _, job := range plan.Jobs {
		fmt.Fprintf(w, "%-*s  %s  %s\n", width, job.Name, verdict(job.Run, styled), job.Reason)
		for _, cell := range job.Cells {
			fmt.Fprintf(w, "  %-*s  %s\n", width-2, cell.Label(), verdict(cell.Run, styled))
		}
	}
	return nil
}
