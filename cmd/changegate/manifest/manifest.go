// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest implements the manifest command group: validate and
// inspect pipeline manifests without evaluating them against a
// changeset.
package manifest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/changegate/changegate/cmd/changegate/cli"
	libmanifest "github.com/changegate/changegate/lib/manifest"
	"github.com/changegate/changegate/lib/plan"
)

// Command returns the "manifest" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "manifest",
		Summary: "Validate and inspect pipeline manifests",
		Description: `Work with pipeline manifests: the YAML documents that declare jobs,
their dependencies, and the condition expressions gating them on the
classification signals. See "changegate plan" for evaluating a
manifest against an actual changeset.`,
		Subcommands: []*cli.Command{
			validateCommand(),
			showCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Validate a manifest",
				Command:     "changegate manifest validate changegate.yaml",
			},
			{
				Description: "Show the job graph",
				Command:     "changegate manifest show changegate.yaml",
			},
		},
	}
}

// --- validate ---

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Summary: "Validate a pipeline manifest",
		Description: `Validate a manifest file: schema shape (version, unique job names,
known needs, acyclic dependencies, uniform matrix cells) and condition
expressions (must compile and produce a boolean). Each problem is
reported on its own line.`,
		Usage: "changegate manifest validate <file>",
		Examples: []cli.Example{
			{
				Description: "Validate a manifest",
				Command:     "changegate manifest validate changegate.yaml",
			},
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			return runValidate(args)
		},
	}
}

func runValidate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: changegate manifest validate <file>")
	}

	path := args[0]
	m, err := libmanifest.ReadFile(path)
	if err != nil {
		return err
	}

	issues := append(m.Validate(), plan.ValidateConditions(m)...)
	if len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		return fmt.Errorf("%s: %d validation issue(s) found", path, len(issues))
	}

	fmt.Fprintf(os.Stdout, "%s: valid\n", path)
	return nil
}

// --- show ---

type showParams struct {
	cli.JSONOutput
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show a manifest's job graph",
		Description: `Print the manifest as a job table: each job with its dependencies,
condition, and matrix size. The manifest is displayed as parsed, not
validated; use "changegate manifest validate" for checking.`,
		Usage: "changegate manifest show <file> [flags]",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			return runShow(args, &params)
		},
	}
}

func runShow(args []string, params *showParams) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: changegate manifest show <file> [--json]")
	}

	m, err := libmanifest.ReadFile(args[0])
	if err != nil {
		return err
	}

	if done, err := params.EmitJSON(m); done {
		return err
	}

	return writeJobTable(os.Stdout, m)
}

func writeJobTable(w io.Writer, m *libmanifest.Manifest) error {
	title := m.Name
	if title == "" {
		title = "pipeline"
	}
	fmt.Fprintf(w, "%s: %d job(s)\n\n", title, len(m.Jobs))

	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "JOB\tNEEDS\tCONDITION\tMATRIX\n")
	for _, job := range m.Jobs {
		matrix := ""
		if len(job.Matrix) > 0 {
			matrix = fmt.Sprintf("%d cell(s)", len(job.Matrix))
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			job.Name, strings.Join(job.Needs, ", "), job.Condition, matrix)
	}
	return writer.Flush()
}
