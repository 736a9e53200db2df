// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package history implements the history command group: list recorded
// classification decisions and show a single one.
package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/changegate/changegate/cmd/changegate/cli"
	"github.com/changegate/changegate/lib/classify"
	"github.com/changegate/changegate/lib/codec"
	"github.com/changegate/changegate/lib/record"
	"github.com/changegate/changegate/lib/render"
	"github.com/changegate/changegate/lib/summary"
)

// Command returns the "history" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "history",
		Summary: "Browse recorded classification decisions",
		Description: `Browse the local decision store. Records are written by classify
--record (or whenever a step summary sink is active) and capture the
inputs and outcome of one classification: the changed paths, the rule
each matched, the ruleset digest, and the resulting signals.

The store location is --state-dir, $CHANGEGATE_STATE_DIR, or the user
state directory ($XDG_STATE_HOME/changegate).`,
		Subcommands: []*cli.Command{
			listCommand(),
			showCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "List the most recent decisions",
				Command:     "changegate history list",
			},
			{
				Description: "Show the latest decision",
				Command:     "changegate history show",
			},
			{
				Description: "Show one decision as styled terminal output",
				Command:     "changegate history show dec-4fdc18a2140dc887 --render",
			},
		},
	}
}

// openStore opens the decision store at stateDir, falling back to the
// environment-derived default directory.
func openStore(stateDir string) (*record.Store, error) {
	dir := stateDir
	if dir == "" {
		var err error
		dir, err = record.DefaultDir(os.Getenv)
		if err != nil {
			return nil, err
		}
	}
	return record.NewStore(dir), nil
}

// --- list ---

type listParams struct {
	cli.JSONOutput
	StateDir string `flag:"state-dir" desc:"decision store directory (default: $CHANGEGATE_STATE_DIR or the user state dir)"`
	Limit    int    `flag:"limit,n" desc:"maximum records to list, 0 for all" default:"20"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List recorded decisions, newest first",
		Usage:   "changegate history list [flags]",
		Examples: []cli.Example{
			{
				Description: "The five most recent decisions",
				Command:     "changegate history list -n 5",
			},
			{
				Description: "Every record, as JSON",
				Command:     "changegate history list --limit 0 --json",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			return runList(args, &params)
		},
	}
}

func runList(args []string, params *listParams) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: changegate history list [--limit N] [--json]")
	}

	store, err := openStore(params.StateDir)
	if err != nil {
		return err
	}
	records, err := store.List()
	if err != nil {
		return err
	}
	if params.Limit > 0 && len(records) > params.Limit {
		records = records[:params.Limit]
	}

	if done, err := params.EmitJSON(records); done {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintf(os.Stdout, "no recorded decisions in %s\n", store.Dir())
		return nil
	}
	return writeRecordTable(os.Stdout, records)
}

func writeRecordTable(w io.Writer, records []*record.Record) error {
	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "ID\tCREATED\tBUILD\tPROVIDER\tFILES\tSIGNALS\n")
	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.ID,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			buildKind(rec),
			orDash(rec.Provider),
			len(rec.Files),
			signalList(rec))
	}
	return writer.Flush()
}

func buildKind(rec *record.Record) string {
	if rec.MergeRequest {
		return "merge-request"
	}
	return "direct"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// signalList names the enabled signals, comma-joined in canonical
// order.
func signalList(rec *record.Record) string {
	var enabled []string
	if rec.BuildDocs {
		enabled = append(enabled, classify.SignalBuildDocs)
	}
	if rec.BuildNotebooks {
		enabled = append(enabled, classify.SignalBuildNotebooks)
	}
	if rec.TestCode {
		enabled = append(enabled, classify.SignalTestCode)
	}
	if len(enabled) == 0 {
		return "(none)"
	}
	return strings.Join(enabled, ",")
}

// --- show ---

type showParams struct {
	cli.JSONOutput
	StateDir string `flag:"state-dir" desc:"decision store directory (default: $CHANGEGATE_STATE_DIR or the user state dir)"`
	Render   bool   `flag:"render" desc:"render the summary as styled terminal output"`
	Diag     bool   `flag:"diag" desc:"print the raw payload in CBOR diagnostic notation"`
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show one recorded decision",
		Description: `Show a recorded decision. Without an id, the most recent record is
shown. The default output is the decision's markdown summary, the same
text classify appends to the CI step summary; --render styles it for
the terminal, --json prints the record fields, and --diag prints the
stored CBOR payload in diagnostic notation.`,
		Usage: "changegate history show [id] [flags]",
		Examples: []cli.Example{
			{
				Description: "The latest decision",
				Command:     "changegate history show",
			},
			{
				Description: "A specific decision, styled",
				Command:     "changegate history show dec-4fdc18a2140dc887 --render",
			},
			{
				Description: "Inspect the stored bytes",
				Command:     "changegate history show dec-4fdc18a2140dc887 --diag",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			return runShow(args, &params)
		},
	}
}

func runShow(args []string, params *showParams) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: changegate history show [id] [--json | --render | --diag]")
	}
	modes := 0
	for _, set := range []bool{params.OutputJSON, params.Render, params.Diag} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("at most one of --json, --render, --diag may be given")
	}

	store, err := openStore(params.StateDir)
	if err != nil {
		return err
	}
	id := ""
	if len(args) == 1 {
		id = args[0]
	} else {
		if id, err = latestID(store); err != nil {
			return err
		}
	}

	if params.Diag {
		payload, err := store.RawPayload(id)
		if err != nil {
			return err
		}
		notation, err := codec.Diagnose(payload)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, notation)
		return nil
	}

	rec, err := store.Load(id)
	if err != nil {
		return err
	}
	if done, err := params.EmitJSON(rec); done {
		return err
	}

	markdown := summary.Render(rec)
	if params.Render {
		fmt.Fprintln(os.Stdout, render.Markdown(markdown, render.DefaultTheme, outputWidth()))
		return nil
	}
	_, err = io.WriteString(os.Stdout, markdown)
	return err
}

// latestID returns the ID of the newest record in the store.
func latestID(store *record.Store) (string, error) {
	records, err := store.List()
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("no recorded decisions in %s", store.Dir())
	}
	return records[0].ID, nil
}

// outputWidth is the render width for --render: the terminal width
// when stdout is one, 80 columns otherwise.
func outputWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}
