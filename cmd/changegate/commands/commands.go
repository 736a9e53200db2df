// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete changegate CLI command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	classifycmd "github.com/changegate/changegate/cmd/changegate/classify"
	"github.com/changegate/changegate/cmd/changegate/cli"
	historycmd "github.com/changegate/changegate/cmd/changegate/history"
	manifestcmd "github.com/changegate/changegate/cmd/changegate/manifest"
	plancmd "github.com/changegate/changegate/cmd/changegate/plan"
	rulescmd "github.com/changegate/changegate/cmd/changegate/rules"
	"github.com/changegate/changegate/lib/version"
)

// Root builds and returns the complete changegate CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "changegate",
		Description: `Changegate: build gating from changed files.

Classify the paths a revision touches into build signals (buildDocs,
buildNotebooks, testCode) so CI runs only the work a change needs.
Merge requests are classified by a rule table; direct builds enable
every signal.`,
		Subcommands: []*cli.Command{
			classifycmd.Command(),
			classifycmd.CheckCommand(),
			plancmd.Command(),
			rulescmd.Command(),
			manifestcmd.Command(),
			historycmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("changegate %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Classify this build's changes (CI provider detected from the environment)",
				Command:     "changegate classify --base origin/main",
			},
			{
				Description: "Gate a CI step on one signal",
				Command:     "changegate check testCode && make test",
			},
			{
				Description: "Classify an explicit merge-request changeset",
				Command:     "changegate classify --merge-request doc/index.rst src/solver.py",
			},
			{
				Description: "Preview which pipeline jobs a change runs",
				Command:     "changegate plan --manifest changegate.yaml --base origin/main",
			},
			{
				Description: "Validate a custom rules file",
				Command:     "changegate rules validate ci/rules.jsonc",
			},
			{
				Description: "Show the latest recorded decision",
				Command:     "changegate history show",
			},
		},
	}
}
