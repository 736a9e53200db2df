// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package rules implements the rules command group: validate a rules
// file, show the effective rule table, and test paths against it
// without touching git or the CI environment.
package rules

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/changegate/changegate/cmd/changegate/cli"
	"github.com/changegate/changegate/lib/classify"
	"github.com/changegate/changegate/lib/ruleset"
)

// Command returns the "rules" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "rules",
		Summary: "Inspect and validate classification rules",
		Description: `Work with the rule table that maps changed paths to categories.

Rules files use JSONC: JSON extended with // line comments, /* block
comments */, and trailing commas. Each rule maps a pattern (an exact
path, or "dir/*" for everything under a directory) to a category:
ignore, docs, notebooks, or code. First match wins; paths no rule
matches classify as code. Loading a file replaces the built-in table
entirely.`,
		Subcommands: []*cli.Command{
			validateCommand(),
			showCommand(),
			testCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Validate a rules file",
				Command:     "changegate rules validate ci/rules.jsonc",
			},
			{
				Description: "Show the built-in rule table",
				Command:     "changegate rules show",
			},
			{
				Description: "See how paths would classify under a custom table",
				Command:     "changegate rules test --rules ci/rules.jsonc src/solver.py doc/index.rst",
			},
		},
	}
}

// effectiveRuleset loads the rules file when one is given, the
// built-in table otherwise.
func effectiveRuleset(path string) (*classify.Ruleset, error) {
	if path == "" {
		return classify.DefaultRuleset(), nil
	}
	return ruleset.Load(path)
}

// --- validate ---

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Summary: "Validate a rules file",
		Description: `Validate a rules file: well-formed JSONC, known categories, non-empty
patterns, and no rule shadowed by an earlier one. Each problem is
reported on its own line.`,
		Usage: "changegate rules validate <file>",
		Examples: []cli.Example{
			{
				Description: "Validate a rules file",
				Command:     "changegate rules validate ci/rules.jsonc",
			},
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			return runValidate(args)
		},
	}
}

func runValidate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: changegate rules validate <file>")
	}

	path := args[0]
	file, err := ruleset.ReadFile(path)
	if err != nil {
		return err
	}

	issues := file.Validate()
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
	Rules string `flag:"rules" desc:"rules file (JSONC); built-in table when omitted"`
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show the effective rule table",
		Description: `Print the rule table classification would use: the file given with
--rules, or the built-in table. With --json the output is the
canonical rules-file form, suitable as a starting point for a custom
file.`,
		Usage: "changegate rules show [flags]",
		Examples: []cli.Example{
			{
				Description: "Dump the built-in table as a rules file",
				Command:     "changegate rules show --json > ci/rules.jsonc",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			return runShow(args, &params)
		},
	}
}

func runShow(args []string, params *showParams) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: changegate rules show [--rules FILE] [--json]")
	}

	rs, err := effectiveRuleset(params.Rules)
	if err != nil {
		return err
	}

	if params.OutputJSON {
		data, err := ruleset.Format(rs)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	return writeRuleTable(os.Stdout, rs)
}

func writeRuleTable(w io.Writer, rs *classify.Ruleset) error {
	rules := rs.Rules()
	fmt.Fprintf(w, "Ruleset: %s (%d rules)\n\n", rs.Name(), len(rules))

	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "PATTERN\tCATEGORY\n")
	for _, rule := range rules {
		fmt.Fprintf(writer, "%s\t%s\n", rule.Pattern, rule.Category)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nPaths matching no rule classify as code.\n")
	return nil
}

// --- test ---

type testParams struct {
	Rules string `flag:"rules" desc:"rules file (JSONC); built-in table when omitted"`
}

func testCommand() *cli.Command {
	var params testParams

	return &cli.Command{
		Name:    "test",
		Summary: "Classify paths against the effective rule table",
		Description: `Classify the given paths and show which rule decided each one, plus
the signals a merge request with exactly these changes would produce.
Nothing is read from git or the CI environment; this is a dry bench
for rule tables.`,
		Usage: "changegate rules test <path>... [flags]",
		Examples: []cli.Example{
			{
				Description: "Check how a handful of paths classify",
				Command:     "changegate rules test README.md doc/index.rst src/solver.py",
			},
			{
				Description: "Against a custom table",
				Command:     "changegate rules test --rules ci/rules.jsonc vendor/lib.py",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			return runTest(args, &params)
		},
	}
}

func runTest(args []string, params *testParams) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: changegate rules test <path>... [--rules FILE]")
	}

	rs, err := effectiveRuleset(params.Rules)
	if err != nil {
		return err
	}

	breakdown := rs.Evaluate(classify.ChangedFileSet(args), classify.RevisionContext{MergeRequest: true})
	return writeAttribution(os.Stdout, rs, breakdown)
}

func writeAttribution(w io.Writer, rs *classify.Ruleset, breakdown classify.Breakdown) error {
	rules := rs.Rules()
	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "PATH\tCATEGORY\tRULE\n")
	for _, match := range breakdown.Matches {
		rule := "(default)"
		if match.Rule >= 0 {
			rule = rules[match.Rule].Pattern
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", match.Path, match.Category, rule)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	result := breakdown.Result
	fmt.Fprintf(w, "\nmerge-request signals: buildDocs=%t buildNotebooks=%t testCode=%t\n",
		result.BuildDocs, result.BuildNotebooks, result.TestCode)
	return nil
}
