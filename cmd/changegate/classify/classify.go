// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package classify implements the classify and check commands, the two
// entry points CI pipelines call to turn a changeset into build
// signals. classify emits every signal in a provider-suited format;
// check folds a single signal into the process exit code so shell
// steps can gate on it directly.
package classify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/changegate/changegate/cmd/changegate/cli"
	"github.com/changegate/changegate/lib/cienv"
	classifier "github.com/changegate/changegate/lib/classify"
	"github.com/changegate/changegate/lib/clock"
	"github.com/changegate/changegate/lib/emit"
	"github.com/changegate/changegate/lib/record"
	"github.com/changegate/changegate/lib/summary"
)

// --- classify ---

type classifyParams struct {
	cli.SourceConfig

	Format      string `flag:"format,f"     desc:"output format: azure, github, env, or json (default: chosen per provider)"`
	Output      string `flag:"output,o"     desc:"append signal lines to this file instead of stdout"`
	Explain     bool   `flag:"explain"      desc:"print per-path attribution to stderr"`
	SummaryPath string `flag:"summary-path" desc:"append a markdown summary to this file (default: GITHUB_STEP_SUMMARY when set)"`
	Record      bool   `flag:"record"       desc:"persist a decision record for later inspection with 'changegate history'"`
	StateDir    string `flag:"state-dir"    desc:"directory for decision records (default: CHANGEGATE_STATE_DIR or the user state directory)"`
}

// Command returns the "changegate classify" command.
func Command() *cli.Command {
	var params classifyParams

	return &cli.Command{
		Name:    "classify",
		Summary: "Classify changed files into build signals",
		Description: `Classify the changeset of the current build and emit the resulting
signals: buildDocs, buildNotebooks, and testCode.

Changed paths come from positional arguments, --stdin, --diff-file, or
(by default) from git diff against the merge-request target branch
advertised by the CI environment. Direct builds (pushes, tags,
schedules) always get every signal; merge requests are classified
path by path against the ruleset.

The output format defaults to the detected provider's native one:
logging commands on Azure Pipelines, GITHUB_OUTPUT lines on GitHub
Actions, and plain KEY=value lines elsewhere.`,
		Usage: "changegate classify [paths...] [flags]",
		Examples: []cli.Example{
			{
				Description: "Classify the current build using CI environment detection",
				Command:     "changegate classify",
			},
			{
				Description: "Classify explicit paths as a merge request",
				Command:     "changegate classify --merge-request doc/index.rst src/solver.py",
			},
			{
				Description: "Read changed paths from a file and show the attribution",
				Command:     "changegate classify --diff-file changed.txt --explain",
			},
			{
				Description: "Emit JSON and keep a decision record",
				Command:     "changegate classify --format json --record",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return runClassify(ctx, args, logger, &params)
		},
	}
}

func runClassify(ctx context.Context, args []string, logger *slog.Logger, params *classifyParams) error {
	source, err := params.Resolve(ctx, args, logger)
	if err != nil {
		return err
	}

	breakdown := source.Evaluate()
	logger.Info("classified",
		"files", len(source.Files),
		"merge_request", source.Env.MergeRequest,
		"provider", source.Env.Provider,
		"build_docs", breakdown.Result.BuildDocs,
		"build_notebooks", breakdown.Result.BuildNotebooks,
		"test_code", breakdown.Result.TestCode,
	)

	if params.Explain {
		writeExplanation(os.Stderr, source, breakdown)
	}

	if err := emitResult(params, source, breakdown.Result); err != nil {
		return err
	}

	return persistDecision(params, source, breakdown, logger)
}

// resolveFormat picks the output format: an explicit --format wins,
// otherwise the detected provider's native format, falling back to
// plain KEY=value lines where no provider has a dedicated one.
func resolveFormat(flagValue string, provider cienv.Provider) (emit.Format, error) {
	if flagValue != "" {
		return emit.ParseFormat(flagValue)
	}
	switch provider {
	case cienv.ProviderAzure:
		return emit.FormatAzure, nil
	case cienv.ProviderGitHub:
		return emit.FormatGitHub, nil
	default:
		return emit.FormatEnv, nil
	}
}

// emitResult writes the signals to stdout or to the output file. In
// the GitHub format with no explicit --output, the GITHUB_OUTPUT file
// is the natural sink; the signals land there as step outputs.
func emitResult(params *classifyParams, source *cli.Source, result classifier.Result) error {
	format, err := resolveFormat(params.Format, source.Env.Provider)
	if err != nil {
		return err
	}

	outputPath := params.Output
	if outputPath == "" && format == emit.FormatGitHub {
		outputPath = source.Environ("GITHUB_OUTPUT")
	}
	if outputPath == "" {
		return emit.Write(os.Stdout, format, result)
	}

	file, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening signal output: %w", err)
	}
	if err := emit.Write(file, format, result); err != nil {
		file.Close()
		return fmt.Errorf("writing signals to %s: %w", outputPath, err)
	}
	return file.Close()
}

// writeExplanation prints the verdict reason and a per-path
// attribution table. It goes to stderr so the machine-readable signal
// output on stdout stays clean.
func writeExplanation(w io.Writer, source *cli.Source, breakdown classifier.Breakdown) {
	fmt.Fprintln(w, source.Env.Reason)
	if !source.Env.MergeRequest {
		fmt.Fprintln(w, "direct build: every signal is forced on; attribution below is informational")
	}
	if len(breakdown.Matches) == 0 {
		fmt.Fprintln(w, "no changed files")
		return
	}

	rules := source.Ruleset.Rules()
	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "PATH\tCATEGORY\tRULE\n")
	for _, match := range breakdown.Matches {
		rule := "(default)"
		if match.Rule >= 0 {
			rule = rules[match.Rule].Pattern
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", match.Path, match.Category, rule)
	}
	writer.Flush()
}

// persistDecision appends the markdown summary and saves the decision
// record, when either sink is configured. Both sinks share one record
// so the summary's decision ID matches what history later shows.
func persistDecision(params *classifyParams, source *cli.Source, breakdown classifier.Breakdown, logger *slog.Logger) error {
	summaryPath := params.SummaryPath
	if summaryPath == "" {
		summaryPath = summary.DefaultPath(source.Environ)
	}
	if !params.Record && summaryPath == "" {
		return nil
	}

	rec, err := record.New(clock.Real(), source.Ruleset, breakdown, source.BuildContext())
	if err != nil {
		return fmt.Errorf("building decision record: %w", err)
	}

	if summaryPath != "" {
		if err := summary.Append(summaryPath, summary.Render(rec)); err != nil {
			return err
		}
	}

	if params.Record {
		dir := params.StateDir
		if dir == "" {
			dir, err = record.DefaultDir(source.Environ)
			if err != nil {
				return err
			}
		}
		path, err := record.NewStore(dir).Save(rec)
		if err != nil {
			return err
		}
		logger.Info("decision recorded", "id", rec.ID, "path", path)
	}

	return nil
}
