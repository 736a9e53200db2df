// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/changegate/changegate/cmd/changegate/cli"
	classifier "github.com/changegate/changegate/lib/classify"
)

// --- check ---

type checkParams struct {
	cli.SourceConfig

	Quiet bool `flag:"quiet,q" desc:"suppress the signal line; answer through the exit code only"`
}

// CheckCommand returns the "changegate check" command.
func CheckCommand() *cli.Command {
	var params checkParams

	return &cli.Command{
		Name:    "check",
		Summary: "Test one build signal through the exit code",
		Description: `Classify the changeset like classify does, then answer for a single
signal: exit 0 when the signal is on, exit 3 when it is off.

Exit code 3 is distinct from 1 so pipelines can tell "skip this step"
from an actual failure (bad flags, unreadable input, git errors).`,
		Usage: "changegate check <signal> [flags]",
		Examples: []cli.Example{
			{
				Description: "Run tests only when code changed",
				Command:     "changegate check testCode && make test",
			},
			{
				Description: "Gate quietly on docs, reading paths from a file",
				Command:     "changegate check buildDocs --quiet --diff-file changed.txt",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return runCheck(ctx, args, logger, &params)
		},
	}
}

func runCheck(ctx context.Context, args []string, logger *slog.Logger, params *checkParams) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one signal name (one of %s)", strings.Join(classifier.SignalNames, ", "))
	}
	name := args[0]

	source, err := params.Resolve(ctx, nil, logger)
	if err != nil {
		return err
	}

	value, err := source.Evaluate().Result.Signal(name)
	if err != nil {
		return err
	}

	if !params.Quiet {
		fmt.Printf("%s=%t\n", name, value)
	}
	if !value {
		return &cli.ExitError{Code: 3}
	}
	return nil
}
