// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the CLI tree: a group that routes to
// Subcommands, or a leaf with a Run function.
type Command struct {
	// Name is what the user types to select the command ("classify",
	// "plan", ...).
	Name string

	// Summary is the one-line description shown in the parent's
	// command listing.
	Summary string

	// Description is the longer text shown at the top of the
	// command's own help.
	Description string

	// Usage overrides the synthesized usage line, e.g.
	// "changegate rules validate <file>".
	Usage string

	// Examples are rendered at the end of the help output.
	Examples []Example

	// Flags builds the command's flag set explicitly. Leave nil to
	// derive the flags from Params instead.
	Flags func() *pflag.FlagSet

	// Params returns a pointer to the command's params struct; the
	// flag set is built from its flag tags via [FlagsFromParams].
	// A command with neither Flags nor Params accepts no flags.
	Params func() any

	// Subcommands are dispatched by the first positional argument.
	Subcommands []*Command

	// Run executes the leaf with the positional arguments left after
	// flag parsing. A command should set exactly one of Run or
	// Subcommands; with both, Run handles invocations that name no
	// subcommand.
	Run func(ctx context.Context, args []string, logger *slog.Logger) error

	// parent links back up the tree during dispatch, for help text
	// that names the full command path.
	parent *Command
}

// Example is a worked invocation shown in help output.
type Example struct {
	// Description explains what the example does.
	Description string
	// Command is the literal command line.
	Command string
}

// Execute runs the command against args: help flags first, then
// subcommand routing, then flag parsing and Run. It is the entry
// point for the whole tree.
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) > 0 && isHelpArg(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}
	if len(c.Subcommands) > 0 {
		return c.dispatch(ctx, args)
	}
	return c.runLeaf(ctx, args)
}

// dispatch routes the first positional argument to a subcommand.
// Without one, a group falls back to its own Run when it has one, and
// to help output otherwise.
func (c *Command) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		if c.Run != nil {
			return c.runLeaf(ctx, args)
		}
		c.PrintHelp(os.Stderr)
		if len(args) == 0 {
			return fmt.Errorf("subcommand required")
		}
		return fmt.Errorf("subcommand required (got flag %q)", args[0])
	}

	name := args[0]
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub.Execute(ctx, args[1:])
		}
	}

	hint := ""
	if match := suggestCommand(name, c.Subcommands); match != "" {
		hint = fmt.Sprintf(" (did you mean %q?)", match)
	}
	return fmt.Errorf("unknown command %q%s\n\nRun '%s --help' for usage.",
		name, hint, c.fullName())
}

// runLeaf parses the command's flags and invokes Run.
func (c *Command) runLeaf(ctx context.Context, args []string) error {
	if flagSet := c.buildFlags(); flagSet != nil {
		rest, err := c.parseFlags(flagSet, args)
		if err != nil {
			return err
		}
		args = rest
	}

	if c.Run == nil {
		c.PrintHelp(os.Stderr)
		return fmt.Errorf("no action defined for %q", c.fullName())
	}
	return c.Run(ctx, args, NewCommandLogger())
}

// parseFlags parses args against the flag set, turning pflag's terse
// failures into errors that carry a typo suggestion and a pointer to
// --help.
func (c *Command) parseFlags(flagSet *pflag.FlagSet, args []string) ([]string, error) {
	// The flag set would otherwise print its own error plus a usage
	// dump; errors are formatted here instead.
	flagSet.SetOutput(io.Discard)

	err := flagSet.Parse(args)
	if err == nil {
		return flagSet.Args(), nil
	}

	hint := ""
	if strings.Contains(err.Error(), "unknown flag") {
		// Suggest against a fresh flag set; the failed parse may have
		// consumed state in this one.
		if match := suggestFlag(args, c.buildFlags()); match != "" {
			hint = fmt.Sprintf(" (did you mean %s?)", match)
		}
	}
	return nil, fmt.Errorf("%s%s\n\nRun '%s --help' for usage.",
		err.Error(), hint, c.fullName())
}

// buildFlags constructs the command's flag set from Flags or Params.
// Returns nil when the command declares no flags.
func (c *Command) buildFlags() *pflag.FlagSet {
	if c.Flags != nil {
		return c.Flags()
	}
	if c.Params != nil {
		return FlagsFromParams(c.Name, c.Params())
	}
	return nil
}

// PrintHelp writes the command's help text to w: description, usage,
// subcommand table, flags, and examples.
func (c *Command) PrintHelp(w io.Writer) {
	if text := cmp.Or(c.Description, c.Summary); text != "" {
		fmt.Fprintf(w, "%s\n\n", text)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if flagSet := c.buildFlags(); flagSet != nil {
		var defaults strings.Builder
		flagSet.SetOutput(&defaults)
		flagSet.PrintDefaults()
		if defaults.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", defaults.String())
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.fullName())
	}
}

// usageLine returns the explicit Usage when set, or synthesizes one
// from the command path.
func (c *Command) usageLine() string {
	if c.Usage != "" {
		return c.Usage
	}
	if len(c.Subcommands) > 0 {
		return c.fullName() + " <command> [flags]"
	}
	return c.fullName() + " [flags]"
}

// fullName is the space-joined command path, e.g. "changegate rules
// test".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpArg(arg string) bool {
	return arg == "help" || arg == "-h" || arg == "--help"
}
