// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/changegate/changegate/lib/cienv"
	"github.com/changegate/changegate/lib/classify"
	"github.com/changegate/changegate/lib/gitdiff"
	"github.com/changegate/changegate/lib/record"
	"github.com/changegate/changegate/lib/ruleset"
)

// SourceConfig is the flag group shared by every command that runs a
// classification: where the changed paths come from, which rules
// classify them, and what kind of build this is. Command params
// structs embed it the way they embed [JSONOutput].
//
// Changed paths come from exactly one place, in precedence order:
// positional arguments, --stdin, --diff-file, or a git diff between
// the resolved base and head revisions. Mixing sources is an error,
// not a merge.
type SourceConfig struct {
	Stdin        bool   `flag:"stdin" desc:"read changed paths from stdin, one per line"`
	DiffFile     string `flag:"diff-file" desc:"read changed paths from a file, one per line"`
	Base         string `flag:"base" desc:"base revision for the git diff (default: the provider's target branch)"`
	Head         string `flag:"head" desc:"head revision for the git diff (default: the provider's source branch, else HEAD)"`
	RepoDir      string `flag:"repo" desc:"git repository directory" default:"."`
	Rules        string `flag:"rules" desc:"JSONC rules file (default: the built-in table)"`
	EnvFile      string `flag:"env-file" desc:"dotenv file layered over the process environment for CI detection"`
	MergeRequest bool   `flag:"merge-request" desc:"classify as a merge request, regardless of the CI environment"`
	Direct       bool   `flag:"direct" desc:"classify as a direct build, regardless of the CI environment"`
}

// Source is a resolved classification input: the changed file set, the
// build context it runs under, and the ruleset that classifies it.
type Source struct {
	Files   classify.ChangedFileSet
	Env     cienv.Context
	Ruleset *classify.Ruleset

	// Base and Head are the git endpoints the file set was diffed
	// from. Empty when the paths came from arguments, stdin, or a
	// file, or when a direct build had nothing to diff against.
	Base string
	Head string

	environ func(string) string
}

// Resolve detects the build context, loads the ruleset, and acquires
// the changed file set. paths are the positional path arguments, if
// the command accepts any.
func (c *SourceConfig) Resolve(ctx context.Context, paths []string, logger *slog.Logger) (*Source, error) {
	environ, err := c.lookup()
	if err != nil {
		return nil, err
	}

	env, err := c.detect(environ)
	if err != nil {
		return nil, err
	}

	rules, err := c.LoadRuleset()
	if err != nil {
		return nil, err
	}

	source := &Source{Env: env, Ruleset: rules, environ: environ}

	declared := 0
	if len(paths) > 0 {
		declared++
	}
	if c.Stdin {
		declared++
	}
	if c.DiffFile != "" {
		declared++
	}
	if declared > 1 {
		return nil, fmt.Errorf("changed paths can come from only one of: positional arguments, --stdin, --diff-file")
	}

	switch {
	case len(paths) > 0:
		source.Files = classify.ChangedFileSet(paths)
	case c.Stdin:
		files, err := readPaths(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading paths from stdin: %w", err)
		}
		source.Files = files
	case c.DiffFile != "":
		file, err := os.Open(c.DiffFile)
		if err != nil {
			return nil, fmt.Errorf("opening diff file: %w", err)
		}
		defer file.Close()
		files, err := readPaths(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", c.DiffFile, err)
		}
		source.Files = files
	default:
		if err := source.diff(ctx, c, logger); err != nil {
			return nil, err
		}
	}

	return source, nil
}

// lookup builds the environment lookup function: the process
// environment, optionally shadowed by an --env-file overlay. The
// overlay never mutates the real environment, so one invocation cannot
// leak simulated CI variables into another.
func (c *SourceConfig) lookup() (func(string) string, error) {
	if c.EnvFile == "" {
		return os.Getenv, nil
	}
	overlay, err := godotenv.Read(c.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return func(key string) string {
		if value, ok := overlay[key]; ok {
			return value
		}
		return os.Getenv(key)
	}, nil
}

// detect runs CI detection and applies the --merge-request/--direct
// overrides on top of it.
func (c *SourceConfig) detect(environ func(string) string) (cienv.Context, error) {
	env, err := cienv.Detect(environ)
	if err != nil {
		return cienv.Context{}, err
	}

	switch {
	case c.MergeRequest && c.Direct:
		return cienv.Context{}, fmt.Errorf("--merge-request and --direct are mutually exclusive")
	case c.MergeRequest:
		env.MergeRequest = true
		env.Reason = "forced by --merge-request"
	case c.Direct:
		env.MergeRequest = false
		env.Reason = "forced by --direct"
	}
	return env, nil
}

// LoadRuleset returns the ruleset the --rules flag selects: the named
// file, or the built-in table when the flag is unset.
func (c *SourceConfig) LoadRuleset() (*classify.Ruleset, error) {
	if c.Rules == "" {
		return classify.DefaultRuleset(), nil
	}
	return ruleset.Load(c.Rules)
}

// diff resolves the git endpoints and collects the changed files.
// Merge requests need the diff to classify, so failures there are
// fatal. Direct builds force every signal on regardless; their file
// list only enriches records and summaries, so a missing base or a
// failed diff degrades to an empty list.
func (s *Source) diff(ctx context.Context, c *SourceConfig, logger *slog.Logger) error {
	s.Base = c.Base
	if s.Base == "" {
		s.Base = s.Env.BaseRef
	}
	s.Head = c.Head
	if s.Head == "" {
		s.Head = s.Env.HeadRef
	}
	if s.Head == "" {
		s.Head = "HEAD"
	}

	if s.Base == "" {
		if s.Env.MergeRequest {
			return fmt.Errorf("no base revision for the merge-request diff: pass --base or set the provider's target branch variable")
		}
		s.Head = ""
		return nil
	}

	repo := gitdiff.NewRepository(c.RepoDir)
	files, err := repo.ChangedFiles(ctx, s.Base, s.Head)
	if err != nil {
		if s.Env.MergeRequest {
			return err
		}
		logger.Warn("collecting changed files for the direct build failed", "error", err)
		s.Base, s.Head = "", ""
		return nil
	}
	s.Files = files
	return nil
}

// Evaluate classifies the file set under the resolved build context.
func (s *Source) Evaluate() classify.Breakdown {
	return s.Ruleset.Evaluate(s.Files, classify.RevisionContext{MergeRequest: s.Env.MergeRequest})
}

// BuildContext converts the resolved source into record form.
func (s *Source) BuildContext() record.BuildContext {
	return record.BuildContext{
		MergeRequest: s.Env.MergeRequest,
		Provider:     string(s.Env.Provider),
		Reason:       s.Env.Reason,
		BaseRef:      s.Base,
		HeadRef:      s.Head,
	}
}

// Environ looks up an environment variable through the same lens
// detection used: the --env-file overlay first, then the process
// environment. Commands use this for provider file sinks like
// GITHUB_OUTPUT and GITHUB_STEP_SUMMARY so simulation stays coherent.
func (s *Source) Environ(key string) string {
	return s.environ(key)
}

// readPaths reads newline-separated paths, trimming whitespace and
// dropping empty lines.
func readPaths(r io.Reader) (classify.ChangedFileSet, error) {
	scanner := bufio.NewScanner(r)
	var files classify.ChangedFileSet
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return files, nil
}
