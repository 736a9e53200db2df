// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitdiff acquires changed-file sets from the git CLI. It is
// the bridge between a repository checkout and the classifier: given
// two revisions, it asks git which paths differ and hands the list to
// lib/classify untouched.
//
// All commands target a specific repository directory via the -C flag,
// which every Repository method injects. There is no default
// directory: callers always say which checkout they mean, because in
// CI the working directory and the repository under test frequently
// differ.
package gitdiff

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/changegate/changegate/lib/classify"
)

// Repository represents a git repository at a specific directory.
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting the given directory.
// The directory may be the repository root or any path inside the
// working tree; git resolves either.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command targeting this repository and returns
// stdout. Stderr is captured separately and included in error messages
// on failure, since git writes its diagnostics there.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Toplevel returns the absolute path of the repository's working tree
// root. Fails when the directory is not inside a git working tree.
func (r *Repository) Toplevel(ctx context.Context) (string, error) {
	output, err := r.Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// RevParse resolves a revision expression to a full commit hash.
// Useful for recording exactly which commits a classification covered,
// independent of what the symbolic refs later move to.
func (r *Repository) RevParse(ctx context.Context, rev string) (string, error) {
	output, err := r.Run(ctx, "rev-parse", "--verify", rev+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// ChangedFiles lists the paths that differ between base and head,
// using the merge-base form "base...head" — the set of changes head
// introduces relative to where it forked from base. This matches what
// a merge request would merge, not the full drift between the two
// branches.
//
// head defaults to HEAD when empty. Paths are repository-relative with
// forward slashes, exactly as the classifier expects. The listing uses
// NUL separation (-z) so paths containing newlines survive.
func (r *Repository) ChangedFiles(ctx context.Context, base, head string) (classify.ChangedFileSet, error) {
	if base == "" {
		return nil, fmt.Errorf("base revision required for a diff in %s", r.dir)
	}
	if head == "" {
		head = "HEAD"
	}

	output, err := r.Run(ctx, "diff", "--name-only", "-z", base+"..."+head)
	if err != nil {
		return nil, err
	}

	var files classify.ChangedFileSet
	for _, path := range strings.Split(output, "\x00") {
		if path != "" {
			files = append(files, path)
		}
	}
	return files, nil
}
