// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package classify implements the change classifier at the core of
// changegate: given the set of file paths changed in a revision and a
// flag saying whether the revision is a merge request, it produces the
// three gate signals that drive downstream CI jobs — whether to build
// documentation, whether to re-execute notebooks, and whether to lint
// and test code.
//
// Classification is rule-driven. A [Ruleset] is an ordered list of
// [Rule] values, each mapping a path pattern (exact name or directory
// prefix) to a [Category]. The first matching rule wins; paths that
// match no rule count as code changes, erring toward running the full
// suite. [DefaultRuleset] carries the standard table:
//
//	README.md     → ignore
//	prototypes/*  → ignore
//	doc/*         → docs
//	notebooks/*   → notebooks
//	(default)     → code
//
// The derivation from per-file categories to gate signals is fixed and
// not configurable: docs and notebooks are rebuilt whenever code
// changes (both embed results of the code under change), and tests run
// exactly when code changed. Revisions that are not merge requests
// force all three signals true regardless of the file set.
//
// Everything in this package is a pure function over its inputs: no
// I/O, no shared state, no failure modes beyond constructor
// validation. Acquiring the changed-file set and publishing the
// signals are the callers' concern (lib/gitdiff, lib/cienv, lib/emit).
package classify
