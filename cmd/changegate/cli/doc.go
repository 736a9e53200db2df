// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the changegate CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a flag set, and a Run function.
// Commands are assembled into a tree in cmd/changegate/commands and
// dispatched via [Command.Execute], which handles flag parsing, subcommand
// routing, and structured help output with examples.
//
// Flags are declared either with an explicit [Command.Flags] factory or,
// more commonly, by tagging the fields of a params struct and returning a
// pointer to it from [Command.Params]; see [BindFlags] for the tag format.
//
// Commands that classify a changeset embed [SourceConfig] in their params
// struct, which contributes the shared input flags (--base, --diff-file,
// --merge-request, --env-file, --rules and friends) and resolves them into
// a [Source]: the changed paths, the merge-request verdict, and the
// effective ruleset.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3). This is implemented in
// suggest.go.
//
// Commands that produce machine-readable output embed [JSONOutput] in
// their params struct, which contributes the --json flag and the
// [JSONOutput.EmitJSON] method. Commands whose non-zero exit is a valid
// outcome rather than an error (check) return [ExitError], which main
// inspects via its ExitCode method.
package cli
