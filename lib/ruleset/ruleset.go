// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package ruleset loads classification rule tables from disk.
//
// Rules files are authored as JSONC (JSON extended with // line
// comments, /* block comments */, and trailing commas) so teams can
// annotate why a path is ignored or where a directory moved. The
// document form:
//
//	{
//	  "version": 1,
//	  "name": "optional label",
//	  "rules": [
//	    {"pattern": "README.md", "category": "ignore"},
//	    {"pattern": "doc/*", "category": "docs"},
//	  ],
//	}
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → File
//  2. Validate: structural checks (version, patterns, shadowed rules)
//  3. Compile: File → classify.Ruleset ready for evaluation
//
// Load bundles all three for callers that only want a usable ruleset
// or a single error.
package ruleset

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/changegate/changegate/lib/classify"
)

// CurrentVersion is the rules file format version this package reads
// and writes.
const CurrentVersion = 1

// File is the on-disk form of a rule table, before compilation.
type File struct {
	// Version is the format version. Must be CurrentVersion.
	Version int `json:"version"`

	// Name optionally labels the ruleset in records and summaries.
	// When empty, the label falls back to the file path.
	Name string `json:"name,omitempty"`

	// Rules is the ordered rule table. First match wins; paths that
	// match nothing classify as code.
	Rules []FileRule `json:"rules"`
}

// FileRule is a single entry in a rules file. The category is kept as
// a plain string here so Validate can report unknown categories with
// their position instead of Parse failing opaquely.
type FileRule struct {
	Pattern  string `json:"pattern"`
	Category string `json:"category"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a File.
func Parse(data []byte) (*File, error) {
	stripped := jsonc.ToJSON(data)

	var file File
	if err := json.Unmarshal(stripped, &file); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	return &file, nil
}

// ReadFile reads a JSONC rules file from disk and parses it. Returns a
// descriptive error if the file cannot be read or the JSON is
// malformed.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return file, nil
}

// Validate checks the file for structural problems and returns one
// message per issue. An empty slice means the file is valid. Issues
// reference rules by index and pattern so they can be found in the
// source file.
func (f *File) Validate() []string {
	var issues []string

	if f.Version != CurrentVersion {
		issues = append(issues, fmt.Sprintf("version must be %d (got %d)", CurrentVersion, f.Version))
	}
	if len(f.Rules) == 0 {
		issues = append(issues, "rules list is empty: every path would classify as code, which is the behavior without a rules file")
	}

	for index, entry := range f.Rules {
		rule := classify.Rule{Pattern: entry.Pattern, Category: classify.Category(entry.Category)}
		for _, issue := range rule.Validate() {
			issues = append(issues, fmt.Sprintf("rules[%d] %q: %s", index, entry.Pattern, issue))
		}
	}

	// Shadowing: a rule that can never fire because an earlier rule
	// claims every path it could match. Report these even though they
	// are harmless at evaluation time, since they always indicate a
	// misordered table.
	for later := range f.Rules {
		for earlier := range later {
			if shadows(f.Rules[earlier], f.Rules[later]) {
				issues = append(issues, fmt.Sprintf(
					"rules[%d] %q: unreachable, shadowed by rules[%d] %q",
					later, f.Rules[later].Pattern, earlier, f.Rules[earlier].Pattern))
				break
			}
		}
	}

	return issues
}

// shadows reports whether every path the later rule could match is
// already claimed by the earlier rule.
func shadows(earlier, later FileRule) bool {
	earlierDir, earlierIsPrefix := strings.CutSuffix(earlier.Pattern, "/*")
	laterDir, laterIsPrefix := strings.CutSuffix(later.Pattern, "/*")

	if !earlierIsPrefix {
		// An exact rule only shadows an identical exact rule.
		return !laterIsPrefix && earlier.Pattern == later.Pattern
	}
	if laterIsPrefix {
		// doc/* shadows doc/* and doc/generated/*.
		return laterDir == earlierDir || strings.HasPrefix(laterDir, earlierDir+"/")
	}
	// doc/* shadows the exact rule doc/conf.py.
	return strings.HasPrefix(later.Pattern, earlierDir+"/")
}

// Compile turns the file into an evaluation-ready ruleset. The source
// argument labels the ruleset (typically the file path) when the file
// declares no name of its own. Compile assumes Validate passed; it
// still reports invalid rules as an error rather than panicking, since
// the two checks share the same rule validation.
func (f *File) Compile(source string) (*classify.Ruleset, error) {
	label := f.Name
	if label == "" {
		label = source
	}

	rules := make([]classify.Rule, 0, len(f.Rules))
	for _, entry := range f.Rules {
		rules = append(rules, classify.Rule{
			Pattern:  entry.Pattern,
			Category: classify.Category(entry.Category),
		})
	}

	compiled, err := classify.NewRuleset(label, rules)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", source, err)
	}
	return compiled, nil
}

// Load reads, validates, and compiles a rules file in one step. On
// validation failure the error lists every issue, one per line, so a
// broken file surfaces all its problems at once.
func Load(path string) (*classify.Ruleset, error) {
	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if issues := file.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("%s has %d issue(s):\n  - %s", path, len(issues), strings.Join(issues, "\n  - "))
	}
	return file.Compile(path)
}

// Format renders a compiled ruleset back into the rules file form,
// indented JSON (which is also valid JSONC). Used by the CLI to show
// the effective table, including the built-in default.
func Format(ruleset *classify.Ruleset) ([]byte, error) {
	file := File{
		Version: CurrentVersion,
		Name:    ruleset.Name(),
		Rules:   make([]FileRule, 0, len(ruleset.Rules())),
	}
	for _, rule := range ruleset.Rules() {
		file.Rules = append(file.Rules, FileRule{
			Pattern:  rule.Pattern,
			Category: string(rule.Category),
		})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	return append(data, '\n'), nil
}
