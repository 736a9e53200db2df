// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package summary generates the markdown report for a classification
// decision: the build context, the gate signals, the per-category file
// attribution, and the decision's identity (record ID and ruleset
// digest). The report is GitHub-flavored markdown, suitable for a CI
// job summary sink and for terminal display through lib/render.
package summary

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/changegate/changegate/lib/cienv"
	"github.com/changegate/changegate/lib/classify"
	"github.com/changegate/changegate/lib/record"
)

// MaxFilesPerCategory caps each per-category file list. Counts in the
// section headings always cover the full set; only the listing is
// truncated, so a ten-thousand-file refactor does not produce a
// ten-thousand-line job summary.
const MaxFilesPerCategory = 20

// StepSummaryVariable names the file GitHub Actions renders as the job
// summary. When it is set and the user gave no explicit path, the
// report is appended there.
const StepSummaryVariable = "GITHUB_STEP_SUMMARY"

// displayOrder lists categories as the report presents them:
// signal-driving categories first, ignored files last.
var displayOrder = []classify.Category{
	classify.CategoryDocs,
	classify.CategoryNotebooks,
	classify.CategoryCode,
	classify.CategoryIgnore,
}

// Render produces the markdown report for one decision.
func Render(rec *record.Record) string {
	var builder strings.Builder

	builder.WriteString("# Change classification\n\n")

	// Context paragraph: what kind of build, how that was determined,
	// and what was classified.
	if rec.MergeRequest {
		builder.WriteString("Merge request build")
	} else {
		builder.WriteString("Direct build")
	}
	if rec.Provider != "" && rec.Provider != string(cienv.ProviderNone) {
		builder.WriteString(fmt.Sprintf(" on %s", rec.Provider))
	}
	if rec.Reason != "" {
		builder.WriteString(fmt.Sprintf(" (%s)", rec.Reason))
	}
	builder.WriteString(".")
	if rec.BaseRef != "" && rec.HeadRef != "" {
		builder.WriteString(fmt.Sprintf(" Diff range `%s...%s`.", rec.BaseRef, rec.HeadRef))
	}
	builder.WriteString(fmt.Sprintf(" %s evaluated against ruleset `%s`.\n\n",
		countNoun(len(rec.Files), "changed file"), rec.Ruleset))

	if !rec.MergeRequest {
		builder.WriteString("Every signal is forced on for direct builds; the attribution below is informational.\n\n")
	}

	// Signal table.
	builder.WriteString("| Signal | Value |\n")
	builder.WriteString("| ------ | ----- |\n")
	result := rec.Result()
	for _, name := range classify.SignalNames {
		value, err := result.Signal(name)
		if err != nil {
			continue
		}
		builder.WriteString(fmt.Sprintf("| `%s` | %t |\n", name, value))
	}
	builder.WriteString("\n")

	// Per-category attribution.
	if len(rec.Files) == 0 {
		builder.WriteString("No changed files were reported.\n\n")
	} else {
		builder.WriteString("## Changed files\n\n")
		for _, category := range displayOrder {
			writeCategory(&builder, rec, category)
		}
	}

	// Footer: the decision's identity and the exact rule table that
	// produced it.
	builder.WriteString("---\n\n")
	builder.WriteString(fmt.Sprintf("Decision `%s` at %s. Ruleset digest `%s`.\n",
		rec.ID, rec.CreatedAt.Format(time.RFC3339), rec.RulesetDigest))

	return builder.String()
}

// writeCategory emits one category section: a heading with the full
// count and a capped file list annotated with the deciding rule.
func writeCategory(builder *strings.Builder, rec *record.Record, category classify.Category) {
	var files []record.FileRecord
	for _, file := range rec.Files {
		if file.Category == string(category) {
			files = append(files, file)
		}
	}
	if len(files) == 0 {
		return
	}

	builder.WriteString(fmt.Sprintf("### %s (%s)\n\n", category, countNoun(len(files), "file")))

	listed := files
	if len(listed) > MaxFilesPerCategory {
		listed = listed[:MaxFilesPerCategory]
	}
	for _, file := range listed {
		if file.Rule != "" {
			builder.WriteString(fmt.Sprintf("- `%s` (rule `%s`)\n", file.Path, file.Rule))
		} else {
			builder.WriteString(fmt.Sprintf("- `%s` (default)\n", file.Path))
		}
	}
	if extra := len(files) - len(listed); extra > 0 {
		builder.WriteString(fmt.Sprintf("- and %d more\n", extra))
	}
	builder.WriteString("\n")
}

// countNoun formats a count with its noun: "1 file", "3 files".
func countNoun(count int, noun string) string {
	if count == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", count, noun)
}

// DefaultPath returns the summary sink configured by the CI
// environment, or empty when there is none.
func DefaultPath(environ func(string) string) string {
	return environ(StepSummaryVariable)
}

// Append writes markdown to the end of the file at path, creating the
// file if needed. Summary sinks accumulate: GitHub concatenates each
// step's output into one rendered page, and repeated changegate runs
// follow the same convention.
func Append(path, markdown string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening summary file: %w", err)
	}
	if _, err := file.WriteString(markdown); err != nil {
		file.Close()
		return fmt.Errorf("writing summary to %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing summary file: %w", err)
	}
	return nil
}
