// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest reads pipeline manifests: YAML documents that
// declare the CI jobs downstream of classification, which jobs they
// need, and the condition expression that decides whether each one
// runs for a given set of gate signals.
//
// The document form (changegate.yaml):
//
//	version: 1
//	name: example-ci
//	jobs:
//	  - name: docs
//	    condition: buildDocs
//	  - name: test
//	    condition: testCode
//	    matrix:
//	      - {os: linux, python: "3.10"}
//	      - {os: windows, python: "3.10"}
//	  - name: publish
//	    needs: [docs, test]
//
// This package owns the document structure and its structural
// validation (names, dependency graph, matrix shape). Condition
// expressions are compiled and evaluated by lib/plan; its
// ValidateConditions complements Validate for full manifest checking.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the manifest format version this package reads.
const CurrentVersion = 1

// DefaultPath is where the CLI looks for a manifest when no
// --manifest flag is given.
const DefaultPath = "changegate.yaml"

// Manifest is a parsed pipeline manifest. The JSON tags serve the
// CLI's structured output; the on-disk format is YAML only.
type Manifest struct {
	// Version is the format version. Must be CurrentVersion.
	Version int `yaml:"version" json:"version"`

	// Name optionally labels the pipeline in plans and summaries.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Jobs declares the pipeline's jobs. Order is presentation
	// order only; execution order is derived from Needs.
	Jobs []Job `yaml:"jobs" json:"jobs"`
}

// Job is one CI job downstream of classification.
type Job struct {
	// Name identifies the job. Unique within the manifest.
	Name string `yaml:"name" json:"name"`

	// Description is free text shown in plan output.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Needs lists jobs that must run for this job to run. A job
	// whose dependency is skipped is itself skipped.
	Needs []string `yaml:"needs,omitempty" json:"needs,omitempty"`

	// Condition is a CEL expression over the gate signals
	// (buildDocs, buildNotebooks, testCode) and, inside a matrix
	// job, the cell values (matrix.os, matrix.python, ...). Empty
	// means the job always runs, subject to Needs.
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	// Matrix expands the job into one cell per entry. The condition
	// is evaluated per cell; the job runs when any cell does.
	Matrix []map[string]string `yaml:"matrix,omitempty" json:"matrix,omitempty"`
}

// jobNamePattern constrains job names to what CI platforms accept as
// identifiers.
var jobNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Parse unmarshals a manifest from YAML. Unknown fields are rejected:
// a typoed "conditon" key would otherwise silently turn a gated job
// into an always-run job.
func Parse(data []byte) (*Manifest, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var m Manifest
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// ReadFile reads a manifest from disk and parses it.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Job returns the named job, if present.
func (m *Manifest) Job(name string) (Job, bool) {
	for _, job := range m.Jobs {
		if job.Name == name {
			return job, true
		}
	}
	return Job{}, false
}

// Validate checks the manifest for structural problems and returns one
// message per issue. An empty slice means the structure is sound.
// Condition expressions are not checked here; plan.ValidateConditions
// covers those.
func (m *Manifest) Validate() []string {
	var issues []string

	if m.Version != CurrentVersion {
		issues = append(issues, fmt.Sprintf("version must be %d (got %d)", CurrentVersion, m.Version))
	}
	if len(m.Jobs) == 0 {
		issues = append(issues, "manifest declares no jobs")
	}

	names := make(map[string]bool, len(m.Jobs))
	for index, job := range m.Jobs {
		if job.Name == "" {
			issues = append(issues, fmt.Sprintf("jobs[%d] missing name", index))
			continue
		}
		if !jobNamePattern.MatchString(job.Name) {
			issues = append(issues, fmt.Sprintf("jobs[%d] %q: name may contain only letters, digits, hyphens, and underscores", index, job.Name))
		}
		if names[job.Name] {
			issues = append(issues, fmt.Sprintf("jobs[%d] %q: duplicate job name", index, job.Name))
		}
		names[job.Name] = true
	}

	for index, job := range m.Jobs {
		seen := make(map[string]bool, len(job.Needs))
		for _, need := range job.Needs {
			if need == job.Name {
				issues = append(issues, fmt.Sprintf("jobs[%d] %q: needs itself", index, job.Name))
				continue
			}
			if !names[need] {
				issues = append(issues, fmt.Sprintf("jobs[%d] %q: needs unknown job %q", index, job.Name, need))
				continue
			}
			if seen[need] {
				issues = append(issues, fmt.Sprintf("jobs[%d] %q: needs %q twice", index, job.Name, need))
			}
			seen[need] = true
		}
		issues = append(issues, validateMatrix(index, job)...)
	}

	if cycle := findCycle(m.Jobs); len(cycle) > 0 {
		issues = append(issues, fmt.Sprintf("dependency cycle involving: %s", strings.Join(cycle, ", ")))
	}

	return issues
}

// validateMatrix checks matrix shape: every cell must carry the same
// keys, since conditions reference cell values by name and a missing
// key would fail only on the cells that lack it.
func validateMatrix(index int, job Job) []string {
	var issues []string

	var keys []string
	for cellIndex, cell := range job.Matrix {
		if len(cell) == 0 {
			issues = append(issues, fmt.Sprintf("jobs[%d] %q: matrix[%d] is empty", index, job.Name, cellIndex))
			continue
		}
		cellKeys := make([]string, 0, len(cell))
		for key, value := range cell {
			cellKeys = append(cellKeys, key)
			if value == "" {
				issues = append(issues, fmt.Sprintf("jobs[%d] %q: matrix[%d] key %q has an empty value", index, job.Name, cellIndex, key))
			}
		}
		slices.Sort(cellKeys)
		if keys == nil {
			keys = cellKeys
			continue
		}
		if !slices.Equal(keys, cellKeys) {
			issues = append(issues, fmt.Sprintf("jobs[%d] %q: matrix[%d] keys [%s] differ from matrix[0] keys [%s]",
				index, job.Name, cellIndex, strings.Join(cellKeys, " "), strings.Join(keys, " ")))
		}
	}

	return issues
}

// findCycle runs Kahn's algorithm over the needs graph and returns the
// sorted names of jobs left unprocessed — the members and downstream
// of any dependency cycle. Unknown references are ignored here; they
// are reported separately.
func findCycle(jobs []Job) []string {
	known := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		known[job.Name] = true
	}

	indegree := make(map[string]int, len(jobs))
	dependents := make(map[string][]string, len(jobs))
	for _, job := range jobs {
		if _, exists := indegree[job.Name]; !exists {
			indegree[job.Name] = 0
		}
		for _, need := range job.Needs {
			if !known[need] || need == job.Name {
				continue
			}
			indegree[job.Name]++
			dependents[need] = append(dependents[need], job.Name)
		}
	}

	var ready []string
	for name, degree := range indegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}

	processed := 0
	for len(ready) > 0 {
		name := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		processed++
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if processed == len(indegree) {
		return nil
	}
	var stuck []string
	for name, degree := range indegree {
		if degree > 0 {
			stuck = append(stuck, name)
		}
	}
	slices.Sort(stuck)
	return stuck
}
