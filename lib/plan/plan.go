// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package plan evaluates a pipeline manifest against a set of gate
// signals and reports which jobs would run. It is a dry-run evaluator:
// nothing is scheduled or executed, the output is the decision table a
// CI platform would act on.
//
// Job conditions are CEL expressions compiled against a fixed
// environment: the three gate signals as booleans (buildDocs,
// buildNotebooks, testCode) and, for matrix jobs, the current cell as
// a string map (matrix.os, matrix.python, ...). A matrix job's
// condition is evaluated once per cell and the job runs when any cell
// passes. Jobs whose dependencies are skipped are skipped themselves,
// whatever their condition says.
package plan

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/changegate/changegate/lib/classify"
	"github.com/changegate/changegate/lib/manifest"
)

// Plan is the evaluated decision table for one manifest and one set of
// gate signals.
type Plan struct {
	// Pipeline is the manifest's declared name, if any.
	Pipeline string `json:"pipeline,omitempty"`

	// Signals the plan was evaluated against.
	Signals classify.Result `json:"signals"`

	// Jobs in execution order: topological depth first, then name.
	Jobs []JobPlan `json:"jobs"`
}

// JobPlan is the verdict for a single job.
type JobPlan struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Depth is the job's topological depth: the longest chain of
	// needs leading to it.
	Depth int `json:"depth"`

	// Run reports whether the job would run.
	Run bool `json:"run"`

	// Reason explains a skip: "condition" when the job's own
	// condition failed, "dependency (<name>)" when a needed job is
	// skipped. Empty for jobs that run.
	Reason string `json:"reason,omitempty"`

	// Cells carries per-cell verdicts for matrix jobs, in manifest
	// order. Cell verdicts reflect the condition alone; a job skipped
	// for a dependency keeps its cell verdicts for display.
	Cells []CellPlan `json:"cells,omitempty"`
}

// CellPlan is the verdict for one matrix cell.
type CellPlan struct {
	Values map[string]string `json:"values"`
	Run    bool              `json:"run"`
}

// Label renders the cell values as space-separated key=value pairs in
// key order.
func (c CellPlan) Label() string {
	keys := make([]string, 0, len(c.Values))
	for key := range c.Values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	pairs := make([]string, len(keys))
	for index, key := range keys {
		pairs[index] = key + "=" + c.Values[key]
	}
	return strings.Join(pairs, " ")
}

// RunCount returns how many jobs in the plan would run.
func (p *Plan) RunCount() int {
	count := 0
	for _, job := range p.Jobs {
		if job.Run {
			count++
		}
	}
	return count
}

// newEnv builds the CEL environment job conditions compile against.
func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable(classify.SignalBuildDocs, cel.BoolType),
		cel.Variable(classify.SignalBuildNotebooks, cel.BoolType),
		cel.Variable(classify.SignalTestCode, cel.BoolType),
		cel.Variable("matrix", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating condition environment: %w", err)
	}
	return env, nil
}

// condition is a compiled job condition.
type condition struct {
	expression string
	program    cel.Program
}

// compileCondition compiles a CEL expression and checks that it
// produces a boolean. A condition of the wrong type must fail at
// compile time, not on whichever evaluation first hits it.
func compileCondition(env *cel.Env, expression string) (*condition, error) {
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("must evaluate to a boolean, got %s", ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building program: %w", err)
	}
	return &condition{expression: expression, program: program}, nil
}

// eval runs the condition against the gate signals and a matrix cell.
// Pass an empty cell for non-matrix jobs.
func (c *condition) eval(signals classify.Result, cell map[string]string) (bool, error) {
	if cell == nil {
		cell = map[string]string{}
	}
	out, _, err := c.program.Eval(map[string]any{
		classify.SignalBuildDocs:      signals.BuildDocs,
		classify.SignalBuildNotebooks: signals.BuildNotebooks,
		classify.SignalTestCode:       signals.TestCode,
		"matrix":                      cell,
	})
	if err != nil {
		return false, err
	}
	value, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q produced %T, want bool", c.expression, out.Value())
	}
	return value, nil
}

// ValidateConditions compiles every job condition in the manifest and
// returns one message per problem, in the same issue-list form as
// manifest.Validate. The two together are a full manifest check.
func ValidateConditions(m *manifest.Manifest) []string {
	env, err := newEnv()
	if err != nil {
		return []string{err.Error()}
	}

	var issues []string
	for index, job := range m.Jobs {
		if job.Condition == "" {
			continue
		}
		if _, err := compileCondition(env, job.Condition); err != nil {
			issues = append(issues, fmt.Sprintf("jobs[%d] %q: condition: %v", index, job.Name, err))
		}
	}
	return issues
}

// Evaluate computes the decision table for the manifest under the
// given gate signals. The manifest should already have passed
// Validate; Evaluate still fails cleanly (rather than looping or
// panicking) on cycles and unknown references.
func Evaluate(m *manifest.Manifest, signals classify.Result) (*Plan, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	jobsByName := make(map[string]manifest.Job, len(m.Jobs))
	for _, job := range m.Jobs {
		jobsByName[job.Name] = job
	}

	order, depths, err := topoOrder(m.Jobs)
	if err != nil {
		return nil, err
	}

	verdicts := make(map[string]JobPlan, len(m.Jobs))
	for _, name := range order {
		job := jobsByName[name]

		verdict := JobPlan{
			Name:        job.Name,
			Description: job.Description,
			Depth:       depths[name],
		}

		conditionOK := true
		if job.Condition == "" {
			for _, cell := range job.Matrix {
				verdict.Cells = append(verdict.Cells, CellPlan{Values: cell, Run: true})
			}
		} else {
			compiled, err := compileCondition(env, job.Condition)
			if err != nil {
				return nil, fmt.Errorf("job %q: condition: %w", job.Name, err)
			}
			if len(job.Matrix) == 0 {
				conditionOK, err = compiled.eval(signals, nil)
				if err != nil {
					return nil, fmt.Errorf("job %q: %w", job.Name, err)
				}
			} else {
				conditionOK = false
				for cellIndex, cell := range job.Matrix {
					cellOK, err := compiled.eval(signals, cell)
					if err != nil {
						return nil, fmt.Errorf("job %q: matrix[%d]: %w", job.Name, cellIndex, err)
					}
					verdict.Cells = append(verdict.Cells, CellPlan{Values: cell, Run: cellOK})
					conditionOK = conditionOK || cellOK
				}
			}
		}

		// Dependency gate: a skipped need skips the job no matter
		// what the condition said. Report the first skipped need in
		// name order so the reason is deterministic.
		needs := slices.Clone(job.Needs)
		slices.Sort(needs)
		skippedNeed := ""
		for _, need := range needs {
			if !verdicts[need].Run {
				skippedNeed = need
				break
			}
		}

		switch {
		case skippedNeed != "":
			verdict.Reason = fmt.Sprintf("dependency (%s)", skippedNeed)
		case !conditionOK:
			verdict.Reason = "condition"
		default:
			verdict.Run = true
		}

		verdicts[name] = verdict
	}

	plan := &Plan{Pipeline: m.Name, Signals: signals, Jobs: make([]JobPlan, 0, len(order))}
	for _, name := range order {
		plan.Jobs = append(plan.Jobs, verdicts[name])
	}
	slices.SortStableFunc(plan.Jobs, func(a, b JobPlan) int {
		if a.Depth != b.Depth {
			return a.Depth - b.Depth
		}
		return strings.Compare(a.Name, b.Name)
	})
	return plan, nil
}

// topoOrder returns the job names in a topological order along with
// each job's depth (longest chain of needs leading to it). Fails on
// dependency cycles and on needs that reference unknown jobs.
func topoOrder(jobs []manifest.Job) ([]string, map[string]int, error) {
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
			if !known[need] {
				return nil, nil, fmt.Errorf("job %q needs unknown job %q", job.Name, need)
			}
			indegree[job.Name]++
			dependents[need] = append(dependents[need], job.Name)
		}
	}

	var ready []string
	for _, job := range jobs {
		if indegree[job.Name] == 0 {
			ready = append(ready, job.Name)
		}
	}
	slices.Sort(ready)

	depths := make(map[string]int, len(jobs))
	var order []string
	for len(ready) > 0 {
		// Pop the lexically smallest ready job so the order is
		// deterministic across runs.
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, dependent := range dependents[name] {
			if depths[name]+1 > depths[dependent] {
				depths[dependent] = depths[name] + 1
			}
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(order) != len(indegree) {
		var stuck []string
		for name, degree := range indegree {
			if degree > 0 {
				stuck = append(stuck, name)
			}
		}
		slices.Sort(stuck)
		return nil, nil, fmt.Errorf("dependency cycle involving: %s", strings.Join(stuck, ", "))
	}
	return order, depths, nil
}

// insertSorted inserts name into a sorted slice, keeping it sorted.
func insertSorted(sorted []string, name string) []string {
	index, _ := slices.BinarySearch(sorted, name)
	return slices.Insert(sorted, index, name)
}
