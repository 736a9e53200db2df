// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"fmt"
	"slices"
	"strings"
)

// Category is the classification assigned to a single changed file.
type Category string

const (
	// CategoryIgnore marks files with no effect on any gate signal.
	CategoryIgnore Category = "ignore"

	// CategoryDocs marks documentation sources.
	CategoryDocs Category = "docs"

	// CategoryNotebooks marks example notebooks.
	CategoryNotebooks Category = "notebooks"

	// CategoryCode marks everything else: source code, build
	// configuration, CI definitions, and any path no rule claims.
	CategoryCode Category = "code"
)

// Categories lists every valid category in a stable order.
var Categories = []Category{CategoryIgnore, CategoryDocs, CategoryNotebooks, CategoryCode}

// ParseCategory converts a string, typically read from a rules file,
// into a Category.
func ParseCategory(value string) (Category, error) {
	switch Category(value) {
	case CategoryIgnore, CategoryDocs, CategoryNotebooks, CategoryCode:
		return Category(value), nil
	}
	return "", fmt.Errorf("unknown category %q (want one of ignore, docs, notebooks, code)", value)
}

// Signal names, as published to CI variables and accepted by the check
// command.
const (
	SignalBuildDocs      = "buildDocs"
	SignalBuildNotebooks = "buildNotebooks"
	SignalTestCode       = "testCode"
)

// SignalNames lists the three signal names in canonical order.
var SignalNames = []string{SignalBuildDocs, SignalBuildNotebooks, SignalTestCode}

// Rule maps a path pattern to a category. Two pattern forms exist:
//
//   - "dir/*" matches every path under the directory dir/, by plain
//     string prefix. There is no glob expansion: the asterisk is only
//     meaningful as the trailing "/*" directory form.
//   - anything else matches exactly one path, byte for byte.
//
// Matching is case-sensitive and operates on repository-relative,
// forward-slash paths as git reports them.
type Rule struct {
	// Pattern is the exact path or "dir/*" prefix form.
	Pattern string

	// Category is assigned to paths the pattern matches.
	Category Category
}

// Matches reports whether the rule claims the given path.
func (r Rule) Matches(path string) bool {
	if dir, ok := strings.CutSuffix(r.Pattern, "/*"); ok {
		return strings.HasPrefix(path, dir+"/")
	}
	return path == r.Pattern
}

// Validate reports the problems with a rule, one message per issue.
// An empty slice means the rule is well formed.
func (r Rule) Validate() []string {
	var issues []string
	if r.Pattern == "" {
		issues = append(issues, "pattern must not be empty")
	} else {
		if strings.Contains(strings.TrimSuffix(r.Pattern, "/*"), "*") {
			issues = append(issues, fmt.Sprintf("pattern %q: * is only valid as a trailing \"/*\" directory suffix", r.Pattern))
		}
		if strings.HasPrefix(r.Pattern, "/") {
			issues = append(issues, fmt.Sprintf("pattern %q must be repository-relative, without a leading /", r.Pattern))
		}
		if strings.HasSuffix(r.Pattern, "/") {
			issues = append(issues, fmt.Sprintf("pattern %q ends with /: directory prefixes are written \"dir/*\"", r.Pattern))
		}
		if strings.Contains(r.Pattern, "\\") {
			issues = append(issues, fmt.Sprintf("pattern %q contains a backslash: paths use forward slashes", r.Pattern))
		}
	}
	if _, err := ParseCategory(string(r.Category)); err != nil {
		issues = append(issues, err.Error())
	}
	return issues
}

// Ruleset is an ordered rule table plus the implicit trailing default
// that classifies unmatched paths as code. Order is significant: the
// first rule that matches a path decides its category, and later rules
// are not consulted.
type Ruleset struct {
	name  string
	rules []Rule
}

// NewRuleset builds a ruleset from an ordered rule list. The name
// labels the ruleset in records and summaries: "default" for the
// built-in table, or the path of the rules file it was loaded from.
// An empty rule list is valid and classifies every path as code.
func NewRuleset(name string, rules []Rule) (*Ruleset, error) {
	for index, rule := range rules {
		if issues := rule.Validate(); len(issues) > 0 {
			return nil, fmt.Errorf("rule %d (%q): %s", index, rule.Pattern, strings.Join(issues, "; "))
		}
	}
	return &Ruleset{name: name, rules: slices.Clone(rules)}, nil
}

// DefaultRuleset returns the standard classification table: top-level
// README.md and the prototypes/ tree are ignored, doc/ holds
// documentation, notebooks/ holds notebooks, and everything else is
// code.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		name: "default",
		rules: []Rule{
			{Pattern: "README.md", Category: CategoryIgnore},
			{Pattern: "prototypes/*", Category: CategoryIgnore},
			{Pattern: "doc/*", Category: CategoryDocs},
			{Pattern: "notebooks/*", Category: CategoryNotebooks},
		},
	}
}

// Name returns the ruleset's label.
func (rs *Ruleset) Name() string { return rs.name }

// Rules returns a copy of the rule table in evaluation order.
func (rs *Ruleset) Rules() []Rule { return slices.Clone(rs.rules) }

// ChangedFileSet is the list of repository-relative paths changed in
// the revision under classification, as produced by
// git diff --name-only. Order and duplicates do not affect the derived
// signals.
type ChangedFileSet []string

// RevisionContext describes the revision being classified.
type RevisionContext struct {
	// MergeRequest is true when the revision is a merge request
	// (pull request) build. Only merge requests are classified
	// selectively; direct builds force every signal true.
	MergeRequest bool
}

// Result carries the three gate signals consumed by downstream CI
// jobs. The JSON field names are the canonical signal names.
type Result struct {
	// BuildDocs is true when the documentation build should run.
	BuildDocs bool `json:"buildDocs"`

	// BuildNotebooks is true when notebooks should be re-executed.
	BuildNotebooks bool `json:"buildNotebooks"`

	// TestCode is true when code linting and tests should run.
	TestCode bool `json:"testCode"`
}

// Signal returns the named signal's value. The name must be one of
// SignalNames.
func (r Result) Signal(name string) (bool, error) {
	switch name {
	case SignalBuildDocs:
		return r.BuildDocs, nil
	case SignalBuildNotebooks:
		return r.BuildNotebooks, nil
	case SignalTestCode:
		return r.TestCode, nil
	}
	return false, fmt.Errorf("unknown signal %q (want one of %s)", name, strings.Join(SignalNames, ", "))
}

// Match records how a single path was classified.
type Match struct {
	// Path is the input path, verbatim.
	Path string

	// Category the path was assigned.
	Category Category

	// Rule is the index of the deciding rule in the ruleset, or -1
	// when no rule matched and the code default applied.
	Rule int
}

// Explain classifies one path and reports which rule decided it.
func (rs *Ruleset) Explain(path string) Match {
	for index, rule := range rs.rules {
		if rule.Matches(path) {
			return Match{Path: path, Category: rule.Category, Rule: index}
		}
	}
	return Match{Path: path, Category: CategoryCode, Rule: -1}
}

// Breakdown is the full classification output: the gate signals plus
// the per-file attribution they were derived from. Matches preserves
// input order, one entry per input path; duplicate paths appear once
// per occurrence, classified independently.
type Breakdown struct {
	Result  Result
	Matches []Match
	Counts  map[Category]int
}

// Evaluate classifies every path in the set and derives the gate
// signals.
//
// For merge requests the derivation is fixed:
//
//	buildDocs      = docs present      || code present
//	buildNotebooks = notebooks present || code present
//	testCode       = code present
//
// so an empty set, or a set of only ignored paths, leaves every signal
// false. For any other revision all three signals are true regardless
// of the file set; the per-file attribution is still computed, since
// records and summaries report it either way.
func (rs *Ruleset) Evaluate(files ChangedFileSet, revision RevisionContext) Breakdown {
	breakdown := Breakdown{
		Matches: make([]Match, 0, len(files)),
		Counts:  make(map[Category]int, len(Categories)),
	}
	for _, path := range files {
		match := rs.Explain(path)
		breakdown.Matches = append(breakdown.Matches, match)
		breakdown.Counts[match.Category]++
	}
	if !revision.MergeRequest {
		breakdown.Result = Result{BuildDocs: true, BuildNotebooks: true, TestCode: true}
		return breakdown
	}
	docs := breakdown.Counts[CategoryDocs] > 0
	notebooks := breakdown.Counts[CategoryNotebooks] > 0
	code := breakdown.Counts[CategoryCode] > 0
	breakdown.Result = Result{
		BuildDocs:      docs || code,
		BuildNotebooks: notebooks || code,
		TestCode:       code,
	}
	return breakdown
}

// Classify derives the gate signals without per-file attribution.
func (rs *Ruleset) Classify(files ChangedFileSet, revision RevisionContext) Result {
	return rs.Evaluate(files, revision).Result
}

// Classify derives the gate signals for the file set under the default
// ruleset.
func Classify(files ChangedFileSet, revision RevisionContext) Result {
	return DefaultRuleset().Classify(files, revision)
}
