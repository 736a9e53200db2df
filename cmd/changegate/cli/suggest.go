// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// suggestionThreshold caps how far a candidate may be from the input,
// in edit distance, before it is offered as a suggestion. Distance 3
// covers the typical typo shapes: a dropped letter, a doubled letter,
// a swapped pair.
const suggestionThreshold = 3

// closestMatch returns the candidate with the smallest edit distance
// to the input, or "" when every candidate is beyond the threshold.
// Earlier candidates win ties.
func closestMatch(input string, candidates []string) string {
	best := ""
	bestDistance := suggestionThreshold + 1
	for _, candidate := range candidates {
		if distance := editDistance(input, candidate); distance < bestDistance {
			best = candidate
			bestDistance = distance
		}
	}
	return best
}

// suggestCommand returns the subcommand name closest to the unknown
// input, or "" when nothing is close enough to plausibly be a typo.
func suggestCommand(unknown string, commands []*Command) string {
	names := make([]string, len(commands))
	for index, command := range commands {
		names[index] = command.Name
	}
	return closestMatch(unknown, names)
}

// suggestFlag finds the first flag-shaped argument the flag set does
// not define and returns the closest defined flag, prefixed with --
// (or - for a one-letter shorthand). Returns "" when there is nothing
// to suggest.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	unknown := firstUnknownFlag(args, flagSet)
	if unknown == "" {
		return ""
	}

	var defined []string
	flagSet.VisitAll(func(f *pflag.Flag) {
		defined = append(defined, f.Name)
	})

	match := closestMatch(unknown, defined)
	switch {
	case match == "":
		return ""
	case len(match) == 1:
		return "-" + match
	default:
		return "--" + match
	}
}

// firstUnknownFlag scans args for the first argument that looks like a
// flag but is defined neither as a long name nor as a shorthand, and
// returns its bare name.
func firstUnknownFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		name, _, _ = strings.Cut(name, "=")

		if flagSet.Lookup(name) != nil {
			continue
		}
		if len(name) == 1 && flagSet.ShorthandLookup(name) != nil {
			continue
		}
		return name
	}
	return ""
}

// editDistance computes the Levenshtein distance between two strings:
// the minimum number of single-character insertions, deletions, and
// substitutions turning one into the other. One row of the distance
// matrix, plus the diagonal carried across the inner loop, is all the
// state the computation needs.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		diagonal := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			above := row[j]
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, row[j-1]+1, diagonal+cost)
			diagonal = above
		}
	}
	return row[len(b)]
}
