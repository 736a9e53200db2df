// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

// stripped renders markdown and returns the ANSI-stripped visible text.
func stripped(input string, width int) string {
	return ansi.Strip(Markdown(input, DefaultTheme, width))
}

func TestMarkdownEmpty(t *testing.T) {
	if result := Markdown("", DefaultTheme, 80); result != "" {
		t.Errorf("expected empty output for empty input, got %q", result)
	}
}

func TestMarkdownParagraphReflow(t *testing.T) {
	// Source hard-wrapped at a narrow width; at width 120 the soft
	// breaks should become spaces with no wrapping.
	input := "This decision summary was\nwritten at a narrow width with\nsoft line breaks embedded in it."
	result := stripped(input, 120)

	if strings.Contains(result, "\n") {
		t.Errorf("expected a single line at width 120, got:\n%s", result)
	}
	if !strings.Contains(result, "was written at") {
		t.Errorf("expected soft breaks converted to spaces, got:\n%s", result)
	}
}

func TestMarkdownWrapsToWidth(t *testing.T) {
	input := "This paragraph should be wrapped to the requested width."
	result := stripped(input, 30)

	for _, line := range strings.Split(result, "\n") {
		if len(line) > 30 {
			t.Errorf("line exceeds width 30: %q (len=%d)", line, len(line))
		}
	}
}

func TestMarkdownWrapsToWidthAtBreakpoints(t *testing.T) {
	// Words ending in wrap breakpoints and unbreakable runs must both
	// stay inside the width; a break taken at the final character of a
	// word must not push that character one column past the limit.
	inputs := []string{
		"Paths like lib/render/render_test.go and flags like --merge-request wrap too.",
		"Sentence ends at the boundary, twice, thrice; done.",
		"supercalifragilisticexpialidocious unbreakablerunofcharacters",
	}
	for _, input := range inputs {
		result := stripped(input, 24)
		for _, line := range strings.Split(result, "\n") {
			if len(line) > 24 {
				t.Errorf("line exceeds width 24: %q (len=%d)", line, len(line))
			}
		}
	}
}

func TestMarkdownHardLineBreak(t *testing.T) {
	// Two trailing spaces force a line break.
	input := "Line one  \nLine two"
	result := stripped(input, 80)

	if !strings.Contains(result, "Line one\nLine two") {
		t.Errorf("expected hard line break preserved, got:\n%s", result)
	}
}

func TestMarkdownHeading(t *testing.T) {
	input := "# Change classification\n\nBody text."
	result := stripped(input, 80)

	if !strings.Contains(result, "Change classification") {
		t.Errorf("missing heading text, got:\n%s", result)
	}
	if strings.HasPrefix(Markdown(input, DefaultTheme, 80), "\n") {
		t.Error("expected no blank lines before a document-leading heading")
	}
	if raw := Markdown(input, DefaultTheme, 80); raw == result {
		t.Error("expected ANSI styling in heading output")
	}
}

func TestMarkdownEmphasis(t *testing.T) {
	input := "This is *forced* and **gated** text."
	result := stripped(input, 80)

	if !strings.Contains(result, "forced") || !strings.Contains(result, "gated") {
		t.Errorf("missing emphasized text, got:\n%s", result)
	}
	if raw := Markdown(input, DefaultTheme, 80); raw == result {
		t.Error("expected ANSI styling in emphasis output")
	}
}

func TestMarkdownCodeSpan(t *testing.T) {
	input := "Signal `buildDocs` fired."
	result := stripped(input, 80)

	if !strings.Contains(result, "buildDocs") {
		t.Errorf("missing code span text, got:\n%s", result)
	}
}

func TestMarkdownFencedCode(t *testing.T) {
	input := "Before.\n\n```sh\nchangegate check testCode && make test\n```\n\nAfter."
	result := stripped(input, 80)

	if !strings.Contains(result, "changegate check testCode && make test") {
		t.Errorf("missing code block content, got:\n%s", result)
	}
	if !strings.Contains(result, "Before.") || !strings.Contains(result, "After.") {
		t.Errorf("missing surrounding text, got:\n%s", result)
	}
}

func TestMarkdownFencedCodeHighlighted(t *testing.T) {
	input := "```go\npackage main\n```"
	raw := Markdown(input, DefaultTheme, 80)

	if !strings.Contains(raw, "\x1b[") {
		t.Error("expected ANSI escapes from syntax highlighting")
	}
}

func TestMarkdownFencedCodeNoLanguage(t *testing.T) {
	input := "```\nplain text block\n```"
	result := stripped(input, 80)

	if !strings.Contains(result, "plain text block") {
		t.Errorf("missing unlabeled code block content, got:\n%s", result)
	}
}

func TestMarkdownFencedCodeNotReflowed(t *testing.T) {
	input := "```\nshort\nlines\nstay\n```"
	result := stripped(input, 80)

	if !strings.Contains(result, "short\nlines\nstay") {
		t.Errorf("expected code lines preserved verbatim, got:\n%s", result)
	}
}

func TestMarkdownUnorderedList(t *testing.T) {
	input := "- `doc/intro.rst` (rule `doc/*`)\n- `src/solver.py` (default)"
	result := stripped(input, 80)

	if !strings.Contains(result, "- doc/intro.rst (rule doc/*)") {
		t.Errorf("missing first list item, got:\n%s", result)
	}
	if !strings.Contains(result, "- src/solver.py (default)") {
		t.Errorf("missing second list item, got:\n%s", result)
	}
}

func TestMarkdownOrderedList(t *testing.T) {
	input := "1. First\n2. Second\n3. Third"
	result := stripped(input, 80)

	for _, item := range []string{"1. First", "2. Second", "3. Third"} {
		if !strings.Contains(result, item) {
			t.Errorf("missing %q, got:\n%s", item, result)
		}
	}
}

func TestMarkdownNestedListIndent(t *testing.T) {
	input := "- Outer\n  - Inner\n- Outer two"
	result := stripped(input, 80)

	var outerIndent, innerIndent int
	for _, line := range strings.Split(result, "\n") {
		indent := len(line) - len(strings.TrimLeft(line, " "))
		if strings.Contains(line, "Inner") {
			innerIndent = indent
		}
		if strings.Contains(line, "Outer") && !strings.Contains(line, "two") {
			outerIndent = indent
		}
	}
	if innerIndent <= outerIndent {
		t.Errorf("expected nested item indented deeper: outer=%d, inner=%d", outerIndent, innerIndent)
	}
}

func TestMarkdownListItemReflow(t *testing.T) {
	input := "- This is a long list item that\n  was written at a narrow width."
	result := stripped(input, 80)

	if !strings.Contains(result, "long list item that was written") {
		t.Errorf("expected list item text reflowed, got:\n%s", result)
	}
}

func TestMarkdownThematicBreak(t *testing.T) {
	input := "Above.\n\n---\n\nBelow."
	result := stripped(input, 40)

	if !strings.Contains(result, "───") {
		t.Errorf("expected horizontal rule, got:\n%s", result)
	}
	if !strings.Contains(result, "Above.") || !strings.Contains(result, "Below.") {
		t.Errorf("missing surrounding text, got:\n%s", result)
	}
}

func TestMarkdownTable(t *testing.T) {
	input := "| Signal | Value |\n| ------ | ----- |\n| `buildDocs` | true |\n| `testCode` | false |"
	result := stripped(input, 80)

	if !strings.Contains(result, "Signal") || !strings.Contains(result, "Value") {
		t.Errorf("missing table header, got:\n%s", result)
	}
	if !strings.Contains(result, "buildDocs") || !strings.Contains(result, "testCode") {
		t.Errorf("missing table cells, got:\n%s", result)
	}
	if !strings.Contains(result, "───") {
		t.Errorf("missing header separator, got:\n%s", result)
	}

	// Columns align: both signal cells start at the same column.
	lines := strings.Split(result, "\n")
	var valueColumns []int
	for _, line := range lines {
		if index := strings.Index(line, "true"); index >= 0 {
			valueColumns = append(valueColumns, index)
		}
		if index := strings.Index(line, "false"); index >= 0 {
			valueColumns = append(valueColumns, index)
		}
	}
	if len(valueColumns) != 2 || valueColumns[0] != valueColumns[1] {
		t.Errorf("expected aligned value column, got offsets %v in:\n%s", valueColumns, result)
	}
}

func TestMarkdownTableShrinksToWidth(t *testing.T) {
	input := "| Path | Category |\n| ---- | -------- |\n" +
		"| a/very/long/path/deep/in/the/repository/tree.py | code |\n" +
		"| another/quite/long/path/to/a/notebook.ipynb | notebooks |"
	result := stripped(input, 40)

	for _, line := range strings.Split(result, "\n") {
		if len([]rune(line)) > 40 {
			t.Errorf("table line exceeds width 40: %q", line)
		}
	}
}

func TestMarkdownDegradesUnhandledNodes(t *testing.T) {
	// Links are outside the generated vocabulary: the text content
	// renders, the destination is dropped.
	input := "See [the history](https://example.com/history) for details."
	result := stripped(input, 80)

	if !strings.Contains(result, "the history") {
		t.Errorf("expected link text preserved, got:\n%s", result)
	}
	if strings.Contains(result, "example.com") {
		t.Errorf("expected link destination dropped, got:\n%s", result)
	}
}

func TestMarkdownWidthFloor(t *testing.T) {
	// Degenerate widths clamp to a minimum instead of thrashing.
	result := stripped("Some text to wrap somewhere.", 1)

	if !strings.Contains(result, "Some") {
		t.Errorf("missing content at tiny width, got:\n%s", result)
	}
}

func TestMarkdownMultipleParagraphs(t *testing.T) {
	input := "First paragraph.\n\nSecond paragraph."
	result := stripped(input, 80)

	if !strings.Contains(result, "First paragraph.\n\nSecond paragraph.") {
		t.Errorf("expected blank line between paragraphs, got:\n%s", result)
	}
}
