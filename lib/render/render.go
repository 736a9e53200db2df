// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns changegate's generated markdown into styled
// terminal text, primarily decision summaries for history show
// --render.
//
// The renderer covers the constructs the generators emit: headings,
// paragraphs, lists, tables, emphasis, code spans, fenced code blocks,
// and thematic breaks. Other markdown degrades to its plain text
// content rather than failing, but gets no dedicated styling. It is
// deliberately not a general markdown renderer.
package render

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// wrapBreakpoints are the characters long words may break at. '/' is
// included so deep repository paths wrap instead of overflowing.
// Sentence punctuation is not: ansi.Wrap places a trailing breakpoint
// character past the limit, so ',' or '.' there would push a line one
// column over the requested width.
const wrapBreakpoints = " -+|/"

// The goldmark parser is configured once and shared: per-parse state
// is created inside Parse, so the instance is safe for concurrent use.
// Only the table extension is enabled; the generators use no other
// GFM constructs.
var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func parser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(
			goldmark.WithExtensions(extension.Table),
		)
	})
	return parserInstance
}

// Markdown renders markdown source as ANSI-styled terminal text
// wrapped to width columns. Soft line breaks within paragraphs become
// spaces, so text reflows to the target width regardless of how the
// source was wrapped.
func Markdown(source string, theme Theme, width int) string {
	if source == "" {
		return ""
	}
	input := []byte(source)
	document := parser().Parser().Parse(text.NewReader(input))

	// The color profile is forced to ANSI256: rendering only happens
	// when explicitly requested, so auto-detection would serve no
	// purpose beyond stripping color under tests and pipes.
	// SetColorProfile is needed on top of the termenv option because
	// lipgloss re-detects the profile from the environment unless one
	// was set explicitly.
	styles := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.ANSI256))
	styles.SetColorProfile(termenv.ANSI256)

	writer := &terminalWriter{
		source: input,
		theme:  theme,
		width:  width,
		styles: styles,
	}
	ast.Walk(document, writer.walk)
	return strings.TrimRight(writer.output.String(), "\n")
}

// terminalWriter walks a goldmark AST and accumulates styled terminal
// text. It uses a direct ast.Walk instead of goldmark's renderer
// interface because terminal output needs accumulate-then-wrap
// semantics: inline content collects in a buffer and is word-wrapped
// as a unit when its containing block closes.
type terminalWriter struct {
	source []byte
	theme  Theme
	width  int

	// Final rendered output.
	output strings.Builder

	// Accumulator for inline content within the current paragraph,
	// heading, or table cell. Flushed with word-wrap when the block
	// closes.
	inline strings.Builder

	// Prefix stack for nested blocks (list item continuations).
	prefixes    []prefix
	linePrefix  string // Concatenation of all prefix texts.
	prefixWidth int    // Sum of all visible prefix widths.

	// pendingBullet replaces linePrefix for the next emitted line,
	// then clears. Set when a list item opens.
	pendingBullet string

	// Inline style depth. Text nodes read these; counters rather than
	// booleans so nested emphasis unwinds correctly.
	boldDepth   int
	italicDepth int

	lists []listLevel

	// lipgloss renderer carrying the forced color profile.
	styles *lipgloss.Renderer

	// Trailing newline count of output, for blank-line management.
	trailingNewlines int
}

type prefix struct {
	text  string
	width int
}

type listLevel struct {
	ordered bool
	counter int
	tight   bool
}

func (writer *terminalWriter) style() lipgloss.Style {
	return writer.styles.NewStyle()
}

// contentWidth is the wrap width after prefixes, clamped to a minimum
// of 10 to keep degenerate widths from producing one-character lines.
func (writer *terminalWriter) contentWidth() int {
	width := writer.width - writer.prefixWidth
	if width < 10 {
		width = 10
	}
	return width
}

func (writer *terminalWriter) pushPrefix(prefixText string, visibleWidth int) {
	writer.prefixes = append(writer.prefixes, prefix{text: prefixText, width: visibleWidth})
	writer.linePrefix += prefixText
	writer.prefixWidth += visibleWidth
}

func (writer *terminalWriter) popPrefix() {
	if len(writer.prefixes) == 0 {
		return
	}
	top := writer.prefixes[len(writer.prefixes)-1]
	writer.prefixes = writer.prefixes[:len(writer.prefixes)-1]
	writer.linePrefix = writer.linePrefix[:len(writer.linePrefix)-len(top.text)]
	writer.prefixWidth -= top.width
}

func (writer *terminalWriter) inTightList() bool {
	if len(writer.lists) == 0 {
		return false
	}
	return writer.lists[len(writer.lists)-1].tight
}

// write appends text to the output, tracking trailing newlines.
func (writer *terminalWriter) write(s string) {
	if s == "" {
		return
	}
	writer.output.WriteString(s)

	trailing := 0
	onlyNewlines := true
	for index := len(s) - 1; index >= 0; index-- {
		if s[index] != '\n' {
			onlyNewlines = false
			break
		}
		trailing++
	}
	if onlyNewlines {
		writer.trailingNewlines += trailing
	} else {
		writer.trailingNewlines = trailing
	}
}

func (writer *terminalWriter) ensureNewline() {
	if writer.output.Len() == 0 {
		return
	}
	if writer.trailingNewlines < 1 {
		writer.write("\n")
	}
}

func (writer *terminalWriter) ensureBlankLine() {
	if writer.output.Len() == 0 {
		return
	}
	for writer.trailingNewlines < 2 {
		writer.write("\n")
	}
}

// consumePrefix returns the prefix for the current line: the pending
// bullet if one is set (first line of a list item), otherwise the
// regular line prefix.
func (writer *terminalWriter) consumePrefix() string {
	if writer.pendingBullet != "" {
		bullet := writer.pendingBullet
		writer.pendingBullet = ""
		return bullet
	}
	return writer.linePrefix
}

// withPrefixes prepends the line prefix to every line of content. The
// first line consumes the pending bullet when one is set.
func (writer *terminalWriter) withPrefixes(content string) string {
	lines := strings.Split(content, "\n")
	var result strings.Builder
	for index, line := range lines {
		if index == 0 {
			result.WriteString(writer.consumePrefix())
		} else {
			result.WriteString(writer.linePrefix)
		}
		result.WriteString(line)
		if index < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// wrapToWidth word-wraps content at the breakpoint characters, then
// hard-wraps the result at the same width. The second pass guarantees
// no visible line exceeds the width even when a remaining breakpoint
// character would land one column past it.
func (writer *terminalWriter) wrapToWidth(content string) string {
	width := writer.contentWidth()
	return ansi.Hardwrap(ansi.Wrap(content, width, wrapBreakpoints), width, true)
}

// flushInline word-wraps the accumulated inline content to the current
// width, applies line prefixes, and resets the accumulator.
func (writer *terminalWriter) flushInline() string {
	content := writer.inline.String()
	writer.inline.Reset()
	if content == "" {
		return ""
	}
	return writer.withPrefixes(writer.wrapToWidth(content))
}

// styledText applies the current emphasis state to a text fragment.
func (writer *terminalWriter) styledText(content string) string {
	style := writer.style().Foreground(writer.theme.Text)
	if writer.boldDepth > 0 {
		style = style.Bold(true)
	}
	if writer.italicDepth > 0 {
		style = style.Italic(true)
	}
	return style.Render(content)
}

// collectInline renders a node's children into a string, saving and
// restoring the inline buffer and emphasis state so the surrounding
// context is unaffected. Used for table cells.
func (writer *terminalWriter) collectInline(node ast.Node) string {
	savedInline := writer.inline.String()
	savedBold := writer.boldDepth
	savedItalic := writer.italicDepth

	writer.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, writer.walk)
	}
	content := writer.inline.String()

	writer.inline.Reset()
	writer.inline.WriteString(savedInline)
	writer.boldDepth = savedBold
	writer.italicDepth = savedItalic

	return content
}

// highlight syntax-highlights code with chroma. Unknown languages and
// highlighter errors fall back to faint plain text.
func (writer *terminalWriter) highlight(code, language string) string {
	if language == "" {
		return writer.style().Foreground(writer.theme.Faint).Render(code)
	}
	var highlighted strings.Builder
	if err := quick.Highlight(&highlighted, code, language, "terminal256", "monokai"); err != nil {
		return writer.style().Foreground(writer.theme.Faint).Render(code)
	}
	return highlighted.String()
}

func (writer *terminalWriter) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	case ast.KindDocument:
		// Nothing to do at either boundary.

	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			writer.inline.Reset()
		} else if flushed := writer.flushInline(); flushed != "" {
			writer.write(flushed)
			writer.ensureNewline()
			if !writer.inTightList() {
				writer.ensureBlankLine()
			}
		}

	case ast.KindHeading:
		if entering {
			writer.inline.Reset()
		} else {
			writer.heading(node.(*ast.Heading))
		}

	case ast.KindFencedCodeBlock:
		if entering {
			writer.fencedCode(node.(*ast.FencedCodeBlock))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindList:
		if entering {
			writer.enterList(node.(*ast.List))
		} else {
			writer.leaveList()
		}

	case ast.KindListItem:
		if entering {
			writer.enterItem()
		} else {
			writer.leaveItem()
		}

	case ast.KindThematicBreak:
		if entering {
			writer.horizontalRule()
		}

	case ast.KindText:
		if entering {
			writer.text(node.(*ast.Text))
		}

	case ast.KindString:
		if entering {
			value := node.(*ast.String)
			writer.inline.WriteString(writer.styledText(string(value.Value)))
		}

	case ast.KindEmphasis:
		writer.emphasis(node.(*ast.Emphasis), entering)

	case ast.KindCodeSpan:
		if entering {
			writer.codeSpan(node)
			return ast.WalkSkipChildren, nil
		}

	case extast.KindTable:
		if entering {
			writer.table(node)
			return ast.WalkSkipChildren, nil
		}
	}

	return ast.WalkContinue, nil
}

func (writer *terminalWriter) heading(heading *ast.Heading) {
	// Strip the inline styling: the heading's own style replaces the
	// default text foreground applied while collecting.
	content := ansi.Strip(writer.inline.String())
	writer.inline.Reset()
	if content == "" {
		return
	}

	style := writer.style().Bold(true)
	if heading.Level <= 2 {
		style = style.Foreground(writer.theme.Heading)
	} else {
		style = style.Foreground(writer.theme.Text)
	}

	wrapped := writer.wrapToWidth(style.Render(content))
	writer.ensureBlankLine()
	writer.write(writer.withPrefixes(wrapped))
	writer.ensureNewline()
	writer.ensureBlankLine()
}

func (writer *terminalWriter) fencedCode(node *ast.FencedCodeBlock) {
	language := string(node.Language(writer.source))
	var code strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		code.Write(segment.Value(writer.source))
	}

	// Code is never reflowed; each line keeps its shape and only
	// gains the nesting prefix.
	highlighted := writer.highlight(code.String(), language)
	writer.ensureBlankLine()
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		writer.write(writer.consumePrefix() + line)
		writer.ensureNewline()
	}
	writer.ensureBlankLine()
}

func (writer *terminalWriter) enterList(list *ast.List) {
	start := 0
	if list.IsOrdered() {
		start = list.Start
	}
	writer.lists = append(writer.lists, listLevel{
		ordered: list.IsOrdered(),
		counter: start,
		tight:   list.IsTight,
	})
}

func (writer *terminalWriter) leaveList() {
	if len(writer.lists) > 0 {
		writer.lists = writer.lists[:len(writer.lists)-1]
	}
	if !writer.inTightList() {
		writer.ensureBlankLine()
	}
}

func (writer *terminalWriter) enterItem() {
	if len(writer.lists) == 0 {
		return
	}
	top := &writer.lists[len(writer.lists)-1]

	var bullet string
	if top.ordered {
		bullet = fmt.Sprintf("%d. ", top.counter)
		top.counter++
	} else {
		bullet = "- "
	}

	bulletWidth := len(bullet) // ASCII, so byte length equals visual width.

	// The pending bullet includes the current line prefix so it
	// replaces the whole prefix on the item's first line; wrapped
	// continuation lines indent under the bullet.
	writer.pendingBullet = writer.linePrefix + bullet
	writer.pushPrefix(strings.Repeat(" ", bulletWidth), bulletWidth)
}

func (writer *terminalWriter) leaveItem() {
	writer.popPrefix()
	if writer.inTightList() {
		writer.ensureNewline()
	} else {
		writer.ensureBlankLine()
	}
}

func (writer *terminalWriter) horizontalRule() {
	rule := strings.Repeat("─", writer.contentWidth())
	style := writer.style().Foreground(writer.theme.Border)
	writer.ensureBlankLine()
	writer.write(writer.withPrefixes(style.Render(rule)))
	writer.ensureNewline()
	writer.ensureBlankLine()
}

func (writer *terminalWriter) text(node *ast.Text) {
	value := string(node.Segment.Value(writer.source))
	writer.inline.WriteString(writer.styledText(value))

	if node.SoftLineBreak() {
		// Soft breaks become spaces so hard-wrapped source reflows
		// at the terminal width.
		writer.inline.WriteString(" ")
	}
	if node.HardLineBreak() {
		writer.inline.WriteString("\n")
	}
}

func (writer *terminalWriter) emphasis(node *ast.Emphasis, entering bool) {
	delta := 1
	if !entering {
		delta = -1
	}
	if node.Level >= 2 {
		writer.boldDepth += delta
	} else {
		writer.italicDepth += delta
	}
}

func (writer *terminalWriter) codeSpan(node ast.Node) {
	var code strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch typed := child.(type) {
		case *ast.Text:
			code.Write(typed.Segment.Value(writer.source))
		case *ast.String:
			code.Write(typed.Value)
		}
	}
	style := writer.style().Foreground(writer.theme.Faint)
	writer.inline.WriteString(style.Render(code.String()))
}

// --- Tables ---

func (writer *terminalWriter) table(node ast.Node) {
	table := node.(*extast.Table)

	var header []string
	var rows [][]string
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.Kind() {
		case extast.KindTableHeader:
			header = writer.collectRow(child)
		case extast.KindTableRow:
			rows = append(rows, writer.collectRow(child))
		}
	}

	columns := len(header)
	if columns == 0 && len(rows) > 0 {
		columns = len(rows[0])
	}
	if columns == 0 {
		return
	}
	widths := writer.columnWidths(columns, header, rows)

	writer.ensureBlankLine()

	if len(header) > 0 {
		bold := writer.style().Bold(true).Foreground(writer.theme.Text)
		writer.write(writer.consumePrefix() + writer.formatRow(header, widths, table.Alignments, bold))
		writer.ensureNewline()

		separators := make([]string, len(widths))
		for index, width := range widths {
			separators[index] = strings.Repeat("─", width)
		}
		border := writer.style().Foreground(writer.theme.Border)
		writer.write(writer.linePrefix + border.Render(strings.Join(separators, tableGap)))
		writer.ensureNewline()
	}

	for _, row := range rows {
		writer.write(writer.linePrefix + writer.formatRow(row, widths, table.Alignments, writer.style()))
		writer.ensureNewline()
	}

	writer.ensureBlankLine()
}

// tableGap separates table columns.
const tableGap = "  "

// collectRow extracts the rendered cell contents of a header or body
// row.
func (writer *terminalWriter) collectRow(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if cell.Kind() == extast.KindTableCell {
			cells = append(cells, writer.collectInline(cell))
		}
	}
	return cells
}

// columnWidths sizes each column to its widest visible content, then
// shrinks proportionally when the table overflows the available width.
// Every column keeps at least 3 characters.
func (writer *terminalWriter) columnWidths(columns int, header []string, rows [][]string) []int {
	widths := make([]int, columns)
	measure := func(cells []string) {
		for index, cell := range cells {
			if index >= columns {
				break
			}
			if width := lipgloss.Width(cell); width > widths[index] {
				widths[index] = width
			}
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	total := len(tableGap) * (columns - 1)
	for _, width := range widths {
		total += width
	}
	available := writer.contentWidth()
	if total <= available {
		return widths
	}

	usable := available - len(tableGap)*(columns-1)
	if usable < columns*3 {
		usable = columns * 3
	}
	for index := range widths {
		widths[index] = (widths[index] * usable) / total
		if widths[index] < 3 {
			widths[index] = 3
		}
	}
	return widths
}

// formatRow pads, aligns, and joins one table row. Cells wider than
// their column are truncated with an ellipsis.
func (writer *terminalWriter) formatRow(cells []string, widths []int, alignments []extast.Alignment, base lipgloss.Style) string {
	parts := make([]string, len(widths))
	for index, width := range widths {
		var cell string
		if index < len(cells) {
			cell = cells[index]
		}

		visible := lipgloss.Width(cell)
		if visible > width {
			cell = ansi.Truncate(cell, width, "…")
			visible = lipgloss.Width(cell)
		}
		padding := width - visible
		if padding < 0 {
			padding = 0
		}

		var alignment extast.Alignment
		if index < len(alignments) {
			alignment = alignments[index]
		}
		switch alignment {
		case extast.AlignRight:
			cell = strings.Repeat(" ", padding) + cell
		case extast.AlignCenter:
			left := padding / 2
			cell = strings.Repeat(" ", left) + cell + strings.Repeat(" ", padding-left)
		default:
			cell += strings.Repeat(" ", padding)
		}
		parts[index] = cell
	}
	return base.Render(strings.Join(parts, tableGap))
}
