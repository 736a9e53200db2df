// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package render

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette for rendered markdown. All colors are
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text is the body text color.
	Text lipgloss.Color

	// Faint is for secondary content: code spans, unhighlighted code
	// blocks, truncation markers.
	Faint lipgloss.Color

	// Heading is the foreground for level 1 and 2 headings. Deeper
	// headings use Text with bold.
	Heading lipgloss.Color

	// Border draws horizontal rules and table separators.
	Border lipgloss.Color
}

// DefaultTheme is the built-in palette, tuned for 256-color terminals
// with a dark background.
var DefaultTheme = Theme{
	Text:    lipgloss.Color("252"),
	Faint:   lipgloss.Color("245"),
	Heading: lipgloss.Color("255"),
	Border:  lipgloss.Color("240"),
}
