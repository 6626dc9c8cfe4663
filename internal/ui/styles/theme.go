// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It detects the
// terminal's color capability and adjusts accordingly.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND STATUS BAR
	// ==========================================================================

	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	BodyText       lipgloss.Style
	StreamingText  lipgloss.Style
	ErrorText      lipgloss.Style
	CancelledText  lipgloss.Style
	Spinner        lipgloss.Style

	// ==========================================================================
	// TOOL BLOCKS
	// ==========================================================================

	ToolHeader    lipgloss.Style
	ToolSuccess   lipgloss.Style
	ToolError     lipgloss.Style
	ToolOutput    lipgloss.Style
	ToolStderr    lipgloss.Style
	FileLine      lipgloss.Style
	CodeLineNum   lipgloss.Style
	CodeLangBadge lipgloss.Style
	CodeBlock     lipgloss.Style

	// ==========================================================================
	// INPUT AND OVERLAYS
	// ==========================================================================

	InputPrompt     lipgloss.Style
	HelpBox         lipgloss.Style
	HelpTitle       lipgloss.Style
	SelectionBanner lipgloss.Style
}

// NewTheme builds the theme. pref is "dark", "light" or "auto".
func NewTheme(pref string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch pref {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
	}

	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.BodyText = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.StreamingText = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose)
	t.CancelledText = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ToolHeader = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)
	t.ToolSuccess = lipgloss.NewStyle().
		Foreground(ToolSuccessFg)
	t.ToolError = lipgloss.NewStyle().
		Foreground(ToolErrorFg)
	t.ToolOutput = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.ToolStderr = lipgloss.NewStyle().
		Foreground(Rose)
	t.FileLine = lipgloss.NewStyle().
		Foreground(Emerald)
	t.CodeLineNum = lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)
	t.CodeLangBadge = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(OverlayDim).
		Padding(0, 1).
		Bold(true)
	t.CodeBlock = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 2)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.HelpBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 2)
	t.HelpTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.SelectionBanner = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	return t
}
