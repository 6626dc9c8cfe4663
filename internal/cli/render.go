// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - terminal output helpers shared by pipe mode and the readline
// chat.
//
// USABILITY: Markdown rendering and history for better CLI experience
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agnt-tui/internal/transcript"
	"github.com/jeranaias/agnt-tui/internal/ui/styles"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the global glamour renderer for markdown output.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Fallback to plain text if renderer initialization fails
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display.
// Returns the original content if rendering fails or renderer is unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse writes a response with markdown rendering when
// appropriate. Only renders markdown when stdout is a TTY to avoid
// corrupting piped output.
func displayResponse(w io.Writer, response string) {
	if IsStdoutTTY() {
		fmt.Fprint(w, renderMarkdown(response))
	} else {
		fmt.Fprint(w, response)
	}
}

// =============================================================================
// STYLES
// =============================================================================

var (
	toolHeaderStyle = lipgloss.NewStyle().
			Foreground(styles.Amber).
			Bold(true)

	toolErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)

	fileStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan)
)

// =============================================================================
// TOOL OUTPUT
// =============================================================================

// writeToolCode prints the code the model asked to run.
func writeToolCode(w io.Writer, code string) {
	header := "⚙ running code"
	if IsStdoutTTY() {
		header = toolHeaderStyle.Render(header)
	}
	fmt.Fprintf(w, "\n%s\n", header)
	for _, line := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

// writeToolResult prints an execution result block: stdout, stderr, exit
// status and any saved artifacts.
func writeToolResult(w io.Writer, b *transcript.Block) {
	if b.Status == transcript.ResultError {
		msg := "✘ execution failed"
		if b.ErrorMsg != "" {
			msg = "✘ " + b.ErrorMsg
		}
		if IsStdoutTTY() {
			msg = toolErrorStyle.Render(msg)
		}
		fmt.Fprintf(w, "%s\n", msg)
	}

	if b.Stdout != "" {
		fmt.Fprint(w, b.Stdout)
		if !strings.HasSuffix(b.Stdout, "\n") {
			fmt.Fprintln(w)
		}
	}
	if b.Stderr != "" {
		for _, line := range strings.Split(strings.TrimRight(b.Stderr, "\n"), "\n") {
			fmt.Fprintf(w, "  stderr: %s\n", line)
		}
	}
	if b.ExitCode != 0 {
		fmt.Fprintf(w, "  exit status %d\n", b.ExitCode)
	}

	for _, f := range b.Files {
		line := "  ↳ " + f.Filename
		switch {
		case f.SaveError != "":
			line += " (not saved: " + f.SaveError + ")"
		case f.LocalPath != "":
			line += " → " + f.LocalPath
		}
		if IsStdoutTTY() {
			line = fileStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

// writeTurn prints one finished assistant turn. Text blocks go through the
// markdown path; tool traffic gets the plain sections above.
func writeTurn(w io.Writer, turn *transcript.Turn) {
	for _, b := range turn.Blocks {
		switch b.Kind {
		case transcript.BlockText:
			displayResponse(w, b.Text())
		case transcript.BlockToolUse:
			if code, ok := b.Code(); ok {
				writeToolCode(w, code)
			} else if b.ParseErr != "" {
				fmt.Fprintf(w, "\n⚙ code unreadable: %s\n", b.ParseErr)
			}
		case transcript.BlockToolResult:
			writeToolResult(w, b)
		}
	}

	switch turn.Status {
	case transcript.TurnCancelled:
		fmt.Fprintln(w, "\n■ cancelled")
	case transcript.TurnErrored:
		fmt.Fprintf(w, "\n✘ %s\n", turn.FailReason)
	}
}
