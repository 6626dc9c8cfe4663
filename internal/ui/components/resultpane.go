// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/agnt-tui/internal/transcript"
	"github.com/jeranaias/agnt-tui/internal/ui/styles"
	"github.com/jeranaias/agnt-tui/internal/util"
)

// =============================================================================
// TOOL RESULT PANE
// =============================================================================

// ResultPane renders a tool-result block: outcome header, captured output,
// and any saved artifacts.
type ResultPane struct {
	Block    *transcript.Block
	Theme    *styles.Theme
	MaxWidth int
}

// NewResultPane creates a pane for the given result block.
func NewResultPane(block *transcript.Block, theme *styles.Theme, maxWidth int) ResultPane {
	return ResultPane{Block: block, Theme: theme, MaxWidth: maxWidth}
}

// Render produces the styled pane.
func (p ResultPane) Render() string {
	b := p.Block
	th := p.Theme
	width := p.MaxWidth
	if width < 20 {
		width = 20
	}

	var out []string

	if b.Status == transcript.ResultOK {
		out = append(out, th.ToolSuccess.Render("✔ Output"))
	} else {
		header := "✘ Execution failed"
		if b.ErrorMsg != "" {
			header = "✘ " + b.ErrorMsg
		}
		out = append(out, th.ToolError.Render(header))
	}

	for _, line := range outputLines(b.Stdout) {
		out = append(out, th.ToolOutput.Render("  "+util.TruncateWidth(line, width-2)))
	}
	for _, line := range outputLines(b.Stderr) {
		out = append(out, th.ToolStderr.Render("  "+util.TruncateWidth(line, width-2)))
	}

	for _, f := range b.Files {
		out = append(out, renderFileRef(f, th, width))
	}

	return strings.Join(out, "\n")
}

func renderFileRef(f *transcript.FileRef, th *styles.Theme, width int) string {
	switch {
	case f.SaveError != "":
		line := fmt.Sprintf("  ⚠ %s: %s", f.Filename, f.SaveError)
		return th.ToolError.Render(util.TruncateWidth(line, width))
	case f.LocalPath != "":
		line := fmt.Sprintf("  💾 saved %s", f.LocalPath)
		if f.SizeBytes > 0 {
			line += fmt.Sprintf(" (%s)", formatSize(f.SizeBytes))
		}
		return th.FileLine.Render(util.TruncateWidth(line, width))
	default:
		return th.FileLine.Render(util.TruncateWidth("  📄 "+f.Filename, width))
	}
}

// outputLines splits captured output, dropping a single trailing newline so
// an empty tail line is not rendered.
func outputLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
