// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agnt-tui/internal/transcript"
	"github.com/jeranaias/agnt-tui/internal/ui/components"
)

// Fixed chrome heights used by the resize handler.
const (
	headerHeight = 1
	inputHeight  = 4
	statusHeight = 1
)

// streamCursor marks the insertion point of an in-flight reply.
const streamCursor = "▌"

// ============================================================================
// VIEW
// ============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.renderHelp())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("agnt")
	model := m.theme.ShortcutDesc.Render(" · " + m.modelName)

	var tool string
	if m.controller.ToolsEnabled() {
		tool = m.theme.ShortcutKey.Render("  ⚙ code execution")
	}
	if ci := m.controller.Container(); ci != nil {
		id := ci.ID
		if len(id) > 8 {
			id = id[:8]
		}
		tool += m.theme.ShortcutDesc.Render("  [container " + id + "]")
	}

	left := title + model + tool
	gap := m.width - lipgloss.Width(left) - 2
	if gap < 0 {
		gap = 0
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap))
}

func (m Model) renderInput() string {
	prompt := m.theme.InputPrompt.Render("❯ ")
	if m.controller.IsActive() {
		prompt = m.spinner.View() + " "
	}
	lines := strings.Split(m.input.View(), "\n")
	for i := range lines {
		if i == 0 {
			lines[i] = prompt + lines[i]
		} else {
			lines[i] = "  " + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusBar() string {
	if m.selectionMode {
		return m.theme.SelectionBanner.Width(m.width).
			Render(" SELECTION MODE — mouse released, Ctrl+S to return ")
	}

	var hints []string
	if m.controller.IsActive() {
		hints = append(hints, m.hint("esc", "cancel"))
	} else {
		hints = append(hints, m.hint("enter", "send"))
	}
	hints = append(hints,
		m.hint("ctrl+x", "tools"),
		m.hint("ctrl+s", "select"),
		m.hint("f1", "help"),
		m.hint("ctrl+c", "quit"),
	)
	bar := strings.Join(hints, "  ")
	if m.statusNote != "" {
		bar += "  " + m.theme.ErrorText.Render(m.statusNote)
	}
	return m.theme.StatusBar.Width(m.width).Render(bar)
}

func (m Model) hint(key, desc string) string {
	return m.theme.ShortcutKey.Render(key) + " " + m.theme.ShortcutDesc.Render(desc)
}

func (m Model) renderHelp() string {
	rows := [][2]string{
		{"enter", "send message"},
		{"alt+enter", "insert newline"},
		{"esc", "cancel the streaming reply"},
		{"ctrl+x", "toggle code execution for new messages"},
		{"ctrl+s", "selection mode (release the mouse)"},
		{"ctrl+l or /clear", "clear the conversation"},
		{"pgup / pgdn / wheel", "scroll the transcript"},
		{"ctrl+c", "cancel, or quit when idle"},
	}

	var b strings.Builder
	b.WriteString(m.theme.HelpTitle.Render("Keys"))
	b.WriteString("\n\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%s  %s\n",
			m.theme.ShortcutKey.Width(20).Render(r[0]),
			m.theme.ShortcutDesc.Render(r[1])))
	}
	b.WriteString("\n")
	b.WriteString(m.theme.ShortcutDesc.Render("press any key to close"))

	box := m.theme.HelpBox.Render(b.String())
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}

// ============================================================================
// TRANSCRIPT RENDERING
// ============================================================================

// renderTranscript renders a snapshot of the whole conversation. Reads only
// the snapshot, never live controller state.
func (m Model) renderTranscript() string {
	snap := m.controller.Snapshot()
	if len(snap) == 0 {
		return m.theme.ShortcutDesc.Render("\n  Start a conversation. F1 shows the keys.")
	}

	width := m.width - 2
	var parts []string
	for _, turn := range snap {
		parts = append(parts, m.renderTurn(turn, width))
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderTurn(turn *transcript.Turn, width int) string {
	var b strings.Builder

	switch turn.Role {
	case transcript.RoleUser:
		b.WriteString(m.theme.UserLabel.Render("▶ You"))
	case transcript.RoleAssistant:
		b.WriteString(m.theme.AssistantLabel.Render("◆ Claude"))
	default:
		b.WriteString(m.theme.ShortcutDesc.Render("• " + string(turn.Role)))
	}
	b.WriteString("\n")

	for i, block := range turn.Blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderBlock(turn, block, width))
	}

	switch turn.Status {
	case transcript.TurnCancelled:
		b.WriteString("\n")
		b.WriteString(m.theme.CancelledText.Render("■ cancelled"))
	case transcript.TurnErrored:
		b.WriteString("\n")
		b.WriteString(m.theme.ErrorText.Render("✘ " + turn.FailReason))
	}

	return b.String()
}

func (m Model) renderBlock(turn *transcript.Turn, block *transcript.Block, width int) string {
	switch block.Kind {
	case transcript.BlockText:
		text := block.Text()
		if turn.Status == transcript.TurnOpen && block.State == transcript.BlockOpen {
			text += m.theme.StreamingText.Render(streamCursor)
		}
		if turn.Role == transcript.RoleAssistant {
			return components.ParseCodeBlocks(m.theme, text, width)
		}
		return m.theme.BodyText.Render(text)

	case transcript.BlockToolUse:
		header := m.theme.ToolHeader.Render("⚙ running code")
		code, ok := block.Code()
		if !ok {
			if block.ParseErr != "" {
				return header + "\n" + m.theme.ErrorText.Render("  arguments unreadable: "+block.ParseErr)
			}
			// Arguments still streaming in; show nothing but the header.
			return header
		}
		cb := components.NewCodeBlock(m.theme, "python", code)
		cb.SetMaxWidth(width)
		return header + "\n" + cb.Render()

	case transcript.BlockToolResult:
		return components.NewResultPane(block, m.theme, width).Render()

	default:
		return ""
	}
}
