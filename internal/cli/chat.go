// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - plain readline chat, for terminals where the alternate-screen
// TUI is unwanted.
//
// Interactive commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Clear conversation history
//   /tools              Toggle code execution
//   /files              List files held by the Files API
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/agnt-tui/internal/anthropic"
	"github.com/jeranaias/agnt-tui/internal/config"
	"github.com/jeranaias/agnt-tui/internal/session"
	"github.com/jeranaias/agnt-tui/internal/tools"
	"github.com/jeranaias/agnt-tui/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// chatInput provides input history and line editing for interactive chat.
type chatInput struct {
	line        *liner.State
	historyFile string
}

// newChatInput creates a liner with history loaded from the config dir.
func newChatInput() *chatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &chatInput{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}

	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

// ReadInput reads a line with the given prompt; non-empty lines are added
// to history.
func (in *chatInput) ReadInput(prompt string) (string, error) {
	text, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		in.line.AppendHistory(text)
	}
	return text, nil
}

// Close saves history and closes the liner.
func (in *chatInput) Close() {
	if err := os.MkdirAll(filepath.Dir(in.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			in.line.WriteHistory(f)
			f.Close()
		}
	}
	in.line.Close()
}

// =============================================================================
// CHAT LOOP
// =============================================================================

// RunChat runs the readline REPL until /quit or EOF.
func RunChat(client *anthropic.Client, coord *tools.Coordinator, cfg *config.Config, withTools bool) error {
	ctrl := session.NewController(client, coord, withTools)

	in := newChatInput()
	defer in.Close()

	fmt.Println(welcomeStyle.Render("agnt chat") + infoStyle.Render("  ·  "+cfg.Model))
	fmt.Println(infoStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Println()

	for {
		text, err := in.ReadInput(promptStyle.Render("❯ "))
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil {
			// Ctrl+D or a closed terminal.
			fmt.Println()
			return nil
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "/") {
			if quit := runChatCommand(os.Stdout, ctrl, client, text); quit {
				return nil
			}
			continue
		}

		if err := ctrl.Start(text); err != nil {
			fmt.Println(infoStyle.Render(err.Error()))
			continue
		}
		waitForReply(ctrl)

		snap := ctrl.Snapshot()
		if len(snap) > 0 {
			writeTurn(os.Stdout, snap[len(snap)-1])
		}
		fmt.Println()
	}
}

// runChatCommand handles slash commands; returns true on /quit.
func runChatCommand(w io.Writer, ctrl *session.Controller, client *anthropic.Client, text string) bool {
	switch text {
	case "/quit", "/q":
		return true

	case "/clear", "/c":
		if err := ctrl.Clear(); err != nil {
			fmt.Fprintln(w, infoStyle.Render("cannot clear while streaming"))
		} else {
			fmt.Fprintln(w, infoStyle.Render("conversation cleared"))
		}

	case "/tools":
		enabled := !ctrl.ToolsEnabled()
		ctrl.SetToolsEnabled(enabled)
		if enabled {
			fmt.Fprintln(w, infoStyle.Render("code execution on"))
		} else {
			fmt.Fprintln(w, infoStyle.Render("code execution off"))
		}

	case "/files":
		listWorkspaceFiles(w, client)

	case "/help", "/h":
		for _, row := range [][2]string{
			{"/clear", "clear conversation history"},
			{"/tools", "toggle code execution"},
			{"/files", "list files held by the Files API"},
			{"/quit", "exit chat"},
			{"Ctrl+C", "cancel the current reply"},
			{"Ctrl+D", "exit chat"},
		} {
			fmt.Fprintf(w, "  %s  %s\n",
				commandStyle.Render(fmt.Sprintf("%-8s", row[0])),
				infoStyle.Render(row[1]))
		}

	default:
		fmt.Fprintln(w, infoStyle.Render("unknown command "+text+" (try /help)"))
	}
	return false
}

// listWorkspaceFiles prints the files the API key can see, in the order the
// server returns them.
func listWorkspaceFiles(w io.Writer, client *anthropic.Client) {
	files, err := client.ListFiles(context.Background())
	if err != nil {
		fmt.Fprintln(w, infoStyle.Render("list files: "+err.Error()))
		return
	}
	if len(files) == 0 {
		fmt.Fprintln(w, infoStyle.Render("no files"))
		return
	}
	for _, f := range files {
		line := fmt.Sprintf("  %s  %s (%d bytes)", f.ID, f.Filename, f.SizeBytes)
		fmt.Fprintln(w, fileStyle.Render(line))
	}
}

// waitForReply blocks until the active session finishes. Ctrl+C cancels it
// and keeps the partial reply.
func waitForReply(ctrl *session.Controller) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	for ctrl.IsActive() {
		select {
		case <-ctrl.Changes():
		case <-sig:
			ctrl.Cancel()
		case <-time.After(250 * time.Millisecond):
			// Re-check; change notifications are coalesced.
		}
	}
}
