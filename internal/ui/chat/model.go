// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the interactive Bubble Tea interface.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agnt-tui/internal/session"
	"github.com/jeranaias/agnt-tui/internal/ui/styles"
)

// ============================================================================
// MODEL
// ============================================================================

// Model is the Bubble Tea model for the chat screen. All transcript state
// lives in the session controller; the model only holds view state and
// re-reads snapshots when told something changed.
type Model struct {
	controller *session.Controller
	theme      *styles.Theme
	modelName  string

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// dirty marks the transcript stale since the last render; the redraw
	// tick folds any number of change signals into one re-render.
	dirty   bool
	ticking bool

	selectionMode bool
	showHelp      bool
	statusNote    string

	wheelLines int
	quitting   bool
}

// New creates the chat model.
func New(controller *session.Controller, theme *styles.Theme, modelName string, wheelLines int) Model {
	input := textarea.New()
	input.Placeholder = "Ask anything. Enter sends, Alt+Enter adds a line."
	input.Prompt = ""
	input.SetHeight(3)
	input.CharLimit = 0
	input.ShowLineNumbers = false
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	if wheelLines <= 0 {
		wheelLines = 3
	}

	return Model{
		controller: controller,
		theme:      theme,
		modelName:  modelName,
		input:      input,
		spinner:    sp,
		wheelLines: wheelLines,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// ============================================================================
// UPDATE
// ============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case TranscriptChangedMsg:
		m.dirty = true
		if !m.controller.IsActive() {
			// Terminal states render immediately instead of waiting
			// for a tick that may never come.
			m.refreshViewport()
			return m, nil
		}
		if !m.ticking {
			m.ticking = true
			return m, tea.Batch(redrawTickCmd(), m.spinner.Tick)
		}
		return m, nil

	case RedrawTickMsg:
		if m.dirty {
			m.refreshViewport()
		}
		if m.controller.IsActive() {
			return m, redrawTickCmd()
		}
		m.ticking = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.controller.IsActive() {
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	return m.updateInput(msg)
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	chromeHeight := headerHeight + inputHeight + statusHeight
	vpHeight := msg.Height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.viewport.MouseWheelDelta = m.wheelLines
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(msg.Width - 4)
	m.refreshViewport()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes the help overlay.
		m.showHelp = false
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		if m.controller.IsActive() {
			m.controller.Cancel()
			m.dirty = true
			m.refreshViewport()
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if m.controller.IsActive() {
			m.controller.Cancel()
			m.dirty = true
			m.refreshViewport()
		}
		return m, nil

	case "enter":
		return m.submit()

	case "alt+enter":
		m.input.InsertString("\n")
		return m, nil

	case "ctrl+s":
		return m.toggleSelectionMode()

	case "ctrl+x":
		enabled := !m.controller.ToolsEnabled()
		m.controller.SetToolsEnabled(enabled)
		if enabled {
			m.statusNote = "code execution on"
		} else {
			m.statusNote = "code execution off"
		}
		return m, nil

	case "ctrl+l":
		if err := m.controller.Clear(); err != nil {
			m.statusNote = "cannot clear while streaming"
		} else {
			m.statusNote = ""
			m.refreshViewport()
		}
		return m, nil

	case "pgup":
		m.viewport.ViewUp()
		return m, nil

	case "pgdown":
		m.viewport.ViewDown()
		return m, nil

	case "f1":
		m.showHelp = true
		return m, nil

	case "?":
		if strings.TrimSpace(m.input.Value()) == "" {
			m.showHelp = true
			return m, nil
		}
	}

	return m.updateInput(msg)
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.selectionMode {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input buffer as a new message, or runs a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	switch text {
	case "/clear":
		m.input.Reset()
		if err := m.controller.Clear(); err != nil {
			m.statusNote = "cannot clear while streaming"
		} else {
			m.refreshViewport()
		}
		return m, nil
	case "/help":
		m.input.Reset()
		m.showHelp = true
		return m, nil
	case "/quit":
		m.quitting = true
		return m, tea.Quit
	}

	if err := m.controller.Start(text); err != nil {
		m.statusNote = err.Error()
		return m, nil
	}

	m.input.Reset()
	m.statusNote = ""
	m.dirty = true
	m.refreshViewport()
	m.ticking = true
	return m, tea.Batch(redrawTickCmd(), m.spinner.Tick)
}

// toggleSelectionMode releases or recaptures the mouse so the terminal's
// native text selection works while the stream keeps flowing.
func (m Model) toggleSelectionMode() (tea.Model, tea.Cmd) {
	m.selectionMode = !m.selectionMode
	if m.selectionMode {
		return m, tea.DisableMouse
	}
	return m, tea.EnableMouseCellMotion
}

// refreshViewport re-renders the transcript from a fresh snapshot.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	wasAtBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	m.dirty = false
	if wasAtBottom {
		m.viewport.GotoBottom()
	}
}
