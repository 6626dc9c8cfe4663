// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agnt-tui/internal/anthropic"
	"github.com/jeranaias/agnt-tui/internal/session"
	"github.com/jeranaias/agnt-tui/internal/ui/styles"
)

type scriptedSource struct {
	mu       sync.Mutex
	channels []chan anthropic.Event
}

func (s *scriptedSource) Stream(ctx context.Context, history []anthropic.ChatMessage, withTools bool) (<-chan anthropic.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan anthropic.Event, 16)
	s.channels = append(s.channels, ch)
	return ch, nil
}

func (s *scriptedSource) channel(i int) chan anthropic.Event {
	// Start calls Stream on a goroutine; wait for the call to land so the
	// accessor cannot race ahead of it on a single-CPU runner.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		if i < len(s.channels) {
			ch := s.channels[i]
			s.mu.Unlock()
			return ch
		}
		s.mu.Unlock()
		if time.Now().After(deadline) {
			panic("scriptedSource: Stream call never arrived")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newTestModel(t *testing.T) (Model, *scriptedSource, *session.Controller) {
	t.Helper()
	src := &scriptedSource{}
	ctrl := session.NewController(src, nil, false)
	m := New(ctrl, styles.NewTheme("dark"), "claude-test", 3)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), src, ctrl
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestSubmitStartsSession(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	m.input.SetValue("2+2?")

	updated, cmd := m.Update(keyMsg("enter"))
	m = updated.(Model)

	if !ctrl.IsActive() {
		t.Fatal("controller not active after submit")
	}
	if m.input.Value() != "" {
		t.Error("input not cleared after submit")
	}
	if cmd == nil {
		t.Error("submit should schedule the redraw tick")
	}
}

func TestSubmitWhileStreamingKeepsInput(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	m.input.SetValue("first")
	updated, _ := m.Update(keyMsg("enter"))
	m = updated.(Model)

	m.input.SetValue("second")
	updated, _ = m.Update(keyMsg("enter"))
	m = updated.(Model)

	if m.input.Value() != "second" {
		t.Error("rejected submission should keep the draft")
	}
	if m.statusNote == "" {
		t.Error("rejected submission should surface a note")
	}
	_ = ctrl
}

func TestEscCancelsStreaming(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	m.input.SetValue("hi")
	updated, _ := m.Update(keyMsg("enter"))
	m = updated.(Model)

	updated, _ = m.Update(keyMsg("esc"))
	m = updated.(Model)

	if ctrl.IsActive() {
		t.Error("esc should cancel the active session")
	}
}

func TestCtrlCQuitsOnlyWhenIdle(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	m.input.SetValue("hi")
	updated, _ := m.Update(keyMsg("enter"))
	m = updated.(Model)

	updated, cmd := m.Update(keyMsg("ctrl+c"))
	m = updated.(Model)
	if cmd != nil {
		t.Error("ctrl+c during streaming must cancel, not quit")
	}
	if ctrl.IsActive() {
		t.Error("session still active after ctrl+c")
	}

	_, cmd = m.Update(keyMsg("ctrl+c"))
	if cmd == nil {
		t.Error("ctrl+c while idle should quit")
	}
}

func TestSelectionModeToggle(t *testing.T) {
	m, _, _ := newTestModel(t)

	updated, cmd := m.Update(keyMsg("ctrl+s"))
	m = updated.(Model)
	if !m.selectionMode {
		t.Fatal("selection mode not entered")
	}
	if cmd == nil {
		t.Error("entering selection mode must release the mouse")
	}
	if !strings.Contains(m.View(), "SELECTION MODE") {
		t.Error("selection banner missing")
	}

	updated, cmd = m.Update(keyMsg("ctrl+s"))
	m = updated.(Model)
	if m.selectionMode {
		t.Error("selection mode not exited")
	}
	if cmd == nil {
		t.Error("exiting selection mode must recapture the mouse")
	}
}

func TestToolToggleUpdatesController(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	updated, _ := m.Update(keyMsg("ctrl+x"))
	m = updated.(Model)
	if !ctrl.ToolsEnabled() {
		t.Error("ctrl+x should enable tools")
	}
	updated, _ = m.Update(keyMsg("ctrl+x"))
	_ = updated.(Model)
	if ctrl.ToolsEnabled() {
		t.Error("second ctrl+x should disable tools")
	}
}

func TestTranscriptRenderAfterExchange(t *testing.T) {
	m, src, ctrl := newTestModel(t)
	m.input.SetValue("2+2?")
	updated, _ := m.Update(keyMsg("enter"))
	m = updated.(Model)

	ch := src.channel(0)
	ch <- anthropic.Event{Type: anthropic.EventBlockStart, Index: 0, Block: &anthropic.BlockStart{Type: anthropic.BlockTypeText}}
	ch <- anthropic.Event{Type: anthropic.EventBlockDelta, Index: 0, Delta: &anthropic.Delta{Type: anthropic.DeltaTypeText, Text: "4"}}
	ch <- anthropic.Event{Type: anthropic.EventBlockStop, Index: 0}
	ch <- anthropic.Event{Type: anthropic.EventMessageStop}
	close(ch)

	deadline := time.After(2 * time.Second)
	for ctrl.IsActive() {
		select {
		case <-deadline:
			t.Fatal("session never finished")
		case <-time.After(2 * time.Millisecond):
		}
	}

	updated, _ = m.Update(TranscriptChangedMsg{})
	m = updated.(Model)

	out := m.renderTranscript()
	if !strings.Contains(out, "You") || !strings.Contains(out, "2+2?") {
		t.Errorf("user turn missing: %q", out)
	}
	if !strings.Contains(out, "Claude") || !strings.Contains(out, "4") {
		t.Errorf("assistant turn missing: %q", out)
	}
}

func TestHelpOverlayOpensAndCloses(t *testing.T) {
	m, _, _ := newTestModel(t)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyF1})
	m = updated.(Model)
	if !m.showHelp {
		t.Fatal("f1 should open help")
	}
	if !strings.Contains(m.View(), "Keys") {
		t.Error("help content missing from view")
	}

	updated, _ = m.Update(keyMsg("x"))
	m = updated.(Model)
	if m.showHelp {
		t.Error("any key should close help")
	}
	if got := m.input.Value(); got != "" {
		t.Errorf("help-closing key leaked into input: %q", got)
	}
}
