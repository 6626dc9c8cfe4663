// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ============================================================================
// MESSAGE TYPES
// ============================================================================

// TranscriptChangedMsg signals that the transcript mutated. It carries no
// data: the model re-reads a snapshot. Sent via Program.Send from the
// controller's notification goroutine, so bursts coalesce upstream.
type TranscriptChangedMsg struct{}

// RedrawTickMsg paces transcript re-renders during streaming to roughly
// 30fps, however fast deltas arrive.
type RedrawTickMsg time.Time

// redrawInterval is ~30fps.
const redrawInterval = 33 * time.Millisecond

// redrawTickCmd schedules the next redraw tick.
func redrawTickCmd() tea.Cmd {
	return tea.Tick(redrawInterval, func(t time.Time) tea.Msg {
		return RedrawTickMsg(t)
	})
}
