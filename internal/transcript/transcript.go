// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

// Transcript is the ordered list of turns in a conversation. It carries no
// locking of its own; the session controller serializes all access.
type Transcript struct {
	turns []*Turn
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Append adds a turn to the end of the transcript.
func (tr *Transcript) Append(t *Turn) {
	tr.turns = append(tr.turns, t)
}

// Len returns the number of turns.
func (tr *Transcript) Len() int {
	return len(tr.turns)
}

// Last returns the most recent turn, or nil when empty.
func (tr *Transcript) Last() *Turn {
	if len(tr.turns) == 0 {
		return nil
	}
	return tr.turns[len(tr.turns)-1]
}

// Snapshot deep-copies every turn so readers never observe in-place
// mutation by the streaming goroutine.
func (tr *Transcript) Snapshot() []*Turn {
	out := make([]*Turn, len(tr.turns))
	for i, t := range tr.turns {
		out[i] = t.Clone()
	}
	return out
}

// History renders the closed turns as role/content pairs suitable for an
// outbound API request. Open turns and non-text blocks are skipped; tool
// traffic is not replayed upstream.
func (tr *Transcript) History() []HistoryEntry {
	var out []HistoryEntry
	for _, t := range tr.turns {
		if t.Status == TurnOpen {
			continue
		}
		text := t.PlainText()
		if text == "" {
			continue
		}
		out = append(out, HistoryEntry{Role: t.Role, Text: text})
	}
	return out
}

// Clear removes all turns.
func (tr *Transcript) Clear() {
	tr.turns = nil
}

// HistoryEntry is one turn flattened for request building.
type HistoryEntry struct {
	Role Role
	Text string
}
