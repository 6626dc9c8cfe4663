// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session turns the decoded event stream into transcript mutations
// and owns the lifecycle of the one active request.
package session

import (
	"fmt"

	"github.com/jeranaias/agnt-tui/internal/anthropic"
	"github.com/jeranaias/agnt-tui/internal/transcript"
)

// ProtocolError reports a stream that violated the block lifecycle. It is
// fatal for the session but carries no user data loss: partial content
// stays in the transcript.
type ProtocolError struct {
	Reason string
	Index  int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation at block %d: %s", e.Index, e.Reason)
}

// Assembler folds stream events for one assistant turn into transcript
// blocks. It tracks every block index the stream has opened in an arena;
// indices are never reused, so a second start for a known index, or a delta
// for an unknown or closed one, is a protocol violation.
//
// The assembler is not safe for concurrent use; the controller serializes
// calls under its lock.
type Assembler struct {
	turn  *transcript.Turn
	arena map[int]*transcript.Block

	// pendingTools counts launched executions whose result block has not
	// been appended yet. The turn's final close is deferred until they
	// all land.
	pendingTools int
	stopSeen     bool
	stopReason   string

	// OnToolClosed fires when a tool-use block transitions to Closed,
	// while the controller's lock is held.
	OnToolClosed func(index int, b *transcript.Block)
}

// NewAssembler creates an assembler feeding the given open assistant turn.
func NewAssembler(turn *transcript.Turn) *Assembler {
	return &Assembler{
		turn:  turn,
		arena: make(map[int]*transcript.Block),
	}
}

// StopReason returns the stop reason reported by message_delta, if any.
func (a *Assembler) StopReason() string {
	return a.stopReason
}

// Done reports whether the turn has reached a terminal state and every
// launched tool execution has delivered its result.
func (a *Assembler) Done() bool {
	return a.turn.Status != transcript.TurnOpen && a.pendingTools == 0
}

// Apply folds one event into the turn. A returned error is a fatal
// protocol violation; the caller finalizes the session. Events the
// assembler has no use for (message_start, pings that slipped through)
// are ignored.
func (a *Assembler) Apply(ev anthropic.Event) error {
	switch ev.Type {
	case anthropic.EventBlockStart:
		return a.applyBlockStart(ev)
	case anthropic.EventBlockDelta:
		return a.applyBlockDelta(ev)
	case anthropic.EventBlockStop:
		return a.applyBlockStop(ev)
	case anthropic.EventMessageDelta:
		if ev.StopReason != "" {
			a.stopReason = ev.StopReason
		}
		return nil
	case anthropic.EventMessageStop:
		a.stopSeen = true
		a.maybeCloseTurn()
		return nil
	default:
		return nil
	}
}

func (a *Assembler) applyBlockStart(ev anthropic.Event) error {
	if _, exists := a.arena[ev.Index]; exists {
		return &ProtocolError{Index: ev.Index, Reason: "block started twice"}
	}
	if ev.Block == nil {
		return &ProtocolError{Index: ev.Index, Reason: "start event without block payload"}
	}

	var b *transcript.Block
	switch ev.Block.Type {
	case anthropic.BlockTypeText:
		b = transcript.NewTextBlock(ev.Block.Text)
	case anthropic.BlockTypeServerToolUse:
		b = transcript.NewToolUseBlock(ev.Block.Name)
	default:
		return &ProtocolError{Index: ev.Index, Reason: fmt.Sprintf("unknown block type %q", ev.Block.Type)}
	}

	a.arena[ev.Index] = b
	if err := a.turn.Append(b); err != nil {
		return &ProtocolError{Index: ev.Index, Reason: err.Error()}
	}
	return nil
}

func (a *Assembler) applyBlockDelta(ev anthropic.Event) error {
	b, ok := a.arena[ev.Index]
	if !ok {
		return &ProtocolError{Index: ev.Index, Reason: "delta for a block that was never started"}
	}
	if b.State != transcript.BlockOpen {
		return &ProtocolError{Index: ev.Index, Reason: "delta for a closed block"}
	}
	if ev.Delta == nil {
		return &ProtocolError{Index: ev.Index, Reason: "delta event without payload"}
	}

	switch ev.Delta.Type {
	case anthropic.DeltaTypeText:
		if err := b.AppendText(ev.Delta.Text); err != nil {
			return &ProtocolError{Index: ev.Index, Reason: err.Error()}
		}
	case anthropic.DeltaTypeInputJSON:
		if err := b.AppendArgFragment(ev.Delta.PartialJSON); err != nil {
			return &ProtocolError{Index: ev.Index, Reason: err.Error()}
		}
	default:
		// Unknown delta payloads are skipped for forward compatibility.
	}
	return nil
}

func (a *Assembler) applyBlockStop(ev anthropic.Event) error {
	b, ok := a.arena[ev.Index]
	if !ok {
		return &ProtocolError{Index: ev.Index, Reason: "stop for a block that was never started"}
	}
	if b.State != transcript.BlockOpen {
		return &ProtocolError{Index: ev.Index, Reason: "block stopped twice"}
	}
	if err := b.Close(); err != nil {
		return &ProtocolError{Index: ev.Index, Reason: err.Error()}
	}
	if b.Kind == transcript.BlockToolUse && a.OnToolClosed != nil {
		a.OnToolClosed(ev.Index, b)
	}
	return nil
}

// BeginTool records that an execution has been launched for the tool-use
// block at index.
func (a *Assembler) BeginTool(index int) {
	a.pendingTools++
}

// FinishTool appends the result block for the tool-use block at index and
// marks the invocation resolved. If the stream already stopped and this was
// the last pending execution, the turn closes.
func (a *Assembler) FinishTool(index int, result *transcript.Block) error {
	b, ok := a.arena[index]
	if !ok || b.Kind != transcript.BlockToolUse {
		return fmt.Errorf("no tool-use block at index %d", index)
	}
	if a.pendingTools > 0 {
		a.pendingTools--
	}

	// The turn may have left the open state (cancel, error) while the
	// execution ran; the caller's staleness check prevents that, so a
	// direct append here only races a stream that stopped normally.
	a.turn.Blocks = append(a.turn.Blocks, result)
	if b.State == transcript.BlockClosed {
		if err := b.Resolve(); err != nil {
			return err
		}
	}
	a.maybeCloseTurn()
	return nil
}

// maybeCloseTurn closes the turn once the stream has stopped and no
// executions are outstanding.
func (a *Assembler) maybeCloseTurn() {
	if a.stopSeen && a.pendingTools == 0 {
		a.turn.Close()
	}
}
