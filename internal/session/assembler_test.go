// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"testing"

	"github.com/jeranaias/agnt-tui/internal/anthropic"
	"github.com/jeranaias/agnt-tui/internal/transcript"
)

func textStart(index int) anthropic.Event {
	return anthropic.Event{
		Type:  anthropic.EventBlockStart,
		Index: index,
		Block: &anthropic.BlockStart{Type: anthropic.BlockTypeText},
	}
}

func textDelta(index int, text string) anthropic.Event {
	return anthropic.Event{
		Type:  anthropic.EventBlockDelta,
		Index: index,
		Delta: &anthropic.Delta{Type: anthropic.DeltaTypeText, Text: text},
	}
}

func jsonDelta(index int, fragment string) anthropic.Event {
	return anthropic.Event{
		Type:  anthropic.EventBlockDelta,
		Index: index,
		Delta: &anthropic.Delta{Type: anthropic.DeltaTypeInputJSON, PartialJSON: fragment},
	}
}

func blockStop(index int) anthropic.Event {
	return anthropic.Event{Type: anthropic.EventBlockStop, Index: index}
}

func toolStart(index int, name string) anthropic.Event {
	return anthropic.Event{
		Type:  anthropic.EventBlockStart,
		Index: index,
		Block: &anthropic.BlockStart{Type: anthropic.BlockTypeServerToolUse, ID: "toolu_1", Name: name},
	}
}

func messageStop() anthropic.Event {
	return anthropic.Event{Type: anthropic.EventMessageStop}
}

func mustApply(t *testing.T, a *Assembler, events ...anthropic.Event) {
	t.Helper()
	for _, ev := range events {
		if err := a.Apply(ev); err != nil {
			t.Fatalf("Apply(%s): %v", ev.Type, err)
		}
	}
}

func TestAssemblerConcatenatesDeltasInOrder(t *testing.T) {
	turn := transcript.NewAssistantTurn()
	a := NewAssembler(turn)

	mustApply(t, a,
		anthropic.Event{Type: anthropic.EventMessageStart},
		textStart(0),
		textDelta(0, "The answer"),
		textDelta(0, ""),
		textDelta(0, " is 4."),
		blockStop(0),
		messageStop(),
	)

	if turn.Status != transcript.TurnClosed {
		t.Fatalf("turn status = %v", turn.Status)
	}
	if got := turn.PlainText(); got != "The answer is 4." {
		t.Errorf("text = %q", got)
	}
}

func TestAssemblerRejectsDeltaForUnknownIndex(t *testing.T) {
	a := NewAssembler(transcript.NewAssistantTurn())
	err := a.Apply(textDelta(5, "stray"))
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ProtocolError", err)
	}
	if perr.Index != 5 {
		t.Errorf("Index = %d", perr.Index)
	}
}

func TestAssemblerRejectsDeltaAfterStopAndKeepsContent(t *testing.T) {
	turn := transcript.NewAssistantTurn()
	a := NewAssembler(turn)
	mustApply(t, a, textStart(0), textDelta(0, "final"), blockStop(0))

	err := a.Apply(textDelta(0, " more"))
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ProtocolError", err)
	}
	if got := turn.PlainText(); got != "final" {
		t.Errorf("closed block content changed: %q", got)
	}
}

func TestAssemblerRejectsDoubleStart(t *testing.T) {
	a := NewAssembler(transcript.NewAssistantTurn())
	mustApply(t, a, textStart(0))
	if err := a.Apply(textStart(0)); err == nil {
		t.Fatal("second start for the same index must fail")
	}
	// Index reuse after close is also a violation.
	mustApply(t, a, blockStop(0))
	if err := a.Apply(textStart(0)); err == nil {
		t.Fatal("start for a closed index must fail")
	}
}

func TestAssemblerRejectsDoubleStop(t *testing.T) {
	a := NewAssembler(transcript.NewAssistantTurn())
	mustApply(t, a, textStart(0), blockStop(0))
	if err := a.Apply(blockStop(0)); err == nil {
		t.Fatal("second stop must fail")
	}
}

func TestAssemblerToolArgsSplitInvariance(t *testing.T) {
	// Identical argument bytes split differently must parse identically.
	splits := [][]string{
		{`{"code": "import os\nprint(1)"}`},
		{`{"code": "`, `import os\nprint(1)"}`},
		{`{"c`, `ode"`, `: "import os\npr`, `int(1)"}`},
	}

	var want string
	for i, parts := range splits {
		turn := transcript.NewAssistantTurn()
		a := NewAssembler(turn)
		var closed *transcript.Block
		a.OnToolClosed = func(_ int, b *transcript.Block) { closed = b }

		mustApply(t, a, toolStart(0, "code_execution"))
		for _, p := range parts {
			mustApply(t, a, jsonDelta(0, p))
		}
		mustApply(t, a, blockStop(0))

		if closed == nil || !closed.Usable {
			t.Fatalf("split %d: tool block not usable", i)
		}
		code, _ := closed.Code()
		if i == 0 {
			want = code
		} else if code != want {
			t.Errorf("split %d: code = %q, want %q", i, code, want)
		}
	}
}

func TestAssemblerUnparseableToolArgsNonFatal(t *testing.T) {
	turn := transcript.NewAssistantTurn()
	a := NewAssembler(turn)
	var closed *transcript.Block
	a.OnToolClosed = func(_ int, b *transcript.Block) { closed = b }

	mustApply(t, a,
		toolStart(0, "code_execution"),
		jsonDelta(0, `{"code": "unterminated`),
		blockStop(0),
		messageStop(),
	)

	if closed == nil {
		t.Fatal("OnToolClosed not fired")
	}
	if closed.Usable {
		t.Error("block with bad JSON must be unusable")
	}
	if turn.Status != transcript.TurnClosed {
		t.Errorf("turn status = %v, want closed", turn.Status)
	}
}

func TestAssemblerDefersCloseUntilToolsResolve(t *testing.T) {
	turn := transcript.NewAssistantTurn()
	a := NewAssembler(turn)
	a.OnToolClosed = func(index int, b *transcript.Block) {
		if b.Usable {
			a.BeginTool(index)
		}
	}

	mustApply(t, a,
		toolStart(0, "code_execution"),
		jsonDelta(0, `{"code": "print(1)"}`),
		blockStop(0),
		messageStop(),
	)

	if turn.Status != transcript.TurnOpen {
		t.Fatalf("turn closed with a pending execution")
	}
	if a.Done() {
		t.Fatal("Done with a pending execution")
	}

	result := transcript.NewToolResultBlock(transcript.ResultOK)
	result.Stdout = "1\n"
	if err := a.FinishTool(0, result); err != nil {
		t.Fatalf("FinishTool: %v", err)
	}

	if turn.Status != transcript.TurnClosed {
		t.Errorf("turn status = %v, want closed", turn.Status)
	}
	if !a.Done() {
		t.Error("Done should be true after the last result")
	}
	// Result block follows the invocation, which is now resolved.
	last := turn.Blocks[len(turn.Blocks)-1]
	if last.Kind != transcript.BlockToolResult || last.Stdout != "1\n" {
		t.Errorf("last block = %+v", last)
	}
	if turn.Blocks[0].State != transcript.BlockResolved {
		t.Errorf("tool-use state = %v, want resolved", turn.Blocks[0].State)
	}
}

func TestAssemblerInterleavedTextAndTool(t *testing.T) {
	turn := transcript.NewAssistantTurn()
	a := NewAssembler(turn)
	a.OnToolClosed = func(index int, b *transcript.Block) {
		if b.Usable {
			a.BeginTool(index)
		}
	}

	mustApply(t, a,
		textStart(0),
		textDelta(0, "Let me compute that."),
		blockStop(0),
		toolStart(1, "code_execution"),
		jsonDelta(1, `{"code": "print(2+2)"}`),
		blockStop(1),
		textStart(2),
		textDelta(2, "Running..."),
		blockStop(2),
		messageStop(),
	)

	result := transcript.NewToolResultBlock(transcript.ResultOK)
	result.Stdout = "4\n"
	if err := a.FinishTool(1, result); err != nil {
		t.Fatalf("FinishTool: %v", err)
	}

	if len(turn.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(turn.Blocks))
	}
	kinds := []transcript.BlockKind{
		transcript.BlockText, transcript.BlockToolUse,
		transcript.BlockText, transcript.BlockToolResult,
	}
	for i, want := range kinds {
		if turn.Blocks[i].Kind != want {
			t.Errorf("block %d kind = %v, want %v", i, turn.Blocks[i].Kind, want)
		}
	}
}
