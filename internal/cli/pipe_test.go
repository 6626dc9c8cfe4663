// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jeranaias/agnt-tui/internal/anthropic"
	"github.com/jeranaias/agnt-tui/internal/transcript"
)

type fakeToolRunner struct {
	executed []string
	result   *transcript.Block
}

func (f *fakeToolRunner) Supports(name string) bool { return name == "code_execution" }

func (f *fakeToolRunner) Execute(ctx context.Context, code string) *transcript.Block {
	f.executed = append(f.executed, code)
	if f.result != nil {
		return f.result
	}
	return transcript.NewToolResultBlock(transcript.ResultOK)
}

func textEvents(chunks ...string) chan anthropic.Event {
	ch := make(chan anthropic.Event, len(chunks)+8)
	ch <- anthropic.Event{Type: anthropic.EventBlockStart, Index: 0, Block: &anthropic.BlockStart{Type: anthropic.BlockTypeText}}
	for _, c := range chunks {
		ch <- anthropic.Event{Type: anthropic.EventBlockDelta, Index: 0, Delta: &anthropic.Delta{Type: anthropic.DeltaTypeText, Text: c}}
	}
	return ch
}

func TestExchangeRawStreamsDeltas(t *testing.T) {
	ch := textEvents("Hello", " world")
	ch <- anthropic.Event{Type: anthropic.EventBlockStop, Index: 0}
	ch <- anthropic.Event{Type: anthropic.EventMessageStop}
	close(ch)

	var out bytes.Buffer
	if err := runExchange(context.Background(), ch, nil, &out, true); err != nil {
		t.Fatalf("runExchange: %v", err)
	}
	if got := out.String(); got != "Hello world\n" {
		t.Errorf("output = %q", got)
	}
}

func TestExchangeRenderedShowsPartialOnStreamError(t *testing.T) {
	ch := textEvents("half a rep")
	ch <- anthropic.Event{
		Type: anthropic.EventError,
		Err:  &anthropic.APIError{Type: "overloaded_error", Message: "busy"},
	}
	close(ch)

	var out bytes.Buffer
	err := runExchange(context.Background(), ch, nil, &out, false)
	if err == nil {
		t.Fatal("stream error must be returned")
	}
	if !strings.Contains(out.String(), "half a rep") {
		t.Errorf("partial text missing from output: %q", out.String())
	}
	if !strings.Contains(out.String(), "overloaded_error") {
		t.Errorf("error marker missing from output: %q", out.String())
	}
}

func TestExchangeRenderedShowsPartialOnConnectionDrop(t *testing.T) {
	ch := textEvents("kept")
	close(ch) // no message_stop

	var out bytes.Buffer
	err := runExchange(context.Background(), ch, nil, &out, false)
	if err == nil {
		t.Fatal("connection drop must be returned")
	}
	if !strings.Contains(out.String(), "kept") {
		t.Errorf("partial text missing from output: %q", out.String())
	}
}

func TestExchangeRunsToolSynchronously(t *testing.T) {
	runner := &fakeToolRunner{result: func() *transcript.Block {
		b := transcript.NewToolResultBlock(transcript.ResultOK)
		b.Stdout = "4\n"
		return b
	}()}

	ch := make(chan anthropic.Event, 8)
	ch <- anthropic.Event{Type: anthropic.EventBlockStart, Index: 0, Block: &anthropic.BlockStart{Type: anthropic.BlockTypeServerToolUse, Name: "code_execution"}}
	ch <- anthropic.Event{Type: anthropic.EventBlockDelta, Index: 0, Delta: &anthropic.Delta{Type: anthropic.DeltaTypeInputJSON, PartialJSON: `{"code": "print(2+2)"}`}}
	ch <- anthropic.Event{Type: anthropic.EventBlockStop, Index: 0}
	ch <- anthropic.Event{Type: anthropic.EventMessageStop}
	close(ch)

	var out bytes.Buffer
	if err := runExchange(context.Background(), ch, runner, &out, true); err != nil {
		t.Fatalf("runExchange: %v", err)
	}
	if len(runner.executed) != 1 || runner.executed[0] != "print(2+2)" {
		t.Errorf("executed = %v", runner.executed)
	}
	if !strings.Contains(out.String(), "print(2+2)") || !strings.Contains(out.String(), "4\n") {
		t.Errorf("tool code/result missing from output: %q", out.String())
	}
}

func TestExchangeUnsupportedToolFails(t *testing.T) {
	ch := make(chan anthropic.Event, 8)
	ch <- anthropic.Event{Type: anthropic.EventBlockStart, Index: 0, Block: &anthropic.BlockStart{Type: anthropic.BlockTypeServerToolUse, Name: "web_search"}}
	ch <- anthropic.Event{Type: anthropic.EventBlockDelta, Index: 0, Delta: &anthropic.Delta{Type: anthropic.DeltaTypeInputJSON, PartialJSON: `{}`}}
	ch <- anthropic.Event{Type: anthropic.EventBlockStop, Index: 0}
	close(ch)

	var out bytes.Buffer
	err := runExchange(context.Background(), ch, &fakeToolRunner{}, &out, false)
	if err == nil || !strings.Contains(err.Error(), "web_search") {
		t.Fatalf("err = %v, want unsupported tool error", err)
	}
}
