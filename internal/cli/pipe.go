// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// pipe.go - non-interactive mode: read the prompt from stdin, stream the
// reply to stdout.
//
// With a piped stdout the reply is written raw as deltas arrive, so agnt
// composes with shell pipelines. On a terminal the reply is accumulated and
// rendered as markdown instead.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/agnt-tui/internal/anthropic"
	"github.com/jeranaias/agnt-tui/internal/session"
	"github.com/jeranaias/agnt-tui/internal/tools"
	"github.com/jeranaias/agnt-tui/internal/transcript"
)

// toolRunner is the slice of the coordinator pipe mode needs; tests
// substitute fakes.
type toolRunner interface {
	Supports(name string) bool
	Execute(ctx context.Context, code string) *transcript.Block
}

// RunPipe executes one prompt/reply exchange. The prompt is the -m message,
// the piped stdin, or both joined with a blank line.
func RunPipe(ctx context.Context, client *anthropic.Client, coord *tools.Coordinator, args Args, withTools bool) error {
	prompt, err := pipePrompt(args)
	if err != nil {
		return err
	}

	history := []anthropic.ChatMessage{{Role: "user", Content: prompt}}
	events, err := client.Stream(ctx, history, withTools)
	if err != nil {
		return err
	}

	var runner toolRunner
	if coord != nil {
		runner = coord
	}
	return runExchange(ctx, events, runner, os.Stdout, !IsStdoutTTY())
}

// runExchange consumes one event stream into an assistant turn, writing to
// w as it goes. raw mode prints text deltas immediately; otherwise the turn
// is rendered once at the end — partial content included on every error
// path.
func runExchange(ctx context.Context, events <-chan anthropic.Event, coord toolRunner, w io.Writer, raw bool) error {
	turn := transcript.NewAssistantTurn()
	asm := session.NewAssembler(turn)

	// Tool executions run synchronously here: there is exactly one request
	// and nothing else to do while the sandbox works.
	var toolErr error
	asm.OnToolClosed = func(index int, b *transcript.Block) {
		if coord == nil || !coord.Supports(b.ToolName) {
			toolErr = fmt.Errorf("model requested unsupported tool %q", b.ToolName)
			return
		}
		code, ok := b.Code()
		if !ok {
			if raw && b.ParseErr != "" {
				fmt.Fprintf(os.Stderr, "agnt: code arguments unreadable: %s\n", b.ParseErr)
			}
			return
		}
		if raw {
			writeToolCode(w, code)
		}
		asm.BeginTool(index)
		result := coord.Execute(ctx, code)
		if raw {
			writeToolResult(w, result)
		}
		if err := asm.FinishTool(index, result); err != nil {
			toolErr = err
		}
	}

	// flush shows whatever has been assembled so far. In raw mode the
	// deltas are already on w; a terminal gets the rendered turn, partial
	// content included.
	var wroteRaw bool
	flush := func() {
		if raw {
			if wroteRaw {
				fmt.Fprintln(w)
			}
			return
		}
		writeTurn(w, turn)
	}

	for ev := range events {
		if ev.Type == anthropic.EventError {
			turn.CloseErrored(ev.Err.Error())
			flush()
			return ev.Err
		}
		if raw && ev.Type == anthropic.EventBlockDelta &&
			ev.Delta != nil && ev.Delta.Type == anthropic.DeltaTypeText {
			fmt.Fprint(w, ev.Delta.Text)
			wroteRaw = true
		}
		if err := asm.Apply(ev); err != nil {
			turn.CloseErrored(err.Error())
			flush()
			return err
		}
		if toolErr != nil {
			turn.CloseErrored(toolErr.Error())
			flush()
			return toolErr
		}
	}

	if !asm.Done() {
		turn.CloseErrored("connection closed before the reply completed")
		flush()
		return errors.New("connection closed before the reply completed")
	}

	flush()
	return nil
}

// pipePrompt assembles the outbound prompt from -m and stdin.
func pipePrompt(args Args) (string, error) {
	var parts []string
	if args.Message != "" {
		parts = append(parts, args.Message)
	}

	if !IsTTY() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", errors.New("pipe mode needs input: pipe text on stdin or pass -m")
	}
	return strings.Join(parts, "\n\n"), nil
}
