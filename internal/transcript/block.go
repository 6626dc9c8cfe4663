// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript contains the conversation data model: turns made of
// typed content blocks with an explicit open/closed lifecycle.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// BLOCK KINDS AND LIFECYCLE
// ============================================================================

// BlockKind identifies what a content block holds.
type BlockKind int

const (
	// BlockText is streamed assistant (or verbatim user) text.
	BlockText BlockKind = iota

	// BlockToolUse is a tool invocation: a tool name plus an argument
	// payload that arrives as raw JSON fragments.
	BlockToolUse

	// BlockToolResult is the outcome of a tool invocation. It is produced
	// locally, never by the stream.
	BlockToolResult
)

func (k BlockKind) String() string {
	switch k {
	case BlockText:
		return "text"
	case BlockToolUse:
		return "tool_use"
	case BlockToolResult:
		return "tool_result"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// BlockState is the lifecycle position of a block. Transitions are one-way:
// Open -> Closed, and for tool-use blocks Closed -> Resolved once the
// matching result block has been appended.
type BlockState int

const (
	BlockOpen BlockState = iota
	BlockClosed
	BlockResolved
)

func (s BlockState) String() string {
	switch s {
	case BlockOpen:
		return "open"
	case BlockClosed:
		return "closed"
	case BlockResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ResultStatus classifies a tool-result block.
type ResultStatus string

const (
	ResultOK    ResultStatus = "ok"
	ResultError ResultStatus = "error"
)

var (
	// ErrBlockClosed is returned when content is appended to a block that
	// has already left the Open state.
	ErrBlockClosed = errors.New("transcript: block is closed")

	// ErrWrongKind is returned when an operation does not apply to the
	// block's kind, e.g. a text delta aimed at a tool-use block.
	ErrWrongKind = errors.New("transcript: operation does not match block kind")
)

// ============================================================================
// FILE REFERENCES
// ============================================================================

// FileRef points at a file artifact produced by a tool execution. Handle is
// the provider-side id; Filename starts as a placeholder and is replaced in
// place once metadata arrives. LocalPath is set after the artifact has been
// written to disk.
type FileRef struct {
	Handle    string
	Filename  string
	LocalPath string
	SizeBytes int64
	MimeType  string
	SaveError string
}

// ============================================================================
// BLOCK
// ============================================================================

// Block is one content block inside a turn. Exactly one of the kind-specific
// field groups is meaningful, selected by Kind.
type Block struct {
	Kind  BlockKind
	State BlockState

	// Text blocks accumulate streamed deltas.
	text strings.Builder

	// Tool-use blocks.
	ToolName string
	args     strings.Builder // verbatim fragment buffer, parsed on close
	Args     map[string]any  // populated by Close when parsing succeeds
	Usable   bool            // false until Close parses the buffer
	ParseErr string          // set when argument parsing failed

	// Tool-result blocks.
	Status   ResultStatus
	Stdout   string
	Stderr   string
	ExitCode int
	ErrorMsg string
	Files    []*FileRef
}

// NewTextBlock returns an open text block, optionally seeded with text.
func NewTextBlock(seed string) *Block {
	b := &Block{Kind: BlockText, State: BlockOpen}
	b.text.WriteString(seed)
	return b
}

// NewToolUseBlock returns an open tool-use block for the named tool.
func NewToolUseBlock(name string) *Block {
	return &Block{Kind: BlockToolUse, State: BlockOpen, ToolName: name}
}

// NewToolResultBlock returns a closed tool-result block. Results are built
// whole, so they never pass through the Open state observably.
func NewToolResultBlock(status ResultStatus) *Block {
	return &Block{Kind: BlockToolResult, State: BlockClosed, Status: status}
}

// AppendText adds a streamed text delta. Only open text blocks accept it.
func (b *Block) AppendText(delta string) error {
	if b.Kind != BlockText {
		return fmt.Errorf("%w: text delta to %s block", ErrWrongKind, b.Kind)
	}
	if b.State != BlockOpen {
		return fmt.Errorf("%w: text delta to %s text block", ErrBlockClosed, b.State)
	}
	b.text.WriteString(delta)
	return nil
}

// AppendArgFragment buffers a raw JSON fragment of the tool arguments.
// Fragments are concatenated verbatim; no parsing happens until Close.
func (b *Block) AppendArgFragment(fragment string) error {
	if b.Kind != BlockToolUse {
		return fmt.Errorf("%w: argument fragment to %s block", ErrWrongKind, b.Kind)
	}
	if b.State != BlockOpen {
		return fmt.Errorf("%w: argument fragment to %s tool-use block", ErrBlockClosed, b.State)
	}
	b.args.WriteString(fragment)
	return nil
}

// Close transitions the block to Closed. For tool-use blocks the buffered
// argument fragments are parsed as a single JSON document; a parse failure
// leaves the block closed but unusable and is not an error.
func (b *Block) Close() error {
	if b.State != BlockOpen {
		return fmt.Errorf("%w: close of %s block", ErrBlockClosed, b.State)
	}
	b.State = BlockClosed
	if b.Kind != BlockToolUse {
		return nil
	}
	raw := b.args.String()
	if raw == "" {
		raw = "{}"
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		b.ParseErr = err.Error()
		b.Usable = false
		return nil
	}
	b.Args = parsed
	b.Usable = true
	return nil
}

// Resolve marks a closed tool-use block as having received its result.
func (b *Block) Resolve() error {
	if b.Kind != BlockToolUse {
		return fmt.Errorf("%w: resolve of %s block", ErrWrongKind, b.Kind)
	}
	if b.State != BlockClosed {
		return fmt.Errorf("transcript: resolve of %s tool-use block", b.State)
	}
	b.State = BlockResolved
	return nil
}

// Text returns the accumulated text of a text block.
func (b *Block) Text() string {
	return b.text.String()
}

// RawArgs returns the verbatim argument buffer of a tool-use block.
func (b *Block) RawArgs() string {
	return b.args.String()
}

// Code returns the "code" argument of a usable tool-use block, if present.
func (b *Block) Code() (string, bool) {
	if !b.Usable {
		return "", false
	}
	code, ok := b.Args["code"].(string)
	return code, ok
}

// Clone deep-copies the block. strings.Builder cannot be copied by value,
// so the buffers are rebuilt from their contents.
func (b *Block) Clone() *Block {
	c := &Block{
		Kind:     b.Kind,
		State:    b.State,
		ToolName: b.ToolName,
		Usable:   b.Usable,
		ParseErr: b.ParseErr,
		Status:   b.Status,
		Stdout:   b.Stdout,
		Stderr:   b.Stderr,
		ExitCode: b.ExitCode,
		ErrorMsg: b.ErrorMsg,
	}
	c.text.WriteString(b.text.String())
	c.args.WriteString(b.args.String())
	if b.Args != nil {
		c.Args = make(map[string]any, len(b.Args))
		for k, v := range b.Args {
			c.Args[k] = v
		}
	}
	if len(b.Files) > 0 {
		c.Files = make([]*FileRef, len(b.Files))
		for i, f := range b.Files {
			ref := *f
			c.Files[i] = &ref
		}
	}
	return c
}
