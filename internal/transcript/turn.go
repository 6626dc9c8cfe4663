// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ============================================================================
// ROLES AND TURN STATUS
// ============================================================================

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid returns true for roles the transcript accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// TurnStatus is the lifecycle position of a turn.
type TurnStatus int

const (
	// TurnOpen means blocks may still be appended or mutated.
	TurnOpen TurnStatus = iota

	// TurnClosed means the turn completed normally.
	TurnClosed

	// TurnCancelled means the user interrupted the turn. Partial content
	// is preserved.
	TurnCancelled

	// TurnErrored means the turn ended with a failure. Partial content is
	// preserved and FailReason describes the cause.
	TurnErrored
)

func (s TurnStatus) String() string {
	switch s {
	case TurnOpen:
		return "open"
	case TurnClosed:
		return "closed"
	case TurnCancelled:
		return "cancelled"
	case TurnErrored:
		return "errored"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ============================================================================
// TURN
// ============================================================================

// Turn is one conversational turn: a role and an ordered list of blocks.
type Turn struct {
	ID         string
	Role       Role
	Blocks     []*Block
	Status     TurnStatus
	FailReason string
	CreatedAt  time.Time
}

// NewUserTurn returns a closed user turn holding a single text block.
func NewUserTurn(text string) *Turn {
	b := NewTextBlock(text)
	b.State = BlockClosed
	return &Turn{
		ID:        generateID("turn"),
		Role:      RoleUser,
		Blocks:    []*Block{b},
		Status:    TurnClosed,
		CreatedAt: time.Now(),
	}
}

// NewAssistantTurn returns an empty open assistant turn ready for streaming.
func NewAssistantTurn() *Turn {
	return &Turn{
		ID:        generateID("turn"),
		Role:      RoleAssistant,
		Status:    TurnOpen,
		CreatedAt: time.Now(),
	}
}

// Append adds a block to the turn. Only open turns accept blocks.
func (t *Turn) Append(b *Block) error {
	if t.Status != TurnOpen {
		return fmt.Errorf("transcript: append to %s turn", t.Status)
	}
	t.Blocks = append(t.Blocks, b)
	return nil
}

// Close finishes the turn normally.
func (t *Turn) Close() {
	if t.Status == TurnOpen {
		t.Status = TurnClosed
	}
}

// CloseCancelled finishes the turn as user-interrupted, keeping whatever
// content had already arrived. Any still-open block is closed in place.
func (t *Turn) CloseCancelled() {
	if t.Status != TurnOpen {
		return
	}
	t.closeOpenBlocks()
	t.Status = TurnCancelled
}

// CloseErrored finishes the turn with a failure reason, keeping partial
// content.
func (t *Turn) CloseErrored(reason string) {
	if t.Status != TurnOpen {
		return
	}
	t.closeOpenBlocks()
	t.Status = TurnErrored
	t.FailReason = reason
}

func (t *Turn) closeOpenBlocks() {
	for _, b := range t.Blocks {
		if b.State == BlockOpen {
			b.State = BlockClosed
		}
	}
}

// PlainText concatenates the turn's text blocks. Tool blocks are skipped.
func (t *Turn) PlainText() string {
	var out string
	for _, b := range t.Blocks {
		if b.Kind == BlockText {
			out += b.Text()
		}
	}
	return out
}

// Clone deep-copies the turn.
func (t *Turn) Clone() *Turn {
	c := &Turn{
		ID:         t.ID,
		Role:       t.Role,
		Status:     t.Status,
		FailReason: t.FailReason,
		CreatedAt:  t.CreatedAt,
	}
	if len(t.Blocks) > 0 {
		c.Blocks = make([]*Block, len(t.Blocks))
		for i, b := range t.Blocks {
			c.Blocks[i] = b.Clone()
		}
	}
	return c
}

// generateID creates a random id with the given prefix.
func generateID(prefix string) string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(bytes))
}
