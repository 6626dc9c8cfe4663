// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/agnt-tui/internal/anthropic"
	"github.com/jeranaias/agnt-tui/internal/telemetry"
	"github.com/jeranaias/agnt-tui/internal/transcript"
)

var (
	// ErrSessionActive is returned by Start while a request is in flight.
	ErrSessionActive = errors.New("session: a request is already active")

	// ErrBusy is returned by operations that require an idle controller.
	ErrBusy = errors.New("session: controller is busy")
)

// StreamSource opens one streaming request. Implemented by the API client;
// tests substitute fakes.
type StreamSource interface {
	Stream(ctx context.Context, history []anthropic.ChatMessage, withTools bool) (<-chan anthropic.Event, error)
}

// ToolExecutor runs a validated tool invocation to completion.
type ToolExecutor interface {
	Supports(name string) bool
	Execute(ctx context.Context, code string) *transcript.Block
}

// Controller owns the transcript and the single active session. All
// mutations happen under one mutex; goroutines finishing after the session
// they belong to has ended are detected by id and dropped before touching
// anything.
type Controller struct {
	mu sync.Mutex

	transcript *transcript.Transcript
	source     StreamSource
	tools      ToolExecutor

	seq      atomic.Uint64
	activeID uint64 // 0 when idle
	sessCtx  context.Context
	cancel   context.CancelFunc
	turn     *transcript.Turn
	asm      *Assembler

	// streamDropped records that the event channel closed mid-stream while
	// tool executions were still out; the last result to land finalizes
	// the turn as errored instead of closing it cleanly.
	streamDropped bool

	// container is the sandbox container announced by the most recent
	// message_start, kept for display until the conversation is cleared.
	container *anthropic.ContainerInfo

	toolsEnabled bool

	// notify is a coalescing change signal: at least one delivery per
	// burst of mutations, readers re-read the snapshot.
	notify chan struct{}
}

// NewController creates an idle controller. tools may be nil; any tool-use
// block arriving then is a protocol error.
func NewController(source StreamSource, tools ToolExecutor, toolsEnabled bool) *Controller {
	return &Controller{
		transcript:   transcript.New(),
		source:       source,
		tools:        tools,
		toolsEnabled: toolsEnabled,
		notify:       make(chan struct{}, 1),
	}
}

// Changes returns the coalescing change-notification channel.
func (c *Controller) Changes() <-chan struct{} {
	return c.notify
}

// IsActive reports whether a request is currently in flight.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID != 0
}

// Snapshot returns a deep copy of the transcript for rendering.
func (c *Controller) Snapshot() []*transcript.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Snapshot()
}

// ToolsEnabled reports whether new sessions declare the execution tool.
func (c *Controller) ToolsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toolsEnabled
}

// SetToolsEnabled flips the tool declaration for future sessions. The
// in-flight session, if any, is unaffected.
func (c *Controller) SetToolsEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsEnabled = enabled
}

// Clear empties the transcript. Fails while a request is active.
func (c *Controller) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID != 0 {
		return ErrBusy
	}
	c.transcript.Clear()
	c.container = nil
	c.notifyLocked()
	return nil
}

// Container returns the sandbox container backing the conversation, or nil
// when none has been announced.
func (c *Controller) Container() *anthropic.ContainerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.container == nil {
		return nil
	}
	ci := *c.container
	return &ci
}

// Start submits the user's text and begins streaming the reply. Exactly one
// session may be active; a second Start fails with ErrSessionActive and
// leaves the transcript untouched.
func (c *Controller) Start(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("session: empty message")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID != 0 {
		return ErrSessionActive
	}

	id := c.seq.Add(1)
	c.activeID = id
	c.streamDropped = false

	c.transcript.Append(transcript.NewUserTurn(text))
	c.turn = transcript.NewAssistantTurn()
	c.transcript.Append(c.turn)

	c.asm = NewAssembler(c.turn)
	c.asm.OnToolClosed = func(index int, b *transcript.Block) {
		c.toolClosedLocked(id, index, b)
	}

	history := historyMessages(c.transcript)
	withTools := c.toolsEnabled

	ctx, cancel := context.WithCancel(context.Background())
	c.sessCtx = ctx
	c.cancel = cancel

	go c.run(ctx, id, history, withTools)
	c.notifyLocked()
	return nil
}

// Cancel aborts the active session, if any. Partial content is preserved
// and the assistant turn is marked cancelled. Idempotent.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == 0 {
		return
	}
	telemetry.Debugf("session %d: cancelled by user", c.activeID)
	c.turn.CloseCancelled()
	c.endLocked()
	c.notifyLocked()
}

// run drives one session's stream. Runs outside the lock; every mutation
// goes through a method that re-checks the session id first.
func (c *Controller) run(ctx context.Context, id uint64, history []anthropic.ChatMessage, withTools bool) {
	events, err := c.source.Stream(ctx, history, withTools)
	if err != nil {
		c.fail(id, err.Error())
		return
	}
	for ev := range events {
		c.apply(id, ev)
	}
	c.streamEnded(id)
}

// apply folds one stream event into the transcript, unless the session it
// belongs to is no longer the active one.
func (c *Controller) apply(id uint64, ev anthropic.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.activeID {
		telemetry.Debugf("session %d: dropped stale %s event", id, ev.Type)
		return
	}

	if ev.Type == anthropic.EventMessageStart && ev.Container != nil {
		c.container = ev.Container
		telemetry.Debugf("session %d: container %s (expires %s)", id, ev.Container.ID, ev.Container.ExpiresAt)
	}

	if ev.Type == anthropic.EventError {
		msg := "stream error"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		telemetry.Debugf("session %d: %s", id, msg)
		c.turn.CloseErrored(msg)
		c.endLocked()
		c.notifyLocked()
		return
	}

	if err := c.asm.Apply(ev); err != nil {
		telemetry.Debugf("session %d: %v", id, err)
		c.turn.CloseErrored(err.Error())
		c.endLocked()
		c.notifyLocked()
		return
	}

	if c.asm.Done() {
		c.endLocked()
	}
	c.notifyLocked()
}

// streamEnded handles the event channel closing. A clean close follows
// message_stop; anything else is a dropped connection.
func (c *Controller) streamEnded(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.activeID {
		return
	}
	if c.asm.pendingTools > 0 {
		// Stream is done but executions are still out; the session
		// stays active until their results land. Without message_stop
		// the close was abnormal, and the last result must finalize
		// the turn as errored rather than wait for a stop that never
		// comes.
		if !c.asm.stopSeen {
			telemetry.Debugf("session %d: stream dropped with %d executions pending", id, c.asm.pendingTools)
			c.streamDropped = true
		}
		return
	}
	if c.turn.Status == transcript.TurnOpen {
		c.turn.CloseErrored("connection closed before the reply completed")
	}
	c.endLocked()
	c.notifyLocked()
}

// fail finalizes a session that could not start or continue.
func (c *Controller) fail(id uint64, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.activeID {
		return
	}
	telemetry.Debugf("session %d: %s", id, reason)
	c.turn.CloseErrored(reason)
	c.endLocked()
	c.notifyLocked()
}

// toolClosedLocked validates a freshly closed tool-use block and launches
// its execution. Called by the assembler with the lock already held.
func (c *Controller) toolClosedLocked(id uint64, index int, b *transcript.Block) {
	if c.tools == nil || !c.tools.Supports(b.ToolName) {
		telemetry.Debugf("session %d: unsupported tool %q", id, b.ToolName)
		c.turn.CloseErrored("the reply requested an unsupported tool: " + b.ToolName)
		c.endLocked()
		return
	}
	if !b.Usable {
		// Arguments did not parse; the invocation is kept for display
		// but never executed.
		telemetry.Debugf("session %d: tool block %d unusable: %s", id, index, b.ParseErr)
		return
	}
	code, ok := b.Code()
	if !ok {
		telemetry.Debugf("session %d: tool block %d has no code argument", id, index)
		return
	}

	// The session context scopes the execution too: Cancel aborts any
	// in-flight run, and its late result is dropped as stale.
	c.asm.BeginTool(index)
	ctx := c.sessCtx
	go func() {
		result := c.tools.Execute(ctx, code)
		c.completeTool(id, index, result)
	}()
}

// completeTool lands an execution result, unless the session ended while
// the execution ran.
func (c *Controller) completeTool(id uint64, index int, result *transcript.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.activeID {
		telemetry.Debugf("session %d: dropped stale tool result for block %d", id, index)
		return
	}
	if err := c.asm.FinishTool(index, result); err != nil {
		telemetry.Debugf("session %d: %v", id, err)
	}
	if c.streamDropped && c.asm.pendingTools == 0 && c.turn.Status == transcript.TurnOpen {
		c.turn.CloseErrored("connection closed before the reply completed")
	}
	if c.asm.Done() {
		c.endLocked()
	}
	c.notifyLocked()
}

// endLocked tears down the active session. Callers hold the lock.
func (c *Controller) endLocked() {
	c.activeID = 0
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) notifyLocked() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// historyMessages flattens closed turns into API request messages.
func historyMessages(tr *transcript.Transcript) []anthropic.ChatMessage {
	entries := tr.History()
	out := make([]anthropic.ChatMessage, 0, len(entries))
	for _, e := range entries {
		role := string(e.Role)
		if e.Role == transcript.RoleSystem {
			continue
		}
		out = append(out, anthropic.ChatMessage{Role: role, Content: e.Text})
	}
	return out
}
