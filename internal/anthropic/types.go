// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package anthropic implements the Messages streaming API client, the Files
// API, and the code-execution sandbox endpoints.
package anthropic

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// REQUEST TYPES
// ============================================================================

// ChatMessage is one role/content pair in an outbound request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool declares a server-side tool in an outbound request.
type Tool struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Stream    bool          `json:"stream"`
	Messages  []ChatMessage `json:"messages"`
	Tools     []Tool        `json:"tools,omitempty"`
}

// ============================================================================
// STREAM EVENTS
// ============================================================================

// EventType is the discriminator carried by every stream event.
type EventType string

const (
	EventMessageStart EventType = "message_start"
	EventBlockStart   EventType = "content_block_start"
	EventBlockDelta   EventType = "content_block_delta"
	EventBlockStop    EventType = "content_block_stop"
	EventMessageDelta EventType = "message_delta"
	EventMessageStop  EventType = "message_stop"
	EventPing         EventType = "ping"
	EventError        EventType = "error"
)

// Content block types announced by content_block_start.
const (
	BlockTypeText          = "text"
	BlockTypeServerToolUse = "server_tool_use"
)

// Delta payload types carried by content_block_delta.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
)

// BlockStart describes the block opened by a content_block_start event.
type BlockStart struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`
}

// Delta is the payload of a content_block_delta event. Exactly one of Text
// or PartialJSON is populated, selected by Type.
type Delta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// ContainerInfo identifies the sandbox container backing a reply that uses
// code execution, announced by message_start.
type ContainerInfo struct {
	ID        string `json:"id"`
	ExpiresAt string `json:"expires_at"`
}

// Event is one decoded stream event. Index is meaningful for the three
// content_block_* types. Err is set for error events, including locally
// produced decode and transport failures.
type Event struct {
	Type       EventType
	Index      int
	Block      *BlockStart
	Delta      *Delta
	StopReason string
	Container  *ContainerInfo
	Err        *APIError
}

// rawEvent is the wire envelope before dispatch on Type.
type rawEvent struct {
	Type         EventType            `json:"type"`
	Index        int                  `json:"index"`
	Message      *messageStartPayload `json:"message"`
	ContentBlock json.RawMessage      `json:"content_block"`
	Delta        json.RawMessage      `json:"delta"`
	Error        *APIError            `json:"error"`
}

// messageStartPayload is the message object of a message_start event.
type messageStartPayload struct {
	Container *ContainerInfo `json:"container"`
}

// messageDeltaPayload is the delta object of a message_delta event.
type messageDeltaPayload struct {
	StopReason string `json:"stop_reason"`
}

// ============================================================================
// FILES API
// ============================================================================

// FileMetadata describes a file held by the Files API.
type FileMetadata struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	SizeBytes    int64  `json:"size_bytes"`
	MimeType     string `json:"mime_type"`
	CreatedAt    string `json:"created_at"`
	Downloadable bool   `json:"downloadable"`
}

type listFilesResponse struct {
	Data []FileMetadata `json:"data"`
}

// ============================================================================
// CODE EXECUTION
// ============================================================================

// Execution status values reported by the sandbox.
const (
	ExecQueued    = "queued"
	ExecRunning   = "running"
	ExecCompleted = "completed"
	ExecFailed    = "failed"
)

type execRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

// ExecFileOutput references a file produced by an execution.
type ExecFileOutput struct {
	FileID string `json:"file_id"`
}

// ExecResult is the state of one sandbox execution.
type ExecResult struct {
	ID         string           `json:"id"`
	Status     string           `json:"status"`
	Stdout     string           `json:"stdout"`
	Stderr     string           `json:"stderr"`
	ReturnCode int              `json:"return_code"`
	ErrorCode  string           `json:"error_code,omitempty"`
	Files      []ExecFileOutput `json:"content,omitempty"`
}

// Succeeded reports whether a completed execution exited cleanly.
func (r *ExecResult) Succeeded() bool {
	return r.Status == ExecCompleted && r.ErrorCode == "" && r.ReturnCode == 0
}

// Summary is a short human-readable description of a failed execution.
func (r *ExecResult) Summary() string {
	if r.ErrorCode != "" {
		return fmt.Sprintf("execution error: %s", r.ErrorCode)
	}
	if r.ReturnCode != 0 {
		return fmt.Sprintf("exit code %d", r.ReturnCode)
	}
	return r.Status
}
