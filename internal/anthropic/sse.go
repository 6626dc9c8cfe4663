// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package anthropic

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MaxRecordSize is the maximum allowed size for a single SSE record (64KB).
const MaxRecordSize = 64 * 1024

// ============================================================================
// SSE READER
// ============================================================================

// SSEReader yields one complete Server-Sent Events record at a time, in
// arrival order. Keep-alive comment lines and empty records are skipped.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadRecord reads the next SSE record. Returns the event type, the joined
// data payload, and any error. Returns io.EOF when the stream ends.
func (s *SSEReader) ReadRecord() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	var size int

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line terminates the record.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			// Keep-alive or stray blank, keep reading.
			continue
		}

		// Comment lines (": keep-alive") are discarded.
		if line[0] == ':' {
			continue
		}

		if bytes.HasPrefix(line, []byte("event:")) {
			eventType = string(bytes.TrimSpace(line[6:]))
		} else if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimSpace(line[5:])
			size += len(data)
			if size > MaxRecordSize {
				return "", nil, fmt.Errorf("anthropic: SSE record exceeds %d bytes", MaxRecordSize)
			}
			dataLines = append(dataLines, data)
		}
		// Other fields (id:, retry:) are ignored.
	}
}

// ============================================================================
// EVENT DECODING
// ============================================================================

// DecodeEvent turns one SSE data payload into a typed stream event. Events
// with an unknown type decode to nil so callers can skip them; malformed
// JSON returns a DecodeError.
func DecodeEvent(data []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Data: data, Err: err}
	}

	switch raw.Type {
	case EventMessageStart:
		ev := &Event{Type: raw.Type}
		if raw.Message != nil {
			ev.Container = raw.Message.Container
		}
		return ev, nil

	case EventMessageStop, EventPing:
		return &Event{Type: raw.Type}, nil

	case EventBlockStart:
		var block BlockStart
		if err := json.Unmarshal(raw.ContentBlock, &block); err != nil {
			return nil, &DecodeError{Data: data, Err: err}
		}
		return &Event{Type: raw.Type, Index: raw.Index, Block: &block}, nil

	case EventBlockDelta:
		var delta Delta
		if err := json.Unmarshal(raw.Delta, &delta); err != nil {
			return nil, &DecodeError{Data: data, Err: err}
		}
		return &Event{Type: raw.Type, Index: raw.Index, Delta: &delta}, nil

	case EventBlockStop:
		return &Event{Type: raw.Type, Index: raw.Index}, nil

	case EventMessageDelta:
		var payload messageDeltaPayload
		if len(raw.Delta) > 0 {
			if err := json.Unmarshal(raw.Delta, &payload); err != nil {
				return nil, &DecodeError{Data: data, Err: err}
			}
		}
		return &Event{Type: raw.Type, StopReason: payload.StopReason}, nil

	case EventError:
		if raw.Error == nil {
			raw.Error = &APIError{Type: "unknown_error", Message: "stream reported an error"}
		}
		return &Event{Type: raw.Type, Err: raw.Error}, nil

	default:
		// Forward-compatible: unrecognized event types are skipped.
		return nil, nil
	}
}
