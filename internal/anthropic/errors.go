// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("anthropic: no API key configured")

	// ErrRateLimited matches any RateLimitError via errors.Is.
	ErrRateLimited = errors.New("anthropic: rate limited")
)

// APIError is an error reported by the API, either inline in the stream or
// as a non-200 response body. StatusCode is zero for in-stream errors.
type APIError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("anthropic: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic: %s", e.Message)
}

// RateLimitError carries the server's retry hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("anthropic: rate limited, retry after %s", e.RetryAfter)
	}
	return "anthropic: rate limited"
}

// Is lets callers match with errors.Is(err, ErrRateLimited).
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// DecodeError wraps a stream record that failed to decode. The raw payload
// is retained for the debug log.
type DecodeError struct {
	Data []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("anthropic: malformed stream event: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// statusError maps a non-200 response to a typed error. The body is parsed
// for the API's error envelope when present.
func statusError(resp *http.Response, body []byte) error {
	var env errorEnvelope
	msg := ""
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		msg = env.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if msg == "" {
			msg = "invalid API key"
		}
		return &APIError{Type: "authentication_error", Message: msg, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusBadRequest:
		if msg == "" {
			msg = "bad request (check the model name)"
		}
		return &APIError{Type: "invalid_request_error", Message: msg, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		if msg == "" {
			msg = "server error"
		}
		return &APIError{Type: "api_error", Message: msg, StatusCode: resp.StatusCode}
	default:
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return &APIError{Type: "http_error", Message: msg, StatusCode: resp.StatusCode}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
