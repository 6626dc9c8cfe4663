// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096

	apiVersion   = "2023-06-01"
	betaFeatures = "code-execution-2025-05-22,files-api-2025-04-14"

	// CodeExecutionToolName is the only tool this client declares.
	CodeExecutionToolName = "code_execution"
	codeExecutionToolType = "code_execution_20250522"
)

// ============================================================================
// CLIENT
// ============================================================================

// Config holds client construction options. Zero fields fall back to
// defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	SandboxURL string // execution endpoint, defaults to BaseURL
	Model      string
	MaxTokens  int
	Timeout    time.Duration
}

// Client talks to the Messages API, the Files API and the execution
// sandbox. Safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	sandboxURL string
	model      string
	maxTokens  int

	httpClient *http.Client

	// limiter paces outbound API calls; pollLimiter paces the execution
	// status loop.
	limiter     *rate.Limiter
	pollLimiter *rate.Limiter
}

// NewClient creates a client from config, applying defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.SandboxURL == "" {
		cfg.SandboxURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		sandboxURL:  cfg.SandboxURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		pollLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("anthropic-beta", betaFeatures)
	req.Header.Set("content-type", "application/json")
}

// ============================================================================
// STREAMING MESSAGES
// ============================================================================

// Stream sends the conversation history and returns a channel of decoded
// stream events in arrival order. When withTools is set the request
// declares the code-execution tool. The channel closes when the stream
// ends, whatever the reason; fatal conditions are delivered as a final
// error event. Cancel ctx to abort mid-stream.
func (c *Client) Stream(ctx context.Context, history []ChatMessage, withTools bool) (<-chan Event, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    true,
		Messages:  history,
	}
	if withTools {
		reqBody.Tools = []Tool{{Type: codeExecutionToolType, Name: CodeExecutionToolName}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, statusError(resp, body)
	}

	events := make(chan Event)
	go c.readStream(ctx, resp.Body, events)
	return events, nil
}

// readStream decodes records off the wire until EOF, a fatal decode or
// transport error, or context cancellation.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, events chan<- Event) {
	defer close(events)
	defer body.Close()

	reader := NewSSEReader(body)
	for {
		_, data, err := reader.ReadRecord()
		if err == io.EOF {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.emit(ctx, events, Event{
				Type: EventError,
				Err:  &APIError{Type: "transport_error", Message: err.Error()},
			})
			return
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			// Malformed record. The session treats this as fatal, so
			// stop reading after reporting it.
			c.emit(ctx, events, Event{
				Type: EventError,
				Err:  &APIError{Type: "decode_error", Message: err.Error()},
			})
			return
		}
		if ev == nil || ev.Type == EventPing {
			continue
		}
		if !c.emit(ctx, events, *ev) {
			return
		}
		if ev.Type == EventMessageStop {
			return
		}
	}
}

func (c *Client) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ============================================================================
// FILES API
// ============================================================================

// FileMetadata fetches metadata for a file id.
func (c *Client) FileMetadata(ctx context.Context, fileID string) (*FileMetadata, error) {
	var meta FileMetadata
	if err := c.getJSON(ctx, c.baseURL+"/v1/files/"+fileID, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// DownloadFile fetches the raw content of a file id.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/files/"+fileID+"/content", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, statusError(resp, body)
	}
	return io.ReadAll(resp.Body)
}

// ListFiles returns metadata for all files visible to the key.
func (c *Client) ListFiles(ctx context.Context) ([]FileMetadata, error) {
	var list listFilesResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1/files", &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp, body)
	}
	return json.Unmarshal(body, out)
}

// ============================================================================
// CODE EXECUTION SANDBOX
// ============================================================================

// SubmitExecution submits code to the sandbox and returns the execution id.
func (c *Client) SubmitExecution(ctx context.Context, code string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	payload, err := json.Marshal(execRequest{Code: code, Language: "python"})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sandboxURL+"/v1/executions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit execution: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError(resp, body)
	}

	var result ExecResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode execution response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("sandbox returned no execution id")
	}
	return result.ID, nil
}

// ExecutionStatus fetches the current state of an execution.
func (c *Client) ExecutionStatus(ctx context.Context, execID string) (*ExecResult, error) {
	var result ExecResult
	if err := c.getJSON(ctx, c.sandboxURL+"/v1/executions/"+execID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunCode submits code and polls until the execution reaches a terminal
// state. The poll cadence is rate limited and honors ctx cancellation.
func (c *Client) RunCode(ctx context.Context, code string) (*ExecResult, error) {
	execID, err := c.SubmitExecution(ctx, code)
	if err != nil {
		return nil, err
	}
	for {
		if err := c.pollLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		result, err := c.ExecutionStatus(ctx, execID)
		if err != nil {
			return nil, err
		}
		switch result.Status {
		case ExecCompleted, ExecFailed:
			return result, nil
		case ExecQueued, ExecRunning:
			// keep polling
		default:
			return nil, fmt.Errorf("sandbox reported unknown status %q", result.Status)
		}
	}
}
