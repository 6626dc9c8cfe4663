// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools runs tool invocations requested by the model and turns the
// outcomes into transcript result blocks. Results are produced locally and
// never arrive via the message stream.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/agnt-tui/internal/anthropic"
	"github.com/jeranaias/agnt-tui/internal/telemetry"
	"github.com/jeranaias/agnt-tui/internal/transcript"
	"github.com/jeranaias/agnt-tui/internal/util"
)

// CodeExecutionTool is the only tool name the coordinator accepts. Any
// other name in a tool-use block is a protocol violation.
const CodeExecutionTool = "code_execution"

// Runner executes code remotely and reports the terminal outcome.
type Runner interface {
	RunCode(ctx context.Context, code string) (*anthropic.ExecResult, error)
}

// FileFetcher resolves artifact handles to metadata and bytes.
type FileFetcher interface {
	FileMetadata(ctx context.Context, fileID string) (*anthropic.FileMetadata, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Coordinator validates tool invocations, runs them, and packages results.
// One Execute call corresponds to one tool-use block.
type Coordinator struct {
	runner    Runner
	files     FileFetcher
	outputDir string

	// metaRetryDelay is how long to wait before the single metadata
	// retry. Shortened in tests.
	metaRetryDelay time.Duration
}

// NewCoordinator creates a coordinator saving artifacts under outputDir.
func NewCoordinator(runner Runner, files FileFetcher, outputDir string) *Coordinator {
	return &Coordinator{
		runner:         runner,
		files:          files,
		outputDir:      outputDir,
		metaRetryDelay: 500 * time.Millisecond,
	}
}

// Supports reports whether the coordinator recognizes the tool name.
func (c *Coordinator) Supports(name string) bool {
	return name == CodeExecutionTool
}

// Execute runs one code-execution request and returns the result block.
// Failures of any kind become a status=error block; Execute never fails the
// surrounding turn.
func (c *Coordinator) Execute(ctx context.Context, code string) *transcript.Block {
	reqID := uuid.NewString()[:8]
	telemetry.Debugf("exec %s: submitting %d bytes of code", reqID, len(code))

	result, err := c.runner.RunCode(ctx, code)
	if err != nil {
		telemetry.Debugf("exec %s: failed: %v", reqID, err)
		block := transcript.NewToolResultBlock(transcript.ResultError)
		block.ErrorMsg = err.Error()
		return block
	}

	status := transcript.ResultOK
	if !result.Succeeded() {
		status = transcript.ResultError
	}
	block := transcript.NewToolResultBlock(status)
	block.Stdout = result.Stdout
	block.Stderr = result.Stderr
	block.ExitCode = result.ReturnCode
	if status == transcript.ResultError {
		block.ErrorMsg = result.Summary()
	}

	for _, f := range result.Files {
		block.Files = append(block.Files, c.saveArtifact(ctx, reqID, f.FileID))
	}

	telemetry.Debugf("exec %s: %s, %d artifact(s)", reqID, status, len(block.Files))
	return block
}

// saveArtifact resolves one file handle and writes it under the output
// directory. Errors are recorded on the ref, never returned; one bad
// artifact must not discard the rest of the result.
func (c *Coordinator) saveArtifact(ctx context.Context, reqID, fileID string) *transcript.FileRef {
	ref := &transcript.FileRef{Handle: fileID, Filename: fileID + ".bin"}

	meta, err := c.files.FileMetadata(ctx, fileID)
	if err != nil {
		// Transient metadata failures are common right after an
		// execution finishes; retry once.
		select {
		case <-time.After(c.metaRetryDelay):
		case <-ctx.Done():
			ref.SaveError = ctx.Err().Error()
			return ref
		}
		meta, err = c.files.FileMetadata(ctx, fileID)
	}
	if err == nil {
		ref.Filename = util.SanitizeFilename(meta.Filename, fileID+".bin")
		ref.SizeBytes = meta.SizeBytes
		ref.MimeType = meta.MimeType
	} else {
		telemetry.Debugf("exec %s: metadata for %s unavailable: %v", reqID, fileID, err)
	}

	data, err := c.files.DownloadFile(ctx, fileID)
	if err != nil {
		ref.SaveError = fmt.Sprintf("download failed: %v", err)
		telemetry.Debugf("exec %s: %s", reqID, ref.SaveError)
		return ref
	}

	path := util.UniquePath(c.outputDir, ref.Filename)
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		ref.SaveError = fmt.Sprintf("write failed: %v", err)
		telemetry.Debugf("exec %s: %s", reqID, ref.SaveError)
		return ref
	}

	ref.LocalPath = path
	telemetry.Debugf("exec %s: saved %s (%d bytes)", reqID, path, len(data))
	return ref
}
