// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides the debug log. The TUI owns the terminal, so
// diagnostics go to a file instead of stderr. Disabled by default; when
// disabled every call is a no-op.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger appends timestamped lines to a debug log file. Safe for concurrent
// use. The zero value is a disabled logger.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

var global = &Logger{}

// Enable opens (or creates) the debug log at path and routes subsequent
// Debugf calls to it.
func Enable(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.file != nil {
		global.file.Close()
	}
	global.file = f
	return nil
}

// Close flushes and closes the debug log.
func Close() {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.file != nil {
		global.file.Close()
		global.file = nil
	}
}

// Debugf writes one formatted line to the debug log. No-op when disabled.
func Debugf(format string, args ...any) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.file == nil {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(global.file, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}
