// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugfNoOpWhenDisabled(t *testing.T) {
	Close()
	// Must not panic or write anywhere.
	Debugf("dropped %d", 1)
}

func TestEnableAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	if err := Enable(path); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer Close()

	Debugf("stale event dropped: session=%d", 7)
	Debugf("tool failure: %s", "exit code 2")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "stale event dropped: session=7") {
		t.Errorf("missing first line: %q", text)
	}
	if !strings.Contains(text, "tool failure: exit code 2") {
		t.Errorf("missing second line: %q", text)
	}
	if len(strings.Split(strings.TrimSpace(text), "\n")) != 2 {
		t.Errorf("want 2 lines, got: %q", text)
	}
}
