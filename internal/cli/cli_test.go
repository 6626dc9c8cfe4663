// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"
)

func TestParseCommands(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		wantErr bool
	}{
		{"no args is the TUI", nil, CmdTUI, false},
		{"chat subcommand", []string{"chat"}, CmdChat, false},
		{"pipe short", []string{"-p"}, CmdPipe, false},
		{"pipe long", []string{"--pipe"}, CmdPipe, false},
		{"version", []string{"-v"}, CmdVersion, false},
		{"help", []string{"--help"}, CmdHelp, false},
		{"unknown flag", []string{"--bogus"}, CmdTUI, true},
		{"stray positional", []string{"hello"}, CmdTUI, true},
		{"chat not first", []string{"-p", "chat"}, CmdPipe, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, err := parse(tt.argv)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parse(%v) error = %v, wantErr %v", tt.argv, err, tt.wantErr)
			}
			if err == nil && cmd != tt.wantCmd {
				t.Errorf("parse(%v) = %v, want %v", tt.argv, cmd, tt.wantCmd)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	cmd, args, err := parse([]string{"-p", "-m", "summarize this", "-x", "-o", "artifacts", "--model", "claude-test", "--debug"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd != CmdPipe {
		t.Errorf("cmd = %v, want CmdPipe", cmd)
	}
	if args.Message != "summarize this" {
		t.Errorf("Message = %q", args.Message)
	}
	if !args.CodeExecution || !args.CodeExecutionSet {
		t.Error("code execution flag not recorded")
	}
	if args.OutputDir != "artifacts" {
		t.Errorf("OutputDir = %q", args.OutputDir)
	}
	if args.Model != "claude-test" {
		t.Errorf("Model = %q", args.Model)
	}
	if !args.Debug {
		t.Error("Debug not set")
	}
}

func TestParseCodeExecutionUnsetByDefault(t *testing.T) {
	_, args, err := parse([]string{"-p"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if args.CodeExecutionSet {
		t.Error("CodeExecutionSet should be false when -x is absent")
	}
}

func TestParseMissingValue(t *testing.T) {
	for _, argv := range [][]string{
		{"-m"},
		{"-o"},
		{"--model"},
	} {
		if _, _, err := parse(argv); err == nil {
			t.Errorf("parse(%v) should fail on missing value", argv)
		}
	}
}
