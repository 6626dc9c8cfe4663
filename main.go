// agnt - a terminal client for Claude with sandboxed code execution.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agnt-tui/internal/anthropic"
	"github.com/jeranaias/agnt-tui/internal/cli"
	"github.com/jeranaias/agnt-tui/internal/config"
	"github.com/jeranaias/agnt-tui/internal/session"
	"github.com/jeranaias/agnt-tui/internal/telemetry"
	"github.com/jeranaias/agnt-tui/internal/tools"
	"github.com/jeranaias/agnt-tui/internal/ui/chat"
	"github.com/jeranaias/agnt-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// Global program reference for async streaming
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
}

func main() {
	cmd, args, err := cli.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "agnt: %v\n\n", err)
		cli.Usage()
		os.Exit(2)
	}

	switch cmd {
	case cli.CmdVersion:
		cli.PrintVersion()
		return
	case cli.CmdHelp:
		cli.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "agnt: %v\n", err)
		os.Exit(1)
	}
	applyArgs(cfg, args)

	if cfg.Debug {
		if dir, err := config.Dir(); err == nil {
			if err := telemetry.Enable(filepath.Join(dir, "debug.log")); err != nil {
				fmt.Fprintf(os.Stderr, "agnt: debug log unavailable: %v\n", err)
			}
			defer telemetry.Close()
		}
	}

	client := anthropic.NewClient(anthropic.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		SandboxURL: cfg.SandboxURL,
		Model:      cfg.Model,
		MaxTokens:  cfg.MaxTokens,
	})
	coord := tools.NewCoordinator(client, client, cfg.OutputDir)

	switch cmd {
	case cli.CmdPipe:
		if err := cli.RunPipe(context.Background(), client, coord, args, cfg.CodeExecution); err != nil {
			fmt.Fprintf(os.Stderr, "agnt: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdChat:
		if err := cli.RunChat(client, coord, cfg, cfg.CodeExecution); err != nil {
			fmt.Fprintf(os.Stderr, "agnt: %v\n", err)
			os.Exit(1)
		}
	default:
		runTUI(cfg, client, coord)
	}
}

// applyArgs overlays CLI flags onto the loaded configuration. Flags win
// over both the file and the environment.
func applyArgs(cfg *config.Config, args cli.Args) {
	if args.Model != "" {
		cfg.Model = args.Model
	}
	if args.OutputDir != "" {
		cfg.OutputDir = args.OutputDir
	}
	if args.CodeExecutionSet {
		cfg.CodeExecution = args.CodeExecution
	}
	if args.Debug {
		cfg.Debug = true
	}
}

// runTUI starts the Bubble Tea interface.
func runTUI(cfg *config.Config, client *anthropic.Client, coord *tools.Coordinator) {
	theme := styles.NewTheme(cfg.UI.Theme)
	ctrl := session.NewController(client, coord, cfg.CodeExecution)

	m := chat.New(ctrl, theme, cfg.Model, cfg.UI.MouseWheelLines)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse support
	)

	// Store program reference for async operations
	programMu.Lock()
	programRef = p
	programMu.Unlock()

	// The controller signals transcript changes from its own goroutines;
	// the pump converts them into Bubble Tea messages.
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctrl.Changes():
				programMu.Lock()
				prog := programRef
				programMu.Unlock()
				if prog != nil {
					prog.Send(chat.TranscriptChangedMsg{})
				}
			}
		}
	}()

	_, err := p.Run()
	close(done)
	programMu.Lock()
	programRef = nil
	programMu.Unlock()

	if err != nil {
		fmt.Fprintf(os.Stderr, "agnt: %v\n", err)
		os.Exit(1)
	}
}
