// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - argument parsing and usage for agnt.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// Command represents what the invocation asks for.
type Command int

const (
	CmdTUI Command = iota
	CmdPipe
	CmdChat
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments. Empty string fields mean "not given";
// boolean flags track whether they appeared so config defaults survive.
type Args struct {
	Message   string // -m, prepended to piped input
	Model     string // --model override
	OutputDir string // -o override

	CodeExecution    bool
	CodeExecutionSet bool

	Debug bool
}

const usageText = `agnt - terminal client for Claude with code execution

Usage:
  agnt                   Start the interactive TUI (default)
  agnt chat              Plain readline chat, no alternate screen
  agnt -p [-m MESSAGE]   Pipe mode: read stdin, stream the reply to stdout

Flags:
  -p, --pipe             Read the prompt from stdin, write the reply to stdout
  -m MESSAGE             Message prepended to piped input
  -x, --code-execution   Let the model run Python in a sandbox
  -o, --output-dir DIR   Where execution artifacts are saved (default: output)
      --model NAME       Override the configured model
      --debug            Write a debug log under ~/.agnt
  -v, --version          Print version
  -h, --help             Show this help

Configuration is read from ~/.agnt/config.toml; ANTHROPIC_API_KEY and
ANTHROPIC_MODEL override it.
`

// Usage prints the help text.
func Usage() {
	fmt.Print(usageText)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("agnt %s (%s)\n", Version, GitCommit)
}

// Parse reads os.Args into a command and its arguments. Unknown flags
// fail with a message and the usage text.
func Parse() (Command, Args, error) {
	return parse(os.Args[1:])
}

func parse(argv []string) (Command, Args, error) {
	cmd := CmdTUI
	var args Args

	next := func(i *int, flag string) (string, error) {
		*i++
		if *i >= len(argv) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		return argv[*i], nil
	}

	for i := 0; i < len(argv); i++ {
		a := argv[i]
		switch a {
		case "chat":
			if i == 0 {
				cmd = CmdChat
				continue
			}
			return cmd, args, fmt.Errorf("unexpected argument %q", a)

		case "-p", "--pipe":
			cmd = CmdPipe

		case "-m", "--message":
			v, err := next(&i, a)
			if err != nil {
				return cmd, args, err
			}
			args.Message = v

		case "-x", "--code-execution":
			args.CodeExecution = true
			args.CodeExecutionSet = true

		case "-o", "--output-dir":
			v, err := next(&i, a)
			if err != nil {
				return cmd, args, err
			}
			args.OutputDir = v

		case "--model":
			v, err := next(&i, a)
			if err != nil {
				return cmd, args, err
			}
			args.Model = v

		case "--debug":
			args.Debug = true

		case "-v", "--version":
			return CmdVersion, args, nil

		case "-h", "--help":
			return CmdHelp, args, nil

		default:
			if strings.HasPrefix(a, "-") {
				return cmd, args, fmt.Errorf("unknown flag %q", a)
			}
			return cmd, args, fmt.Errorf("unexpected argument %q", a)
		}
	}

	return cmd, args, nil
}
