// Package main provides the mcumgr CLI.
//
// Usage:
//
//	mcumgr [global options] <command> [subcommand] [options]
//
// Connection settings come from ~/.mcumgr.yaml (or --config) and are
// overridden by flags:
//
//	conn: serial:/dev/ttyACM0,baud=115200
//	mtu: 256
//	timeout: 3s
//	capacity: 4
//
// Exit codes:
//   - 0: success
//   - 1: command failed
//   - 2: usage or configuration error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set via ldflags at build time.
var version = "dev"

func main() {
	app := newApp(&session{dial: dialTransport})
	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp(s *session) *cli.App {
	return &cli.App{
		Name:           "mcumgr",
		Usage:          "Manage devices over the Simple Management Protocol",
		Version:        version,
		Flags:          GlobalFlags(),
		Before:         s.before,
		After:          s.after,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			s.echoCommand(),
			s.taskStatCommand(),
			s.paramsCommand(),
			s.resetCommand(),
			s.imageCommand(),
			s.fsCommand(),
			s.coreCommand(),
			s.upgradeCommand(),
		},
	}
}

// exitErrHandler prints err and exits, preserving exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
