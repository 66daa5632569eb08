// Package main provides the conductor CLI entrypoint.
//
// Usage:
//
//	conductor run --action {plan|apply} --changed-files <path>... \
//	    --requester <id> --rules <path> [options]
//
// Exit codes:
//   - 0: clean
//   - 2: unit error (at least one unit failed, was rolled back, or was gated)
//   - 3: ambiguous batch or fatal misconfiguration
//   - 4: audit failures only, with no unit error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lattice-iac/conductor/cli/cmd"
	"github.com/lattice-iac/conductor/types"
)

func main() {
	app := &cli.App{
		Name:           "conductor",
		Usage:          "IaC deployment batch orchestrator",
		Version:        types.Version,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(2)
	}
}

// exitErrHandler preserves exit codes set via cli.Exit, printing the
// message only when it carries information beyond the bare exit status.
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
	os.Exit(2)
}
