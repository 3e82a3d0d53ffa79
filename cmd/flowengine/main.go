// Package main provides the flowengine command: the scheduler with its HTTP API, plus
// offline tools to validate definitions and inspect stored executions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "flowengine",
		Usage:                 "Schedule and inspect task graph executions",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunCommand(),
			ValidateCommand(),
			InspectCommand(),
		},
	}
}

func main() {
	// A missing .env file is fine; the environment may already carry the settings.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	err := newApp().Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
