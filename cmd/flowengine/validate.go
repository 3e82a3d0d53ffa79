package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dukex/flowengine/pkg/definition"
	"github.com/dukex/flowengine/pkg/graph"
	"github.com/dukex/flowengine/pkg/log"
	"github.com/dukex/flowengine/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a graph definition file and print the tasks it expands to",
		ArgsUsage: "<definition.yaml|definition.json>",
		Flags:     append([]cli.Flag{depthFlag()}, logFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("validate")

			path := command.Args().First()
			if path == "" {
				return errors.New("a definition file is required")
			}

			loader, err := definition.NewLoader(logger)
			if err != nil {
				return err
			}

			def, err := loader.LoadFile(path)
			if err != nil {
				return err
			}

			tasks, result, err := graph.NewBuilder(logger).Preview(def, command.Int("max-depth"))
			if err != nil {
				return err
			}

			w := command.Root().Writer

			fmt.Fprintf(w, "%s: valid (%d top-level tasks)\n", def.Name, len(def.Tasks))
			printTasks(w, tasks, command.Int("max-depth"))

			if result.Truncated {
				fmt.Fprintf(w, "bodies nested deeper than %d levels are not shown\n", result.MaxDepth)
			}

			logger.DebugContext(ctx, "Definition validated", "path", path)

			return nil
		},
	}
}

// printTasks writes one line per task reachable within maxDepth, indented by depth.
func printTasks(w io.Writer, tasks map[string]*models.TaskNode, maxDepth int) {
	graph.Walk(tasks, maxDepth, func(task *models.TaskNode, depth int) bool {
		fmt.Fprintf(w, "%s%s [%s] %s\n", strings.Repeat("  ", depth), task.Name, task.Category(), task.Status)

		return true
	})
}
