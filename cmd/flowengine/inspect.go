package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukex/flowengine/pkg/cmd"
	"github.com/dukex/flowengine/pkg/graph"
	"github.com/dukex/flowengine/pkg/log"
	"github.com/dukex/flowengine/pkg/web"
	cli "github.com/urfave/cli/v3"
)

func InspectCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "execution-id",
			Usage:    "Execution to inspect",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the execution as JSON",
		},
		depthFlag(),
	}

	flags = append(flags, storeFlags()...)
	flags = append(flags, logFlags()...)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Print the status of a stored execution",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("inspect")

			stores, err := cmd.NewStores(ctx, logger, storeConfig(command))
			if err != nil {
				return err
			}

			defer func() {
				if err := stores.Graphs.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close graph store", "error", err)
				}
			}()

			g, err := stores.Graphs.Load(ctx, command.String("execution-id"))
			if err != nil {
				return err
			}

			w := command.Root().Writer

			if command.Bool("json") {
				encoder := json.NewEncoder(w)
				encoder.SetIndent("", "  ")

				return encoder.Encode(web.TransformExecutionResponse(g))
			}

			maxDepth := command.Int("max-depth")

			fmt.Fprintf(w, "execution %s: %s\n", g.ExecutionID, g.Status)
			printTasks(w, g.Tasks, maxDepth)

			failed, result := graph.FailedTasks(g, maxDepth)
			for _, task := range failed {
				code, message := "", ""
				if task.Invocation != nil {
					code, message = task.Invocation.Code, task.Invocation.Message
				}

				fmt.Fprintf(w, "failed: %s %s %s\n", task.Name, code, message)
			}

			if result.Truncated {
				fmt.Fprintf(w, "tasks nested deeper than %d levels are not shown\n", result.MaxDepth)
			}

			return nil
		},
	}
}
