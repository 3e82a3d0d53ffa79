package main

import (
	"time"

	"github.com/dukex/flowengine/pkg/cmd"
	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/graph"
	"github.com/dukex/flowengine/pkg/persistence/redis"
	cli "github.com/urfave/cli/v3"
)

func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Primary graph store URL (file://, redis://, postgres://)",
			Value:   "file://./data/graphs",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "overflow-path",
			Usage:   "Directory for graphs too large for the redis store",
			Value:   "./data/overflow",
			Sources: cli.EnvVars("OVERFLOW_PATH"),
		},
		&cli.StringFlag{
			Name:    "archive-url",
			Usage:   "PostgreSQL URL where finished executions are archived",
			Sources: cli.EnvVars("ARCHIVE_URL"),
		},
		&cli.DurationFlag{
			Name:    "redis-ttl",
			Usage:   "How long the redis store keeps a graph",
			Value:   redis.DefaultTTL,
			Sources: cli.EnvVars("REDIS_TTL"),
		},
		&cli.IntFlag{
			Name:    "redis-max-size",
			Usage:   "Largest graph payload in bytes the redis store accepts",
			Value:   redis.DefaultMaxSize,
			Sources: cli.EnvVars("REDIS_MAX_SIZE"),
		},
	}
}

func depthFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "max-depth",
		Usage:   "Nesting depth bound of diagnostic tree walks",
		Value:   graph.DefaultMaxDepth,
		Sources: cli.EnvVars("MAX_DEPTH"),
	}
}

func storeConfig(command *cli.Command) cmd.StoreConfig {
	return cmd.StoreConfig{
		URL:          command.String("database-url"),
		OverflowPath: command.String("overflow-path"),
		ArchiveURL:   command.String("archive-url"),
		TTL:          command.Duration("redis-ttl"),
		MaxSize:      command.Int("redis-max-size"),
	}
}

func engineOptions(command *cli.Command) engine.Options {
	return engine.Options{
		IndependentContext: command.Bool("independent-context"),
		KeyPath:            command.Bool("key-path"),
		MaxDepth:           command.Int("max-depth"),
	}
}

const defaultRetention = 7 * 24 * time.Hour
