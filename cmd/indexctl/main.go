// Command indexctl runs indexing and retrieval operations against the directory database:
// reindex or remove one business, backfill the whole index, publish lifecycle events and try
// search or the concierge.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("indexctl failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	idFlag := &cli.StringFlag{
		Name:     "id",
		Usage:    "Business ID (UUID)",
		Required: true,
	}

	queryFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "query",
			Aliases:  []string{"q"},
			Usage:    "Free-text query",
			Required: true,
		},
		&cli.StringFlag{Name: "organization", Usage: "Restrict to an organization ID"},
		&cli.StringFlag{Name: "category", Usage: "Restrict to a category ID"},
		&cli.StringFlag{Name: "province", Usage: "Restrict to a province ID"},
		&cli.StringFlag{Name: "city", Usage: "Restrict to a city ID"},
		&cli.IntFlag{Name: "limit", Usage: "Maximum number of matches (1-25)"},
	}

	return &cli.App{
		Name:  "indexctl",
		Usage: "Operate the semantic business index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "reindex",
				Usage:  "Rebuild the embedding of one business",
				Action: reindexCommand,
				Flags:  []cli.Flag{idFlag},
			},
			{
				Name:   "remove",
				Usage:  "Remove one business from the index",
				Action: removeCommand,
				Flags:  []cli.Flag{idFlag},
			},
			{
				Name:   "backfill",
				Usage:  "Index every indexable business and drop stale records",
				Action: backfillCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "queue",
						Usage: "Enqueue River jobs instead of indexing in-process",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Businesses listed per page",
						Value: 200,
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Run a semantic search",
				Action: searchCommand,
				Flags:  queryFlags,
			},
			{
				Name:   "ask",
				Usage:  "Ask the concierge a question",
				Action: askCommand,
				Flags:  queryFlags,
			},
			{
				Name:   "publish",
				Usage:  "Publish a business lifecycle event on NATS",
				Action: publishCommand,
				Flags: []cli.Flag{
					idFlag,
					&cli.StringFlag{
						Name:     "operation",
						Usage:    "created, updated, verified or deleted",
						Required: true,
					},
				},
			},
			{
				Name:   "probe",
				Usage:  "Probe the accelerated vector index",
				Action: probeCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level

	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return nil
}
