package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "itemflow",
		Usage:                 "Administer item workflows, move items and run filters",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Sources: cli.EnvVars("ITEMFLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "SQLite database path, overrides database.dsn",
				Sources: cli.EnvVars("ITEMFLOW_DSN"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the admin locks, overrides redis.addr",
				Sources: cli.EnvVars("ITEMFLOW_REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error), overrides log.level",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			NewMigrateCommand(),
			NewSeedCommand(),
			NewImportCommand(),
			NewNodeCommand(),
			NewLinkCommand(),
			NewProjectCommand(),
			NewPrincipalCommand(),
			NewItemCommand(),
			NewFilterCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
