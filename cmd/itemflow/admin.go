package main

import (
	"context"
	"os"

	"github.com/blingmoon/itemflow/internal/defaultworkflow"
	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v3"
)

func projectFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "project",
		Usage: "Project id, empty means the system default workflow",
	}
}

func NewMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database tables",
		Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
			if err := a.migrate(); err != nil {
				return errors.WithMessage(err, "migrate failed")
			}
			a.logger.Info("database migrated", "dsn", a.config.Database.DSN)
			return nil
		}),
	}
}

func NewSeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create the built-in default workflow",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "authorized",
				Usage: "Users or groups authorized on every default node",
			},
		},
		Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
			description, err := defaultworkflow.Seed(ctx, a.graph, command.StringSlice("authorized")...)
			if err != nil {
				return err
			}
			return a.print(description)
		}),
	}
}

func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create a workflow description from a YAML or JSON file",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{projectFlag()},
		Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
			path := command.Args().First()
			if path == "" {
				return errors.WithMessage(workflow.ErrParamInvalid, "missing workflow file")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.WithMessagef(err, "read %s failed", path)
			}
			cfg, err := workflow.ParseWorkflowConfig(data)
			if err != nil {
				return err
			}
			description, err := a.graph.ImportWorkflowConfig(ctx, command.String("project"), cfg)
			if err != nil {
				return err
			}
			return a.print(description)
		}),
	}
}

func NewNodeCommand() *cli.Command {
	nodeFlags := func(required bool) []cli.Flag {
		return []cli.Flag{
			projectFlag(),
			&cli.StringFlag{Name: "title", Usage: "Node title", Required: required},
			&cli.BoolFlag{Name: "final", Usage: "Items entering this node are closed"},
			&cli.StringSliceFlag{Name: "authorized", Usage: "Users or groups that may be responsible on this node"},
		}
	}
	return &cli.Command{
		Name:  "node",
		Usage: "Manage workflow nodes",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a node",
				Flags: nodeFlags(true),
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					node, err := a.graph.AddNode(ctx, &workflow.AddNodeParams{
						ProjectID:     command.String("project"),
						Title:         command.String("title"),
						IsFinal:       command.Bool("final"),
						AuthorizedIDs: command.StringSlice("authorized"),
					})
					if err != nil {
						return err
					}
					return a.print(node)
				}),
			},
			{
				Name:      "edit",
				Usage:     "Replace the title, final flag and authorizations of a node",
				ArgsUsage: "<node-id>",
				Flags:     nodeFlags(true),
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					node, err := a.graph.EditNode(ctx, &workflow.EditNodeParams{
						ProjectID:     command.String("project"),
						NodeID:        command.Args().First(),
						Title:         command.String("title"),
						IsFinal:       command.Bool("final"),
						AuthorizedIDs: command.StringSlice("authorized"),
					})
					if err != nil {
						return err
					}
					return a.print(node)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a node no item is standing on",
				ArgsUsage: "<node-id>",
				Flags:     []cli.Flag{projectFlag()},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					return a.graph.DeleteNode(ctx, command.String("project"), command.Args().First())
				}),
			},
			{
				Name:      "initial",
				Usage:     "Set the node items in CREATED may move to directly",
				ArgsUsage: "<node-id>",
				Flags:     []cli.Flag{projectFlag()},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					return a.graph.SetInitialNode(ctx, command.String("project"), command.Args().First())
				}),
			},
			{
				Name:  "list",
				Usage: "Show the workflow description in effect for a project",
				Flags: []cli.Flag{projectFlag()},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					description, err := a.graph.FindWorkflowDescription(ctx, command.String("project"))
					if err != nil {
						return err
					}
					return a.print(description)
				}),
			},
		},
	}
}

func NewLinkCommand() *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Manage workflow links",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a link",
				Flags: []cli.Flag{
					projectFlag(),
					&cli.StringFlag{Name: "title", Usage: "Link title", Required: true},
					&cli.StringFlag{Name: "from", Usage: "Initial node id, empty means the start position"},
					&cli.StringFlag{Name: "to", Usage: "Final node id", Required: true},
					&cli.StringSliceFlag{Name: "item-type", Usage: "Item types the link applies to"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					link, err := a.graph.AddLink(ctx, &workflow.AddLinkParams{
						ProjectID:     command.String("project"),
						Title:         command.String("title"),
						InitialNodeID: command.String("from"),
						FinalNodeID:   command.String("to"),
						ItemTypes:     command.StringSlice("item-type"),
					})
					if err != nil {
						return err
					}
					return a.print(link)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a link",
				ArgsUsage: "<link-id>",
				Flags:     []cli.Flag{projectFlag()},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					return a.graph.DeleteLink(ctx, command.String("project"), command.Args().First())
				}),
			},
			{
				Name:  "path",
				Usage: "Check whether a node is reachable for an item type",
				Flags: []cli.Flag{
					projectFlag(),
					&cli.StringFlag{Name: "from", Usage: "Node id, empty means the start position"},
					&cli.StringFlag{Name: "to", Usage: "Node id", Required: true},
					&cli.StringFlag{Name: "item-type", Usage: "Item type", Required: true},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					ok, err := a.graph.HasPath(ctx, &workflow.HasPathParams{
						ProjectID:  command.String("project"),
						FromNodeID: command.String("from"),
						ToNodeID:   command.String("to"),
						ItemType:   command.String("item-type"),
					})
					if err != nil {
						return err
					}
					return a.print(map[string]bool{"reachable": ok})
				}),
			},
		},
	}
}
