package main

import (
	"context"
	"strconv"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v3"
)

func versionFlag() cli.Flag {
	return &cli.IntFlag{
		Name:     "version",
		Usage:    "Item version read before the change",
		Required: true,
	}
}

func NewItemCommand() *cli.Command {
	return &cli.Command{
		Name:  "item",
		Usage: "Create and move items",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an item in CREATED state",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Usage: "Project id", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Item title", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Item description"},
					&cli.StringFlag{Name: "type", Usage: "Item type", Required: true},
					&cli.StringFlag{Name: "creator", Usage: "Creator user id", Required: true},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					item, err := a.items.CreateItem(ctx, &workflow.CreateItemParams{
						ProjectID:   command.String("project"),
						Title:       command.String("title"),
						Description: command.String("description"),
						ItemType:    command.String("type"),
						CreatorID:   command.String("creator"),
					})
					if err != nil {
						return err
					}
					return a.print(item)
				}),
			},
			{
				Name:      "show",
				Usage:     "Show an item by id, or by --project and --seq",
				ArgsUsage: "[item-id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Usage: "Project id"},
					&cli.StringFlag{Name: "seq", Usage: "Sequence number inside the project"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					item, err := findItem(ctx, command, a)
					if err != nil {
						return err
					}
					return a.print(item)
				}),
			},
			{
				Name:      "next-nodes",
				Usage:     "List the nodes an item may move to",
				ArgsUsage: "<item-id>",
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					item, err := a.items.FindItem(ctx, command.Args().First())
					if err != nil {
						return err
					}
					nodes, err := a.items.FindNextNodes(ctx, item)
					if err != nil {
						return err
					}
					return a.print(nodes)
				}),
			},
			{
				Name:      "move",
				Usage:     "Move an item to another node",
				ArgsUsage: "<item-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Usage: "Target node id", Required: true},
					&cli.StringFlag{Name: "responsible", Usage: "Responsible user for user selected projects"},
					versionFlag(),
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					item, err := a.items.MoveItem(ctx, &workflow.MoveItemParams{
						ItemID:          command.Args().First(),
						TargetNodeID:    command.String("to"),
						ResponsibleID:   command.String("responsible"),
						ExpectedVersion: int64(command.Int("version")),
					})
					if err != nil {
						return err
					}
					return a.print(item)
				}),
			},
			{
				Name:      "move-many",
				Usage:     "Move several items of one project to the same node",
				ArgsUsage: "<seq>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Usage: "Project id", Required: true},
					&cli.StringFlag{Name: "to", Usage: "Target node id", Required: true},
					&cli.StringFlag{Name: "responsible", Usage: "Responsible user for user selected projects"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					seqs, err := parseSeqs(command.Args().Slice())
					if err != nil {
						return err
					}
					result, err := a.items.MoveMany(ctx, &workflow.MoveManyParams{
						ProjectID:     command.String("project"),
						TargetNodeID:  command.String("to"),
						ResponsibleID: command.String("responsible"),
						Seqs:          seqs,
					})
					if err != nil {
						return err
					}
					failures := make(map[int64]string, len(result.Failures))
					for seq, failure := range result.Failures {
						failures[seq] = failure.Error()
					}
					return a.print(map[string]any{
						"moved":    result.Moved,
						"unmoved":  result.Unmoved,
						"failures": failures,
					})
				}),
			},
			{
				Name:      "take",
				Usage:     "Become responsible for an item on its current node",
				ArgsUsage: "<item-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "User id", Required: true},
					versionFlag(),
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					item, err := a.items.TakeItem(ctx, &workflow.TakeItemParams{
						ItemID:          command.Args().First(),
						UserID:          command.String("user"),
						ExpectedVersion: int64(command.Int("version")),
					})
					if err != nil {
						return err
					}
					return a.print(item)
				}),
			},
			{
				Name:      "block",
				Usage:     "Block an item",
				ArgsUsage: "<item-id>",
				Flags:     []cli.Flag{versionFlag()},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					item, err := a.items.BlockItem(ctx, &workflow.ChangeItemStateParams{
						ItemID:          command.Args().First(),
						ExpectedVersion: int64(command.Int("version")),
					})
					if err != nil {
						return err
					}
					return a.print(item)
				}),
			},
			{
				Name:      "unblock",
				Usage:     "Unblock an item",
				ArgsUsage: "<item-id>",
				Flags:     []cli.Flag{versionFlag()},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					item, err := a.items.UnblockItem(ctx, &workflow.ChangeItemStateParams{
						ItemID:          command.Args().First(),
						ExpectedVersion: int64(command.Int("version")),
					})
					if err != nil {
						return err
					}
					return a.print(item)
				}),
			},
			{
				Name:      "history",
				Usage:     "Show the nodes an item stayed on",
				ArgsUsage: "<item-id>",
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					history, err := a.items.ItemHistory(ctx, command.Args().First())
					if err != nil {
						return err
					}
					return a.print(history)
				}),
			},
		},
	}
}

func findItem(ctx context.Context, command *cli.Command, a *app) (*workflow.Item, error) {
	if id := command.Args().First(); id != "" {
		return a.items.FindItem(ctx, id)
	}
	if command.String("seq") == "" {
		return nil, errors.WithMessage(workflow.ErrParamInvalid, "need an item id or --project and --seq")
	}
	seq, err := strconv.ParseInt(command.String("seq"), 10, 64)
	if err != nil {
		return nil, errors.Wrapf(workflow.ErrParamInvalid, "invalid seq %q", command.String("seq"))
	}
	return a.items.FindItemBySeq(ctx, command.String("project"), seq)
}

func parseSeqs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, errors.WithMessage(workflow.ErrParamInvalid, "no seq given")
	}
	seqs := make([]int64, 0, len(args))
	for _, arg := range args {
		seq, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(workflow.ErrParamInvalid, "invalid seq %q", arg)
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}
